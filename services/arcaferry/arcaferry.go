// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package arcaferry wires the HTTP facade, the sidecar capability probe,
// and the ambient observability stack into one runnable Service.
package arcaferry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arcaferry/arcaferry/services/arcaferry/handlers"
	"github.com/arcaferry/arcaferry/services/arcaferry/observability"
	"github.com/arcaferry/arcaferry/services/arcaferry/routes"
)

// Service is the lifecycle contract for the running facade.
type Service interface {
	// Run starts the HTTP server and blocks until it stops or errors.
	Run() error
	// Router returns the configured engine, primarily for integration tests.
	Router() *gin.Engine
}

// Config holds the top-level knobs §6's environment variables translate
// into.
type Config struct {
	// Port is the HTTP listen port. Default: 17236.
	Port int

	// OTelEndpoint is the OpenTelemetry collector gRPC endpoint. Tracing
	// is disabled (not fatal) if the exporter can't be set up; the gRPC
	// connection is lazy, so an unreachable collector doesn't stop startup.
	OTelEndpoint string

	// EnableMetrics registers the Prometheus collectors in observability.
	EnableMetrics bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	GinMode string

	// AvatarTimeout overrides the avatar-fetch client's timeout; zero
	// falls back to ARCAFERRY_AVATAR_TIMEOUT_SECS / the 30s default.
	AvatarTimeout time.Duration

	SidecarHeaded bool
	SidecarTrace  bool
	GeminiAPIKey  string

	ArcamageBaseURL  string
	ArcamageAPIToken string
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 17236
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "localhost:4317"
	}
	return cfg
}

type service struct {
	config        Config
	router        *gin.Engine
	engine        *handlers.Engine
	logger        *slog.Logger
	tracerCleanup func(context.Context)
	stopWatch     func()
}

// New constructs a ready-to-run Service: applies config defaults, starts
// (best-effort) OpenTelemetry tracing, registers Prometheus metrics,
// builds the handler engine, starts watching the sidecar script for
// changes, and wires the HTTP router.
func New(cfg Config, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &service{config: applyConfigDefaults(cfg), logger: logger}

	if cleanup, err := s.initTracer(); err != nil {
		logger.Warn("OpenTelemetry tracing disabled", "error", err)
	} else {
		s.tracerCleanup = cleanup
	}

	if s.config.EnableMetrics {
		observability.InitMetrics()
		logger.Info("Prometheus metrics registered")
	}

	s.engine = handlers.NewEngine(handlers.Config{
		Port:             s.config.Port,
		AvatarTimeout:    s.config.AvatarTimeout,
		SidecarHeaded:    s.config.SidecarHeaded,
		SidecarTrace:     s.config.SidecarTrace,
		GeminiAPIKey:     s.config.GeminiAPIKey,
		ArcamageBaseURL:  s.config.ArcamageBaseURL,
		ArcamageAPIToken: s.config.ArcamageAPIToken,
	}, logger)

	if stop, err := s.engine.SidecarProbe.WatchScript(logger); err != nil {
		logger.Warn("sidecar script watcher disabled", "error", err)
	} else {
		s.stopWatch = stop
	}

	s.initRouter()

	return s, nil
}

func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.logger.Info("starting arcaferry server", "port", s.config.Port)
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	router := gin.Default()
	if s.tracerCleanup != nil {
		router.Use(otelgin.Middleware("arcaferry"))
	}
	routes.SetupRoutes(router, s.engine)
	s.router = router
}

// initTracer mirrors the ambient OTel wiring this module's sibling
// services use, adapted to be non-fatal: a scrape/import facade should
// still serve traffic when the collector is unreachable, since tracing is
// an observability nicety here, not a correctness dependency.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("arcaferry")))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}
	return cleanup, nil
}

func (s *service) cleanup() {
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}
