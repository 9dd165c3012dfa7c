// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command arcaferry starts the Arcaferry character-card import facade.
//
// # Environment Variables
//
//   - ARCAFERRY_PORT: HTTP server port (default: 17236)
//   - ARCAFERRY_SIDECAR_SCRIPT_PATH: override for the browser-sidecar script
//   - ARCAFERRY_SIDECAR_HEADED: run the sidecar browser headed (default: false)
//   - ARCAFERRY_SIDECAR_TRACE: stream sidecar stderr live (default: false)
//   - ARCAFERRY_SIDECAR_TIMEOUT_SECS: sidecar process timeout (default: 300)
//   - ARCAFERRY_AVATAR_TIMEOUT_SECS: avatar download timeout, clamped [5,180] (default: 30)
//   - ARCAFERRY_GEMINI_API_KEY: forwarded to the sidecar for LLM-assisted extraction
//   - ARCAFERRY_LOG_FORMAT: "json" forces JSON logs even on a TTY
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: localhost:4317)
//
// # Usage
//
//	go build -o arcaferry ./cmd/arcaferry
//	./arcaferry --sidecar-headed
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/arcaferry/arcaferry/services/arcaferry"
)

func main() {
	var headed bool
	var trace bool

	rootCmd := &cobra.Command{
		Use:   "arcaferry",
		Short: "Import character cards scraped from Quack/Purrly into portable CCv3 cards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(headed, trace)
		},
	}

	rootCmd.Flags().BoolVar(&headed, "sidecar-headed", getEnvBool("ARCAFERRY_SIDECAR_HEADED", false),
		"Run the browser-automation sidecar with a visible window instead of headless.")
	rootCmd.Flags().BoolVar(&trace, "sidecar-trace", getEnvBool("ARCAFERRY_SIDECAR_TRACE", false),
		"Stream sidecar stderr live instead of collecting it silently.")
	rootCmd.Flags().BoolVar(&trace, "sidecar-verbose", getEnvBool("ARCAFERRY_SIDECAR_TRACE", false),
		"Alias for --sidecar-trace.")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(headed, trace bool) error {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg := arcaferry.Config{
		Port:             getEnvInt("ARCAFERRY_PORT", 17236),
		OTelEndpoint:     getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		EnableMetrics:    true,
		SidecarHeaded:    headed,
		SidecarTrace:     trace,
		GeminiAPIKey:     os.Getenv("ARCAFERRY_GEMINI_API_KEY"),
		ArcamageBaseURL:  os.Getenv("ARCAFERRY_FORWARD_BASE_URL"),
		ArcamageAPIToken: os.Getenv("ARCAFERRY_FORWARD_API_TOKEN"),
	}

	logger.Info("starting arcaferry", "port", cfg.Port, "sidecar_headed", headed, "sidecar_trace", trace)

	svc, err := arcaferry.New(cfg, logger)
	if err != nil {
		return err
	}
	return svc.Run()
}

// newLogger selects a JSON handler when stdout isn't a terminal (or
// ARCAFERRY_LOG_FORMAT=json is set), and a human-readable text handler on
// an interactive TTY.
func newLogger() *slog.Logger {
	if getEnvString("ARCAFERRY_LOG_FORMAT", "") == "json" || !isatty.IsTerminal(os.Stdout.Fd()) {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
