// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package png

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	stdpng "image/png"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/ccv3"
)

// placeholderSize is the width/height of the synthesized square portrait
// used when no base avatar PNG is available for a scraped card.
const placeholderSize = 512

// placeholderGray is the flat fill color of the synthesized placeholder,
// chosen as a neutral mid-gray so it doesn't look like an error state.
var placeholderGray = color.RGBA{R: 0x9a, G: 0x9a, B: 0x9a, A: 0xff}

// newPlaceholderPNG synthesizes a flat-gray square PNG of placeholderSize.
func newPlaceholderPNG() ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, placeholderSize, placeholderSize))
	for y := 0; y < placeholderSize; y++ {
		for x := 0; x < placeholderSize; x++ {
			img.Set(x, y, placeholderGray)
		}
	}

	var buf bytes.Buffer
	if err := stdpng.Encode(&buf, img); err != nil {
		return nil, apierrors.New(apierrors.KindIOError, "encode placeholder PNG: %v", err)
	}
	return buf.Bytes(), nil
}

// CreateCardPNG builds a card-bearing PNG: baseImageB64, if non-empty, is
// decoded as the avatar to embed; otherwise a flat-gray placeholder is
// synthesized. Both a "ccv3" tEXt chunk (the full Card) and a "chara" tEXt
// chunk (the V2 projection) are injected, matching what downstream
// character-card readers expect to find.
func CreateCardPNG(card ccv3.Card, baseImageB64 string) ([]byte, error) {
	var base []byte
	var err error

	if baseImageB64 != "" {
		if decoded, decodeErr := base64.StdEncoding.DecodeString(baseImageB64); decodeErr == nil {
			if _, chunkErr := ReadChunks(decoded); chunkErr == nil {
				base = decoded
			}
		}
	}

	if base == nil {
		base, err = newPlaceholderPNG()
		if err != nil {
			return nil, err
		}
	}

	cardJSON, err := json.Marshal(card)
	if err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "marshal card: %v", err)
	}

	v2JSON, err := json.Marshal(card.ToV2())
	if err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "marshal v2 projection: %v", err)
	}

	withCCv3, err := InjectTextChunk(base, "ccv3", string(cardJSON), true)
	if err != nil {
		return nil, err
	}

	withBoth, err := InjectTextChunk(withCCv3, "chara", string(v2JSON), true)
	if err != nil {
		return nil, err
	}

	return withBoth, nil
}
