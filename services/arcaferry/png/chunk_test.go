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
	"testing"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createMinimalPNG builds a minimal but well-formed 3-chunk PNG
// (IHDR, IDAT, IEND) for use as a test fixture.
func createMinimalPNG() []byte {
	ihdr := NewChunk("IHDR", []byte{
		0, 0, 0, 1, // width = 1
		0, 0, 0, 1, // height = 1
		8, 2, 0, 0, 0, // bit depth, color type, compression, filter, interlace
	})
	idat := NewChunk("IDAT", []byte{0x78, 0x9C, 0x01, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x01})
	iend := NewChunk("IEND", nil)
	return BuildPNG([]Chunk{ihdr, idat, iend})
}

func TestReadChunks(t *testing.T) {
	data := createMinimalPNG()

	chunks, err := ReadChunks(data)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, "IHDR", chunks[0].TypeString())
	assert.Equal(t, "IDAT", chunks[1].TypeString())
	assert.Equal(t, "IEND", chunks[2].TypeString())
}

func TestBuildPNGRoundtrip(t *testing.T) {
	data := createMinimalPNG()

	chunks, err := ReadChunks(data)
	require.NoError(t, err)

	rebuilt := BuildPNG(chunks)
	assert.Equal(t, data, rebuilt)
}

func TestInjectTextChunk(t *testing.T) {
	data := createMinimalPNG()

	injected, err := InjectTextChunk(data, "ccv3", `{"name":"test"}`, true)
	require.NoError(t, err)

	format, json, found, err := GetCardData(injected)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ccv3", format)
	assert.Equal(t, `{"name":"test"}`, json)
}

func TestInjectPreservesIDAT(t *testing.T) {
	data := createMinimalPNG()

	before, err := ExtractIDATChunks(data)
	require.NoError(t, err)

	injected, err := InjectTextChunk(data, "ccv3", `{"name":"test"}`, true)
	require.NoError(t, err)

	after, err := ExtractIDATChunks(injected)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestGetCardDataPriority(t *testing.T) {
	data := createMinimalPNG()

	withChara, err := InjectTextChunk(data, "chara", `{"name":"v2"}`, true)
	require.NoError(t, err)
	withBoth, err := InjectTextChunk(withChara, "ccv3", `{"name":"v3"}`, true)
	require.NoError(t, err)

	format, json, found, err := GetCardData(withBoth)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ccv3", format)
	assert.Equal(t, `{"name":"v3"}`, json)
}

func TestReplaceExistingChunk(t *testing.T) {
	data := createMinimalPNG()

	first, err := InjectTextChunk(data, "ccv3", `{"name":"one"}`, true)
	require.NoError(t, err)
	second, err := InjectTextChunk(first, "ccv3", `{"name":"two"}`, true)
	require.NoError(t, err)

	chunks, err := ReadChunks(second)
	require.NoError(t, err)

	textChunkCount := 0
	for _, c := range chunks {
		if c.TypeString() == "tEXt" {
			textChunkCount++
		}
	}
	assert.Equal(t, 1, textChunkCount)

	_, json, found, err := GetCardData(second)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `{"name":"two"}`, json)
}

func TestInvalidPNGSignature(t *testing.T) {
	_, err := ReadChunks([]byte{0x00, 0x01, 0x02, 0x03})

	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindInvalidPNGSignature, apiErr.Kind)
}

func TestRemoveTextChunk(t *testing.T) {
	data := createMinimalPNG()

	injected, err := InjectTextChunk(data, "ccv3", `{"name":"test"}`, true)
	require.NoError(t, err)

	removed, err := RemoveTextChunk(injected, "ccv3")
	require.NoError(t, err)

	_, _, found, err := GetCardData(removed)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestEmbedCardConvenienceWrapper(t *testing.T) {
	data := createMinimalPNG()

	embedded, err := EmbedCard(data, `{"name":"wrapped"}`)
	require.NoError(t, err)

	format, json, found, err := GetCardData(embedded)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "ccv3", format)
	assert.Equal(t, `{"name":"wrapped"}`, json)
}
