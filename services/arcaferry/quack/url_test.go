// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package quack

import (
	"testing"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractIDFromShareURL(t *testing.T) {
	id, err := ExtractID("https://purrly.ai/discovery/share/abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestExtractIDFromDreamURL(t *testing.T) {
	id, err := ExtractID("https://quack.im/dream/xyz789")
	require.NoError(t, err)
	assert.Equal(t, "xyz789", id)
}

func TestExtractIDFromSingleSegmentURL(t *testing.T) {
	id, err := ExtractID("https://purrly.ai/abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestExtractIDFromRawID(t *testing.T) {
	id, err := ExtractID("abc-123_xyz")
	require.NoError(t, err)
	assert.Equal(t, "abc-123_xyz", id)
}

func TestExtractIDEmptyInput(t *testing.T) {
	_, err := ExtractID("   ")
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindInvalidURL, apiErr.Kind)
}

func TestExtractIDInvalidInput(t *testing.T) {
	_, err := ExtractID("not a valid id with spaces and !@#")
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.KindInvalidURL, apiErr.Kind)
}

func TestClassifyURLDream(t *testing.T) {
	assert.Equal(t, Dream, ClassifyURL("https://quack.im/dream/abc"))
}

func TestClassifyURLShare(t *testing.T) {
	assert.Equal(t, Share, ClassifyURL("https://purrly.ai/discovery/share/abc"))
	assert.Equal(t, Share, ClassifyURL("https://purrly.ai/studio/card/abc"))
	assert.Equal(t, Share, ClassifyURL("https://purrly.ai/character/abc"))
}

func TestClassifyURLUnknownForRawID(t *testing.T) {
	assert.Equal(t, Unknown, ClassifyURL("abc123xyz"))
}

func TestSelectAPIBaseQuack(t *testing.T) {
	assert.Equal(t, QuackAPIBase, SelectAPIBase("https://quack.im/dream/abc"))
	assert.Equal(t, QuackAPIBase, SelectAPIBase("https://quack.work/dream/abc"))
	assert.Equal(t, QuackAPIBase, SelectAPIBase("https://quack.icu/dream/abc"))
}

func TestSelectAPIBasePurrlyDefault(t *testing.T) {
	assert.Equal(t, PurrlyAPIBase, SelectAPIBase("https://purrly.ai/discovery/share/abc"))
	assert.Equal(t, PurrlyAPIBase, SelectAPIBase("raw-id"))
}
