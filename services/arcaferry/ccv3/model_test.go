// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ccv3

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCardHasSpecEnvelope(t *testing.T) {
	card := NewCard()
	assert.Equal(t, SpecName, card.Spec)
	assert.Equal(t, SpecVersion, card.SpecVersion)
}

func TestNewLorebookEntryDefaults(t *testing.T) {
	e := NewLorebookEntry()
	assert.True(t, e.Enabled)
	assert.Equal(t, 10, e.Priority)
	assert.Equal(t, PositionBeforeChar, e.Position)
}

func TestCardRoundTripsThroughJSON(t *testing.T) {
	card := NewCard()
	card.Data.Name = "Test"
	card.Data.Tags = []string{"QuackAI", "fantasy"}

	raw, err := json.Marshal(card)
	require.NoError(t, err)

	var decoded Card
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, card.Data.Name, decoded.Data.Name)
	assert.Equal(t, card.Data.Tags, decoded.Data.Tags)
}

func TestToV2ProjectsSubset(t *testing.T) {
	card := NewCard()
	card.Data.Name = "Test"
	card.Data.Description = "Desc"
	card.Data.CharacterBook = &Lorebook{Name: "book"}

	v2 := card.ToV2()
	assert.Equal(t, "Test", v2.Name)
	assert.Equal(t, "Desc", v2.Description)
	require.NotNil(t, v2.CharacterBook)
	assert.Equal(t, "book", v2.CharacterBook.Name)
}
