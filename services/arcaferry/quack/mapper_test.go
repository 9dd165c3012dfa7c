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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapToCardPrefersCharListName(t *testing.T) {
	info := CharacterInfo{
		Name:     "TopLevel",
		CharList: []CharListItem{{Name: strPtr("FromCharList")}},
	}
	card := MapToCard(info, nil, nil)
	assert.Equal(t, "FromCharList", card.Data.Name)
}

func TestMapToCardFallsBackToTopLevelName(t *testing.T) {
	info := CharacterInfo{Name: "TopLevel"}
	card := MapToCard(info, nil, nil)
	assert.Equal(t, "TopLevel", card.Data.Name)
}

func TestMapToCardDescriptionFromVisibleAttrs(t *testing.T) {
	info := CharacterInfo{
		Name: "X",
		CharList: []CharListItem{{
			Attrs: []Attribute{
				{Label: "Height", Value: "180cm", IsVisible: boolPtr(true)},
				{Label: "Secret", Value: "hidden-value", IsVisible: boolPtr(false)},
			},
		}},
	}
	card := MapToCard(info, nil, nil)
	assert.Contains(t, card.Data.Description, "[Height: 180cm]")
	assert.NotContains(t, card.Data.Description, "Secret")
}

func TestMapToCardTagsInsertsQuackAIWhenMissing(t *testing.T) {
	info := CharacterInfo{Name: "X", Extra: ExtraFields{Tags: []string{"fantasy"}}}
	card := MapToCard(info, nil, nil)
	require.NotEmpty(t, card.Data.Tags)
	assert.Equal(t, "QuackAI", card.Data.Tags[0])
	assert.Contains(t, card.Data.Tags, "fantasy")
}

func TestMapToCardTagsDoesNotDuplicateQuackAI(t *testing.T) {
	info := CharacterInfo{Name: "X", Extra: ExtraFields{Tags: []string{"QuackAI", "fantasy"}}}
	card := MapToCard(info, nil, nil)
	count := 0
	for _, tag := range card.Data.Tags {
		if tag == "QuackAI" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestMapToCardGreetingsPrefersPrologue(t *testing.T) {
	info := CharacterInfo{
		Name:     "X",
		FirstMes: "fallback",
		Prologue: &Prologue{Greetings: []Greeting{{Value: "hi1"}, {Value: "hi2"}}},
	}
	card := MapToCard(info, nil, nil)
	assert.Equal(t, "hi1", card.Data.FirstMes)
	assert.Equal(t, []string{"hi2"}, card.Data.AlternateGreetings)
}

func TestMapToCardGreetingsFallsBackToFirstMes(t *testing.T) {
	info := CharacterInfo{Name: "X", FirstMes: "only one"}
	card := MapToCard(info, nil, nil)
	assert.Equal(t, "only one", card.Data.FirstMes)
	assert.Empty(t, card.Data.AlternateGreetings)
}

func TestMapToCardGreetingsAppendsDedupedStudioPrologue(t *testing.T) {
	info := CharacterInfo{
		Name:     "X",
		Prologue: &Prologue{Greetings: []Greeting{{Value: "hi1"}}},
	}
	chatInfo := &ChatInfo{
		StudioPrologue: &Prologue{Greetings: []Greeting{{Value: "hi1"}, {Value: "hi2"}, {Value: "hi1"}}},
	}
	card := MapToCard(info, chatInfo, nil)
	assert.Equal(t, "hi1", card.Data.FirstMes)
	assert.Equal(t, []string{"hi2"}, card.Data.AlternateGreetings)
}

func TestMapToCardLorebookFromExtraEntries(t *testing.T) {
	info := CharacterInfo{Name: "Hero"}
	extra := []LorebookEntryRaw{
		{Keys: "a, b", Content: "lore text"},
	}
	card := MapToCard(info, nil, extra)
	require.NotNil(t, card.Data.CharacterBook)
	require.Len(t, card.Data.CharacterBook.Entries, 1)
	assert.Equal(t, []string{"a", "b"}, card.Data.CharacterBook.Entries[0].Keys)
	assert.Equal(t, "Hero的世界书", card.Data.CharacterBook.Name)
}

func TestMapToCardLorebookConstantEntryKeepsEmptyKeys(t *testing.T) {
	entry := LorebookEntryRaw{Content: "always on", Name: "Rule", Constant: boolPtr(true)}
	card := MapToCard(CharacterInfo{Name: "X"}, nil, []LorebookEntryRaw{entry})
	require.NotNil(t, card.Data.CharacterBook)
	assert.Empty(t, card.Data.CharacterBook.Entries[0].Keys)
	assert.True(t, card.Data.CharacterBook.Entries[0].Constant)
}

func TestMapToCardLorebookNonConstantEmptyKeysDefaultsToName(t *testing.T) {
	entry := LorebookEntryRaw{Content: "text", Name: "Rule"}
	card := MapToCard(CharacterInfo{Name: "X"}, nil, []LorebookEntryRaw{entry})
	assert.Equal(t, []string{"Rule"}, card.Data.CharacterBook.Entries[0].Keys)
}

func TestMapToCardSystemPromptAppendsHiddenAttrs(t *testing.T) {
	info := CharacterInfo{
		Name:         "X",
		SystemPrompt: "base prompt",
		CharList: []CharListItem{{
			CustomAttrs: []Attribute{{Label: "Kink", Value: "extracted", IsVisible: boolPtr(false)}},
		}},
	}
	card := MapToCard(info, nil, nil)
	assert.Contains(t, card.Data.SystemPrompt, "base prompt")
	assert.Contains(t, card.Data.SystemPrompt, "[Kink: extracted]")
}

func TestMapToCardLorebookCopiesUnknownKeysIntoExtensions(t *testing.T) {
	var entry LorebookEntryRaw
	err := json.Unmarshal([]byte(`{"keys":"a","content":"lore","depth":3,"vectorized":true}`), &entry)
	require.NoError(t, err)

	card := MapToCard(CharacterInfo{Name: "X"}, nil, []LorebookEntryRaw{entry})
	require.NotNil(t, card.Data.CharacterBook)
	ext := card.Data.CharacterBook.Entries[0].Extensions
	require.NotNil(t, ext)
	assert.Contains(t, ext, "depth")
	assert.Contains(t, ext, "vectorized")
	assert.NotContains(t, ext, "keys")
	assert.NotContains(t, ext, "content")
}

func TestLorebookEntryRawUnmarshalCapturesOnlyUnknownKeys(t *testing.T) {
	var entry LorebookEntryRaw
	err := json.Unmarshal([]byte(`{"keys":"a, b","content":"lore","priority":5,"customField":"x"}`), &entry)
	require.NoError(t, err)

	assert.Equal(t, "a, b", entry.Keys)
	assert.Equal(t, 5, *entry.Priority)
	require.NotEmpty(t, entry.Extra)
	var unknown map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(entry.Extra, &unknown))
	assert.Contains(t, unknown, "customField")
	assert.NotContains(t, unknown, "keys")
	assert.NotContains(t, unknown, "priority")
}

func TestLorebookEntryRawUnmarshalNoUnknownKeysLeavesExtraEmpty(t *testing.T) {
	var entry LorebookEntryRaw
	err := json.Unmarshal([]byte(`{"keys":"a","content":"lore"}`), &entry)
	require.NoError(t, err)
	assert.Empty(t, entry.Extra)
}

func TestIsPlaceholderContent(t *testing.T) {
	assert.True(t, IsPlaceholderContent(""))
	assert.True(t, IsPlaceholderContent("_"))
	assert.True(t, IsPlaceholderContent("-"))
	assert.True(t, IsPlaceholderContent("a"))
	assert.False(t, IsPlaceholderContent("ab"))
}

func TestAvatarURLPrependsBase(t *testing.T) {
	assert.Equal(t, avatarBaseURL+"foo.png", AvatarURL("foo.png"))
	assert.Equal(t, "https://cdn.example.com/x.png", AvatarURL("https://cdn.example.com/x.png"))
	assert.Equal(t, "", AvatarURL(""))
}
