// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ccv3 defines the Character Card V3 target schema.
//
// # Description
//
// Data, Lorebook and LorebookEntry each carry an Extensions bag (tagged
// json:"extensions,omitempty"): whatever sits under a JSON "extensions"
// key decodes into it and is written back out on encode. Only plain struct
// tags are used, so decoding does not move other unrecognized keys into
// the bag; such keys are dropped. Card itself has no Extensions field.
package ccv3

import "encoding/json"

const (
	SpecName    = "chara_card_v3"
	SpecVersion = "3.0"

	PositionBeforeChar = "before_char"
	PositionAfterChar  = "after_char"
)

// Card is the top-level CCv3 envelope.
type Card struct {
	Spec        string `json:"spec"`
	SpecVersion string `json:"spec_version"`
	Data        Data   `json:"data"`
}

// Data carries the character's authoring content and metadata.
type Data struct {
	Name                     string     `json:"name"`
	Creator                  string     `json:"creator,omitempty"`
	CharacterVersion         string     `json:"character_version,omitempty"`
	CreationDate             int64      `json:"creation_date,omitempty"`
	ModificationDate         int64      `json:"modification_date,omitempty"`
	Description              string     `json:"description,omitempty"`
	Personality              string     `json:"personality,omitempty"`
	Scenario                 string     `json:"scenario,omitempty"`
	FirstMes                 string     `json:"first_mes,omitempty"`
	MesExample               string     `json:"mes_example,omitempty"`
	AlternateGreetings       []string   `json:"alternate_greetings"`
	SystemPrompt             string     `json:"system_prompt,omitempty"`
	PostHistoryInstructions  string     `json:"post_history_instructions,omitempty"`
	CreatorNotes             string     `json:"creator_notes,omitempty"`
	Tags                     []string   `json:"tags"`
	Source                   []string   `json:"source,omitempty"`
	CharacterBook            *Lorebook  `json:"character_book,omitempty"`
	Extensions               Extensions `json:"extensions,omitempty"`
}

// Lorebook is a structured collection of conditional text entries.
type Lorebook struct {
	Name              string          `json:"name,omitempty"`
	Description       string          `json:"description,omitempty"`
	ScanDepth         int             `json:"scan_depth,omitempty"`
	TokenBudget       int             `json:"token_budget,omitempty"`
	RecursiveScanning bool            `json:"recursive_scanning"`
	Entries           []LorebookEntry `json:"entries"`
	Extensions        Extensions      `json:"extensions,omitempty"`
}

// LorebookEntry is one conditional entry within a Lorebook.
type LorebookEntry struct {
	Keys            []string   `json:"keys"`
	SecondaryKeys   []string   `json:"secondary_keys"`
	Content         string     `json:"content"`
	Enabled         bool       `json:"enabled"`
	InsertionOrder  int        `json:"insertion_order"`
	CaseSensitive   bool       `json:"case_sensitive"`
	UseRegex        bool       `json:"use_regex"`
	Constant        bool       `json:"constant"`
	Name            string     `json:"name,omitempty"`
	Priority        int        `json:"priority"`
	ID              int        `json:"id"`
	Comment         string     `json:"comment,omitempty"`
	Selective       bool       `json:"selective"`
	Position        string     `json:"position"`
	Extensions      Extensions `json:"extensions,omitempty"`
}

// NewLorebookEntry returns a LorebookEntry pre-populated with the spec's
// stated defaults (§4.D): enabled=true, priority=10, position defaults to
// before_char. Callers still set Keys/Content/etc.
func NewLorebookEntry() LorebookEntry {
	return LorebookEntry{
		Enabled:  true,
		Priority: 10,
		Position: PositionBeforeChar,
	}
}

// NewCard returns a Card with the spec envelope fields populated.
func NewCard() Card {
	return Card{Spec: SpecName, SpecVersion: SpecVersion}
}

// Extensions is the free-form bag decoded from a JSON "extensions" object,
// kept as raw JSON per key and written back verbatim. Keys a typed struct
// does not recognize elsewhere in the object are not collected here.
type Extensions map[string]json.RawMessage
