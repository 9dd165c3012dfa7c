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

// V2Card is the subset of fields a legacy "chara" (V2) text chunk expects,
// per §4.I step 3. It is a read-only projection of a Card; nothing
// constructs a V2Card except ToV2.
type V2Card struct {
	Name                    string    `json:"name"`
	Description             string    `json:"description,omitempty"`
	Personality             string    `json:"personality,omitempty"`
	Scenario                string    `json:"scenario,omitempty"`
	FirstMes                string    `json:"first_mes,omitempty"`
	MesExample              string    `json:"mes_example,omitempty"`
	CreatorNotes            string    `json:"creator_notes,omitempty"`
	SystemPrompt            string    `json:"system_prompt,omitempty"`
	PostHistoryInstructions string    `json:"post_history_instructions,omitempty"`
	AlternateGreetings      []string  `json:"alternate_greetings"`
	Tags                    []string  `json:"tags"`
	Creator                 string    `json:"creator,omitempty"`
	CharacterVersion        string    `json:"character_version,omitempty"`
	CharacterBook           *Lorebook `json:"character_book,omitempty"`
}

// ToV2 projects a Card down to the V2 field subset.
func (c Card) ToV2() V2Card {
	return V2Card{
		Name:                    c.Data.Name,
		Description:             c.Data.Description,
		Personality:             c.Data.Personality,
		Scenario:                c.Data.Scenario,
		FirstMes:                c.Data.FirstMes,
		MesExample:              c.Data.MesExample,
		CreatorNotes:            c.Data.CreatorNotes,
		SystemPrompt:            c.Data.SystemPrompt,
		PostHistoryInstructions: c.Data.PostHistoryInstructions,
		AlternateGreetings:      c.Data.AlternateGreetings,
		Tags:                    c.Data.Tags,
		Creator:                 c.Data.Creator,
		CharacterVersion:        c.Data.CharacterVersion,
		CharacterBook:           c.Data.CharacterBook,
	}
}
