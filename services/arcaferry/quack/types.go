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

import "encoding/json"

const (
	characterInfoPath  = "/api/v1/studioCard/info"
	chatInfoPath        = "/api/v1/user/character/info-by-chat-index"
	chatCreatePath      = "/api/v1/chats/create"
	lorebookPath        = "/api/v1/chat/getCharacterBooks"
	interactCardPath    = "/api/characters/interact-card"
	personaListPath     = "/api/v1/persona/list"
	presetListNamePath  = "/api/presets/list-name"
	avatarBaseURL       = "https://static.purrly.ai/upload_char_avatar/"
)

// Attribute is one label/value pair on a character, possibly hidden
// (is_visible == false) pending a real-browser extraction pass.
type Attribute struct {
	Label     string `json:"label,omitempty"`
	Name      string `json:"name,omitempty"`
	Value     string `json:"value,omitempty"`
	IsVisible *bool  `json:"isVisible,omitempty"`
}

// visible reports whether the attribute should be treated as shown: absent
// is_visible defaults to true.
func (a Attribute) visible() bool {
	return a.IsVisible == nil || *a.IsVisible
}

// LabelOrName returns the label if non-empty, else the name.
func (a Attribute) LabelOrName() string {
	if a.Label != "" {
		return a.Label
	}
	return a.Name
}

// Greeting is one upstream greeting entry in whichever of the three shapes
// the API emits it.
type Greeting struct {
	Value   string `json:"value,omitempty"`
	Content string `json:"content,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Text returns whichever field was populated, preferring value then
// content then text.
func (g Greeting) Text() string {
	if g.Value != "" {
		return g.Value
	}
	if g.Content != "" {
		return g.Content
	}
	return g.Text
}

// LorebookEntryRaw is one upstream lorebook entry prior to CCv3 mapping.
type LorebookEntryRaw struct {
	Keys          string          `json:"keys,omitempty"`
	SecondaryKeys string          `json:"secondaryKeys,omitempty"`
	Content       string          `json:"content,omitempty"`
	Name          string          `json:"name,omitempty"`
	Position      *int            `json:"position,omitempty"`
	Priority      *int            `json:"priority,omitempty"`
	CaseSensitive *bool           `json:"caseSensitive,omitempty"`
	Enabled       *bool           `json:"enabled,omitempty"`
	UseRegex      *bool           `json:"useRegex,omitempty"`
	Constant      *bool           `json:"constant,omitempty"`
	Extra         json.RawMessage `json:"-"`
}

// lorebookEntryRawKnownFields lists the JSON keys LorebookEntryRaw decodes
// into named fields; anything else is an unknown key and is captured into
// Extra so it can round-trip into the mapped entry's extensions bag.
var lorebookEntryRawKnownFields = map[string]bool{
	"keys": true, "secondaryKeys": true, "content": true, "name": true,
	"position": true, "priority": true, "caseSensitive": true,
	"enabled": true, "useRegex": true, "constant": true,
}

// UnmarshalJSON decodes the known fields normally, then captures whatever
// keys aren't in lorebookEntryRawKnownFields into Extra.
func (e *LorebookEntryRaw) UnmarshalJSON(data []byte) error {
	type alias LorebookEntryRaw
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = LorebookEntryRaw(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	unknown := make(map[string]json.RawMessage, len(raw))
	for k, v := range raw {
		if !lorebookEntryRawKnownFields[k] {
			unknown[k] = v
		}
	}
	if len(unknown) > 0 {
		extra, err := json.Marshal(unknown)
		if err != nil {
			return err
		}
		e.Extra = extra
	}
	return nil
}

// CharListItem is one entry of the upstream char_list array, which carries
// most of the authored content plus the three attribute sequences.
type CharListItem struct {
	Name          *string         `json:"name,omitempty"`
	Attrs         []Attribute     `json:"attrs,omitempty"`
	AdviseAttrs   []Attribute     `json:"adviseAttrs,omitempty"`
	CustomAttrs   []Attribute     `json:"customAttrs,omitempty"`
	Prompt        *string         `json:"prompt,omitempty"`
	Picture       *string         `json:"picture,omitempty"`
	Extra         json.RawMessage `json:"-"`
}

// Prologue carries upstream-authored greeting variants.
type Prologue struct {
	Greetings []Greeting `json:"greetings,omitempty"`
}

// CharacterInfo is the upstream share-info / chat-info payload, permissive
// enough to survive fields this module doesn't model explicitly.
type CharacterInfo struct {
	Name             string            `json:"name"`
	Personality      string            `json:"personality,omitempty"`
	Description      string            `json:"description,omitempty"`
	Scenario         string            `json:"scenario,omitempty"`
	FirstMes         string            `json:"firstMes,omitempty"`
	Greeting         []Greeting        `json:"greeting,omitempty"`
	Prologue         *Prologue         `json:"prologue,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	AuthorName       string            `json:"authorName,omitempty"`
	Creator          string            `json:"creator,omitempty"`
	CreatorNotes     string            `json:"creatorNotes,omitempty"`
	Intro            string            `json:"intro,omitempty"`
	Picture          string            `json:"picture,omitempty"`
	CustomAttrs      json.RawMessage   `json:"customAttrs,omitempty"`
	CharList         []CharListItem    `json:"charList,omitempty"`
	CharacterBooks   []LorebookEntryRaw `json:"characterbooks,omitempty"`
	Extra            ExtraFields       `json:"extra,omitempty"`
}

// ExtraFields carries the upstream "extra" bag, whose only field this
// module cares about is tags.
type ExtraFields struct {
	Tags []string `json:"tags,omitempty"`
}

// ChatInfo is the chat-info-by-index payload, which layers chat-session
// context (origin share id, chat-level overrides) on top of a
// CharacterInfo.
type ChatInfo struct {
	OriginSid       string             `json:"originSid,omitempty"`
	Sid             string             `json:"sid,omitempty"`
	Cid             string             `json:"cid,omitempty"`
	CharMesExample  string             `json:"charMesExample,omitempty"`
	CharCreatorNotes string            `json:"charCreatorNotes,omitempty"`
	StudioPrologue  *Prologue          `json:"studioPrologue,omitempty"`
	Lorebooks       []LorebookEntryRaw `json:"lorebooks,omitempty"`
}

// envelope is the wrapped API response shape: {code, data, msg}.
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}
