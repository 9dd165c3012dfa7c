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
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/ccv3"
)

// MapToCard maps an upstream CharacterInfo (plus optional chat-session
// context and optional externally-supplied lorebook entries) onto a CCv3
// card, per the nine hard constraints governing name, attribute
// collection, description synthesis, personality resolution, greeting
// precedence, tag ordering, lorebook mapping, system-prompt composition,
// and the remaining metadata fields.
func MapToCard(info CharacterInfo, chatInfo *ChatInfo, extraLorebook []LorebookEntryRaw) ccv3.Card {
	card := ccv3.NewCard()

	card.Data.Name = resolveName(info)
	attrs := collectAttributes(info)

	card.Data.Description = buildDescription(attrs)
	card.Data.Personality = resolvePersonality(info, attrs)

	firstMes, alternates := resolveGreetings(info, chatInfo)
	card.Data.FirstMes = firstMes
	card.Data.AlternateGreetings = alternates

	card.Data.Tags = resolveTags(info)

	entries := resolveLorebookEntries(info, extraLorebook)
	if len(entries) > 0 {
		card.Data.CharacterBook = buildLorebook(card.Data.Name, entries)
	}

	card.Data.SystemPrompt = buildSystemPrompt(info, attrs)

	if chatInfo != nil && chatInfo.CharMesExample != "" {
		card.Data.MesExample = chatInfo.CharMesExample
	}

	card.Data.Creator = firstNonEmpty(info.AuthorName, info.Creator)

	card.Data.CreatorNotes = info.CreatorNotes
	if chatInfo != nil && chatInfo.CharCreatorNotes != "" {
		card.Data.CreatorNotes = chatInfo.CharCreatorNotes
	} else if card.Data.CreatorNotes == "" {
		card.Data.CreatorNotes = info.Intro
	}

	now := time.Now().Unix()
	card.Data.CreationDate = now
	card.Data.ModificationDate = now
	card.Data.CharacterVersion = "1.0"

	return card
}

func resolveName(info CharacterInfo) string {
	if len(info.CharList) > 0 && info.CharList[0].Name != nil && *info.CharList[0].Name != "" {
		return *info.CharList[0].Name
	}
	return info.Name
}

// collectAttributes concatenates, in order, the decoded top-level
// custom_attrs array and the first char_list item's attrs/advise_attrs/
// custom_attrs. Items that fail to decode as an Attribute are skipped.
func collectAttributes(info CharacterInfo) []Attribute {
	var attrs []Attribute

	for _, obj := range decodeCustomAttrs(info.CustomAttrs) {
		raw, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var a Attribute
		if err := json.Unmarshal(raw, &a); err != nil {
			continue
		}
		attrs = append(attrs, a)
	}

	if len(info.CharList) > 0 {
		first := info.CharList[0]
		attrs = append(attrs, first.Attrs...)
		attrs = append(attrs, first.AdviseAttrs...)
		attrs = append(attrs, first.CustomAttrs...)
	}

	return attrs
}

func buildDescription(attrs []Attribute) string {
	var lines []string
	for _, a := range attrs {
		if !a.visible() {
			continue
		}
		label := a.LabelOrName()
		if label == "" || a.Value == "" {
			continue
		}
		lines = append(lines, "["+label+": "+a.Value+"]")
	}
	return strings.Join(lines, "\n")
}

func resolvePersonality(info CharacterInfo, attrs []Attribute) string {
	if info.Personality != "" {
		return info.Personality
	}
	for _, a := range attrs {
		if strings.ToLower(a.LabelOrName()) == "personality" {
			return a.Value
		}
	}
	return ""
}

// resolveGreetings implements the prologue > raw-greeting > first_mes
// precedence, then appends any studio_prologue greetings beyond the first,
// de-duplicated against what's already held.
func resolveGreetings(info CharacterInfo, chatInfo *ChatInfo) (first string, alternates []string) {
	var pool []string

	switch {
	case info.Prologue != nil && len(info.Prologue.Greetings) > 0:
		for _, g := range info.Prologue.Greetings {
			pool = append(pool, g.Text())
		}
	case len(info.Greeting) > 0:
		for _, g := range info.Greeting {
			pool = append(pool, g.Text())
		}
	default:
		pool = []string{info.FirstMes}
	}

	if len(pool) == 0 {
		return "", nil
	}
	first = pool[0]
	alternates = append(alternates, pool[1:]...)

	if chatInfo != nil && chatInfo.StudioPrologue != nil && len(chatInfo.StudioPrologue.Greetings) > 1 {
		seen := map[string]bool{first: true}
		for _, a := range alternates {
			seen[a] = true
		}
		for _, g := range chatInfo.StudioPrologue.Greetings[1:] {
			text := g.Text()
			if !seen[text] {
				seen[text] = true
				alternates = append(alternates, text)
			}
		}
	}

	return first, alternates
}

func resolveTags(info CharacterInfo) []string {
	tags := append([]string{}, info.Extra.Tags...)
	for _, t := range tags {
		if t == "QuackAI" {
			return tags
		}
	}
	return append([]string{"QuackAI"}, tags...)
}

func resolveLorebookEntries(info CharacterInfo, extra []LorebookEntryRaw) []LorebookEntryRaw {
	if len(extra) > 0 {
		return extra
	}
	return info.CharacterBooks
}

func buildLorebook(characterName string, raw []LorebookEntryRaw) *ccv3.Lorebook {
	entries := make([]ccv3.LorebookEntry, 0, len(raw))

	for i, r := range raw {
		entry := ccv3.NewLorebookEntry()
		entry.Content = r.Content
		entry.Name = r.Name

		keys := splitTrimmed(r.Keys)
		if len(keys) == 0 && !boolOr(r.Constant, false) && r.Name != "" {
			keys = []string{r.Name}
		}
		entry.Keys = keys

		entry.SecondaryKeys = splitTrimmed(r.SecondaryKeys)
		entry.Selective = len(entry.SecondaryKeys) > 0

		entry.Position = ccv3.PositionBeforeChar
		if r.Position != nil && *r.Position == 1 {
			entry.Position = ccv3.PositionAfterChar
		}

		entry.InsertionOrder = i + 1
		entry.ID = i + 1
		entry.Priority = intOr(r.Priority, 10)
		entry.CaseSensitive = boolOr(r.CaseSensitive, false)
		entry.Enabled = boolOr(r.Enabled, true)
		entry.UseRegex = boolOr(r.UseRegex, false)
		entry.Constant = boolOr(r.Constant, false)
		entry.Extensions = extensionsFromRaw(r.Extra)

		entries = append(entries, entry)
	}

	return &ccv3.Lorebook{
		Name:              characterName + "的世界书",
		ScanDepth:         50,
		TokenBudget:       500,
		RecursiveScanning: false,
		Entries:           entries,
	}
}

// extensionsFromRaw decodes a lorebook entry's captured unknown-key bag
// into a ccv3.Extensions map, per §4.G.7's "unknown JSON keys copied into
// extensions" constraint.
func extensionsFromRaw(raw json.RawMessage) ccv3.Extensions {
	if len(raw) == 0 {
		return nil
	}
	var ext ccv3.Extensions
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil
	}
	return ext
}

func splitTrimmed(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

// buildSystemPrompt takes char_list[0].prompt or the upstream system
// prompt as a base, then appends any hidden-but-now-populated attributes
// as [Label: Value] lines after a blank-line separator — or uses them as
// the whole prompt if the base was empty.
func buildSystemPrompt(info CharacterInfo, attrs []Attribute) string {
	base := info.SystemPrompt
	if len(info.CharList) > 0 && info.CharList[0].Prompt != nil && *info.CharList[0].Prompt != "" {
		base = *info.CharList[0].Prompt
	}

	var hiddenLines []string
	for _, a := range attrs {
		if a.visible() || a.Value == "" {
			continue
		}
		label := a.LabelOrName()
		if label == "" {
			continue
		}
		hiddenLines = append(hiddenLines, "["+label+": "+a.Value+"]")
	}

	if len(hiddenLines) == 0 {
		return base
	}
	hidden := strings.Join(hiddenLines, "\n")
	if base == "" {
		return hidden
	}
	return base + "\n\n" + hidden
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// AvatarURL builds the full avatar image URL from a relative picture path
// returned by the upstream API, matching the static CDN base.
func AvatarURL(picture string) string {
	if picture == "" {
		return ""
	}
	if strings.HasPrefix(picture, "http://") || strings.HasPrefix(picture, "https://") {
		return picture
	}
	return avatarBaseURL + strings.TrimPrefix(picture, "/")
}

// IsPlaceholderContent implements the shared placeholder-detection rule
// used for both lorebook content and need-lorebook checks: empty, "_",
// "-", or length <= 1 counts as placeholder.
func IsPlaceholderContent(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" || trimmed == "_" || trimmed == "-" || len([]rune(trimmed)) <= 1
}

// NeedsLorebook reports whether the share info carries at least one
// character-book entry whose content is placeholder.
func NeedsLorebook(info CharacterInfo) bool {
	for _, entry := range info.CharacterBooks {
		if IsPlaceholderContent(entry.Content) {
			return true
		}
	}
	return false
}

// NeedsHidden reports whether any collected attribute is hidden with an
// empty value.
func NeedsHidden(info CharacterInfo) bool {
	for _, a := range collectAttributes(info) {
		if !a.visible() && strings.TrimSpace(a.Value) == "" {
			return true
		}
	}
	return false
}
