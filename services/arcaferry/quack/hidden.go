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
)

// isHiddenEmptyRaw reports whether a raw custom_attrs object is hidden
// (isVisible explicitly false) and has an empty/whitespace value.
func isHiddenEmptyRaw(obj map[string]any) bool {
	visible, hasVisible := obj["isVisible"].(bool)
	if !hasVisible || visible {
		return false
	}
	value, _ := obj["value"].(string)
	return strings.TrimSpace(value) == ""
}

func rawLabelOrName(obj map[string]any) string {
	if label, ok := obj["label"].(string); ok && label != "" {
		return label
	}
	if name, ok := obj["name"].(string); ok {
		return name
	}
	return ""
}

func decodeCustomAttrs(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var attrs []map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil
	}
	return attrs
}

// GetHiddenAttrLabels collects, in traversal order and de-duplicated, the
// label-or-name of every hidden-and-empty attribute across the top-level
// custom_attrs array and the first char_list item's three attribute
// sequences.
func GetHiddenAttrLabels(info CharacterInfo) []string {
	seen := make(map[string]bool)
	var labels []string

	add := func(label string) {
		if label == "" || seen[label] {
			return
		}
		seen[label] = true
		labels = append(labels, label)
	}

	for _, obj := range decodeCustomAttrs(info.CustomAttrs) {
		if isHiddenEmptyRaw(obj) {
			add(rawLabelOrName(obj))
		}
	}

	if len(info.CharList) > 0 {
		first := info.CharList[0]
		for _, seq := range [][]Attribute{first.Attrs, first.AdviseAttrs, first.CustomAttrs} {
			for _, a := range seq {
				if !a.visible() && strings.TrimSpace(a.Value) == "" {
					add(a.LabelOrName())
				}
			}
		}
	}

	return labels
}

// ApplyHiddenSettings merges externally-extracted attribute values back
// into a CharacterInfo's four mutable attribute locations, matching
// hidden-and-empty entries by label (falling back to name) against the
// extracted set. Label wins over name on a collision in the extracted set.
// Returns the number of assignments applied.
func ApplyHiddenSettings(info *CharacterInfo, extracted []Attribute) int {
	byName := make(map[string]string)
	byLabel := make(map[string]string)
	for _, a := range extracted {
		if strings.TrimSpace(a.Value) == "" {
			continue
		}
		if a.Name != "" {
			byName[strings.TrimSpace(a.Name)] = a.Value
		}
		if a.Label != "" {
			byLabel[strings.TrimSpace(a.Label)] = a.Value
		}
	}

	lookup := func(label, name string) (string, bool) {
		if v, ok := byLabel[strings.TrimSpace(label)]; ok && label != "" {
			return v, true
		}
		if v, ok := byName[strings.TrimSpace(name)]; ok && name != "" {
			return v, true
		}
		return "", false
	}

	applied := 0

	topAttrs := decodeCustomAttrs(info.CustomAttrs)
	if topAttrs != nil {
		for _, obj := range topAttrs {
			if !isHiddenEmptyRaw(obj) {
				continue
			}
			label, _ := obj["label"].(string)
			name, _ := obj["name"].(string)
			if v, ok := lookup(label, name); ok {
				obj["value"] = v
				applied++
			}
		}
		if remarshaled, err := json.Marshal(topAttrs); err == nil {
			info.CustomAttrs = remarshaled
		}
	}

	if len(info.CharList) > 0 {
		first := &info.CharList[0]
		applyToSeq := func(seq []Attribute) {
			for i := range seq {
				a := &seq[i]
				if a.visible() || strings.TrimSpace(a.Value) != "" {
					continue
				}
				if v, ok := lookup(a.Label, a.Name); ok {
					a.Value = v
					applied++
				}
			}
		}
		applyToSeq(first.Attrs)
		applyToSeq(first.AdviseAttrs)
		applyToSeq(first.CustomAttrs)
	}

	return applied
}
