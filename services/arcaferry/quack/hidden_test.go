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

func boolPtr(b bool) *bool { return &b }
func strPtr(s string) *string { return &s }

func TestApplyHiddenSettingsUpdatesMultipleLocations(t *testing.T) {
	customAttrs, err := json.Marshal([]map[string]any{
		{"label": "TopSecret", "value": "", "isVisible": false, "keepMe": 123},
	})
	require.NoError(t, err)

	info := CharacterInfo{
		Name:        "Test",
		CustomAttrs: customAttrs,
		CharList: []CharListItem{
			{
				Name:        strPtr("Test"),
				Attrs:       []Attribute{{Label: "A", Value: "", IsVisible: boolPtr(false)}},
				AdviseAttrs: []Attribute{{Name: "B", Value: "", IsVisible: boolPtr(false)}},
				CustomAttrs: []Attribute{{Label: "C", Value: "", IsVisible: boolPtr(false)}},
			},
		},
	}

	extracted := []Attribute{
		{Label: "TopSecret", Value: "V1", IsVisible: boolPtr(false)},
		{Label: "A", Value: "V2", IsVisible: boolPtr(false)},
		{Name: "B", Value: "V3", IsVisible: boolPtr(false)},
		{Label: "C", Value: "V4", IsVisible: boolPtr(false)},
	}

	applied := ApplyHiddenSettings(&info, extracted)
	assert.Equal(t, 4, applied)

	var top []map[string]any
	require.NoError(t, json.Unmarshal(info.CustomAttrs, &top))
	assert.Equal(t, "V1", top[0]["value"])
	assert.EqualValues(t, 123, top[0]["keepMe"])

	first := info.CharList[0]
	assert.Equal(t, "V2", first.Attrs[0].Value)
	assert.Equal(t, "V3", first.AdviseAttrs[0].Value)
	assert.Equal(t, "V4", first.CustomAttrs[0].Value)
}

func TestGetHiddenAttrLabelsUsesAllAttrsAndDedupes(t *testing.T) {
	customAttrs, err := json.Marshal([]map[string]any{
		{"label": "X", "value": "", "isVisible": false},
		{"label": "X", "value": "", "isVisible": false},
	})
	require.NoError(t, err)

	info := CharacterInfo{
		Name:        "Test",
		CustomAttrs: customAttrs,
		CharList: []CharListItem{
			{
				Attrs: []Attribute{{Name: "Y", Value: "", IsVisible: boolPtr(false)}},
			},
		},
	}

	labels := GetHiddenAttrLabels(info)
	assert.Equal(t, []string{"X", "Y"}, labels)
}
