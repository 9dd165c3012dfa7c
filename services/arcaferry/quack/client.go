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
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arcaferry/arcaferry/services/arcaferry/apierrors"
	"github.com/arcaferry/arcaferry/services/arcaferry/cookies"
	"github.com/arcaferry/arcaferry/services/arcaferry/httpclient"
)

const (
	defaultPersonaPresetTimeout = 30 * time.Second
	chatCreateTimeout           = 60 * time.Second
)

// Client drives the multi-step upstream acquisition protocol against
// either the Quack or Purrly API base.
type Client struct {
	base       string
	http       *httpclient.Client
	hasAuth    bool
}

// NewClientWithTimeout builds a Client against apiBase, authenticated with
// the given cookie jar and/or bearer token (either may be empty/nil),
// timing every request out after timeout.
func NewClientWithTimeout(apiBase string, jar *cookies.Jar, bearerToken string, timeout time.Duration, userAgent string) (*Client, error) {
	opts := []httpclient.Option{httpclient.WithTimeout(timeout), httpclient.WithUserAgent(userAgent)}
	if jar != nil && !jar.IsEmpty() {
		opts = append(opts, httpclient.WithCookies(jar))
	}
	if bearerToken != "" {
		opts = append(opts, httpclient.WithBearerToken(bearerToken))
	}

	c, err := httpclient.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:    strings.TrimRight(apiBase, "/"),
		http:    c,
		hasAuth: bearerToken != "" || (jar != nil && !jar.IsEmpty()),
	}, nil
}

func (c *Client) buildURL(path, query string) string {
	guest := ""
	if !c.hasAuth {
		guest = "isguest=1&"
	}
	return c.base + path + "?" + guest + query
}

// getRaw performs a GET and unwraps the response envelope.
func (c *Client) getRaw(ctx context.Context, path, query string) (json.RawMessage, error) {
	text, err := c.http.GetText(ctx, c.buildURL(path, query))
	if err != nil {
		return nil, err
	}
	return decodeEnvelope([]byte(text))
}

// postRaw performs a POST and unwraps the response envelope.
func (c *Client) postRaw(ctx context.Context, path string, body any) (json.RawMessage, error) {
	text, err := c.http.PostText(ctx, c.base+path, body)
	if err != nil {
		return nil, err
	}
	return decodeEnvelope([]byte(text))
}

// decodeEnvelope implements §4.F's response-shape handling: try to decode
// as {code, data, msg}; if a "code" key is present, dispatch on its value;
// otherwise treat the body as a bare payload.
func decodeEnvelope(body []byte) (json.RawMessage, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err == nil {
		if codeRaw, ok := probe["code"]; ok {
			var code int
			if err := json.Unmarshal(codeRaw, &code); err == nil {
				var msg string
				if m, ok := probe["msg"]; ok {
					json.Unmarshal(m, &msg)
				}
				if code == 0 {
					if d, ok := probe["data"]; ok {
						return d, nil
					}
					return json.RawMessage("null"), nil
				}
				if code == 401 || strings.Contains(strings.ToLower(msg), "auth") {
					return nil, apierrors.New(apierrors.KindUnauthorized, "%s", msg)
				}
				return nil, apierrors.New(apierrors.KindNetworkError, "Quack API error (code %d): %s", code, msg)
			}
		}
	}

	if !json.Valid(body) {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "invalid JSON response")
	}
	return body, nil
}

// FetchShareInfo retrieves a character's share info by id.
func (c *Client) FetchShareInfo(ctx context.Context, id string) (*CharacterInfo, error) {
	raw, err := c.getRaw(ctx, characterInfoPath, "sid="+id)
	if err != nil {
		return nil, err
	}
	var info CharacterInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	return &info, nil
}

// fetchChatInfoByIndex retrieves chat-session context by its chat index.
func (c *Client) fetchChatInfoByIndex(ctx context.Context, index string) (*ChatInfo, error) {
	raw, err := c.getRaw(ctx, chatInfoPath, "index="+index)
	if err != nil {
		return nil, err
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	if _, ok := probe["originSid"]; !ok {
		return nil, apierrors.New(apierrors.KindMissingField, "originSid in chat info")
	}

	var chatInfo ChatInfo
	if err := json.Unmarshal(raw, &chatInfo); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	return &chatInfo, nil
}

type nameEntry struct {
	Name string `json:"name"`
}

func (c *Client) fetchFirstName(ctx context.Context, path string, defaultName string, timeout time.Duration) string {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := c.getRaw(callCtx, path, "")
	if err != nil {
		return defaultName
	}

	var entries []nameEntry
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 || entries[0].Name == "" {
		return defaultName
	}
	return entries[0].Name
}

// FetchComplete implements the two-mode acquisition protocol of §4.F,
// returning the resolved character info, any lorebook entries surfaced
// along the way, and the chat index if a chat session was opened.
func (c *Client) FetchComplete(ctx context.Context, id string, urlType URLType) (*CharacterInfo, []LorebookEntryRaw, string, error) {
	var info *CharacterInfo
	var index, cid string
	var lorebookEntries []LorebookEntryRaw

	if urlType == Dream {
		chatInfo, err := c.fetchChatInfoByIndex(ctx, id)
		if err != nil {
			return nil, nil, "", err
		}
		index = id
		if chatInfo.Sid != "" {
			cid = chatInfo.Sid
		} else {
			cid = chatInfo.Cid
		}

		info, err = c.FetchShareInfo(ctx, chatInfo.OriginSid)
		if err != nil {
			return nil, nil, "", err
		}

		if len(chatInfo.Lorebooks) > 0 && hasNonPlaceholder(chatInfo.Lorebooks) {
			lorebookEntries = chatInfo.Lorebooks
		}
	} else {
		var err error
		info, err = c.FetchShareInfo(ctx, id)
		if err != nil {
			return nil, nil, "", err
		}
	}

	needsLorebook := NeedsLorebook(*info)
	needsHidden := NeedsHidden(*info)

	if (needsLorebook || needsHidden) && index == "" && cid == "" {
		studioCid, err := c.openInteractCard(ctx, id)
		if err == nil {
			personaName := c.fetchFirstName(ctx, personaListPath, "momo", defaultPersonaPresetTimeout)
			presetName := c.fetchFirstName(ctx, presetListNamePath, "Quack 通用预设", defaultPersonaPresetTimeout)

			newIndex, newCid, chatLorebooks, createErr := c.createChat(ctx, studioCid, personaName, presetName)
			if createErr == nil {
				index, cid = newIndex, newCid
				if len(chatLorebooks) > 0 {
					lorebookEntries = chatLorebooks
				}
			}
		}
	}

	if needsLorebook && !hasNonPlaceholder(lorebookEntries) && index != "" && cid != "" {
		if adopted, err := c.fetchLorebook(ctx, index, cid); err == nil && hasNonPlaceholder(adopted) {
			lorebookEntries = adopted
		}
	}

	return info, lorebookEntries, index, nil
}

func hasNonPlaceholder(entries []LorebookEntryRaw) bool {
	for _, e := range entries {
		if !IsPlaceholderContent(e.Content) {
			return true
		}
	}
	return false
}

type interactCardResponse struct {
	Sid string `json:"sid"`
	Cid string `json:"cid"`
}

// openInteractCard opens an interaction session against the studio card
// and returns the resulting studio cid.
func (c *Client) openInteractCard(ctx context.Context, id string) (string, error) {
	raw, err := c.postRaw(ctx, interactCardPath, map[string]string{"cid": id, "type": "studio"})
	if err != nil {
		return "", err
	}

	var resp interactCardResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}

	if resp.Sid != "" {
		return resp.Sid, nil
	}
	if resp.Cid != "" {
		return resp.Cid, nil
	}
	return "", apierrors.New(apierrors.KindMissingField, "sid/cid in interact-card response")
}

type chatCreateResponse struct {
	Chat struct {
		Index string `json:"index"`
		Cid   string `json:"cid"`
	} `json:"chat"`
	Lorebooks []LorebookEntryRaw `json:"lorebooks"`
}

// createChat opens a chat session against the studio card, naming it
// ferry_<utc-millis>.
func (c *Client) createChat(ctx context.Context, studioCid, personaName, presetName string) (index, cid string, lorebooks []LorebookEntryRaw, err error) {
	callCtx, cancel := context.WithTimeout(ctx, chatCreateTimeout)
	defer cancel()

	body := map[string]any{
		"cid":                 studioCid,
		"type":                "studio",
		"name":                fmt.Sprintf("ferry_%d", time.Now().UnixMilli()),
		"persona_name":        personaName,
		"persona_description": nil,
		"preset":              presetName,
	}

	raw, postErr := c.postRaw(callCtx, chatCreatePath, body)
	if postErr != nil {
		return "", "", nil, postErr
	}

	var resp chatCreateResponse
	if unmarshalErr := json.Unmarshal(raw, &resp); unmarshalErr != nil {
		return "", "", nil, apierrors.New(apierrors.KindInvalidJSON, "%v", unmarshalErr)
	}

	return resp.Chat.Index, resp.Chat.Cid, resp.Lorebooks, nil
}

// fetchLorebook retrieves lorebook entries for a chat (index, cid) pair.
func (c *Client) fetchLorebook(ctx context.Context, index, cid string) ([]LorebookEntryRaw, error) {
	raw, err := c.getRaw(ctx, lorebookPath, "index="+index+"&cid="+cid)
	if err != nil {
		return nil, err
	}
	var entries []LorebookEntryRaw
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, apierrors.New(apierrors.KindInvalidJSON, "%v", err)
	}
	return entries, nil
}
