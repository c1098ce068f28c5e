// Airwave - Real-time Radio Network Event Monitor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/airwave

package aggregator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/airwave/internal/models"
)

// TalkgroupsResponse is the full registry snapshot.
type TalkgroupsResponse struct {
	Talkgroups        map[string]models.TalkgroupInfo `json:"talkgroups"`
	UnknownTalkgroups []string                        `json:"unknownTalkgroups"`
}

// TalkgroupHistory is the bounded recent history for one talkgroup.
type TalkgroupHistory struct {
	TalkgroupID  string               `json:"talkgroupId"`
	TotalEvents  int                  `json:"totalEvents"`
	UniqueRadios []string             `json:"uniqueRadios"`
	Events       []*models.RadioEvent `json:"events"`
}

// DurationHistory is every non-location event within a duration bucket.
type DurationHistory struct {
	Duration    int                  `json:"duration"`
	TotalEvents int                  `json:"totalEvents"`
	Events      []*models.RadioEvent `json:"events"`
}

// StatusResponse is the generic mutation acknowledgement.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type aliasResponse struct {
	ShortName string `json:"shortName"`
	Alias     string `json:"alias"`
}

// Client talks to the monitor's HTTP query surface on behalf of the
// aggregator: registry snapshots, history backfills, record updates and
// alias resolution.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given base URL, for example
// "http://localhost:3000". A non-positive timeout defaults to 30s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Talkgroups fetches the full registry snapshot.
func (c *Client) Talkgroups(ctx context.Context) (*TalkgroupsResponse, error) {
	var out TalkgroupsResponse
	if err := c.do(ctx, http.MethodGet, "/api/talkgroups", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReloadTalkgroups forces a full registry reload from disk.
func (c *Client) ReloadTalkgroups(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/talkgroups/reload", nil, nil)
}

// UpdateTalkgroup replaces one registry record.
func (c *Client) UpdateTalkgroup(ctx context.Context, decimal string, info models.TalkgroupInfo) error {
	return c.do(ctx, http.MethodPost, "/api/talkgroups/"+decimal, info, nil)
}

// TalkgroupHistory fetches the bounded recent history for one
// talkgroup: last 200 records or last 24 hours, whichever is smaller.
func (c *Client) TalkgroupHistory(ctx context.Context, talkgroup string) (*TalkgroupHistory, error) {
	var out TalkgroupHistory
	if err := c.do(ctx, http.MethodGet, "/api/talkgroups/"+talkgroup+"/history", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches all non-location events within a duration bucket
// (30m, 2h, 6h or 12h), oldest first.
func (c *Client) History(ctx context.Context, bucket string) (*DurationHistory, error) {
	var out DurationHistory
	if err := c.do(ctx, http.MethodGet, "/api/history/"+bucket, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SystemAlias resolves a system's display alias. Falls back to the
// short name itself when the request fails, matching the registry's
// never-fails contract.
func (c *Client) SystemAlias(ctx context.Context, shortName string) string {
	var out aliasResponse
	if err := c.do(ctx, http.MethodGet, "/api/system-alias/"+shortName, nil, &out); err != nil {
		return shortName
	}
	return out.Alias
}

// SetSystemAlias stores an explicit display alias for a system.
func (c *Client) SetSystemAlias(ctx context.Context, shortName, alias string) error {
	body := map[string]string{"alias": alias}
	return c.do(ctx, http.MethodPost, "/api/system-alias/"+shortName, body, nil)
}

// Backfill rebuilds agg from a duration bucket: fetch, reset, replay.
func (c *Client) Backfill(ctx context.Context, agg *Aggregator, bucket string) (int, error) {
	history, err := c.History(ctx, bucket)
	if err != nil {
		return 0, err
	}
	agg.Reset()
	if err := agg.ApplyHistory(ctx, history.Events); err != nil {
		return 0, err
	}
	return len(history.Events), nil
}

// do runs one request. A nil out discards the response body; a non-2xx
// status is an error carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("request %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
