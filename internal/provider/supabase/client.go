// Package supabase stores saves in a Postgres table through the Supabase
// PostgREST API. One row per (owner_id, slot), upserted on save.
package supabase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"savesync/internal/provider"
)

const name = "supabase"

// Options configures the client. URL is the project base URL; APIKey is
// sent as both the apikey header and the bearer token.
type Options struct {
	URL        string
	APIKey     string
	Table      string
	HTTPClient *http.Client
}

// Client implements provider.Client over PostgREST.
type Client struct {
	restURL string
	apiKey  string
	table   string
	http    *http.Client
}

type row struct {
	OwnerID   string `json:"owner_id"`
	Slot      int    `json:"slot"`
	Data      string `json:"data"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, provider.Wrap(provider.ErrAuth, name, "configure", "project URL is required", nil)
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, provider.Wrap(provider.ErrAuth, name, "configure", "API key is required", nil)
	}
	table := strings.TrimSpace(opts.Table)
	if table == "" {
		table = "game_saves"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		restURL: base + "/rest/v1",
		apiKey:  strings.TrimSpace(opts.APIKey),
		table:   table,
		http:    httpClient,
	}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) tableURL(query url.Values) string {
	u := c.restURL + "/" + c.table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func slotFilter(ownerID string, slot int) url.Values {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("slot", fmt.Sprintf("eq.%d", slot))
	return query
}

func (c *Client) Save(ctx context.Context, ownerID string, slot int, data []byte) error {
	body, err := json.Marshal(row{
		OwnerID:   ownerID,
		Slot:      slot,
		Data:      base64.StdEncoding.EncodeToString(data),
		Size:      int64(len(data)),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, "save", "encode row", err)
	}
	query := url.Values{}
	query.Set("on_conflict", "owner_id,slot")
	headers := http.Header{}
	headers.Set("Prefer", "resolution=merge-duplicates")
	return c.do(ctx, http.MethodPost, c.tableURL(query), body, headers, "save", nil)
}

func (c *Client) Load(ctx context.Context, ownerID string, slot int) ([]byte, error) {
	query := slotFilter(ownerID, slot)
	query.Set("select", "data")
	var rows []row
	if err := c.do(ctx, http.MethodGet, c.tableURL(query), nil, nil, "load", &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, provider.Wrap(provider.ErrNotFound, name, "load", fmt.Sprintf("owner %s slot %d", ownerID, slot), nil)
	}
	data, err := base64.StdEncoding.DecodeString(rows[0].Data)
	if err != nil {
		return nil, provider.Wrap(provider.ErrUnavailable, name, "load", "decode row", err)
	}
	return data, nil
}

func (c *Client) Delete(ctx context.Context, ownerID string, slot int) error {
	return c.do(ctx, http.MethodDelete, c.tableURL(slotFilter(ownerID, slot)), nil, nil, "delete", nil)
}

func (c *Client) List(ctx context.Context, ownerID string) ([]provider.SlotInfo, error) {
	query := url.Values{}
	query.Set("owner_id", "eq."+ownerID)
	query.Set("select", "slot,size,updated_at")
	query.Set("order", "slot.asc")
	var rows []row
	if err := c.do(ctx, http.MethodGet, c.tableURL(query), nil, nil, "list", &rows); err != nil {
		return nil, err
	}
	out := make([]provider.SlotInfo, 0, len(rows))
	for _, r := range rows {
		info := provider.SlotInfo{Slot: r.Slot, Size: r.Size}
		if at, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
			info.UpdatedAt = at
		}
		out = append(out, info)
	}
	return out, nil
}

func (c *Client) TestConnection(ctx context.Context) error {
	query := url.Values{}
	query.Set("select", "slot")
	query.Set("limit", "1")
	return c.do(ctx, http.MethodGet, c.tableURL(query), nil, nil, "test connection", nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, headers http.Header, operation string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, operation, "build request", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, operation, "request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		marker := provider.MarkerForHTTPStatus(resp.StatusCode)
		return provider.Wrap(marker, name, operation, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, operation, "decode response", err)
	}
	return nil
}
