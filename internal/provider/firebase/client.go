// Package firebase talks to the Firebase Realtime Database REST API. Saves
// live under /saves/{owner}/{slot}.json as base64-wrapped documents.
package firebase

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"savesync/internal/provider"
)

const name = "firebase"

// Options configures the client. DatabaseURL is required; APIKey is passed
// as the auth query parameter when set.
type Options struct {
	DatabaseURL string
	APIKey      string
	HTTPClient  *http.Client
}

// Client implements provider.Client over the Realtime Database REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type document struct {
	Data      string `json:"data"`
	Size      int64  `json:"size"`
	UpdatedAt string `json:"updated_at"`
}

// New validates options and constructs a client. No network traffic happens
// here; use TestConnection for that.
func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.DatabaseURL), "/")
	if base == "" {
		return nil, provider.Wrap(provider.ErrAuth, name, "configure", "database URL is required", nil)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: base, apiKey: strings.TrimSpace(opts.APIKey), http: httpClient}, nil
}

func (c *Client) Name() string { return name }

func (c *Client) slotURL(ownerID string, slot int) string {
	return c.withAuth(fmt.Sprintf("%s/saves/%s/%d.json", c.baseURL, url.PathEscape(ownerID), slot))
}

func (c *Client) withAuth(raw string) string {
	if c.apiKey == "" {
		return raw
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "auth=" + url.QueryEscape(c.apiKey)
}

func (c *Client) Save(ctx context.Context, ownerID string, slot int, data []byte) error {
	doc := document{
		Data:      base64.StdEncoding.EncodeToString(data),
		Size:      int64(len(data)),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, "save", "encode document", err)
	}
	return c.do(ctx, http.MethodPut, c.slotURL(ownerID, slot), body, "save", nil)
}

func (c *Client) Load(ctx context.Context, ownerID string, slot int) ([]byte, error) {
	var doc *document
	if err := c.do(ctx, http.MethodGet, c.slotURL(ownerID, slot), nil, "load", &doc); err != nil {
		return nil, err
	}
	// The RTDB returns the literal null for absent paths with status 200.
	if doc == nil {
		return nil, provider.Wrap(provider.ErrNotFound, name, "load", fmt.Sprintf("owner %s slot %d", ownerID, slot), nil)
	}
	data, err := base64.StdEncoding.DecodeString(doc.Data)
	if err != nil {
		return nil, provider.Wrap(provider.ErrUnavailable, name, "load", "decode document", err)
	}
	return data, nil
}

func (c *Client) Delete(ctx context.Context, ownerID string, slot int) error {
	return c.do(ctx, http.MethodDelete, c.slotURL(ownerID, slot), nil, "delete", nil)
}

func (c *Client) List(ctx context.Context, ownerID string) ([]provider.SlotInfo, error) {
	listURL := c.withAuth(fmt.Sprintf("%s/saves/%s.json", c.baseURL, url.PathEscape(ownerID)))
	var slots map[string]document
	if err := c.do(ctx, http.MethodGet, listURL, nil, "list", &slots); err != nil {
		return nil, err
	}
	out := make([]provider.SlotInfo, 0, len(slots))
	for key, doc := range slots {
		slot, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		info := provider.SlotInfo{Slot: slot, Size: doc.Size}
		if at, err := time.Parse(time.RFC3339, doc.UpdatedAt); err == nil {
			info.UpdatedAt = at
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (c *Client) TestConnection(ctx context.Context) error {
	probeURL := c.withAuth(c.baseURL + "/.json?shallow=true")
	return c.do(ctx, http.MethodGet, probeURL, nil, "test connection", nil)
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, operation string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return provider.Wrap(provider.ErrUnavailable, name, operation, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
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
