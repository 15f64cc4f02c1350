// Package notion reads reply templates out of a Notion workspace. A master
// database maps each classification label to a per-label database; each row
// of a per-label database holds one conversational context with a column per
// response key.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com/v1"
	notionVersion  = "2022-06-28"
)

// ErrNoTemplatesConfigured reports a label with no master-database row or an
// empty per-label database. Callers skip the thread instead of failing a run.
var ErrNoTemplatesConfigured = errors.New("no templates configured for label")

// Columns present in every per-label database that never hold template text.
var ignoredColumns = map[string]bool{
	"Context":      true,
	"Created Time": true,
	"Status":       true,
}

// Templates maps context -> response key -> template text for one label.
type Templates map[string]map[string]string

// Client talks to the Notion REST API.
type Client struct {
	baseURL    string
	apiKey     string
	masterDBID string
	httpClient *http.Client
}

// New builds a Client for the given integration key and master database.
func New(apiKey, masterDBID string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		masterDBID: masterDBID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func newWithBaseURL(base, apiKey, masterDBID string) *Client {
	c := New(apiKey, masterDBID)
	c.baseURL = base
	return c
}

type property struct {
	Type     string     `json:"type"`
	Title    []richText `json:"title"`
	RichText []richText `json:"rich_text"`
}

type richText struct {
	Text struct {
		Content string `json:"content"`
	} `json:"text"`
}

type page struct {
	Properties map[string]property `json:"properties"`
}

type queryResponse struct {
	Results    []page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// plainText concatenates the text runs of a title or rich_text property.
func plainText(p property) string {
	runs := p.Title
	if p.Type == "rich_text" {
		runs = p.RichText
	}
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.Text.Content)
	}
	return b.String()
}

// queryDatabase posts one query page against a database.
func (c *Client) queryDatabase(ctx context.Context, databaseID string, body map[string]any) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/databases/%s/query", c.baseURL, strings.TrimSpace(databaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Notion-Version", notionVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("notion query: status %d: %s", resp.StatusCode, msg)
	}
	var out queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("notion query: decode: %w", err)
	}
	return &out, nil
}

// queryAll drains every page of a database query.
func (c *Client) queryAll(ctx context.Context, databaseID string, body map[string]any) ([]page, error) {
	var pages []page
	cursor := ""
	for {
		if body == nil {
			body = map[string]any{}
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}
		resp, err := c.queryDatabase(ctx, databaseID, body)
		if err != nil {
			return nil, err
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// ConfiguredLabels lists every label the master database has a row for.
func (c *Client) ConfiguredLabels(ctx context.Context) ([]string, error) {
	pages, err := c.queryAll(ctx, c.masterDBID, nil)
	if err != nil {
		return nil, fmt.Errorf("configured labels: %w", err)
	}
	var labels []string
	for _, p := range pages {
		if label := plainText(p.Properties["Label"]); label != "" {
			labels = append(labels, label)
		}
	}
	return labels, nil
}

// labelDatabaseID resolves a label to its per-label database through the
// master database's "Id Database" column.
func (c *Client) labelDatabaseID(ctx context.Context, label string) (string, error) {
	body := map[string]any{
		"filter": map[string]any{
			"property": "Label",
			"title":    map[string]any{"equals": label},
		},
	}
	resp, err := c.queryDatabase(ctx, c.masterDBID, body)
	if err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", fmt.Errorf("label %q: %w", label, ErrNoTemplatesConfigured)
	}
	id := strings.TrimSpace(plainText(resp.Results[0].Properties["Id Database"]))
	if id == "" {
		return "", fmt.Errorf("label %q has no database id: %w", label, ErrNoTemplatesConfigured)
	}
	return id, nil
}

// TemplatesForLabel fetches every context row of the label's database. Rows
// without a Context value are skipped; empty cells are omitted so a missing
// response key is distinguishable from a blank one.
func (c *Client) TemplatesForLabel(ctx context.Context, label string) (Templates, error) {
	dbID, err := c.labelDatabaseID(ctx, label)
	if err != nil {
		return nil, err
	}
	pages, err := c.queryAll(ctx, dbID, nil)
	if err != nil {
		return nil, fmt.Errorf("templates for %q: %w", label, err)
	}

	templates := Templates{}
	for _, p := range pages {
		contextName := plainText(p.Properties["Context"])
		if contextName == "" {
			continue
		}
		row := map[string]string{}
		for key, prop := range p.Properties {
			if ignoredColumns[key] {
				continue
			}
			if text := plainText(prop); text != "" {
				row[key] = text
			}
		}
		if len(row) > 0 {
			templates[contextName] = row
		}
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("label %q: %w", label, ErrNoTemplatesConfigured)
	}
	return templates, nil
}
