package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func titleProp(parts ...string) map[string]any {
	runs := make([]any, 0, len(parts))
	for _, p := range parts {
		runs = append(runs, map[string]any{"text": map[string]any{"content": p}})
	}
	return map[string]any{"type": "title", "title": runs}
}

func textProp(parts ...string) map[string]any {
	runs := make([]any, 0, len(parts))
	for _, p := range parts {
		runs = append(runs, map[string]any{"text": map[string]any{"content": p}})
	}
	return map[string]any{"type": "rich_text", "rich_text": runs}
}

func TestPlainTextJoinsRuns(t *testing.T) {
	var p property
	raw, _ := json.Marshal(textProp("Hello ", "{{firstName}}", "!"))
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatal(err)
	}
	if got := plainText(p); got != "Hello {{firstName}}!" {
		t.Errorf("plainText = %q", got)
	}
}

func TestConfiguredLabelsPaginates(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if got := r.Header.Get("Notion-Version"); got != notionVersion {
			t.Errorf("Notion-Version = %q", got)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		enc := json.NewEncoder(w)
		if calls == 1 {
			enc.Encode(map[string]any{
				"results": []any{
					map[string]any{"properties": map[string]any{"Label": titleProp("Inquiry/Shipping")}},
				},
				"has_more":    true,
				"next_cursor": "page-2",
			})
			return
		}
		if req["start_cursor"] != "page-2" {
			t.Errorf("start_cursor = %v", req["start_cursor"])
		}
		enc.Encode(map[string]any{
			"results": []any{
				map[string]any{"properties": map[string]any{"Label": titleProp("Complaint/Damaged")}},
			},
			"has_more": false,
		})
	}))
	defer srv.Close()

	c := newWithBaseURL(srv.URL, "key", "master-db")
	labels, err := c.ConfiguredLabels(context.Background())
	if err != nil {
		t.Fatalf("ConfiguredLabels: %v", err)
	}
	want := []string{"Inquiry/Shipping", "Complaint/Damaged"}
	if len(labels) != 2 || labels[0] != want[0] || labels[1] != want[1] {
		t.Errorf("labels = %v, want %v", labels, want)
	}
}

func TestTemplatesForLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enc := json.NewEncoder(w)
		if strings.Contains(r.URL.Path, "master-db") {
			enc.Encode(map[string]any{
				"results": []any{
					map[string]any{"properties": map[string]any{
						"Label":       titleProp("Inquiry/Shipping"),
						"Id Database": textProp(" label-db \n"),
					}},
				},
			})
			return
		}
		if !strings.Contains(r.URL.Path, "label-db") {
			t.Errorf("unexpected database path %s", r.URL.Path)
		}
		enc.Encode(map[string]any{
			"results": []any{
				map[string]any{"properties": map[string]any{
					"Context":       titleProp("order_in_transit"),
					"Created Time":  textProp("2025-01-01"),
					"Status":        textProp("Live"),
					"with_order":    textProp("Hi {{firstName}}, your order {{orderNumber}} is on the way."),
					"without_order": textProp("Hi {{firstName}}, could you share your order number?"),
					"empty_key":     textProp(),
				}},
				map[string]any{"properties": map[string]any{
					// No Context value: the row is skipped.
					"with_order": textProp("orphan"),
				}},
			},
		})
	}))
	defer srv.Close()

	c := newWithBaseURL(srv.URL, "key", "master-db")
	templates, err := c.TemplatesForLabel(context.Background(), "Inquiry/Shipping")
	if err != nil {
		t.Fatalf("TemplatesForLabel: %v", err)
	}
	if len(templates) != 1 {
		t.Fatalf("got %d contexts, want 1: %v", len(templates), templates)
	}
	row := templates["order_in_transit"]
	if len(row) != 2 {
		t.Errorf("row keys = %v, want with_order and without_order only", row)
	}
	if !strings.Contains(row["with_order"], "{{orderNumber}}") {
		t.Errorf("with_order = %q", row["with_order"])
	}
	if _, ok := row["Status"]; ok {
		t.Error("Status column leaked into templates")
	}
}

func TestTemplatesForLabelUnconfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results":[],"has_more":false}`)
	}))
	defer srv.Close()

	c := newWithBaseURL(srv.URL, "key", "master-db")
	_, err := c.TemplatesForLabel(context.Background(), "Inquiry/Unknown")
	if !errors.Is(err, ErrNoTemplatesConfigured) {
		t.Fatalf("err = %v, want ErrNoTemplatesConfigured", err)
	}
}
