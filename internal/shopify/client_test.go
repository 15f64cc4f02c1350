package shopify

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

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newWithBaseURL(srv.URL, "test-token", "2025-01")
}

func TestCustomerByEmail(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "test-token" {
			t.Errorf("access token header = %q", got)
		}
		if !strings.Contains(r.URL.Path, "customers/search.json") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		io.WriteString(w, `{"customers":[{"id":42,"email":"jane@example.com","first_name":"Jane","last_name":"Doe"}]}`)
	})

	cust, err := c.CustomerByEmail(context.Background(), "jane@example.com")
	if err != nil {
		t.Fatalf("CustomerByEmail: %v", err)
	}
	if cust.ID != 42 || cust.FirstName != "Jane" {
		t.Errorf("got customer %+v", cust)
	}
}

func TestCustomerByEmailNotFound(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"customers":[]}`)
	})
	_, err := c.CustomerByEmail(context.Background(), "nobody@example.com")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestVariantIDForProduct(t *testing.T) {
	variants := func(nodes string) string {
		return `{"data":{"products":{"edges":[{"node":{"variants":{"edges":[` + nodes + `]}}}]}}}`
	}

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "prefers 1 bottle title",
			body: variants(`{"node":{"id":"gid://v/3","title":"3 Bottles","sku":"ACME-3x"}},{"node":{"id":"gid://v/1","title":"1 Bottle","sku":"ACME-1x"}}`),
			want: "gid://v/1",
		},
		{
			name: "falls back to 1x sku",
			body: variants(`{"node":{"id":"gid://v/3","title":"Triple","sku":"ACME-3x"}},{"node":{"id":"gid://v/1","title":"Single","sku":"ACME-1x"}}`),
			want: "gid://v/1",
		},
		{
			name: "falls back to first variant",
			body: variants(`{"node":{"id":"gid://v/9","title":"Bundle","sku":"ACME-B"}}`),
			want: "gid://v/9",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tc.body)
			})
			got, err := c.VariantIDForProduct(context.Background(), "Acme Tonic")
			if err != nil {
				t.Fatalf("VariantIDForProduct: %v", err)
			}
			if got != tc.want {
				t.Errorf("variant = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGraphQLErrorSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"errors":[{"message":"Throttled"}]}`)
	})
	_, err := c.OrdersPage(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "Throttled") {
		t.Fatalf("err = %v, want throttle message", err)
	}
}

func TestOrdersPageDrainsLineItems(t *testing.T) {
	item := func(id, title string) map[string]any {
		return map[string]any{"node": map[string]any{
			"id": id, "title": title, "quantity": 1, "currentQuantity": 1,
			"sku": "SKU-" + id,
		}}
	}
	pageBody := map[string]any{
		"data": map[string]any{
			"orders": map[string]any{
				"edges": []any{map[string]any{
					"cursor": "cur-1",
					"node": map[string]any{
						"id":   "gid://shopify/Order/1001",
						"name": "#36426",
						"tags": []string{"wholesale"},
						"lineItems": map[string]any{
							"edges":    []any{item("li-1", "Tonic"), item("li-2", "Elixir")},
							"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "li-cur"},
						},
					},
				}},
				"pageInfo": map[string]any{"hasNextPage": true, "endCursor": "cur-1"},
			},
		},
	}
	drainBody := map[string]any{
		"data": map[string]any{
			"order": map[string]any{
				"lineItems": map[string]any{
					"edges":    []any{item("li-3", "Salve")},
					"pageInfo": map[string]any{"hasNextPage": false, "endCursor": ""},
				},
			},
		},
	}

	var calls int
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		enc := json.NewEncoder(w)
		if calls == 1 {
			if cur, ok := req.Variables["cursor"]; ok {
				t.Errorf("first page sent cursor %v, want none", cur)
			}
			enc.Encode(pageBody)
			return
		}
		if req.Variables["id"] != "gid://shopify/Order/1001" {
			t.Errorf("drain query order id = %v", req.Variables["id"])
		}
		if req.Variables["lineItemsCursor"] != "li-cur" {
			t.Errorf("drain query cursor = %v", req.Variables["lineItemsCursor"])
		}
		enc.Encode(drainBody)
	})

	page, err := c.OrdersPage(context.Background(), "")
	if err != nil {
		t.Fatalf("OrdersPage: %v", err)
	}
	if calls != 2 {
		t.Errorf("made %d requests, want 2", calls)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("got %d orders, want 1", len(page.Orders))
	}
	order := page.Orders[0]
	if order.Cursor != "cur-1" || order.Name != "#36426" {
		t.Errorf("order = %+v", order)
	}
	if len(order.LineItems) != 3 {
		t.Fatalf("got %d line items, want 3 after draining", len(order.LineItems))
	}
	if order.LineItems[2].Title != "Salve" {
		t.Errorf("drained item = %+v", order.LineItems[2])
	}
	if !page.HasNextPage || page.EndCursor != "cur-1" {
		t.Errorf("page info = hasNext %v cursor %q", page.HasNextPage, page.EndCursor)
	}
}

func TestCreateOrderUserErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"orderCreate":{"order":null,"userErrors":[{"field":["input","email"],"message":"Email is invalid"}]}}}`)
	})
	_, err := c.CreateOrder(context.Background(), OrderInput{Email: "bad"})
	if err == nil || !strings.Contains(err.Error(), "input.email: Email is invalid") {
		t.Fatalf("err = %v, want joined user error", err)
	}
}

func TestCreateDraftOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables struct {
				Input map[string]any `json:"input"`
			} `json:"variables"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		disc, _ := req.Variables.Input["appliedDiscount"].(map[string]any)
		if disc == nil || disc["valueType"] != "PERCENTAGE" {
			t.Errorf("appliedDiscount = %v", req.Variables.Input["appliedDiscount"])
		}
		io.WriteString(w, `{"data":{"draftOrderCreate":{"draftOrder":{"id":"gid://d/1","name":"#D123"},"userErrors":[]}}}`)
	})
	name, err := c.CreateDraftOrder(context.Background(), OrderInput{Email: "jane@example.com"})
	if err != nil {
		t.Fatalf("CreateDraftOrder: %v", err)
	}
	if name != "#D123" {
		t.Errorf("name = %q, want #D123", name)
	}
}
