// Package shopify is the Admin API client behind cxflow's order lookups,
// bulk order extraction and order creation. Reads use a mix of the REST and
// GraphQL Admin APIs, mirroring what each endpoint exposes best.
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when a customer or order lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Client talks to one shop's Admin API.
type Client struct {
	baseURL    string
	token      string
	apiVersion string
	httpClient *http.Client
}

// New builds a Client for the given shop domain (e.g. "store.myshopify.com").
func New(shop, token, apiVersion string) *Client {
	return &Client{
		baseURL:    "https://" + shop,
		token:      token,
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// newWithBaseURL is the test seam; production code goes through New.
func newWithBaseURL(base, token, apiVersion string) *Client {
	c := New("", token, apiVersion)
	c.baseURL = base
	return c
}

func (c *Client) restURL(path string) string {
	return fmt.Sprintf("%s/admin/api/%s/%s", c.baseURL, c.apiVersion, path)
}

// rest performs a GET against the REST Admin API and decodes into out.
func (c *Client) rest(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.restURL(path), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("shopify GET %s: status %d: %s", path, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("shopify GET %s: decode: %w", path, err)
	}
	return nil
}

// graphql posts a GraphQL query and decodes the "data" object into out.
func (c *Client) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return err
	}

	endpoint := c.restURL("graphql.json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("X-Shopify-Access-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify graphql: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("shopify graphql: status %d: %s", resp.StatusCode, body)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("shopify graphql: decode: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("shopify graphql: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("shopify graphql: decode data: %w", err)
	}
	return nil
}

// CustomerByEmail looks a customer up by exact email.
func (c *Client) CustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	path := "customers/search.json?query=" + url.QueryEscape("email:"+email)
	var out struct {
		Customers []Customer `json:"customers"`
	}
	if err := c.rest(ctx, path, &out); err != nil {
		return nil, err
	}
	if len(out.Customers) == 0 {
		return nil, fmt.Errorf("customer %s: %w", email, ErrNotFound)
	}
	return &out.Customers[0], nil
}

// LatestOrder returns the customer's most recent order with its fulfillments
// and line items.
func (c *Client) LatestOrder(ctx context.Context, customerID int64) (*Order, error) {
	path := fmt.Sprintf("orders.json?customer_id=%d&status=any&limit=1", customerID)
	var out struct {
		Orders []Order `json:"orders"`
	}
	if err := c.rest(ctx, path, &out); err != nil {
		return nil, err
	}
	if len(out.Orders) == 0 {
		return nil, fmt.Errorf("orders for customer %d: %w", customerID, ErrNotFound)
	}
	return &out.Orders[0], nil
}

// Locations returns the shop's fulfillment locations.
func (c *Client) Locations(ctx context.Context) ([]Location, error) {
	var out struct {
		Locations []Location `json:"locations"`
	}
	if err := c.rest(ctx, "locations.json", &out); err != nil {
		return nil, err
	}
	return out.Locations, nil
}

// FulfillmentEvents returns the carrier events for one fulfillment, newest
// last; callers typically want only the final event.
func (c *Client) FulfillmentEvents(ctx context.Context, orderID, fulfillmentID int64) ([]TrackingEvent, error) {
	path := fmt.Sprintf("orders/%d/fulfillments/%d/events.json", orderID, fulfillmentID)
	var out struct {
		FulfillmentEvents []TrackingEvent `json:"fulfillment_events"`
	}
	if err := c.rest(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.FulfillmentEvents, nil
}

// FulfillmentOrders returns the order's fulfillment orders with their
// promised delivery windows.
func (c *Client) FulfillmentOrders(ctx context.Context, orderID int64) ([]FulfillmentOrder, error) {
	const query = `
	query ($id: ID!) {
	  order(id: $id) {
	    fulfillmentOrders(first: 5) {
	      edges {
	        node {
	          deliveryMethod { maxDeliveryDateTime }
	        }
	      }
	    }
	  }
	}`

	var out struct {
		Order struct {
			FulfillmentOrders struct {
				Edges []struct {
					Node struct {
						DeliveryMethod struct {
							MaxDeliveryDateTime string `json:"maxDeliveryDateTime"`
						} `json:"deliveryMethod"`
					} `json:"node"`
				} `json:"edges"`
			} `json:"fulfillmentOrders"`
		} `json:"order"`
	}
	gid := fmt.Sprintf("gid://shopify/Order/%d", orderID)
	if err := c.graphql(ctx, query, map[string]any{"id": gid}, &out); err != nil {
		return nil, err
	}

	var fos []FulfillmentOrder
	for _, e := range out.Order.FulfillmentOrders.Edges {
		var fo FulfillmentOrder
		if raw := e.Node.DeliveryMethod.MaxDeliveryDateTime; raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				fo.MaxDeliveryDate = &t
			}
		}
		fos = append(fos, fo)
	}
	return fos, nil
}

// EnrichOrder attaches fulfillment orders and the last tracking event to an
// order. Enrichment failures are returned but leave the order usable; the
// reply pipeline degrades to fewer placeholders rather than skipping.
func (c *Client) EnrichOrder(ctx context.Context, order *Order) error {
	fos, err := c.FulfillmentOrders(ctx, order.ID)
	if err != nil {
		return err
	}
	order.FulfillmentOrders = fos

	for i := range order.Fulfillments {
		events, err := c.FulfillmentEvents(ctx, order.ID, order.Fulfillments[i].ID)
		if err != nil {
			return err
		}
		if len(events) > 0 {
			last := events[len(events)-1]
			order.Fulfillments[i].LastEvent = &last
		}
	}
	return nil
}

// VariantIDForProduct finds the variant to order for a product title:
// the variant titled "1 Bottle" first, then any SKU ending in "1x", then the
// product's first variant.
func (c *Client) VariantIDForProduct(ctx context.Context, title string) (string, error) {
	const query = `
	query ($query: String!) {
	  products(first: 1, query: $query) {
	    edges {
	      node {
	        variants(first: 10) {
	          edges { node { id title sku } }
	        }
	      }
	    }
	  }
	}`

	var out struct {
		Products struct {
			Edges []struct {
				Node struct {
					Variants struct {
						Edges []struct {
							Node struct {
								ID    string `json:"id"`
								Title string `json:"title"`
								SKU   string `json:"sku"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"variants"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	q := fmt.Sprintf("title:'%s'", title)
	if err := c.graphql(ctx, query, map[string]any{"query": q}, &out); err != nil {
		return "", err
	}
	if len(out.Products.Edges) == 0 {
		return "", fmt.Errorf("product %q: %w", title, ErrNotFound)
	}

	variants := out.Products.Edges[0].Node.Variants.Edges
	if len(variants) == 0 {
		return "", fmt.Errorf("product %q has no variants: %w", title, ErrNotFound)
	}
	for _, v := range variants {
		if strings.EqualFold(v.Node.Title, "1 bottle") {
			return v.Node.ID, nil
		}
	}
	for _, v := range variants {
		if strings.HasSuffix(v.Node.SKU, "1x") {
			return v.Node.ID, nil
		}
	}
	return variants[0].Node.ID, nil
}
