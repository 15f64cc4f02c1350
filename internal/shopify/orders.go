package shopify

import (
	"context"
	"fmt"
	"strings"
)

// Page sizes for the bulk extract. The top-level order page and the nested
// line-item page are independent; an order's line items are drained across
// their own pages before the order is considered complete.
const (
	ordersPageSize    = 50
	lineItemsPageSize = 50
)

const orderFields = `
  id
  name
  channelInformation { channelDefinition { subChannelName } }
  createdAt
  updatedAt
  closedAt
  cancelledAt
  email
  tags
  shippingAddress { company name phone country countryCodeV2 province provinceCode city zip }
  statusPageUrl
  displayFulfillmentStatus
  displayFinancialStatus
  totalRefundedSet { shopMoney { amount currencyCode } }
  fulfillments { inTransitAt trackingInfo { company number url } location { name } }
  subtotalPriceSet { shopMoney { amount currencyCode } }
  totalDiscountsSet { shopMoney { amount currencyCode } }
  totalShippingPriceSet { shopMoney { amount currencyCode } }
  totalPriceSet { shopMoney { amount currencyCode } }`

const lineItemFields = `
  id
  title
  quantity
  currentQuantity
  unfulfilledQuantity
  originalUnitPriceSet { shopMoney { amount } }
  originalTotalSet { shopMoney { amount } }
  discountedUnitPriceSet { shopMoney { amount } }
  discountedTotalSet { shopMoney { amount } }
  sku
  variant { id }`

// gqlMoneySet matches Shopify's nested money shape.
type gqlMoneySet struct {
	ShopMoney Money `json:"shopMoney"`
}

type gqlPageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type gqlLineItem struct {
	ID                     string      `json:"id"`
	Title                  string      `json:"title"`
	Quantity               int         `json:"quantity"`
	CurrentQuantity        int         `json:"currentQuantity"`
	UnfulfilledQuantity    int         `json:"unfulfilledQuantity"`
	OriginalUnitPriceSet   gqlMoneySet `json:"originalUnitPriceSet"`
	OriginalTotalSet       gqlMoneySet `json:"originalTotalSet"`
	DiscountedUnitPriceSet gqlMoneySet `json:"discountedUnitPriceSet"`
	DiscountedTotalSet     gqlMoneySet `json:"discountedTotalSet"`
	SKU                    string      `json:"sku"`
	Variant                *struct {
		ID string `json:"id"`
	} `json:"variant"`
}

type gqlLineItemConn struct {
	Edges []struct {
		Node gqlLineItem `json:"node"`
	} `json:"edges"`
	PageInfo gqlPageInfo `json:"pageInfo"`
}

type gqlOrder struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	ChannelInformation *struct {
		ChannelDefinition *struct {
			SubChannelName string `json:"subChannelName"`
		} `json:"channelDefinition"`
	} `json:"channelInformation"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
	ClosedAt        string   `json:"closedAt"`
	CancelledAt     string   `json:"cancelledAt"`
	Email           string   `json:"email"`
	Tags            []string `json:"tags"`
	ShippingAddress *struct {
		Company       string `json:"company"`
		Name          string `json:"name"`
		Phone         string `json:"phone"`
		Country       string `json:"country"`
		CountryCodeV2 string `json:"countryCodeV2"`
		Province      string `json:"province"`
		ProvinceCode  string `json:"provinceCode"`
		City          string `json:"city"`
		Zip           string `json:"zip"`
	} `json:"shippingAddress"`
	StatusPageURL            string      `json:"statusPageUrl"`
	DisplayFulfillmentStatus string      `json:"displayFulfillmentStatus"`
	DisplayFinancialStatus   string      `json:"displayFinancialStatus"`
	TotalRefundedSet         gqlMoneySet `json:"totalRefundedSet"`
	Fulfillments             []struct {
		InTransitAt  string `json:"inTransitAt"`
		TrackingInfo []struct {
			Company string `json:"company"`
			Number  string `json:"number"`
			URL     string `json:"url"`
		} `json:"trackingInfo"`
		Location *struct {
			Name string `json:"name"`
		} `json:"location"`
	} `json:"fulfillments"`
	SubtotalPriceSet      gqlMoneySet     `json:"subtotalPriceSet"`
	TotalDiscountsSet     gqlMoneySet     `json:"totalDiscountsSet"`
	TotalShippingPriceSet gqlMoneySet     `json:"totalShippingPriceSet"`
	TotalPriceSet         gqlMoneySet     `json:"totalPriceSet"`
	LineItems             gqlLineItemConn `json:"lineItems"`
}

type gqlOrdersData struct {
	Orders struct {
		Edges []struct {
			Cursor string   `json:"cursor"`
			Node   gqlOrder `json:"node"`
		} `json:"edges"`
		PageInfo gqlPageInfo `json:"pageInfo"`
	} `json:"orders"`
}

// OrdersPage fetches one page of orders after the given cursor, in the
// shop's natural (creation) order, with every order's line items drained.
func (c *Client) OrdersPage(ctx context.Context, cursor string) (*OrdersPage, error) {
	return c.ordersPage(ctx, cursor, "")
}

// OrdersByUpdatedDesc fetches one page of orders after the given cursor,
// sorted by last update descending, with every order's line items drained.
func (c *Client) OrdersByUpdatedDesc(ctx context.Context, cursor string) (*OrdersPage, error) {
	return c.ordersPage(ctx, cursor, ", sortKey: UPDATED_AT, reverse: true")
}

func (c *Client) ordersPage(ctx context.Context, cursor, sortClause string) (*OrdersPage, error) {
	query := fmt.Sprintf(`
	query ($numOrders: Int!, $cursor: String, $lineItemsFirst: Int!) {
	  orders(first: $numOrders, after: $cursor%s) {
	    edges {
	      cursor
	      node {
	        %s
	        lineItems(first: $lineItemsFirst) {
	          edges { node { %s } }
	          pageInfo { hasNextPage endCursor }
	        }
	      }
	    }
	    pageInfo { hasNextPage endCursor }
	  }
	}`, sortClause, orderFields, lineItemFields)

	variables := map[string]any{
		"numOrders":      ordersPageSize,
		"lineItemsFirst": lineItemsPageSize,
	}
	if cursor != "" {
		variables["cursor"] = cursor
	}

	var data gqlOrdersData
	if err := c.graphql(ctx, query, variables, &data); err != nil {
		return nil, err
	}

	page := &OrdersPage{
		HasNextPage: data.Orders.PageInfo.HasNextPage,
		EndCursor:   data.Orders.PageInfo.EndCursor,
	}
	for _, edge := range data.Orders.Edges {
		order := edge.Node
		items := order.LineItems
		for items.PageInfo.HasNextPage {
			more, err := c.orderLineItems(ctx, order.ID, items.PageInfo.EndCursor)
			if err != nil {
				return nil, err
			}
			items.Edges = append(items.Edges, more.Edges...)
			items.PageInfo = more.PageInfo
		}
		order.LineItems = items
		page.Orders = append(page.Orders, convertExportOrder(edge.Cursor, order))
	}
	return page, nil
}

// orderLineItems fetches one additional page of a single order's line items.
func (c *Client) orderLineItems(ctx context.Context, orderGID, after string) (*gqlLineItemConn, error) {
	query := fmt.Sprintf(`
	query ($id: ID!, $lineItemsFirst: Int!, $lineItemsCursor: String) {
	  order(id: $id) {
	    lineItems(first: $lineItemsFirst, after: $lineItemsCursor) {
	      edges { node { %s } }
	      pageInfo { hasNextPage endCursor }
	    }
	  }
	}`, lineItemFields)

	var data struct {
		Order struct {
			LineItems gqlLineItemConn `json:"lineItems"`
		} `json:"order"`
	}
	vars := map[string]any{
		"id":              orderGID,
		"lineItemsFirst":  lineItemsPageSize,
		"lineItemsCursor": after,
	}
	if err := c.graphql(ctx, query, vars, &data); err != nil {
		return nil, fmt.Errorf("line items for %s: %w", orderGID, err)
	}
	return &data.Order.LineItems, nil
}

func convertExportOrder(cursor string, o gqlOrder) ExportOrder {
	out := ExportOrder{
		Cursor:            cursor,
		ID:                o.ID,
		Name:              o.Name,
		Email:             o.Email,
		Tags:              o.Tags,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
		ClosedAt:          o.ClosedAt,
		CancelledAt:       o.CancelledAt,
		StatusPageURL:     o.StatusPageURL,
		FulfillmentStatus: o.DisplayFulfillmentStatus,
		FinancialStatus:   o.DisplayFinancialStatus,
		TotalRefunded:     o.TotalRefundedSet.ShopMoney.Amount,
		SubtotalPrice:     o.SubtotalPriceSet.ShopMoney.Amount,
		TotalDiscounts:    o.TotalDiscountsSet.ShopMoney.Amount,
		TotalShipping:     o.TotalShippingPriceSet.ShopMoney.Amount,
		TotalPrice:        o.TotalPriceSet.ShopMoney.Amount,
	}
	if o.ChannelInformation != nil && o.ChannelInformation.ChannelDefinition != nil {
		out.Channel = o.ChannelInformation.ChannelDefinition.SubChannelName
	}
	if sa := o.ShippingAddress; sa != nil {
		out.ShippingAddress = Address{
			Company:      sa.Company,
			Name:         sa.Name,
			Phone:        sa.Phone,
			Country:      sa.Country,
			CountryCode:  sa.CountryCodeV2,
			Province:     sa.Province,
			ProvinceCode: sa.ProvinceCode,
			City:         sa.City,
			Zip:          sa.Zip,
		}
	}
	// Only the first fulfillment's tracking makes it into the export.
	if len(o.Fulfillments) > 0 {
		f := o.Fulfillments[0]
		out.Fulfillment.InTransitAt = f.InTransitAt
		if len(f.TrackingInfo) > 0 {
			out.Fulfillment.Carrier = f.TrackingInfo[0].Company
			out.Fulfillment.TrackingNumber = f.TrackingInfo[0].Number
			out.Fulfillment.TrackingURL = f.TrackingInfo[0].URL
		}
		if f.Location != nil {
			out.Fulfillment.LocationName = f.Location.Name
		}
	}
	for _, e := range o.LineItems.Edges {
		li := ExportLineItem{
			ID:                  e.Node.ID,
			Title:               e.Node.Title,
			SKU:                 e.Node.SKU,
			Quantity:            e.Node.Quantity,
			CurrentQuantity:     e.Node.CurrentQuantity,
			UnfulfilledQuantity: e.Node.UnfulfilledQuantity,
			OriginalUnitPrice:   e.Node.OriginalUnitPriceSet.ShopMoney.Amount,
			OriginalTotal:       e.Node.OriginalTotalSet.ShopMoney.Amount,
			DiscountedUnitPrice: e.Node.DiscountedUnitPriceSet.ShopMoney.Amount,
			DiscountedTotal:     e.Node.DiscountedTotalSet.ShopMoney.Amount,
		}
		if e.Node.Variant != nil {
			li.VariantID = e.Node.Variant.ID
		}
		out.LineItems = append(out.LineItems, li)
	}
	return out
}

// userErrorList joins Shopify field-level user errors into one message.
func userErrorList(errs []struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		if len(e.Field) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", strings.Join(e.Field, "."), e.Message))
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}

func addressInput(in OrderInput) map[string]any {
	return map[string]any{
		"address1":     in.Address1,
		"address2":     in.Address2,
		"city":         in.City,
		"provinceCode": in.Province,
		"countryCode":  in.Country,
		"zip":          in.Zip,
		"firstName":    in.FirstName,
		"lastName":     in.LastName,
	}
}

// CreateOrder places a paid order and returns its name (e.g. "#36426").
// Field-level user errors come back as a single error.
func (c *Client) CreateOrder(ctx context.Context, in OrderInput) (string, error) {
	const mutation = `
	mutation orderCreate($input: OrderInput!) {
	  orderCreate(input: $input) {
	    order { id name }
	    userErrors { field message }
	  }
	}`

	input := map[string]any{
		"email":           in.Email,
		"phone":           in.Phone,
		"tags":            in.Tags,
		"billingAddress":  addressInput(in),
		"shippingAddress": addressInput(in),
		"lineItems":       in.LineItems,
		"financialStatus": "PAID",
		"note":            fmt.Sprintf("Order for company: %s", in.Company),
		"shippingLine": map[string]any{
			"price": "0.00",
			"title": "Standard Shipping",
		},
	}

	var out struct {
		OrderCreate struct {
			Order *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"order"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"orderCreate"`
	}
	if err := c.graphql(ctx, mutation, map[string]any{"input": input}, &out); err != nil {
		return "", err
	}
	if len(out.OrderCreate.UserErrors) > 0 {
		return "", fmt.Errorf("order create: %s", userErrorList(out.OrderCreate.UserErrors))
	}
	if out.OrderCreate.Order == nil {
		return "", fmt.Errorf("order create: no order returned")
	}
	return out.OrderCreate.Order.Name, nil
}

// CreateDraftOrder places a 100%-discounted draft order and returns its name.
func (c *Client) CreateDraftOrder(ctx context.Context, in OrderInput) (string, error) {
	const mutation = `
	mutation draftOrderCreate($input: DraftOrderInput!) {
	  draftOrderCreate(input: $input) {
	    draftOrder { id name invoiceUrl }
	    userErrors { field message }
	  }
	}`

	input := map[string]any{
		"email":           in.Email,
		"phone":           in.Phone,
		"tags":            in.Tags,
		"billingAddress":  addressInput(in),
		"shippingAddress": addressInput(in),
		"lineItems":       in.LineItems,
		"appliedDiscount": map[string]any{
			"value":     100,
			"valueType": "PERCENTAGE",
		},
		"useCustomerDefaultAddress": false,
	}

	var out struct {
		DraftOrderCreate struct {
			DraftOrder *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"draftOrder"`
			UserErrors []struct {
				Field   []string `json:"field"`
				Message string   `json:"message"`
			} `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}
	if err := c.graphql(ctx, mutation, map[string]any{"input": input}, &out); err != nil {
		return "", err
	}
	if len(out.DraftOrderCreate.UserErrors) > 0 {
		return "", fmt.Errorf("draft order create: %s", userErrorList(out.DraftOrderCreate.UserErrors))
	}
	if out.DraftOrderCreate.DraftOrder == nil {
		return "", fmt.Errorf("draft order create: no draft order returned")
	}
	return out.DraftOrderCreate.DraftOrder.Name, nil
}
