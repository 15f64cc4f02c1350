package shopify

import "time"

// Customer is a Shopify customer record, read-only for cxflow.
type Customer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Address is a shipping or billing address.
type Address struct {
	Company      string `json:"company"`
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Address1     string `json:"address1"`
	Address2     string `json:"address2"`
	City         string `json:"city"`
	Province     string `json:"province"`
	ProvinceCode string `json:"province_code"`
	Country      string `json:"country"`
	CountryCode  string `json:"country_code"`
	Zip          string `json:"zip"`
}

// TrackingEvent is one carrier scan on a fulfillment.
type TrackingEvent struct {
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	City       string     `json:"city"`
	Province   string     `json:"province"`
	Country    string     `json:"country"`
	Zip        string     `json:"zip"`
	HappenedAt *time.Time `json:"happened_at"`
}

// Fulfillment is a shipment attached to an order.
type Fulfillment struct {
	ID                  int64      `json:"id"`
	Status              string     `json:"status"`
	ShipmentStatus      string     `json:"shipment_status"`
	TrackingCompany     string     `json:"tracking_company"`
	TrackingNumber      string     `json:"tracking_number"`
	TrackingURL         string     `json:"tracking_url"`
	EstimatedDeliveryAt *time.Time `json:"estimated_delivery_at"`
	DeliveredAt         *time.Time `json:"delivered_at"`

	// LastEvent is filled in by a separate events fetch, not by the order
	// payload itself.
	LastEvent *TrackingEvent `json:"-"`
}

// FulfillmentOrder carries the carrier's promised delivery window.
type FulfillmentOrder struct {
	MaxDeliveryDate *time.Time
}

// LineItem is one purchased item on an order.
type LineItem struct {
	Name     string `json:"name"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// Order is the customer-facing order snapshot used by the reply pipeline.
type Order struct {
	ID                int64         `json:"id"`
	OrderNumber       int64         `json:"order_number"`
	CreatedAt         *time.Time    `json:"created_at"`
	FinancialStatus   string        `json:"financial_status"`
	FulfillmentStatus string        `json:"fulfillment_status"`
	ShippingAddress   *Address      `json:"shipping_address"`
	Fulfillments      []Fulfillment `json:"fulfillments"`
	LineItems         []LineItem    `json:"line_items"`

	// FulfillmentOrders is filled in by a separate fetch.
	FulfillmentOrders []FulfillmentOrder `json:"-"`
}

// Location is a company fulfillment location.
type Location struct {
	Name     string `json:"name"`
	City     string `json:"city"`
	Province string `json:"province"`
	Country  string `json:"country"`
	Zip      string `json:"zip"`
}

// Money is an amount in shop currency, kept as Shopify's decimal string.
type Money struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// ExportLineItem is one line item row in the order export.
type ExportLineItem struct {
	ID                  string
	Title               string
	SKU                 string
	Quantity            int
	CurrentQuantity     int
	UnfulfilledQuantity int
	OriginalUnitPrice   string
	OriginalTotal       string
	DiscountedUnitPrice string
	DiscountedTotal     string
	VariantID           string
}

// ExportFulfillment is the tracking block repeated on export rows.
type ExportFulfillment struct {
	InTransitAt    string
	Carrier        string
	TrackingNumber string
	TrackingURL    string
	LocationName   string
}

// ExportOrder is the flattened-friendly order shape from the bulk extract.
type ExportOrder struct {
	Cursor            string
	ID                string
	Name              string
	Channel           string
	Email             string
	Tags              []string
	CreatedAt         string
	UpdatedAt         string
	ClosedAt          string
	CancelledAt       string
	StatusPageURL     string
	FulfillmentStatus string
	FinancialStatus   string
	TotalRefunded     string
	Fulfillment       ExportFulfillment
	ShippingAddress   Address
	SubtotalPrice     string
	TotalDiscounts    string
	TotalShipping     string
	TotalPrice        string
	LineItems         []ExportLineItem
}

// OrdersPage is one page of the bulk order extract.
type OrdersPage struct {
	Orders      []ExportOrder
	HasNextPage bool
	EndCursor   string
}

// OrderInput is the payload for order and draft-order creation.
type OrderInput struct {
	Email     string
	Phone     string
	Tags      []string
	FirstName string
	LastName  string
	Address1  string
	Address2  string
	City      string
	Province  string
	Country   string
	Zip       string
	Company   string
	LineItems []OrderLineItemInput
}

// OrderLineItemInput is one variant/quantity pair on a creation payload.
type OrderLineItemInput struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}
