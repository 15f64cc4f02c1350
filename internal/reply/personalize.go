package reply

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/acctools/cxflow/internal/shopify"
)

// nowFunc is swapped out by tests that pin the clock.
var nowFunc = time.Now

var (
	greetingNameRe = regexp.MustCompile(`(?i)^(?:Hi|Hello|Hola)\s+([\w\s]+),`)
	orderIDRe      = regexp.MustCompile(`(?i)(?:order|pedido)\s*#?([a-zA-Z0-9-]+)`)
)

// extractCustomerName pulls a name out of a greeting line like "Hi Jane,".
func extractCustomerName(emailBody string) string {
	if m := greetingNameRe.FindStringSubmatch(emailBody); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractOrderID pulls an order reference like "order #36426" from the body.
func extractOrderID(emailBody string) string {
	if m := orderIDRe.FindStringSubmatch(emailBody); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func formatOrderItems(items []shopify.LineItem) string {
	if len(items) == 0 {
		return "the items in your order"
	}
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%dx %s", it.Quantity, it.Name))
	}
	return strings.Join(parts, ", ")
}

func formatProductDetails(items []shopify.LineItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		sku := it.SKU
		if sku == "" {
			sku = naValue
		}
		parts = append(parts, fmt.Sprintf("%dx %s (SKU: %s)", it.Quantity, it.Name, sku))
	}
	return strings.Join(parts, ", ")
}

func formatShippingAddress(a *shopify.Address) string {
	if a == nil {
		return ""
	}
	parts := []string{a.Address1, a.Address2, a.City, a.Province, a.Zip, a.Country}
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// expectedDeliveryDate prefers the carrier's promised window on the
// fulfillment order, then the fulfillment's own estimate.
func expectedDeliveryDate(order *shopify.Order) string {
	const layout = "Monday, January 2, 2006"
	if len(order.FulfillmentOrders) > 0 && order.FulfillmentOrders[0].MaxDeliveryDate != nil {
		return order.FulfillmentOrders[0].MaxDeliveryDate.Format(layout)
	}
	if len(order.Fulfillments) > 0 && order.Fulfillments[0].EstimatedDeliveryAt != nil {
		return order.Fulfillments[0].EstimatedDeliveryAt.Format(layout)
	}
	return ""
}

// deliveryDelayDays reports the distance in days between the actual and the
// estimated delivery, only once the shipment is delivered.
func deliveryDelayDays(order *shopify.Order, _ time.Time) (int, bool) {
	if order == nil || len(order.Fulfillments) == 0 {
		return 0, false
	}
	f := order.Fulfillments[0]
	if f.ShipmentStatus != "delivered" || f.DeliveredAt == nil || f.EstimatedDeliveryAt == nil {
		return 0, false
	}
	diff := f.DeliveredAt.Sub(*f.EstimatedDeliveryAt)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24)), true
}

// daysSinceDelivery counts whole days from delivery to today, comparing at
// midnight so a delivery late yesterday still counts as one day.
func daysSinceDelivery(order *shopify.Order, now time.Time) (int, bool) {
	if order == nil || len(order.Fulfillments) == 0 {
		return 0, false
	}
	f := order.Fulfillments[0]
	if f.ShipmentStatus != "delivered" || f.DeliveredAt == nil {
		return 0, false
	}
	delivered := *f.DeliveredAt
	d0 := time.Date(delivered.Year(), delivered.Month(), delivered.Day(), 0, 0, 0, 0, delivered.Location())
	n0 := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, delivered.Location())
	return int(math.Ceil(n0.Sub(d0).Hours() / 24)), true
}

// Personalize substitutes {{placeholder}} tokens in a template. A token is
// replaced only when a value was actually found for it; unresolved tokens
// stay in the text verbatim so a human reviewing the draft can spot them.
func Personalize(template, emailBody string, customer *shopify.Customer, order *shopify.Order) string {
	values := map[string]string{}

	if customer != nil {
		values["customer_name"] = customer.FirstName
		values["customer_full_name"] = strings.TrimSpace(customer.FirstName + " " + customer.LastName)
		values["customer_email"] = customer.Email
	} else {
		name := extractCustomerName(emailBody)
		values["customer_name"] = name
		values["customer_full_name"] = name
	}

	if order != nil {
		values["order_id"] = strconv.FormatInt(order.OrderNumber, 10)
		if order.CreatedAt != nil {
			values["order_date"] = order.CreatedAt.Format("January 2, 2006")
		}
		if len(order.Fulfillments) > 0 {
			f := order.Fulfillments[0]
			values["tracking_number"] = f.TrackingNumber
			values["tracking_url"] = f.TrackingURL
			values["delivery_status"] = f.ShipmentStatus
			values["carrier_name"] = f.TrackingCompany
			if f.DeliveredAt != nil {
				values["delivery_date"] = f.DeliveredAt.Format("January 2, 2006")
			}
		}
		values["order_items"] = formatOrderItems(order.LineItems)
		values["expected_delivery_date"] = expectedDeliveryDate(order)
		if order.ShippingAddress != nil {
			values["delivery_location"] = order.ShippingAddress.Address1
			values["shipping_address"] = formatShippingAddress(order.ShippingAddress)
		}
		if delay, ok := deliveryDelayDays(order, nowFunc()); ok {
			values["delivery_delay_days"] = strconv.Itoa(delay)
		}
		if days, ok := daysSinceDelivery(order, nowFunc()); ok {
			values["days_since_delivery"] = strconv.Itoa(days)
		}
		if len(order.LineItems) > 0 {
			values["product_details"] = formatProductDetails(order.LineItems)
			quantities := make([]string, 0, len(order.LineItems))
			names := make([]string, 0, len(order.LineItems))
			for _, it := range order.LineItems {
				quantities = append(quantities, strconv.Itoa(it.Quantity))
				names = append(names, it.Name)
			}
			values["product_quantity"] = strings.Join(quantities, ", ")
			values["product_name"] = strings.Join(names, ", ")
		}
	} else {
		values["order_id"] = extractOrderID(emailBody)
	}

	out := template
	for key, value := range values {
		if value == "" {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return out
}
