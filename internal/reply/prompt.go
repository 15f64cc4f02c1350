package reply

import (
	"fmt"
	"sort"
	"strings"

	"github.com/acctools/cxflow/internal/gmailx"
	"github.com/acctools/cxflow/internal/notion"
	"github.com/acctools/cxflow/internal/shopify"
)

const naValue = "N/A"

func orNA(s string) string {
	if s == "" {
		return naValue
	}
	return s
}

// BuildChoicePrompt renders the constrained-choice prompt: the customer's
// message plus everything known about them, followed by every candidate
// template identified as "context::responseKey". Contexts and keys are
// emitted in sorted order so the same inputs always produce the same prompt.
func BuildChoicePrompt(details gmailx.MessageDetails, templates notion.Templates, customer *shopify.Customer, order *shopify.Order, locations []shopify.Location) string {
	var options strings.Builder
	options.WriteString("\n")
	contexts := make([]string, 0, len(templates))
	for c := range templates {
		contexts = append(contexts, c)
	}
	sort.Strings(contexts)
	for _, c := range contexts {
		keys := make([]string, 0, len(templates[c]))
		for k := range templates[c] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&options, "ID: %q\nTemplate: %s\n\n", c+"::"+k, templates[c][k])
		}
	}

	var customerInfo strings.Builder
	if customer != nil {
		customerInfo.WriteString("\n--- CUSTOMER INFORMATION ---\n")
		fmt.Fprintf(&customerInfo, "Name: %s %s\n", orNA(customer.FirstName), orNA(customer.LastName))
		fmt.Fprintf(&customerInfo, "Email: %s\n", orNA(customer.Email))
	}

	var orderInfo strings.Builder
	if order != nil {
		orderInfo.WriteString("\n--- LATEST ORDER INFORMATION ---\n")
		fmt.Fprintf(&orderInfo, "Order Number: %d\n", order.OrderNumber)
		if order.CreatedAt != nil {
			fmt.Fprintf(&orderInfo, "Order Date: %s\n", order.CreatedAt.Format("January 2, 2006"))
		} else {
			fmt.Fprintf(&orderInfo, "Order Date: %s\n", naValue)
		}
		fmt.Fprintf(&orderInfo, "Financial Status: %s\n", orNA(order.FinancialStatus))
		fmt.Fprintf(&orderInfo, "Fulfillment Status: %s\n", orNA(order.FulfillmentStatus))

		if len(order.Fulfillments) > 0 {
			f := order.Fulfillments[0]
			fmt.Fprintf(&orderInfo, "Fulfillment State: %s\n", orNA(f.Status))
			shipStatus := f.ShipmentStatus
			if shipStatus == "" {
				shipStatus = "Pending"
			}
			fmt.Fprintf(&orderInfo, "Detailed Shipment Status: %s\n", shipStatus)
			fmt.Fprintf(&orderInfo, "Carrier: %s\n", orNA(f.TrackingCompany))
			fmt.Fprintf(&orderInfo, "Tracking Number: %s\n", orNA(f.TrackingNumber))
			fmt.Fprintf(&orderInfo, "Tracking URL: %s\n", orNA(f.TrackingURL))
		}

		if delay, ok := deliveryDelayDays(order, nowFunc()); ok {
			fmt.Fprintf(&orderInfo, "Delivery Delay Days (vs. estimate): %d\n", delay)
		}
		if days, ok := daysSinceDelivery(order, nowFunc()); ok {
			fmt.Fprintf(&orderInfo, "Days Since Delivery: %d\n", days)
		}

		if len(order.LineItems) > 0 {
			orderInfo.WriteString("Products:\n")
			for _, item := range order.LineItems {
				fmt.Fprintf(&orderInfo, "  - %d x %s (SKU: %s)\n", item.Quantity, item.Name, orNA(item.SKU))
			}
		}

		if len(order.Fulfillments) > 0 && order.Fulfillments[0].LastEvent != nil {
			e := order.Fulfillments[0].LastEvent
			orderInfo.WriteString("\n--- LAST TRACKING EVENT ---\n")
			fmt.Fprintf(&orderInfo, "Status: %s\n", orNA(e.Status))
			fmt.Fprintf(&orderInfo, "Message: %s\n", orNA(e.Message))
			when := naValue
			if e.HappenedAt != nil {
				when = e.HappenedAt.Format("January 2, 2006 15:04")
			}
			fmt.Fprintf(&orderInfo, "Date/Time: %s\n", when)
			fmt.Fprintf(&orderInfo, "Location: %s, %s, %s (ZIP: %s)\n", orNA(e.City), orNA(e.Province), orNA(e.Country), orNA(e.Zip))
		}
	}

	imageInfo := ""
	if details.HasImages {
		imageInfo = "\n--- ADDITIONAL NOTE ---\nThe customer HAS ALREADY ATTACHED images to this email.\n"
	}

	var locationsInfo strings.Builder
	if len(locations) > 0 {
		locationsInfo.WriteString("\n--- COMPANY LOCATIONS ---\n")
		for _, loc := range locations {
			fmt.Fprintf(&locationsInfo, "  - %s, %s, %s (ZIP: %s)\n", orNA(loc.City), orNA(loc.Province), orNA(loc.Country), orNA(loc.Zip))
		}
	}

	const baseInstruction = "Analyze the following customer email and choose the most appropriate response template from the provided list."
	const singleItemRule = "IMPORTANT RULE: Pay close attention to the 'Products' list. If the customer reports a problem with a product (e.g. missing or damaged) and the order contains only one kind of item, you MUST choose a template that resolves the problem proactively (e.g. confirming a replacement) instead of one that asks for more information."
	const warehouseReturnRule = "ADDITIONAL RULE: If the 'LAST TRACKING EVENT' shows a 'delivered' status and its 'Location' matches ANY of the 'COMPANY LOCATIONS', you MUST choose a template that reflects a return to the warehouse or a delivery to a wrong address."
	const outputFormat = `Respond only with the ID of the selected template (for example, "lost_order::response_a").`

	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n---\nCUSTOMER EMAIL ---\n%s%s%s%s%s\n\n---\nAVAILABLE TEMPLATES ---\n%s",
		baseInstruction, singleItemRule, warehouseReturnRule, outputFormat,
		details.Body, imageInfo, customerInfo.String(), orderInfo.String(), locationsInfo.String(), options.String())
}
