package orders

import (
	"strconv"
	"strings"

	"github.com/acctools/cxflow/internal/shopify"
)

// Header is row 1 of the Orders sheet: order-level fields, the first
// fulfillment's tracking block, the shipping address, totals, then one
// line-item block. Every line-item row repeats the order-level columns.
var Header = []string{
	"OrderName", "OrderID", "Channel", "Email", "Tags",
	"CreatedAt", "UpdatedAt", "ClosedAt", "CancelledAt",
	"StatusPageUrl", "FulfillmentStatus", "FinancialStatus", "totalRefunded",
	"InTransitAt", "Carrier", "TrackingNumber", "TrackingURL", "Location",
	"Company", "ShipName", "Phone", "Country", "CountryCode",
	"Province", "ProvinceCode", "City", "ZIP",
	"SubTotalPrice", "TotalDiscount", "TotalShipping", "TotalPrice",
	"LineItemSKU", "LineItemTitle", "LineItemQuantity", "CurrentQuantity",
	"UnfulfilledQuantity", "OriginalUnitPrice", "OriginalTotal",
	"DiscountedUnitPrice", "DiscountedTotal", "VariantID",
}

// Column indexes the reconciliation pass depends on.
const (
	colOrderID   = 1
	colUpdatedAt = 6
)

// Flatten renders one sheet row per line item, repeating the order-level
// columns on each. An order with no line items yields no rows.
func Flatten(o shopify.ExportOrder) [][]string {
	base := []string{
		o.Name,
		o.ID,
		o.Channel,
		o.Email,
		strings.Join(o.Tags, "\n"),
		o.CreatedAt,
		o.UpdatedAt,
		o.ClosedAt,
		o.CancelledAt,
		o.StatusPageURL,
		o.FulfillmentStatus,
		o.FinancialStatus,
		o.TotalRefunded,
		o.Fulfillment.InTransitAt,
		o.Fulfillment.Carrier,
		o.Fulfillment.TrackingNumber,
		o.Fulfillment.TrackingURL,
		o.Fulfillment.LocationName,
		o.ShippingAddress.Company,
		o.ShippingAddress.Name,
		o.ShippingAddress.Phone,
		o.ShippingAddress.Country,
		o.ShippingAddress.CountryCode,
		o.ShippingAddress.Province,
		o.ShippingAddress.ProvinceCode,
		o.ShippingAddress.City,
		o.ShippingAddress.Zip,
		o.SubtotalPrice,
		o.TotalDiscounts,
		o.TotalShipping,
		o.TotalPrice,
	}

	rows := make([][]string, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		row := make([]string, 0, len(Header))
		row = append(row, base...)
		row = append(row,
			li.SKU,
			li.Title,
			strconv.Itoa(li.Quantity),
			strconv.Itoa(li.CurrentQuantity),
			strconv.Itoa(li.UnfulfilledQuantity),
			li.OriginalUnitPrice,
			li.OriginalTotal,
			li.DiscountedUnitPrice,
			li.DiscountedTotal,
			li.VariantID,
		)
		rows = append(rows, row)
	}
	return rows
}
