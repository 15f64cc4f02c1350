package classify

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tag pairs a label name with the description the model sees.
type Tag struct {
	Tag         string `json:"tag"`
	Description string `json:"description"`
}

// Taxonomy is the closed vocabulary for one run. It is loaded once and
// treated as read-only by everything downstream.
type Taxonomy struct {
	Tags    []Tag
	Subtags []string
}

// Unclassified is the fallback tag for spam and no-action mail; threads
// classified this way get no taxonomy label, only the processed marker.
const Unclassified = "Unclassified"

// DefaultTaxonomy is the built-in vocabulary, used when no taxonomy file is
// configured.
func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Tags: []Tag{
			{Tag: "Inquiry/Sales", Description: "Wholesale and bulk purchase inquiries from retailers or brand representatives; forward to the sales team."},
			{Tag: "Inquiry/Product Info", Description: "Questions about ingredients, composition, health benefits and culinary use; answer with product information."},
			{Tag: "Inquiry/Modification Request", Description: "Requests to modify or cancel orders or recurring subscriptions; act on the order in the store."},
			{Tag: "Inquiry/International Inquiry", Description: "Availability and purchasing outside the United States, retail or wholesale; forward to the sales team."},
			{Tag: "Inquiry/Other Inquiry", Description: "General questions about service, shipping options and customer support from existing customers."},
			{Tag: "Inquiry/PR", Description: "Public relations, events, collaborations and sponsorship opportunities; forward to the marketing team."},
			{Tag: "Inquiry/Status Update", Description: "A customer asking where their store order is; answer from carrier tracking information."},
			{Tag: "Complaint/Platform Issue", Description: "Problems using the online store, such as out-of-stock purchases or trouble cancelling a subscription."},
			{Tag: "Complaint/Supply Issue", Description: "Damaged or missing products, leaking bottles, defective packaging or delivery quality problems; replacement, refund or cancel."},
			{Tag: "Complaint/Other Complaint Issue", Description: "Miscellaneous order problems, wrong deliveries, unauthorized charges and order-management errors."},
			{Tag: "Complaint/Stock Issue", Description: "Delivery delayed or split into multiple shipments for lack of stock; check store or 3PL inventory."},
			{Tag: "Complaint/Shipping Issue", Description: "Lost or delayed shipments, missing tracking information and trouble receiving products; verify tracking before replacement or refund."},
			{Tag: "Complaint/Product Issue", Description: "Product quality below expectations; reply explaining product characteristics and recommended use."},
			{Tag: "Faire", Description: "Automated mail from the Faire platform about wholesale orders, shipping, deposits and order problems; review only, no action."},
			{Tag: "Shopify Orders", Description: "Automated store mail such as invoices and order tracking started by the shop's own address; review only, no action."},
			{Tag: "Airgoods", Description: "Automated mail from Airgoods about wholesale orders, shipping, deposits and order problems; review only, no action."},
			{Tag: Unclassified, Description: "Thank-you notes, vendor solicitations seeking a call or meeting, and other automated spam that requires no action."},
		},
		// Subtags apply only to Inquiry/Modification Request.
		Subtags: []string{"Cancel Order", "Cancel Subscription", "Update Address"},
	}
}

// LoadTaxonomy reads a taxonomy snapshot from a JSON file. An empty path
// returns the built-in vocabulary.
func LoadTaxonomy(path string) (Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("read taxonomy: %w", err)
	}
	var t Taxonomy
	if err := json.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("parse taxonomy %s: %w", path, err)
	}
	if len(t.Tags) == 0 {
		return Taxonomy{}, fmt.Errorf("taxonomy %s has no tags", path)
	}
	return t, nil
}
