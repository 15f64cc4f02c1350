// Package bulkorder turns spreadsheet rows into store orders. Rows marked
// for creation are grouped by recipient so one person receiving several
// products gets a single order, then placed through the order API; the
// sheet is written back with the created order name. Draft orders follow
// the same flow for gifting/seeding shipments, expanding bundle aliases
// into their component products.
package bulkorder

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/shopify"
)

// Statuses the sheets use to mark rows ready for processing.
const (
	statusToCreate   = "to create order"
	statusNeedToShip = "need to ship"
	statusCreated    = "Created"
)

// DefaultBundles maps sheet product aliases to the real product titles they
// expand to on draft orders.
func DefaultBundles() map[string][]string {
	return map[string][]string{
		"AllPurpose1Bottle":             {"Chef-Grade Algae Cooking Oil (Gifting)"},
		"ACC-1xChili_1xMushroom-Bundle": {"Shiitake Mushroom Oil (Gifting)", "Gochugaru Chili Oil (Gifting)"},
		"ACC-Bundle-Small":              {"Chef-Grade Algae Cooking Oil (Gifting)", "Shiitake Mushroom Oil (Gifting)", "Gochugaru Chili Oil (Gifting)"},
		"ACC-Squeeze-Trio":              {"Shiitake Mushroom Oil (Gifting)", "Gochugaru Chili Oil (Gifting)", "Chef-Grade Algae Cooking Oil 7oz (Gifting)"},
	}
}

// Shop is the slice of the store client the engine needs.
type Shop interface {
	VariantIDForProduct(ctx context.Context, title string) (string, error)
	CreateOrder(ctx context.Context, in shopify.OrderInput) (string, error)
	CreateDraftOrder(ctx context.Context, in shopify.OrderInput) (string, error)
}

// Sheet is the slice of the spreadsheet client the engine needs.
type Sheet interface {
	Grid(ctx context.Context, name string) ([][]string, error)
	UpdateCell(ctx context.Context, name string, rowNum, colNum int, value any) error
}

// Row is one data row keyed by normalized header name, remembering its
// position for write-back.
type Row struct {
	Num    int // 1-based sheet row
	Fields map[string]string
}

// Get looks a field up by header name, ignoring case and whitespace.
func (r Row) Get(header string) string {
	return r.Fields[normalizeHeader(header)]
}

var headerSpace = regexp.MustCompile(`\s+`)

func normalizeHeader(h string) string {
	return strings.ToLower(headerSpace.ReplaceAllString(h, ""))
}

// ReadRows parses a grid into field-keyed rows using row 1 as the header.
func ReadRows(grid [][]string) []Row {
	if len(grid) < 2 {
		return nil
	}
	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = normalizeHeader(h)
	}
	rows := make([]Row, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		fields := make(map[string]string, len(headers))
		for j, v := range grid[i] {
			if j < len(headers) && headers[j] != "" {
				fields[headers[j]] = strings.TrimSpace(v)
			}
		}
		rows = append(rows, Row{Num: i + 1, Fields: fields})
	}
	return rows
}

// group is one recipient's worth of rows.
type group struct {
	input   shopify.OrderInput
	items   []item
	rowNums []int
}

type item struct {
	title    string
	quantity int
}

func quantityOf(r Row) int {
	q, err := strconv.Atoi(r.Get("Quantity"))
	if err != nil || q < 1 {
		return 1
	}
	return q
}

// Engine places grouped orders and draft orders from sheet rows.
type Engine struct {
	shop       Shop
	sheet      Sheet
	sheetName  string
	draftEmail string
	bundles    map[string][]string
	log        *zap.SugaredLogger
}

// New wires an Engine. draftEmail is the internal address draft orders are
// billed to; a nil bundle map falls back to DefaultBundles.
func New(shop Shop, sheet Sheet, sheetName, draftEmail string, bundles map[string][]string, log *zap.SugaredLogger) *Engine {
	if bundles == nil {
		bundles = DefaultBundles()
	}
	return &Engine{shop: shop, sheet: sheet, sheetName: sheetName, draftEmail: draftEmail, bundles: bundles, log: log}
}

// groupRows buckets rows by the full recipient identity so identical
// recipients merge into one order and any field difference splits them.
func groupRows(rows []Row, keyFields []string, build func(Row) shopify.OrderInput) []*group {
	byKey := make(map[string]*group)
	var ordered []*group
	for _, r := range rows {
		parts := make([]string, len(keyFields))
		for i, f := range keyFields {
			parts[i] = r.Get(f)
		}
		key := strings.Join(parts, "||")
		g := byKey[key]
		if g == nil {
			g = &group{input: build(r)}
			byKey[key] = g
			ordered = append(ordered, g)
		}
		g.items = append(g.items, item{title: r.Get("Product"), quantity: quantityOf(r)})
		g.rowNums = append(g.rowNums, r.Num)
	}
	return ordered
}

// lineItems resolves product titles to variant line items, expanding bundle
// aliases when expand is set. Products without a resolvable variant are
// skipped rather than failing the group.
func (e *Engine) lineItems(ctx context.Context, items []item, expand bool) []shopify.OrderLineItemInput {
	var out []shopify.OrderLineItemInput
	for _, it := range items {
		titles := []string{it.title}
		if expand {
			if expanded, ok := e.bundles[it.title]; ok {
				titles = expanded
			}
		}
		for _, title := range titles {
			variantID, err := e.shop.VariantIDForProduct(ctx, title)
			if err != nil {
				e.log.Warnw("skipping product without variant", "product", title, "err", err)
				continue
			}
			out = append(out, shopify.OrderLineItemInput{VariantID: variantID, Quantity: it.quantity})
		}
	}
	return out
}

// findColumn returns the 1-based column of a header, or 0.
func findColumn(headerRow []string, name string) int {
	want := normalizeHeader(name)
	for i, h := range headerRow {
		if normalizeHeader(h) == want {
			return i + 1
		}
	}
	return 0
}

// CreateOrders places one paid order per recipient group for every row with
// StatusOrder "to create order", then marks the rows Created with the order
// name. Returns the number of orders placed.
func (e *Engine) CreateOrders(ctx context.Context) (int, error) {
	grid, err := e.sheet.Grid(ctx, e.sheetName)
	if err != nil {
		return 0, err
	}
	if len(grid) == 0 {
		return 0, fmt.Errorf("sheet %q has no header row", e.sheetName)
	}
	statusCol := findColumn(grid[0], "StatusOrder")
	orderCol := findColumn(grid[0], "Order")
	if statusCol == 0 || orderCol == 0 {
		return 0, fmt.Errorf("sheet %q is missing the StatusOrder or Order column", e.sheetName)
	}

	var pending []Row
	for _, r := range ReadRows(grid) {
		if strings.EqualFold(r.Get("StatusOrder"), statusToCreate) {
			pending = append(pending, r)
		}
	}
	e.log.Infow("rows ready for order creation", "count", len(pending))

	groups := groupRows(pending, []string{
		"EmailCustomer", "FirstNameCustomer", "LastNameCustomer",
		"Address1", "Address2", "City", "StateCode", "CountryCode", "PostalCode", "PhoneCustomer",
	}, func(r Row) shopify.OrderInput {
		return shopify.OrderInput{
			Email:     r.Get("EmailCustomer"),
			Phone:     r.Get("PhoneCustomer"),
			Tags:      []string{"cx", "Samples"},
			FirstName: r.Get("FirstNameCustomer"),
			LastName:  r.Get("LastNameCustomer"),
			Address1:  r.Get("Address1"),
			Address2:  r.Get("Address2"),
			City:      r.Get("City"),
			Province:  r.Get("StateCode"),
			Country:   r.Get("CountryCode"),
			Zip:       r.Get("PostalCode"),
			Company:   r.Get("Company"),
		}
	})

	var created int
	for _, g := range groups {
		g.input.LineItems = e.lineItems(ctx, g.items, false)
		if len(g.input.LineItems) == 0 {
			e.log.Warnw("group skipped, no valid products", "email", g.input.Email)
			continue
		}
		name, err := e.shop.CreateOrder(ctx, g.input)
		if err != nil {
			e.log.Warnw("order creation failed", "email", g.input.Email, "err", err)
			continue
		}
		created++
		e.log.Infow("order created", "order", name, "email", g.input.Email, "items", len(g.input.LineItems))
		for _, rowNum := range g.rowNums {
			if err := e.sheet.UpdateCell(ctx, e.sheetName, rowNum, statusCol, statusCreated); err != nil {
				return created, fmt.Errorf("mark row %d created: %w", rowNum, err)
			}
			if err := e.sheet.UpdateCell(ctx, e.sheetName, rowNum, orderCol, name); err != nil {
				return created, fmt.Errorf("record order name on row %d: %w", rowNum, err)
			}
		}
	}
	return created, nil
}

// CreateDrafts places one fully discounted draft order per recipient group
// for every row with Status "need to ship", expanding bundle aliases into
// their component products. Returns the number of drafts placed.
func (e *Engine) CreateDrafts(ctx context.Context) (int, error) {
	grid, err := e.sheet.Grid(ctx, e.sheetName)
	if err != nil {
		return 0, err
	}

	var pending []Row
	for _, r := range ReadRows(grid) {
		if strings.EqualFold(r.Get("Status"), statusNeedToShip) {
			pending = append(pending, r)
		}
	}
	e.log.Infow("rows ready for draft creation", "count", len(pending))

	groups := groupRows(pending, []string{
		"FirstName", "LastName", "Address1", "Address2", "City", "State",
		"Country", "PostalCode", "Phone", "ShippingSpeed",
	}, func(r Row) shopify.OrderInput {
		return shopify.OrderInput{
			Email:     e.draftEmail,
			Phone:     r.Get("Phone"),
			Tags:      []string{"Seeding"},
			FirstName: r.Get("FirstName"),
			LastName:  r.Get("LastName"),
			Address1:  r.Get("Address1"),
			Address2:  r.Get("Address2"),
			City:      r.Get("City"),
			Province:  r.Get("State"),
			Country:   r.Get("Country"),
			Zip:       r.Get("PostalCode"),
		}
	})

	var created int
	for _, g := range groups {
		g.input.LineItems = e.lineItems(ctx, g.items, true)
		if len(g.input.LineItems) == 0 {
			e.log.Warnw("draft group skipped, no valid products", "name", g.input.FirstName+" "+g.input.LastName)
			continue
		}
		name, err := e.shop.CreateDraftOrder(ctx, g.input)
		if err != nil {
			e.log.Warnw("draft creation failed", "name", g.input.FirstName+" "+g.input.LastName, "err", err)
			continue
		}
		created++
		e.log.Infow("draft order created", "draft", name, "items", len(g.input.LineItems))
	}
	return created, nil
}
