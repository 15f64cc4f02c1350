package bulkorder

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/shopify"
)

type fakeShop struct {
	variants map[string]string
	orders   []shopify.OrderInput
	drafts   []shopify.OrderInput
}

func (f *fakeShop) VariantIDForProduct(ctx context.Context, title string) (string, error) {
	if id, ok := f.variants[title]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

func (f *fakeShop) CreateOrder(ctx context.Context, in shopify.OrderInput) (string, error) {
	f.orders = append(f.orders, in)
	return "#100", nil
}

func (f *fakeShop) CreateDraftOrder(ctx context.Context, in shopify.OrderInput) (string, error) {
	f.drafts = append(f.drafts, in)
	return "#D100", nil
}

type fakeGridSheet struct {
	grid  [][]string
	cells map[[2]int]string
}

func (s *fakeGridSheet) Grid(ctx context.Context, name string) ([][]string, error) {
	return s.grid, nil
}

func (s *fakeGridSheet) UpdateCell(ctx context.Context, name string, rowNum, colNum int, value any) error {
	if s.cells == nil {
		s.cells = map[[2]int]string{}
	}
	s.cells[[2]int{rowNum, colNum}] = value.(string)
	return nil
}

func orderGrid() [][]string {
	return [][]string{
		{"Status Order", "Order", "Email Customer", "First Name Customer", "Last Name Customer",
			"Address1", "Address2", "City", "State Code", "Country Code", "Postal Code",
			"Phone Customer", "Company", "Product", "Quantity"},
		{"to create order", "", "jane@example.com", "Jane", "Doe",
			"1 Main St", "", "Reno", "NV", "US", "89501",
			"555-0100", "Acme", "Algae Oil", "2"},
		{"to create order", "", "jane@example.com", "Jane", "Doe",
			"1 Main St", "", "Reno", "NV", "US", "89501",
			"555-0100", "Acme", "Chili Oil", "1"},
		{"to create order", "", "sam@example.com", "Sam", "Lee",
			"2 Oak Ave", "", "Austin", "TX", "US", "73301",
			"555-0200", "", "Algae Oil", "1"},
		{"created", "#99", "old@example.com", "Old", "Row",
			"3 Elm St", "", "Boise", "ID", "US", "83701",
			"555-0300", "", "Algae Oil", "1"},
	}
}

func TestCreateOrdersGroupsByRecipient(t *testing.T) {
	shop := &fakeShop{variants: map[string]string{
		"Algae Oil": "gid://v/1",
		"Chili Oil": "gid://v/2",
	}}
	sheet := &fakeGridSheet{grid: orderGrid()}
	e := New(shop, sheet, "CreateOrders", "cx@example.com", nil, zap.NewNop().Sugar())

	created, err := e.CreateOrders(context.Background())
	if err != nil {
		t.Fatalf("CreateOrders: %v", err)
	}
	if created != 2 {
		t.Fatalf("created = %d, want 2 (Jane's rows merge, Sam separate)", created)
	}

	jane := shop.orders[0]
	if jane.Email != "jane@example.com" || len(jane.LineItems) != 2 {
		t.Errorf("first order = %+v, want Jane with 2 line items", jane)
	}
	if jane.LineItems[0].Quantity != 2 || jane.LineItems[1].Quantity != 1 {
		t.Errorf("line item quantities = %+v", jane.LineItems)
	}
	if jane.Province != "NV" || jane.Country != "US" || jane.Company != "Acme" {
		t.Errorf("address fields = %+v", jane)
	}

	// Rows 2 and 3 (Jane) and row 4 (Sam) written back; row 5 untouched.
	for _, rowNum := range []int{2, 3, 4} {
		if sheet.cells[[2]int{rowNum, 1}] != "Created" {
			t.Errorf("row %d status not marked Created", rowNum)
		}
		if sheet.cells[[2]int{rowNum, 2}] != "#100" {
			t.Errorf("row %d order name not recorded", rowNum)
		}
	}
	if _, ok := sheet.cells[[2]int{5, 1}]; ok {
		t.Error("already-created row was rewritten")
	}
}

func TestCreateOrdersEmptySheet(t *testing.T) {
	shop := &fakeShop{}
	sheet := &fakeGridSheet{grid: [][]string{}}
	e := New(shop, sheet, "CreateOrders", "cx@example.com", nil, zap.NewNop().Sugar())

	if _, err := e.CreateOrders(context.Background()); err == nil {
		t.Fatal("CreateOrders on an empty sheet should fail, not panic")
	}
	if len(shop.orders) != 0 {
		t.Errorf("orders placed from an empty sheet: %d", len(shop.orders))
	}
}

func TestCreateOrdersSkipsGroupWithoutVariants(t *testing.T) {
	shop := &fakeShop{variants: map[string]string{}}
	sheet := &fakeGridSheet{grid: orderGrid()}
	e := New(shop, sheet, "CreateOrders", "cx@example.com", nil, zap.NewNop().Sugar())

	created, err := e.CreateOrders(context.Background())
	if err != nil {
		t.Fatalf("CreateOrders: %v", err)
	}
	if created != 0 || len(sheet.cells) != 0 {
		t.Errorf("created = %d, cells = %v; want nothing placed or written", created, sheet.cells)
	}
}

func TestCreateDraftsExpandsBundles(t *testing.T) {
	shop := &fakeShop{variants: map[string]string{
		"Chef-Grade Algae Cooking Oil (Gifting)": "gid://v/10",
		"Shiitake Mushroom Oil (Gifting)":        "gid://v/11",
		"Gochugaru Chili Oil (Gifting)":          "gid://v/12",
	}}
	grid := [][]string{
		{"Status", "First Name", "Last Name", "Address1", "Address2", "City", "State",
			"Country", "Postal Code", "Phone", "Shipping Speed", "Product", "Quantity"},
		{"Need to Ship", "Kim", "Park", "9 Pine Rd", "", "Denver", "CO",
			"US", "80201", "555-0400", "Standard", "ACC-Bundle-Small", "1"},
	}
	sheet := &fakeGridSheet{grid: grid}
	e := New(shop, sheet, "Seeding", "cx@example.com", nil, zap.NewNop().Sugar())

	created, err := e.CreateDrafts(context.Background())
	if err != nil {
		t.Fatalf("CreateDrafts: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}
	draft := shop.drafts[0]
	if draft.Email != "cx@example.com" {
		t.Errorf("draft email = %q, want the internal address", draft.Email)
	}
	if len(draft.LineItems) != 3 {
		t.Errorf("bundle expanded to %d items, want 3", len(draft.LineItems))
	}
	if len(draft.Tags) != 1 || draft.Tags[0] != "Seeding" {
		t.Errorf("draft tags = %v", draft.Tags)
	}
}

func TestReadRowsNormalizesHeaders(t *testing.T) {
	rows := ReadRows([][]string{
		{" Email  Customer ", "Postal Code"},
		{"jane@example.com ", " 89501"},
	})
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Get("EmailCustomer") != "jane@example.com" {
		t.Errorf("EmailCustomer = %q", rows[0].Get("EmailCustomer"))
	}
	if rows[0].Get("postalcode") != "89501" {
		t.Errorf("postalcode = %q", rows[0].Get("postalcode"))
	}
	if rows[0].Num != 2 {
		t.Errorf("row num = %d, want 2", rows[0].Num)
	}
}
