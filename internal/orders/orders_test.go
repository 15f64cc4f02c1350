package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/shopify"
	"github.com/acctools/cxflow/internal/store"
)

func exportOrder(id, name, updatedAt string, items int) shopify.ExportOrder {
	o := shopify.ExportOrder{
		ID:        id,
		Name:      name,
		UpdatedAt: updatedAt,
		CreatedAt: "2026-08-01T10:00:00Z",
		Email:     "jane@example.com",
	}
	for i := 0; i < items; i++ {
		o.LineItems = append(o.LineItems, shopify.ExportLineItem{
			SKU:      fmt.Sprintf("SKU-%d", i+1),
			Title:    fmt.Sprintf("Item %d", i+1),
			Quantity: 1,
		})
	}
	return o
}

func TestFlatten(t *testing.T) {
	o := exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 2)
	o.Tags = []string{"wholesale", "priority"}
	rows := Flatten(o)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want one per line item", len(rows))
	}
	for i, row := range rows {
		if len(row) != len(Header) {
			t.Fatalf("row %d width = %d, want %d", i, len(row), len(Header))
		}
		if row[0] != "#100" || row[colOrderID] != "gid://o/1" {
			t.Errorf("order columns not repeated on row %d: %v", i, row[:2])
		}
	}
	if rows[0][4] != "wholesale\npriority" {
		t.Errorf("tags cell = %q", rows[0][4])
	}
	if rows[1][31] != "SKU-2" {
		t.Errorf("second row sku = %q", rows[1][31])
	}
	if got := Flatten(exportOrder("gid://o/2", "#101", "", 0)); len(got) != 0 {
		t.Errorf("order without line items produced %d rows", len(got))
	}
}

// fakeOrderSheet implements Sheet over an in-memory grid.
type fakeOrderSheet struct {
	grid [][]string
}

func (s *fakeOrderSheet) EnsureSheet(ctx context.Context, name string, header []any) error {
	if len(s.grid) == 0 {
		row := make([]string, len(header))
		for i, h := range header {
			row[i] = h.(string)
		}
		s.grid = append(s.grid, row)
	}
	return nil
}

func (s *fakeOrderSheet) Grid(ctx context.Context, name string) ([][]string, error) {
	out := make([][]string, len(s.grid))
	for i, r := range s.grid {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (s *fakeOrderSheet) UpdateRow(ctx context.Context, name string, rowNum int, values []any) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = v.(string)
	}
	s.grid[rowNum-1] = row
	return nil
}

func (s *fakeOrderSheet) AppendRows(ctx context.Context, name string, rows [][]any) error {
	for _, values := range rows {
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = v.(string)
		}
		s.grid = append(s.grid, row)
	}
	return nil
}

func (s *fakeOrderSheet) ClearRow(ctx context.Context, name string, rowNum, width int) error {
	s.grid[rowNum-1] = make([]string, width)
	return nil
}

type fakeCursors struct {
	values map[string]string
}

func (c *fakeCursors) Cursor(name string) (string, error) {
	return c.values[name], nil
}

func (c *fakeCursors) SetCursor(name, value string) error {
	if c.values == nil {
		c.values = map[string]string{}
	}
	c.values[name] = value
	return nil
}

type fakeSource struct {
	pages       map[string]*shopify.OrdersPage // keyed by requested cursor
	updatePages map[string]*shopify.OrdersPage
	pageErr     error
}

func (f *fakeSource) OrdersPage(ctx context.Context, cursor string) (*shopify.OrdersPage, error) {
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if p, ok := f.pages[cursor]; ok {
		return p, nil
	}
	return &shopify.OrdersPage{}, nil
}

func (f *fakeSource) OrdersByUpdatedDesc(ctx context.Context, cursor string) (*shopify.OrdersPage, error) {
	if p, ok := f.updatePages[cursor]; ok {
		return p, nil
	}
	return &shopify.OrdersPage{}, nil
}

func TestExportPersistsCursorPerPage(t *testing.T) {
	src := &fakeSource{pages: map[string]*shopify.OrdersPage{
		"": {
			Orders:      []shopify.ExportOrder{exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 2)},
			HasNextPage: true,
			EndCursor:   "cur-1",
		},
		"cur-1": {
			Orders:      []shopify.ExportOrder{exportOrder("gid://o/2", "#101", "2026-08-21T00:00:00Z", 1)},
			HasNextPage: false,
			EndCursor:   "cur-2",
		},
	}}
	sheet := &fakeOrderSheet{}
	cursors := &fakeCursors{}
	e := New(src, sheet, cursors, "Orders", zap.NewNop().Sugar())

	written, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if written != 3 {
		t.Errorf("rows written = %d, want 3", written)
	}
	if got := cursors.values[store.OrdersCursor]; got != "cur-2" {
		t.Errorf("final cursor = %q, want cur-2", got)
	}
	if len(sheet.grid) != 4 { // header + 3 rows
		t.Errorf("grid rows = %d, want 4", len(sheet.grid))
	}
}

func TestExportResumesFromStoredCursor(t *testing.T) {
	src := &fakeSource{pages: map[string]*shopify.OrdersPage{
		"cur-1": {
			Orders:      []shopify.ExportOrder{exportOrder("gid://o/2", "#101", "2026-08-21T00:00:00Z", 1)},
			HasNextPage: false,
			EndCursor:   "cur-2",
		},
	}}
	sheet := &fakeOrderSheet{}
	cursors := &fakeCursors{values: map[string]string{store.OrdersCursor: "cur-1"}}
	e := New(src, sheet, cursors, "Orders", zap.NewNop().Sugar())

	written, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if written != 1 {
		t.Errorf("rows written = %d, want 1 (resumed past page one)", written)
	}
}

func TestExportAbortKeepsCommittedCursor(t *testing.T) {
	src := &fakeSource{pageErr: errors.New("throttled")}
	cursors := &fakeCursors{values: map[string]string{store.OrdersCursor: "cur-1"}}
	e := New(src, &fakeOrderSheet{}, cursors, "Orders", zap.NewNop().Sugar())

	if _, err := e.Export(context.Background()); err == nil {
		t.Fatal("Export succeeded despite fetch failure")
	}
	if got := cursors.values[store.OrdersCursor]; got != "cur-1" {
		t.Errorf("cursor = %q, want untouched cur-1", got)
	}
}

func seedSheet(t *testing.T, e *Engine, src *fakeSource, orders ...shopify.ExportOrder) {
	t.Helper()
	src.pages = map[string]*shopify.OrdersPage{"": {Orders: orders}}
	if _, err := e.Export(context.Background()); err != nil {
		t.Fatalf("seed export: %v", err)
	}
}

func TestUpdateShrinkBlanksSurplusRows(t *testing.T) {
	src := &fakeSource{}
	sheet := &fakeOrderSheet{}
	e := New(src, sheet, &fakeCursors{}, "Orders", zap.NewNop().Sugar())
	seedSheet(t, e, src,
		exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 3),
		exportOrder("gid://o/2", "#101", "2026-08-20T00:00:00Z", 1),
	)

	// Order 1 shrinks from 3 line items to 1.
	src.updatePages = map[string]*shopify.OrdersPage{"": {
		Orders: []shopify.ExportOrder{exportOrder("gid://o/1", "#100", "2026-08-25T00:00:00Z", 1)},
	}}

	updated, err := e.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, want 1", updated)
	}
	// Row 2 rewritten, rows 3 and 4 blanked, order 2's row untouched.
	if sheet.grid[1][colUpdatedAt] != "2026-08-25T00:00:00Z" {
		t.Errorf("row 2 updatedAt = %q", sheet.grid[1][colUpdatedAt])
	}
	for _, rowNum := range []int{3, 4} {
		if sheet.grid[rowNum-1][colOrderID] != "" {
			t.Errorf("row %d not blanked: %v", rowNum, sheet.grid[rowNum-1][:2])
		}
	}
	if sheet.grid[4][colOrderID] != "gid://o/2" {
		t.Errorf("order 2 row disturbed: %v", sheet.grid[4][:2])
	}
}

func TestUpdateGrowthAppendsExtraRows(t *testing.T) {
	src := &fakeSource{}
	sheet := &fakeOrderSheet{}
	e := New(src, sheet, &fakeCursors{}, "Orders", zap.NewNop().Sugar())
	seedSheet(t, e, src, exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 3))

	src.updatePages = map[string]*shopify.OrdersPage{"": {
		Orders: []shopify.ExportOrder{exportOrder("gid://o/1", "#100", "2026-08-25T00:00:00Z", 5)},
	}}

	if _, err := e.Update(context.Background()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(sheet.grid) != 6 { // header + 3 rewritten + 2 appended
		t.Fatalf("grid rows = %d, want 6", len(sheet.grid))
	}
	if sheet.grid[5][31] != "SKU-5" {
		t.Errorf("appended row sku = %q", sheet.grid[5][31])
	}
}

func TestUpdateSkipsUnchangedOrders(t *testing.T) {
	src := &fakeSource{}
	sheet := &fakeOrderSheet{}
	e := New(src, sheet, &fakeCursors{}, "Orders", zap.NewNop().Sugar())
	seedSheet(t, e, src, exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 2))

	// Same updatedAt: not newer, must be left untouched.
	src.updatePages = map[string]*shopify.OrdersPage{"": {
		Orders: []shopify.ExportOrder{exportOrder("gid://o/1", "#100", "2026-08-20T00:00:00Z", 1)},
	}}

	updated, err := e.Update(context.Background())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated = %d, want 0", updated)
	}
	if len(sheet.grid) != 3 || sheet.grid[2][colOrderID] != "gid://o/1" {
		t.Error("unchanged order was modified")
	}
}
