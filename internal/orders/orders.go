// Package orders exports the shop's order history into a spreadsheet, one
// row per line item, and keeps already-exported rows in sync as orders
// change. A persisted cursor lets the export resume pagination across runs.
package orders

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/shopify"
	"github.com/acctools/cxflow/internal/store"
)

// Source is the slice of the store client the sync needs.
type Source interface {
	OrdersPage(ctx context.Context, cursor string) (*shopify.OrdersPage, error)
	OrdersByUpdatedDesc(ctx context.Context, cursor string) (*shopify.OrdersPage, error)
}

// Sheet is the slice of the spreadsheet client the sync needs.
type Sheet interface {
	EnsureSheet(ctx context.Context, name string, header []any) error
	Grid(ctx context.Context, name string) ([][]string, error)
	UpdateRow(ctx context.Context, name string, rowNum int, values []any) error
	AppendRows(ctx context.Context, name string, rows [][]any) error
	ClearRow(ctx context.Context, name string, rowNum, width int) error
}

// Cursors persists the export's pagination position between runs.
type Cursors interface {
	Cursor(name string) (string, error)
	SetCursor(name, value string) error
}

// Engine runs the export and reconciliation passes.
type Engine struct {
	shop      Source
	sheet     Sheet
	cursors   Cursors
	sheetName string
	log       *zap.SugaredLogger
}

// New wires an Engine.
func New(shop Source, sheet Sheet, cursors Cursors, sheetName string, log *zap.SugaredLogger) *Engine {
	return &Engine{shop: shop, sheet: sheet, cursors: cursors, sheetName: sheetName, log: log}
}

func toAnyRows(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		vals := make([]any, len(row))
		for j, v := range row {
			vals[j] = v
		}
		out[i] = vals
	}
	return out
}

// Export appends unseen orders to the sheet in page order. The cursor is
// persisted after each fully written page, so an aborted run resumes from
// the next unseen page instead of rescanning.
func (e *Engine) Export(ctx context.Context) (int, error) {
	if err := e.sheet.EnsureSheet(ctx, e.sheetName, toAnyRows([][]string{Header})[0]); err != nil {
		return 0, err
	}

	cursor, err := e.cursors.Cursor(store.OrdersCursor)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}

	var written int
	for {
		page, err := e.shop.OrdersPage(ctx, cursor)
		if err != nil {
			return written, fmt.Errorf("fetch orders page: %w", err)
		}
		if len(page.Orders) == 0 {
			break
		}

		var rows [][]string
		for _, order := range page.Orders {
			rows = append(rows, Flatten(order)...)
		}
		if len(rows) > 0 {
			if err := e.sheet.AppendRows(ctx, e.sheetName, toAnyRows(rows)); err != nil {
				return written, fmt.Errorf("append page: %w", err)
			}
			written += len(rows)
		}

		// The page is committed; remember where it ended.
		if err := e.cursors.SetCursor(store.OrdersCursor, page.EndCursor); err != nil {
			return written, fmt.Errorf("persist cursor: %w", err)
		}
		e.log.Infow("orders page exported", "orders", len(page.Orders), "rows", len(rows))

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	e.log.Infow("order export done", "rows_written", written)
	return written, nil
}

// rowState is what the sheet currently records for one order.
type rowState struct {
	rowNums      []int // 1-based, in sheet order
	minUpdatedAt time.Time
}

// Update refreshes already-exported orders in place. Orders are fetched
// newest-updated first; an order is rewritten only when its fetched
// updatedAt is newer than the earliest updatedAt among its stored rows.
// Rewrites overwrite row for row; surplus stored rows are cleared (left
// blank, not deleted) and extra fresh rows are appended at the end.
func (e *Engine) Update(ctx context.Context) (int, error) {
	grid, err := e.sheet.Grid(ctx, e.sheetName)
	if err != nil {
		return 0, err
	}
	if len(grid) <= 1 {
		e.log.Info("orders sheet empty, nothing to update")
		return 0, nil
	}

	states := make(map[string]*rowState)
	for i := 1; i < len(grid); i++ {
		row := grid[i]
		if len(row) <= colUpdatedAt || row[colOrderID] == "" {
			continue
		}
		id := row[colOrderID]
		st := states[id]
		if st == nil {
			st = &rowState{}
			states[id] = st
		}
		st.rowNums = append(st.rowNums, i+1)
		if ts, err := time.Parse(time.RFC3339, row[colUpdatedAt]); err == nil {
			if st.minUpdatedAt.IsZero() || ts.Before(st.minUpdatedAt) {
				st.minUpdatedAt = ts
			}
		}
	}

	var updated int
	cursor := ""
	for {
		page, err := e.shop.OrdersByUpdatedDesc(ctx, cursor)
		if err != nil {
			return updated, fmt.Errorf("fetch updated orders: %w", err)
		}
		if len(page.Orders) == 0 {
			break
		}

		for _, order := range page.Orders {
			st, exists := states[order.ID]
			if !exists {
				continue
			}
			fetched, err := time.Parse(time.RFC3339, order.UpdatedAt)
			if err != nil {
				e.log.Warnw("unparseable updatedAt, skipping order", "order", order.Name, "updated_at", order.UpdatedAt)
				continue
			}
			if !fetched.After(st.minUpdatedAt) {
				continue
			}

			newRows := Flatten(order)
			for i, rowNum := range st.rowNums {
				if i < len(newRows) {
					if err := e.sheet.UpdateRow(ctx, e.sheetName, rowNum, toAnyRows(newRows[i:i+1])[0]); err != nil {
						return updated, fmt.Errorf("rewrite order %s: %w", order.Name, err)
					}
				} else {
					if err := e.sheet.ClearRow(ctx, e.sheetName, rowNum, len(Header)); err != nil {
						return updated, fmt.Errorf("clear surplus row for %s: %w", order.Name, err)
					}
				}
			}
			if len(newRows) > len(st.rowNums) {
				extra := newRows[len(st.rowNums):]
				if err := e.sheet.AppendRows(ctx, e.sheetName, toAnyRows(extra)); err != nil {
					return updated, fmt.Errorf("append extra rows for %s: %w", order.Name, err)
				}
			}
			updated++
			e.log.Infow("order refreshed", "order", order.Name, "rows", len(newRows))
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	e.log.Infow("order update done", "orders_updated", updated)
	return updated, nil
}
