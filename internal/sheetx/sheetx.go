// Package sheetx provides the spreadsheet operations the sync engines
// consume: full-grid reads, in-place row writes, appends and row deletion,
// built on google.golang.org/api/sheets/v4 against a single spreadsheet.
package sheetx

import (
	"context"
	"fmt"
	"sort"

	sheets "google.golang.org/api/sheets/v4"
)

// Client wraps the Sheets service for one spreadsheet.
type Client struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetIDs      map[string]int64
}

// New builds a Client for the given spreadsheet.
func New(svc *sheets.Service, spreadsheetID string) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetIDs:      make(map[string]int64),
	}
}

// sheetID resolves a sheet title to its numeric ID, caching the mapping.
func (c *Client) sheetID(ctx context.Context, name string) (int64, bool, error) {
	if id, ok := c.sheetIDs[name]; ok {
		return id, true, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		c.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
	}
	id, ok := c.sheetIDs[name]
	return id, ok, nil
}

// EnsureSheet creates the named sheet with a header row when it is missing.
func (c *Client) EnsureSheet(ctx context.Context, name string, header []any) error {
	_, ok, err := c.sheetID(ctx, name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	resp, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: name},
			},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("create sheet %q: %w", name, err)
	}
	for _, r := range resp.Replies {
		if r.AddSheet != nil {
			c.sheetIDs[name] = r.AddSheet.Properties.SheetId
		}
	}

	if len(header) > 0 {
		if err := c.AppendRow(ctx, name, header); err != nil {
			return fmt.Errorf("write header for %q: %w", name, err)
		}
	}
	return nil
}

// Grid reads the entire sheet as strings, one slice per row.
func (c *Client) Grid(ctx context.Context, name string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, name).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	grid := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		grid[i] = cells
	}
	return grid, nil
}

// UpdateRow overwrites one row (1-based) starting at column A.
func (c *Client) UpdateRow(ctx context.Context, name string, rowNum int, values []any) error {
	rng := fmt.Sprintf("%s!A%d", name, rowNum)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{values},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// columnLetter renders a 1-based column number in A1 notation.
func columnLetter(col int) string {
	letters := ""
	for col > 0 {
		col--
		letters = string(rune('A'+col%26)) + letters
		col /= 26
	}
	return letters
}

// UpdateCell overwrites a single cell (1-based row and column).
func (c *Client) UpdateCell(ctx context.Context, name string, rowNum, colNum int, value any) error {
	rng := fmt.Sprintf("%s!%s%d", name, columnLetter(colNum), rowNum)
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &sheets.ValueRange{
		Values: [][]any{{value}},
	}).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}
	return nil
}

// AppendRow appends a single row after the sheet's current data.
func (c *Client) AppendRow(ctx context.Context, name string, values []any) error {
	return c.AppendRows(ctx, name, [][]any{values})
}

// AppendRows appends rows after the sheet's current data.
func (c *Client) AppendRows(ctx context.Context, name string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, name, &sheets.ValueRange{
		Values: rows,
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %q: %w", name, err)
	}
	return nil
}

// ClearRow blanks a row's cells without removing the row, keeping the rows
// below it in place.
func (c *Client) ClearRow(ctx context.Context, name string, rowNum, width int) error {
	blank := make([]any, width)
	for i := range blank {
		blank[i] = ""
	}
	return c.UpdateRow(ctx, name, rowNum, blank)
}

// DeleteRows removes the given rows (1-based), applying the deletions bottom
// up so earlier deletes cannot shift the indexes of later ones.
func (c *Client) DeleteRows(ctx context.Context, name string, rowNums []int) error {
	if len(rowNums) == 0 {
		return nil
	}
	id, ok, err := c.sheetID(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("sheet %q not found", name)
	}

	sorted := append([]int(nil), rowNums...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	requests := make([]*sheets.Request, 0, len(sorted))
	for _, rowNum := range sorted {
		requests = append(requests, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    id,
					Dimension:  "ROWS",
					StartIndex: int64(rowNum - 1),
					EndIndex:   int64(rowNum),
				},
			},
		})
	}

	_, err = c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("delete rows from %q: %w", name, err)
	}
	return nil
}
