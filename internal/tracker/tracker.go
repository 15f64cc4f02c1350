// Package tracker reconciles a reporting spreadsheet against the mailbox:
// one row per thread carrying a tracked label, with business-hour-adjusted
// response metrics. The sync is a three-way diff — threads gain a row when
// they acquire a tracked label, keep it up to date while labeled, and lose
// it when the label goes away.
package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acctools/cxflow/internal/gmailx"
)

// Header is row 1 of the tracker sheet.
var Header = []string{
	"ID", "Subject", "First Message Date", "Last Message Date", "Total Response Time (hrs)",
	"Message Count", "Sender Email", "Thread Link", "Labels", "Category", "Subcategory",
	"Outcome", "Pending", "Week", "Month", "Day", "CX Response Time (hrs)", "responseGroup",
}

const (
	lockName    = "tracker_sync"
	lockMaxWait = 2 * time.Minute

	// idPrefix keeps spreadsheet clients from mangling numeric-looking
	// thread IDs; it is stripped when reading the sheet back.
	idPrefix = "'"

	// blank keeps row width constant where a field has no value.
	blank = " "

	// noValue marks response metrics that cannot be computed.
	noValue = "-"
)

// Category labels follow a "<Category>/<Subcategory>" naming scheme.
var categoryPrefixes = []string{"Inquiry/", "Complaint/"}

const outcomePrefix = "Outcome/"

// Mailbox is the slice of the mail client the sync needs.
type Mailbox interface {
	SearchThreads(ctx context.Context, query string) ([]*gmailx.Thread, error)
	HasLabelWithPrefix(ctx context.Context, threadID string, prefixes []string) (bool, error)
}

// Sheet is the slice of the spreadsheet client the sync needs.
type Sheet interface {
	EnsureSheet(ctx context.Context, name string, header []any) error
	Grid(ctx context.Context, name string) ([][]string, error)
	UpdateRow(ctx context.Context, name string, rowNum int, values []any) error
	AppendRow(ctx context.Context, name string, values []any) error
	DeleteRows(ctx context.Context, name string, rowNums []int) error
}

// Locker serializes overlapping sync runs.
type Locker interface {
	AcquireLock(name string, maxWait time.Duration) (func(), error)
}

// Stats counts the writes one sync performed.
type Stats struct {
	Created int
	Updated int
	Deleted int
}

// Config carries the sync's settings.
type Config struct {
	SheetName             string
	CXEmail               string
	LabelQueries          []string
	SearchAfter           string
	RequiredLabelPrefixes []string
	Location              *time.Location
}

// Engine performs the tracker sync.
type Engine struct {
	mail   Mailbox
	sheet  Sheet
	locker Locker
	cfg    Config
	log    *zap.SugaredLogger
}

// New wires an Engine.
func New(mail Mailbox, sheet Sheet, locker Locker, cfg Config, log *zap.SugaredLogger) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Engine{mail: mail, sheet: sheet, locker: locker, cfg: cfg, log: log}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}

// responseGroup buckets a CX response time: under 24h, 24-48h inclusive, or
// over 48h.
func responseGroup(hours float64) string {
	switch {
	case hours < 24:
		return "<24"
	case hours <= 48:
		return "24-48"
	default:
		return ">48"
	}
}

// cxResponse finds the first reply from the CX account and measures it
// against the adjusted thread start. Both values are sentinels when the CX
// account never replied.
func cxResponse(messages []gmailx.Message, adjustedFirst time.Time, cxEmail string) (timeStr, group string) {
	for _, m := range messages[1:] {
		if strings.Contains(strings.ToLower(m.From), strings.ToLower(cxEmail)) {
			hours := m.Date.Sub(adjustedFirst).Hours()
			return formatHours(hours), responseGroup(hours)
		}
	}
	return noValue, noValue
}

// Row projects one thread into its sheet row.
func (e *Engine) Row(thread *gmailx.Thread) []string {
	first := thread.Messages[0]
	last := thread.Messages[len(thread.Messages)-1]
	adjustedFirst := AdjustToBusinessStart(first.Date.In(e.cfg.Location))

	labels := make([]string, 0, len(thread.Labels))
	for _, l := range thread.Labels {
		if l != "Tracker" {
			labels = append(labels, l)
		}
	}

	category, subcategory := blank, blank
	for _, l := range labels {
		for _, prefix := range categoryPrefixes {
			if strings.HasPrefix(l, prefix) {
				category, subcategory, _ = strings.Cut(l, "/")
				break
			}
		}
		if category != blank {
			break
		}
	}

	outcome := blank
	for _, l := range labels {
		if strings.HasPrefix(l, outcomePrefix) {
			outcome = strings.TrimPrefix(l, outcomePrefix)
			break
		}
	}

	pending := "0"
	for _, l := range labels {
		if l == "Pending" {
			pending = "1"
			break
		}
	}

	totalResponse := noValue
	if len(thread.Messages) > 1 {
		totalResponse = formatHours(thread.Messages[1].Date.Sub(adjustedFirst).Hours())
	}

	labelsCell := strings.Join(labels, ", ")
	if labelsCell == "" {
		labelsCell = blank
	}

	cxTime, cxGroup := cxResponse(thread.Messages, adjustedFirst, e.cfg.CXEmail)

	return []string{
		idPrefix + thread.ID,
		first.Subject,
		adjustedFirst.Format("01/02/2006 15:04:05"),
		last.Date.In(e.cfg.Location).Format("01/02/2006 15:04:05"),
		totalResponse,
		strconv.Itoa(len(thread.Messages)),
		first.From,
		"https://mail.google.com/mail/u/0/#inbox/" + thread.ID,
		labelsCell,
		category,
		subcategory,
		outcome,
		pending,
		WeekKey(adjustedFirst),
		MonthKey(adjustedFirst),
		adjustedFirst.Format("01/02/2006"),
		cxTime,
		cxGroup,
	}
}

func rowsEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}

// Sync reconciles the sheet against the mailbox. It is idempotent: with no
// mailbox changes between runs, the second run performs zero writes.
func (e *Engine) Sync(ctx context.Context) (Stats, error) {
	release, err := e.locker.AcquireLock(lockName, lockMaxWait)
	if err != nil {
		return Stats{}, fmt.Errorf("tracker sync: %w", err)
	}
	defer release()

	query := fmt.Sprintf("(%s) %s", strings.Join(e.cfg.LabelQueries, " OR "), e.cfg.SearchAfter)
	threads, err := e.mail.SearchThreads(ctx, query)
	if err != nil {
		return Stats{}, fmt.Errorf("search tracked threads: %w", err)
	}
	e.log.Infow("tracked threads found", "count", len(threads))

	header := toAny(Header)
	if err := e.sheet.EnsureSheet(ctx, e.cfg.SheetName, header); err != nil {
		return Stats{}, err
	}
	grid, err := e.sheet.Grid(ctx, e.cfg.SheetName)
	if err != nil {
		return Stats{}, err
	}

	// Thread ID -> 0-based grid index, header skipped.
	rowIndex := make(map[string]int)
	for i := 1; i < len(grid); i++ {
		if len(grid[i]) == 0 {
			continue
		}
		id := strings.TrimPrefix(grid[i][0], idPrefix)
		if id != "" {
			rowIndex[id] = i
		}
	}

	var stats Stats
	live := make(map[string]bool, len(threads))
	for _, thread := range threads {
		if len(thread.Messages) == 0 {
			continue
		}
		live[thread.ID] = true
		row := e.Row(thread)
		idx, exists := rowIndex[thread.ID]
		if exists {
			if rowsEqual(row, grid[idx]) {
				continue
			}
			if err := e.sheet.UpdateRow(ctx, e.cfg.SheetName, idx+1, toAny(row)); err != nil {
				return stats, fmt.Errorf("update row for thread %s: %w", thread.ID, err)
			}
			stats.Updated++
		} else {
			if err := e.sheet.AppendRow(ctx, e.cfg.SheetName, toAny(row)); err != nil {
				return stats, fmt.Errorf("append row for thread %s: %w", thread.ID, err)
			}
			stats.Created++
		}
	}

	var stale []int
	for id, idx := range rowIndex {
		if live[id] {
			continue
		}
		// Recheck before deleting: a thread outside the search window may
		// still carry a tracked label, and a fetch failure must never turn
		// into a destructive delete.
		has, err := e.mail.HasLabelWithPrefix(ctx, id, e.cfg.RequiredLabelPrefixes)
		if err != nil {
			e.log.Warnw("label recheck failed, keeping row", "thread", id, "err", err)
			continue
		}
		if has {
			continue
		}
		stale = append(stale, idx+1)
	}
	if len(stale) > 0 {
		if err := e.sheet.DeleteRows(ctx, e.cfg.SheetName, stale); err != nil {
			return stats, fmt.Errorf("delete stale rows: %w", err)
		}
		stats.Deleted = len(stale)
	}

	e.log.Infow("tracker sync done", "created", stats.Created, "updated", stats.Updated, "deleted", stats.Deleted)
	return stats, nil
}
