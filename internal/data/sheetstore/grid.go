// Package sheetstore keeps tasks, the audit log and timer events in a
// spreadsheet: one tab per entity, a header row, then positional data rows.
//
// Row positions are never trusted across calls. Rows can be re-sorted or
// deleted by people editing the sheet by hand, so every write re-resolves
// its target by identifier immediately before touching it.
package sheetstore

import (
	"context"
	"errors"
	"strings"
)

// ErrLayoutNotCurrent is returned when writing to a tab whose header is a
// legacy layout. Run the explicit migration first.
var ErrLayoutNotCurrent = errors.New("sheet layout is not current; run `taskflow sheet migrate`")

// Grid is positional access to the tabs of one spreadsheet. Row 0 is the
// header row. Implementations return rows exactly as stored: ragged, with
// trailing empty cells possibly trimmed.
type Grid interface {
	// EnsureTab creates the tab when it does not exist.
	EnsureTab(ctx context.Context, tab string) error
	ReadAll(ctx context.Context, tab string) ([][]string, error)
	// ReadColumn returns one cell per row, header included.
	ReadColumn(ctx context.Context, tab string, col int) ([]string, error)
	ReadRow(ctx context.Context, tab string, row int) ([]string, error)
	WriteRow(ctx context.Context, tab string, row int, values []string) error
	AppendRow(ctx context.Context, tab string, values []string) error
	// ReplaceAll overwrites the whole tab with rows.
	ReplaceAll(ctx context.Context, tab string, rows [][]string) error
}

// Tabs names the tabs used for each entity.
type Tabs struct {
	Tasks         string
	Notifications string
	TimeLog       string
}

// ensureHeader creates tab and writes header when the tab is empty.
func ensureHeader(ctx context.Context, g Grid, tab string, header []string) error {
	if err := g.EnsureTab(ctx, tab); err != nil {
		return err
	}
	first, err := g.ReadRow(ctx, tab, 0)
	if err != nil {
		return err
	}
	if isBlank(first) {
		return g.WriteRow(ctx, tab, 0, header)
	}
	return nil
}

// findRow scans an identifier column and returns the first data row whose
// cell parses to id, or -1.
func findRow(column []string, id int64, parse func(string) int64) int {
	for i := 1; i < len(column); i++ {
		if parse(column[i]) == id {
			return i
		}
	}
	return -1
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func pad(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
