package sheetstore

import (
	"context"
	"fmt"

	"github.com/colonyops/taskflow/internal/core/task"
)

// LayoutReport describes the state of a task tab.
type LayoutReport struct {
	Tab    string `json:"tab"`
	Layout string `json:"layout"`
	Rows   int    `json:"rows"`
	// Current is false when the tab needs `taskflow sheet migrate`.
	Current bool `json:"current"`
}

// CheckLayout detects the layout of the task tab without changing it.
func CheckLayout(ctx context.Context, g Grid, tab string) (LayoutReport, error) {
	rows, err := g.ReadAll(ctx, tab)
	if err != nil {
		return LayoutReport{}, fmt.Errorf("read %s: %w", tab, err)
	}
	if len(rows) == 0 {
		return LayoutReport{}, fmt.Errorf("%s has no header row: %w", tab, task.ErrUnknownLayout)
	}

	layout, err := task.DetectLayout(rows[0])
	if err != nil {
		return LayoutReport{}, fmt.Errorf("%s header: %w", tab, err)
	}

	return LayoutReport{
		Tab:     tab,
		Layout:  layout.Name,
		Rows:    countData(rows[1:]),
		Current: layout.IsCurrent(),
	}, nil
}

// Migrate rewrites a legacy task tab in the current layout, chaining every
// step between its layout and the current one. It returns the report taken
// before migrating and whether the tab was rewritten. A current tab is left
// alone; with dryRun set the sheet is only read.
func Migrate(ctx context.Context, g Grid, tab string, dryRun bool) (LayoutReport, bool, error) {
	report, err := CheckLayout(ctx, g, tab)
	if err != nil {
		return LayoutReport{}, false, err
	}
	if report.Current || dryRun {
		return report, false, nil
	}

	rows, err := g.ReadAll(ctx, tab)
	if err != nil {
		return LayoutReport{}, false, fmt.Errorf("read %s: %w", tab, err)
	}
	layout, err := task.DetectLayout(rows[0])
	if err != nil {
		return LayoutReport{}, false, fmt.Errorf("%s header: %w", tab, err)
	}

	out := make([][]string, 0, len(rows))
	out = append(out, task.Columns)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		out = append(out, layout.Migrate(row))
	}

	if err := g.ReplaceAll(ctx, tab, out); err != nil {
		return LayoutReport{}, false, fmt.Errorf("rewrite %s: %w", tab, err)
	}

	return report, true, nil
}

func countData(rows [][]string) int {
	n := 0
	for _, r := range rows {
		if !isBlank(r) {
			n++
		}
	}
	return n
}
