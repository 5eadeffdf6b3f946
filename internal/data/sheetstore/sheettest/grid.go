// Package sheettest provides an in-memory sheetstore.Grid for tests.
package sheettest

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Grid is an in-memory spreadsheet. It records every call so tests can
// assert on what was read and written.
type Grid struct {
	mu   sync.Mutex
	tabs map[string][][]string

	// BeforeWrite, when set, runs before WriteRow mutates a tab. Tests use
	// it to simulate someone editing the sheet mid-update.
	BeforeWrite func(g *Grid, tab string, row int)

	Writes  int
	Appends int
}

func New() *Grid {
	return &Grid{tabs: make(map[string][][]string)}
}

// Seed replaces a tab's contents.
func (g *Grid) Seed(tab string, rows ...[]string) *Grid {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tabs[tab] = cloneRows(rows)
	return g
}

// Rows returns a copy of a tab.
func (g *Grid) Rows(tab string) [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneRows(g.tabs[tab])
}

// Mutate edits a tab in place under the lock, for simulating manual edits
// such as re-sorting or deleting rows.
func (g *Grid) Mutate(tab string, fn func(rows [][]string) [][]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tabs[tab] = fn(g.tabs[tab])
}

func (g *Grid) EnsureTab(_ context.Context, tab string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tabs[tab]; !ok {
		g.tabs[tab] = nil
	}
	return nil
}

func (g *Grid) ReadAll(_ context.Context, tab string) ([][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows, ok := g.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("tab %q not found", tab)
	}
	return cloneRows(rows), nil
}

func (g *Grid) ReadColumn(_ context.Context, tab string, col int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows, ok := g.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("tab %q not found", tab)
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		if col < len(r) {
			out[i] = r[col]
		}
	}
	return out, nil
}

func (g *Grid) ReadRow(_ context.Context, tab string, row int) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows, ok := g.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("tab %q not found", tab)
	}
	if row < 0 || row >= len(rows) {
		return nil, nil
	}
	return slices.Clone(rows[row]), nil
}

func (g *Grid) WriteRow(_ context.Context, tab string, row int, values []string) error {
	if g.BeforeWrite != nil {
		g.BeforeWrite(g, tab, row)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	rows, ok := g.tabs[tab]
	if !ok {
		return fmt.Errorf("tab %q not found", tab)
	}
	if row < 0 {
		return fmt.Errorf("row %d out of range", row)
	}
	for len(rows) <= row {
		rows = append(rows, nil)
	}
	rows[row] = slices.Clone(values)
	g.tabs[tab] = rows
	g.Writes++
	return nil
}

func (g *Grid) AppendRow(_ context.Context, tab string, values []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows, ok := g.tabs[tab]
	if !ok {
		return fmt.Errorf("tab %q not found", tab)
	}
	g.tabs[tab] = append(rows, slices.Clone(values))
	g.Appends++
	return nil
}

func (g *Grid) ReplaceAll(_ context.Context, tab string, rows [][]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tabs[tab] = cloneRows(rows)
	g.Writes++
	return nil
}

func cloneRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}
