package task

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrUnknownLayout is returned when a header row matches no known layout.
var ErrUnknownLayout = errors.New("unknown sheet layout")

// Layout describes one historical column order of the task sheet together
// with the step that rewrites a row into the next layout.
type Layout struct {
	Name    string
	Columns []string
	// upgrade rewrites a row of this layout into the next layout.
	// Nil for the current layout.
	upgrade func(row []string) []string
}

// Layouts are ordered oldest first. The last entry is the current schema.
var Layouts = []Layout{
	{
		Name:    "v10",
		Columns: Columns[:ColComments],
		upgrade: func(row []string) []string {
			return append(fit(row, 10), "")
		},
	},
	{
		Name:    "v11",
		Columns: append(slices.Clone(Columns[:ColComments]), "External Link"),
		upgrade: func(row []string) []string {
			r := fit(row, 11)
			out := make([]string, 0, 14)
			out = append(out, r[:10]...)
			out = append(out, "")    // Comments
			out = append(out, r[10]) // External Link
			out = append(out, "", "")
			return out
		},
	},
	{
		Name:    "v14",
		Columns: Columns[:ColCreatedAt],
		upgrade: func(row []string) []string {
			return append(fit(row, 14), "")
		},
	},
	{
		Name:    "v15",
		Columns: Columns[:ColRevision],
		upgrade: func(row []string) []string {
			return append(fit(row, 15), "0")
		},
	},
	{
		Name:    "v16",
		Columns: Columns,
	},
}

// CurrentLayout is the layout written by this version.
func CurrentLayout() Layout {
	return Layouts[len(Layouts)-1]
}

// DetectLayout matches a header row against the known layouts. Trailing
// empty header cells are ignored and comparison is case-insensitive.
func DetectLayout(header []string) (Layout, error) {
	h := trimTrailingEmpty(header)
	for _, l := range Layouts {
		if headerEqual(h, l.Columns) {
			return l, nil
		}
	}
	return Layout{}, fmt.Errorf("%w: %d columns starting %q", ErrUnknownLayout, len(h), strings.Join(firstN(h, 3), ", "))
}

// IsCurrent reports whether the layout is the current schema.
func (l Layout) IsCurrent() bool {
	return l.upgrade == nil
}

// Migrate rewrites a row of layout l into the current schema by applying
// each intermediate step in order.
func (l Layout) Migrate(row []string) []string {
	idx := l.index()
	out := slices.Clone(row)
	for i := idx; i < len(Layouts)-1; i++ {
		out = Layouts[i].upgrade(out)
	}
	return Normalize(out)
}

func (l Layout) index() int {
	for i, candidate := range Layouts {
		if candidate.Name == l.Name {
			return i
		}
	}
	return len(Layouts) - 1
}

func fit(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func headerEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(strings.TrimSpace(a[i]), b[i]) {
			return false
		}
	}
	return true
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}
