package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/colonyops/taskflow/internal/core/task"
)

//go:embed report.html.tmpl
var pageTemplate string

var page = template.Must(template.New("report").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format(task.DateFormat) },
	"pct":  func(f float64) string { return fmt.Sprintf("%.1f%%", f) },
	"hrs":  func(f float64) string { return fmt.Sprintf("%.1f", f) },
}).Parse(pageTemplate))

// Render writes r as a self-contained HTML document.
func Render(w io.Writer, r Report) error {
	if err := page.Execute(w, r); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
