// Package gsheets implements sheetstore.Grid on the Google Sheets API.
package gsheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/colonyops/taskflow/internal/data/sheetstore"
)

const (
	maxRetries  = 5
	initialWait = 200 * time.Millisecond
)

// Config locates the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID string
	// CredentialsFile is a service account JSON key. When empty, the JSON is
	// read from CredentialsJSON, then Application Default Credentials apply.
	CredentialsFile string
	CredentialsJSON string
}

// Integration is a sheetstore.Grid over one spreadsheet.
type Integration struct {
	srv           *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

var _ sheetstore.Grid = (*Integration)(nil)

// Open builds the Sheets client and verifies the spreadsheet is reachable,
// retrying with exponential backoff. Extra client options are appended after
// the credential options.
func Open(ctx context.Context, cfg Config, log zerolog.Logger, extra ...option.ClientOption) (*Integration, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}

	opts, err := credentialOptions(ctx, cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, extra...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	g := &Integration{
		srv:           srv,
		spreadsheetID: cfg.SpreadsheetID,
		log:           log.With().Str("component", "gsheets").Logger(),
	}

	wait := initialWait
	for i := 0; ; i++ {
		_, err = srv.Spreadsheets.Get(cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do()
		if err == nil {
			return g, nil
		}
		if i == maxRetries-1 || !retryable(err) {
			return nil, fmt.Errorf("open spreadsheet after %d attempts: %w", i+1, err)
		}
		g.log.Warn().Err(err).Dur("wait", wait).Msg("spreadsheet not reachable, retrying")
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
		wait *= 2
	}
}

func credentialOptions(ctx context.Context, cfg Config) ([]option.ClientOption, error) {
	var data []byte
	switch {
	case cfg.CredentialsFile != "":
		b, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read credentials file: %w", err)
		}
		data = b
	case cfg.CredentialsJSON != "":
		data = []byte(cfg.CredentialsJSON)
	default:
		return nil, nil
	}

	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return []option.ClientOption{option.WithCredentials(creds)}, nil
}

func (g *Integration) EnsureTab(ctx context.Context, tab string) error {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list tabs: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == tab {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: tab},
			},
		}},
	}
	if _, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add tab %q: %w", tab, err)
	}
	g.log.Info().Str("tab", tab).Msg("created tab")
	return nil
}

func (g *Integration) ReadAll(ctx context.Context, tab string) ([][]string, error) {
	return g.get(ctx, quoteTab(tab))
}

func (g *Integration) ReadColumn(ctx context.Context, tab string, col int) ([]string, error) {
	letter := ColumnName(col)
	rows, err := g.get(ctx, fmt.Sprintf("%s!%s:%s", quoteTab(tab), letter, letter))
	if err != nil {
		return nil, err
	}
	out := make([]string, len(rows))
	for i, r := range rows {
		if len(r) > 0 {
			out[i] = r[0]
		}
	}
	return out, nil
}

func (g *Integration) ReadRow(ctx context.Context, tab string, row int) ([]string, error) {
	rows, err := g.get(ctx, rowRange(tab, row))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (g *Integration) WriteRow(ctx context.Context, tab string, row int, values []string) error {
	vr := &sheets.ValueRange{Values: [][]any{toCells(values)}}
	err := g.retry(ctx, func() error {
		_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rowRange(tab, row), vr).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("write %s row %d: %w", tab, row+1, err)
	}
	return nil
}

// AppendRow is not retried: a failed response may still have appended the
// row, and a second attempt would duplicate it.
func (g *Integration) AppendRow(ctx context.Context, tab string, values []string) error {
	vr := &sheets.ValueRange{Values: [][]any{toCells(values)}}
	_, err := g.srv.Spreadsheets.Values.Append(g.spreadsheetID, quoteTab(tab)+"!A1", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", tab, err)
	}
	return nil
}

// ReplaceAll overwrites the tab in place, then clears rows left over from a
// longer previous version. The old contents stay readable until the new rows
// are written, so a failure never leaves the tab empty.
func (g *Integration) ReplaceAll(ctx context.Context, tab string, rows [][]string) error {
	old, err := g.get(ctx, quoteTab(tab))
	if err != nil {
		return err
	}

	// Pad to the old width so stale cells to the right are blanked.
	width := 0
	for _, r := range old {
		width = max(width, len(r))
	}
	for _, r := range rows {
		width = max(width, len(r))
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		cells := toCells(r)
		for len(cells) < width {
			cells = append(cells, "")
		}
		values[i] = cells
	}

	err = g.retry(ctx, func() error {
		_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, quoteTab(tab)+"!A1", &sheets.ValueRange{Values: values}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("rewrite %s: %w", tab, err)
	}

	if len(old) <= len(rows) {
		return nil
	}
	stale := fmt.Sprintf("%s!%d:%d", quoteTab(tab), len(rows)+1, len(old))
	err = g.retry(ctx, func() error {
		_, err := g.srv.Spreadsheets.Values.Clear(g.spreadsheetID, stale, &sheets.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("clear stale rows of %s: %w", tab, err)
	}
	return nil
}

func (g *Integration) get(ctx context.Context, rng string) ([][]string, error) {
	var vr *sheets.ValueRange
	err := g.retry(ctx, func() error {
		var err error
		vr, err = g.srv.Spreadsheets.Values.Get(g.spreadsheetID, rng).
			ValueRenderOption("FORMATTED_VALUE").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	out := make([][]string, len(vr.Values))
	for i, r := range vr.Values {
		row := make([]string, len(r))
		for j, c := range r {
			row[j] = fmt.Sprint(c)
		}
		out[i] = row
	}
	return out, nil
}

// retry re-runs fn on rate limiting and server errors.
func (g *Integration) retry(ctx context.Context, fn func() error) error {
	wait := initialWait
	for i := 0; ; i++ {
		err := fn()
		if err == nil || i == maxRetries-1 || !retryable(err) {
			return err
		}
		g.log.Debug().Err(err).Dur("wait", wait).Msg("sheets call failed, retrying")
		if err := sleep(ctx, wait); err != nil {
			return err
		}
		wait *= 2
	}
}

func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ColumnName converts a zero-based column index to A1 letters: 0 -> A,
// 25 -> Z, 26 -> AA.
func ColumnName(col int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return name
}

func quoteTab(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}

// rowRange addresses a whole sheet row; row is zero-based.
func rowRange(tab string, row int) string {
	return fmt.Sprintf("%s!%d:%d", quoteTab(tab), row+1, row+1)
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}
