package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"respreport/internal/models"
	"respreport/internal/report"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsSink keeps the report on one tab of a spreadsheet, starting at A1.
type SheetsSink struct {
	service       *sheets.Service
	logger        *slog.Logger
	spreadsheetID string
	sheet         string
}

var _ report.Sink = (*SheetsSink)(nil)

// NewSheetsSink creates an authenticated Sheets client.
// The token must have been created with the 'auth' command.
func NewSheetsSink(ctx context.Context, logger *slog.Logger, config *oauth2.Config, tokenPath, spreadsheetID, sheet string) (*SheetsSink, error) {
	token, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("could not load token %s: %w", tokenPath, err)
	}
	if token == nil {
		return nil, fmt.Errorf("no token at %s. Please run the 'auth' command first", tokenPath)
	}

	client := config.Client(ctx, token)
	service, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetsSink{
		service:       service,
		logger:        logger,
		spreadsheetID: spreadsheetID,
		sheet:         sheet,
	}, nil
}

// Load reads the report columns. An empty range means no report exists.
func (s *SheetsSink) Load(ctx context.Context) (*models.Table, error) {
	rng := sheetRange(s.sheet, 1)
	s.logger.Debug("Reading spreadsheet range", "spreadsheetID", s.spreadsheetID, "range", rng)

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read range %s: %w", rng, err)
	}

	table, err := models.TableFromCells(fromValues(resp.Values))
	if err != nil {
		return nil, fmt.Errorf("range %s: %w", rng, err)
	}
	return table, nil
}

// Save overwrites the report with one values.update call. The range
// covers the previous report too, and rows past the new table are blanked
// in the same call, so a failed request leaves the old report as it was.
func (s *SheetsSink) Save(ctx context.Context, table *models.Table) error {
	current, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, sheetRange(s.sheet, 1)).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read current report size: %w", err)
	}

	cells := padRows(table.Cells(), len(current.Values))
	rng := fmt.Sprintf("%s!A1:%s%d", quoteSheet(s.sheet), lastColumn(), len(cells))
	vr := &sheets.ValueRange{Range: rng, Values: toValues(cells)}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update spreadsheet: %w", err)
	}

	s.logger.Info("Updated spreadsheet", "spreadsheetID", s.spreadsheetID, "rows", table.Len(), "cleared", len(cells)-table.Len()-1)
	return nil
}

// padRows appends rows of empty cells until cells has at least n rows.
func padRows(cells [][]string, n int) [][]string {
	for len(cells) < n {
		cells = append(cells, make([]string, models.NumColumns))
	}
	return cells
}

func lastColumn() string {
	return string(rune('A' + models.NumColumns - 1))
}

// sheetRange returns the report columns from row fromRow to the end of the sheet.
func sheetRange(sheet string, fromRow int) string {
	return fmt.Sprintf("%s!A%d:%s", quoteSheet(sheet), fromRow, lastColumn())
}

func quoteSheet(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func toValues(cells [][]string) [][]interface{} {
	out := make([][]interface{}, len(cells))
	for i, row := range cells {
		vals := make([]interface{}, len(row))
		for j, c := range row {
			vals[j] = c
		}
		out[i] = vals
	}
	return out
}

func fromValues(values [][]interface{}) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out
}
