package models

import (
	"errors"
	"fmt"
)

// ErrHeaderMismatch is returned by sinks whose stored header differs from Columns.
var ErrHeaderMismatch = errors.New("stored report header does not match the report columns")

// ErrExtraColumns is returned for stored rows with values past the report
// columns. Saving such a table would drop them.
var ErrExtraColumns = errors.New("stored report row has values beyond the report columns")

// Report columns in their fixed order.
const (
	ColumnTraining  = "Schulung"
	ColumnDate      = "Datum"
	ColumnFirstName = "Vorname"
	ColumnLastName  = "Nachname"
	ColumnID        = "ID"
	ColumnResponse  = "Antwort"
)

// NumColumns is the width of every report row.
const NumColumns = 6

// Columns is the report header.
var Columns = [NumColumns]string{
	ColumnTraining,
	ColumnDate,
	ColumnFirstName,
	ColumnLastName,
	ColumnID,
	ColumnResponse,
}

// Row is one report line. Rows are comparable; two rows are duplicates
// when every column value matches exactly.
type Row [NumColumns]string

// Table is the accumulated report. A nil *Table means no report exists yet.
type Table struct {
	Rows []Row
}

// Len returns the number of rows, treating a nil table as empty.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HeaderMatches reports whether cells equal the report header.
// Sinks use it to refuse tables written with a different layout.
func HeaderMatches(cells []string) bool {
	if len(cells) != NumColumns {
		return false
	}
	for i, c := range cells {
		if c != Columns[i] {
			return false
		}
	}
	return true
}

// RowFromCells builds a Row from stored cells. Missing trailing cells are
// left empty, which spreadsheet readers produce for blank columns.
func RowFromCells(cells []string) Row {
	var r Row
	copy(r[:], cells)
	return r
}

// Cells returns the header followed by every row, the layout spreadsheet
// sinks store.
func (t *Table) Cells() [][]string {
	out := make([][]string, 0, t.Len()+1)
	out = append(out, append([]string(nil), Columns[:]...))
	if t == nil {
		return out
	}
	for _, r := range t.Rows {
		out = append(out, append([]string(nil), r[:]...))
	}
	return out
}

// TableFromCells parses the layout written by Cells. No cells at all means
// no report exists and yields nil. Blank rows are skipped. A row with
// values past the last column fails with ErrExtraColumns.
func TableFromCells(cells [][]string) (*Table, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	if !HeaderMatches(cells[0]) {
		return nil, fmt.Errorf("%w: got %q", ErrHeaderMismatch, cells[0])
	}
	t := &Table{Rows: make([]Row, 0, len(cells)-1)}
	for i, c := range cells[1:] {
		if blank(c) {
			continue
		}
		if len(c) > NumColumns && !blank(c[NumColumns:]) {
			return nil, fmt.Errorf("%w: row %d has %d cells", ErrExtraColumns, i+2, len(c))
		}
		t.Rows = append(t.Rows, RowFromCells(c))
	}
	return t, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
