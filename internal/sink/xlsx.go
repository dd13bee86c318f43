// Package sink stores the report table in a workbook or a SQL database.
package sink

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"respreport/internal/models"
	"respreport/internal/report"

	"github.com/xuri/excelize/v2"
)

// scratchSheet holds the new contents while the old sheet is dropped.
const scratchSheet = "~respreport"

// XLSXSink keeps the report on one sheet of a workbook. Other sheets in the
// workbook are left alone.
type XLSXSink struct {
	Path  string
	Sheet string
}

var _ report.Sink = (*XLSXSink)(nil)

// NewXLSXSink creates a sink for the given workbook and sheet.
func NewXLSXSink(path, sheet string) *XLSXSink {
	return &XLSXSink{Path: path, Sheet: sheet}
}

// Load reads the sheet. A missing workbook or sheet means no report exists.
func (s *XLSXSink) Load(ctx context.Context) (*models.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.Path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet %q: %w", s.Sheet, err)
	}
	if idx < 0 {
		return nil, nil
	}

	rows, err := f.GetRows(s.Sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", s.Sheet, err)
	}
	table, err := models.TableFromCells(rows)
	if err != nil {
		return nil, fmt.Errorf("sheet %q of %s: %w", s.Sheet, s.Path, err)
	}
	return table, nil
}

// Save replaces the sheet contents. The workbook is written to a temporary
// file next to the target and renamed over it, so the old file survives any
// failure.
func (s *XLSXSink) Save(ctx context.Context, table *models.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := s.openOrCreate()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := replaceSheet(f, s.Sheet); err != nil {
		return err
	}
	for i, cells := range table.Cells() {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		if err := f.SetSheetRow(s.Sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	return s.writeFile(f)
}

func (s *XLSXSink) openOrCreate() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.Path)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to open workbook %s: %w", s.Path, err)
	}

	f = excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), s.Sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet %q: %w", s.Sheet, err)
	}
	return f, nil
}

// replaceSheet leaves an empty sheet called name in f, dropping any
// previous contents.
func replaceSheet(f *excelize.File, name string) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("failed to look up sheet %q: %w", name, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", name, err)
		}
		return nil
	}
	scratch, err := freeSheetName(f, scratchSheet)
	if err != nil {
		return err
	}
	if _, err := f.NewSheet(scratch); err != nil {
		return fmt.Errorf("failed to create scratch sheet: %w", err)
	}
	if err := f.DeleteSheet(name); err != nil {
		return fmt.Errorf("failed to clear sheet %q: %w", name, err)
	}
	if err := f.SetSheetName(scratch, name); err != nil {
		return fmt.Errorf("failed to rename scratch sheet: %w", err)
	}
	idx, err = f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	return nil
}

// freeSheetName returns base, or base with a numeric suffix, such that no
// sheet of that name exists in f.
func freeSheetName(f *excelize.File, base string) (string, error) {
	name := base
	for n := 1; ; n++ {
		idx, err := f.GetSheetIndex(name)
		if err != nil {
			return "", fmt.Errorf("failed to look up sheet %q: %w", name, err)
		}
		if idx < 0 {
			return name, nil
		}
		name = fmt.Sprintf("%s%d", base, n)
	}
}

func (s *XLSXSink) writeFile(f *excelize.File) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".respreport-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temporary workbook: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := f.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(s.Path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("failed to set workbook permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.Path, err)
	}
	return nil
}
