package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"respreport/internal/models"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var sampleTable = &models.Table{Rows: []models.Row{
	{"Security Basics", "05.03.2024", "Max", "Mustermann", "xy000ab12", "Zusage"},
	{"Security Basics", "05.03.2024", "Erika", "Musterfrau", "xy000cd34", "Absage"},
	{"Datenschutz", "09.04.2024", "Max", "Mustermann", "xy000ab12", "Vorbehalt"},
}}

func TestXLSXSink_MissingFileIsAbsent(t *testing.T) {
	s := NewXLSXSink(filepath.Join(t.TempDir(), "response_report.xlsx"), "response_report")

	table, err := s.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, table)
}

func TestXLSXSink_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "response_report.xlsx")
	s := NewXLSXSink(path, "response_report")

	require.NoError(t, s.Save(ctx, sampleTable))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleTable.Rows, got.Rows)

	// A shorter table replaces every previous row.
	shorter := &models.Table{Rows: sampleTable.Rows[:1]}
	require.NoError(t, s.Save(ctx, shorter))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, shorter.Rows, got.Rows)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary workbook left behind")
}

func TestXLSXSink_EmptyTableKeepsHeader(t *testing.T) {
	ctx := context.Background()
	s := NewXLSXSink(filepath.Join(t.TempDir(), "r.xlsx"), "response_report")

	require.NoError(t, s.Save(ctx, &models.Table{}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Zero(t, got.Len())
}

func TestXLSXSink_PreservesOtherSheets(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "r.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "notes"))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	s := NewXLSXSink(path, "response_report")
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got, "missing sheet is absent")

	require.NoError(t, s.Save(ctx, sampleTable))
	require.NoError(t, s.Save(ctx, sampleTable))

	f, err = excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.ElementsMatch(t, []string{"Sheet1", "response_report"}, f.GetSheetList())
	notes, err := f.GetCellValue("Sheet1", "A1")
	require.NoError(t, err)
	require.Equal(t, "notes", notes)
}

func TestXLSXSink_HeaderMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Training", "Date"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := NewXLSXSink(path, "Sheet1").Load(context.Background())
	require.ErrorIs(t, err, models.ErrHeaderMismatch)
}

func TestXLSXSink_FailedSaveLeavesFileIntact(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("unreadable workbook", func(t *testing.T) {
		path := filepath.Join(dir, "broken.xlsx")
		require.NoError(t, os.WriteFile(path, []byte("not a workbook"), 0o644))

		err := NewXLSXSink(path, "response_report").Save(ctx, sampleTable)
		require.Error(t, err)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "not a workbook", string(data))
	})

	t.Run("invalid sheet name", func(t *testing.T) {
		path := filepath.Join(dir, "good.xlsx")
		require.NoError(t, NewXLSXSink(path, "response_report").Save(ctx, sampleTable))
		before, err := os.ReadFile(path)
		require.NoError(t, err)

		err = NewXLSXSink(path, "bad:name").Save(ctx, &models.Table{})
		require.Error(t, err)

		after, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, before, after)
	})
}

func testSQLite(t *testing.T) *SQLSink {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "report.db"), "response_report")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLSink_AbsentUntilSaved(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, s.Save(ctx, &models.Table{}))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Zero(t, got.Len())
}

func TestSQLSink_RoundTrip(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleTable))
	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleTable.Rows, got.Rows)

	shorter := &models.Table{Rows: sampleTable.Rows[2:]}
	require.NoError(t, s.Save(ctx, shorter))
	got, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, shorter.Rows, got.Rows)
}

func TestSQLSink_FailedSaveKeepsRows(t *testing.T) {
	s := testSQLite(t)
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleTable))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.Error(t, s.Save(cancelled, &models.Table{}))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleTable.Rows, got.Rows)
}

func TestSQLSink_InvalidTable(t *testing.T) {
	for _, name := range []string{"", "1report", "report; DROP TABLE x", "a-b"} {
		_, err := OpenSQLite(filepath.Join(t.TempDir(), "r.db"), name)
		require.ErrorIs(t, err, ErrInvalidTable, name)
	}
}

func TestRebind(t *testing.T) {
	sqlite := &SQLSink{}
	pg := &SQLSink{numbered: true}
	q := "INSERT INTO t (a, b) VALUES (?, ?)"

	require.Equal(t, q, sqlite.rebind(q))
	require.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", pg.rebind(q))
}

func TestXLSXSink_KeepsSheetNamedLikeScratch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "r.xlsx")
	s := NewXLSXSink(path, "response_report")
	require.NoError(t, s.Save(ctx, sampleTable))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	_, err = f.NewSheet(scratchSheet)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue(scratchSheet, "Z9", "user data"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	require.NoError(t, s.Save(ctx, sampleTable))

	f, err = excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	require.ElementsMatch(t, []string{"response_report", scratchSheet}, f.GetSheetList())
	userData, err := f.GetCellValue(scratchSheet, "Z9")
	require.NoError(t, err)
	require.Equal(t, "user data", userData)
	stray, err := f.GetCellValue("response_report", "Z9")
	require.NoError(t, err)
	require.Empty(t, stray)

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, sampleTable.Rows, got.Rows)
}

func TestXLSXSink_SaveKeepsFileMode(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("new file", func(t *testing.T) {
		path := filepath.Join(dir, "new.xlsx")
		require.NoError(t, NewXLSXSink(path, "response_report").Save(ctx, sampleTable))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	})

	t.Run("existing file", func(t *testing.T) {
		path := filepath.Join(dir, "shared.xlsx")
		s := NewXLSXSink(path, "response_report")
		require.NoError(t, s.Save(ctx, sampleTable))
		require.NoError(t, os.Chmod(path, 0o664))

		require.NoError(t, s.Save(ctx, sampleTable))

		info, err := os.Stat(path)
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o664), info.Mode().Perm())
	})
}

func TestXLSXSink_ExtraColumnsRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "r.xlsx")
	s := NewXLSXSink(path, "response_report")
	require.NoError(t, s.Save(ctx, sampleTable))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("response_report", "G2", "note"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	_, err = s.Load(ctx)
	require.ErrorIs(t, err, models.ErrExtraColumns)
}
