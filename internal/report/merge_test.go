package report

import (
	"sort"
	"testing"

	"respreport/internal/models"

	"github.com/stretchr/testify/require"
)

func record(training, date, first, id string, kind models.ResponseKind) models.AttendanceRecord {
	return models.AttendanceRecord{
		TrainingName:  training,
		TrainingDate:  date,
		FirstName:     first,
		LastName:      "Mustermann",
		ParticipantID: id,
		Response:      kind,
	}
}

var (
	recA = record("Security Basics", "05.03.2024", "Max", "xy000ab12", models.ResponsePositive)
	recB = record("Security Basics", "05.03.2024", "Erika", "xy000cd34", models.ResponseNegative)
	recC = record("Datenschutz", "05.03.2024", "Max", "xy000ab12", models.ResponseTentative)
	recD = record("Datenschutz", "12.03.2024", "Erika", "xy000cd34", models.ResponsePositive)
)

func TestRowFromRecord(t *testing.T) {
	row := RowFromRecord(recA)
	require.Equal(t, models.Row{"Security Basics", "05.03.2024", "Max", "Mustermann", "xy000ab12", "Zusage"}, row)
	require.Equal(t, "Absage", RowFromRecord(recB)[5])
	require.Equal(t, "Vorbehalt", RowFromRecord(recC)[5])
}

func TestMerge_AbsentKeepsAllRecordsInOrder(t *testing.T) {
	incoming := []models.AttendanceRecord{recB, recA, recA, recC}

	table := Merge(nil, incoming)

	require.Equal(t, len(incoming), table.Len())
	for i, rec := range incoming {
		require.Equal(t, RowFromRecord(rec), table.Rows[i])
	}
}

func TestMerge_ExistingFirstAndStableDedup(t *testing.T) {
	existing := &models.Table{Rows: []models.Row{RowFromRecord(recA), RowFromRecord(recB)}}

	table := Merge(existing, []models.AttendanceRecord{recC, recA, recD, recC})

	require.Equal(t, []models.Row{
		RowFromRecord(recA),
		RowFromRecord(recB),
		RowFromRecord(recC),
		RowFromRecord(recD),
	}, table.Rows)
	require.Len(t, existing.Rows, 2, "existing table must not be modified")
}

func TestMerge_IdempotentRerun(t *testing.T) {
	existing := Merge(nil, []models.AttendanceRecord{recA, recB, recC})

	again := Merge(existing, []models.AttendanceRecord{recC, recA})

	require.Equal(t, existing.Rows, again.Rows)
}

func TestMerge_DifferingColumnIsNotDuplicate(t *testing.T) {
	existing := Merge(nil, []models.AttendanceRecord{recA})
	changed := recA
	changed.Response = models.ResponseNegative

	table := Merge(existing, []models.AttendanceRecord{changed})

	require.Equal(t, 2, table.Len())
}

func TestMerge_ChunkingGivesSameRowSet(t *testing.T) {
	a := Merge(nil, []models.AttendanceRecord{recA})
	b := []models.AttendanceRecord{recB, recA}
	c := []models.AttendanceRecord{recC, recB, recD}

	stepwise := Merge(Merge(a, b), c)
	combined := Merge(a, append(append([]models.AttendanceRecord{}, b...), c...))

	require.ElementsMatch(t, sortedRows(stepwise), sortedRows(combined))
}

func TestMerge_EmptyIncoming(t *testing.T) {
	require.Equal(t, 0, Merge(nil, nil).Len())

	existing := &models.Table{Rows: []models.Row{RowFromRecord(recA), RowFromRecord(recA)}}
	require.Equal(t, 1, Merge(existing, nil).Len())
}

func sortedRows(t *models.Table) []models.Row {
	rows := append([]models.Row(nil), t.Rows...)
	sort.Slice(rows, func(i, j int) bool {
		for k := range rows[i] {
			if rows[i][k] != rows[j][k] {
				return rows[i][k] < rows[j][k]
			}
		}
		return false
	})
	return rows
}
