// Package report accumulates attendance records into the cumulative report table.
package report

import (
	"context"

	"respreport/internal/models"
)

// Sink persists the report table.
type Sink interface {
	// Load returns the stored table, or nil when no report exists yet.
	Load(ctx context.Context) (*models.Table, error)
	// Save replaces the stored table. A failed save leaves the previous one intact.
	Save(ctx context.Context, table *models.Table) error
}

// RowFromRecord converts a record into report column order.
func RowFromRecord(rec models.AttendanceRecord) models.Row {
	return models.Row{
		rec.TrainingName,
		rec.TrainingDate,
		rec.FirstName,
		rec.LastName,
		rec.ParticipantID,
		rec.Response.Label(),
	}
}

// Merge returns the next report table. With no existing table the incoming
// records become the table as they are. Otherwise existing rows come first,
// followed by incoming rows, and exact duplicates are dropped keeping the
// first occurrence. Neither input is modified.
func Merge(existing *models.Table, incoming []models.AttendanceRecord) *models.Table {
	rows := make([]models.Row, 0, existing.Len()+len(incoming))
	if existing != nil {
		rows = append(rows, existing.Rows...)
	}
	for _, rec := range incoming {
		rows = append(rows, RowFromRecord(rec))
	}

	if existing == nil {
		return &models.Table{Rows: rows}
	}
	return &models.Table{Rows: Dedup(rows)}
}

// Dedup drops repeated rows, keeping first occurrences in their original order.
func Dedup(rows []models.Row) []models.Row {
	seen := make(map[models.Row]struct{}, len(rows))
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}
