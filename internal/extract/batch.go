package extract

import (
	"errors"

	"respreport/internal/models"
)

// Failure is an item that could not be extracted.
type Failure struct {
	Index int // position in the input slice
	Item  models.RawResponseItem
	Err   error
}

// Batch is the outcome of extracting a slice of items.
type Batch struct {
	Records  []models.AttendanceRecord // in input order
	Skipped  int                       // items that were not responses
	Failures []Failure
}

// ExtractAll extracts every item. A failing item never stops the batch.
func (x *Extractor) ExtractAll(items []models.RawResponseItem) Batch {
	var b Batch
	for i, item := range items {
		rec, err := x.Extract(item)
		switch {
		case err == nil:
			b.Records = append(b.Records, rec)
		case errors.Is(err, ErrNotAResponse):
			b.Skipped++
		default:
			b.Failures = append(b.Failures, Failure{Index: i, Item: item, Err: err})
		}
	}
	return b
}
