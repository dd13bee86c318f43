// Package source reads raw response items from mailbox exports.
package source

import (
	"context"

	"respreport/internal/models"
)

// Source yields the items of one run. Implementations only read; they never
// filter items by content.
type Source interface {
	Items(ctx context.Context) ([]models.RawResponseItem, error)
}
