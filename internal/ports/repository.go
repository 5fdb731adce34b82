package ports

import (
	"context"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// RawStore persists the deduplicated observations of one collector run
type RawStore interface {
	// SaveRaw writes the observations and returns where they were stored
	SaveRaw(ctx context.Context, benchmark string, platform domain.Platform, date string, observations []domain.PriceObservation) (string, error)
}

// HistoryStore persists benchmark histories
type HistoryStore interface {
	// Load returns the history of a benchmark or domain.ErrNoHistory
	Load(ctx context.Context, benchmark string) (*domain.History, error)

	// Save replaces the stored history as a whole
	Save(ctx context.Context, history *domain.History) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error
}

// ExportWriter publishes export bundles for the presentation layer
type ExportWriter interface {
	// WriteExport stores the bundle under name and returns its location
	WriteExport(ctx context.Context, name string, bundle *domain.ExportBundle) (string, error)
}
