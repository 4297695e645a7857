// Package store persists products and their append-only price snapshots.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/model"
)

var (
	// ErrInvalidSnapshot is returned for a snapshot without a product id or
	// timestamp. Nothing is written when it is returned.
	ErrInvalidSnapshot = eris.New("store: invalid snapshot")
	// ErrDuplicateSnapshot is returned when a product already has a snapshot
	// at the same timestamp.
	ErrDuplicateSnapshot = eris.New("store: duplicate snapshot")
	// ErrNotFound is returned by single-row lookups that match nothing.
	ErrNotFound = eris.New("store: not found")
)

// Store defines the persistence interface for the price history.
type Store interface {
	// Products
	UpsertProduct(ctx context.Context, p model.Product) error
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)

	// Snapshots
	Append(ctx context.Context, productID string, takenAt time.Time, editions []model.Edition) (*model.Snapshot, error)
	AppendBatch(ctx context.Context, snapshots []model.Snapshot) (int, error)
	GetHistory(ctx context.Context, productID string, from, to time.Time) ([]model.Snapshot, error)
	GetLatestTimestamp(ctx context.Context) (time.Time, bool, error)
	GetPreviousTimestamp(ctx context.Context, before time.Time) (time.Time, bool, error)
	LatestSnapshot(ctx context.Context, productID string) (*model.Snapshot, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// prepare validates snapshots and normalizes them for storage: UTC,
// millisecond precision, non-nil editions. IDs are assigned by the caller.
func prepare(snapshots []model.Snapshot) ([]model.Snapshot, error) {
	out := make([]model.Snapshot, len(snapshots))
	for i, s := range snapshots {
		if !s.Valid() {
			return nil, eris.Wrapf(ErrInvalidSnapshot, "snapshot %d (product %q)", i, s.ProductID)
		}
		s.TakenAt = s.TakenAt.UTC().Truncate(time.Millisecond)
		if s.Editions == nil {
			s.Editions = []model.Edition{}
		}
		out[i] = s
	}
	return out, nil
}
