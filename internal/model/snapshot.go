package model

import "time"

// Edition is one purchasable variant of a product as captured by a scrape.
// Name is the matching key within a snapshot (exact, case-sensitive).
type Edition struct {
	Name      string `json:"name" yaml:"name"`
	PriceText string `json:"price" yaml:"price"`
}

// Snapshot is a point-in-time capture of every edition price of one product.
// Snapshots are immutable once written.
type Snapshot struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	ProductID string    `json:"product_id" yaml:"product_id"`
	TakenAt   time.Time `json:"taken_at" yaml:"taken_at"`
	Editions  []Edition `json:"editions" yaml:"editions"`
}

// Valid reports whether the snapshot carries the identity fields required
// for ingestion.
func (s Snapshot) Valid() bool {
	return s.ProductID != "" && !s.TakenAt.IsZero()
}
