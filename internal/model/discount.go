package model

import "time"

// DropCandidate is a strict price decrease of one edition between two
// snapshots of the same product.
type DropCandidate struct {
	EditionName  string  `json:"edition" yaml:"edition"`
	OldPriceText string  `json:"old_price_text" yaml:"old_price_text"`
	NewPriceText string  `json:"new_price_text" yaml:"new_price_text"`
	OldPrice     float64 `json:"old_price" yaml:"old_price"`
	NewPrice     float64 `json:"new_price" yaml:"new_price"`
}

// DiscountEvent describes an active discount on one edition. Events are
// derived from snapshot history on every analysis and never persisted.
type DiscountEvent struct {
	ProductID          string    `json:"product_id" yaml:"product_id"`
	ProductName        string    `json:"product_name" yaml:"product_name"`
	EditionName        string    `json:"edition" yaml:"edition"`
	ReferencePrice     float64   `json:"reference_price" yaml:"reference_price"`
	ReferencePriceText string    `json:"reference_price_text" yaml:"reference_price_text"`
	CurrentPrice       float64   `json:"current_price" yaml:"current_price"`
	CurrentPriceText   string    `json:"current_price_text" yaml:"current_price_text"`
	AsOf               time.Time `json:"as_of" yaml:"as_of"`
	Since              time.Time `json:"since" yaml:"since"`
	DurationDays       int       `json:"duration_days" yaml:"duration_days"`
}

// DiscountPercent returns the relative drop from the reference price in
// percent, or 0 when the reference is not positive.
func (e DiscountEvent) DiscountPercent() float64 {
	if e.ReferencePrice <= 0 {
		return 0
	}
	return (e.ReferencePrice - e.CurrentPrice) / e.ReferencePrice * 100
}
