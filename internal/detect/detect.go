// Package detect finds strict price drops between two snapshots of the same
// product.
package detect

import (
	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/price"
)

// Detector compares two aligned snapshots.
type Detector struct {
	matcher    *match.Matcher
	normalizer *price.Normalizer
}

// New creates a Detector.
func New(matcher *match.Matcher, normalizer *price.Normalizer) *Detector {
	return &Detector{matcher: matcher, normalizer: normalizer}
}

// Detect emits one candidate per matched edition whose new price is strictly
// below its old price. Pairs with an unparseable price on either side are
// skipped. Candidates follow match order.
func (d *Detector) Detect(older, newer model.Snapshot) ([]model.DropCandidate, error) {
	pairs, err := d.matcher.Match(older, newer)
	if err != nil {
		return nil, err
	}

	var drops []model.DropCandidate
	for _, p := range pairs {
		oldPrice := d.normalizer.Normalize(p.A.PriceText)
		newPrice := d.normalizer.Normalize(p.B.PriceText)
		if !newPrice.Less(oldPrice) {
			continue
		}
		drops = append(drops, model.DropCandidate{
			EditionName:  p.Name,
			OldPriceText: p.A.PriceText,
			NewPriceText: p.B.PriceText,
			OldPrice:     oldPrice.Value,
			NewPrice:     newPrice.Value,
		})
	}
	return drops, nil
}
