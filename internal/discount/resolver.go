// Package discount derives active discounts from a product's snapshot
// history. Results are a pure function of the history and the evaluation
// time; nothing is cached between calls.
package discount

import (
	"slices"
	"time"

	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/price"
)

const day = 24 * time.Hour

// Reference is the nearest earlier price that was higher than the current
// one. Since is the timestamp of the snapshot that carried it.
type Reference struct {
	Price     float64
	PriceText string
	Since     time.Time
}

// Resolver finds reference prices inside a trailing lookback window.
type Resolver struct {
	lookback   time.Duration
	matcher    *match.Matcher
	normalizer *price.Normalizer
}

// NewResolver creates a Resolver searching lookbackDays back from the
// evaluation time.
func NewResolver(lookbackDays int, matcher *match.Matcher, normalizer *price.Normalizer) *Resolver {
	return &Resolver{
		lookback:   time.Duration(lookbackDays) * day,
		matcher:    matcher,
		normalizer: normalizer,
	}
}

// Lookback returns the window length.
func (r *Resolver) Lookback() time.Duration { return r.lookback }

// DurationDays is the number of whole days between since and now.
func DurationDays(since, now time.Time) int {
	d := now.Sub(since)
	if d < 0 {
		return 0
	}
	return int(d / day)
}

type indexed struct {
	snap     model.Snapshot
	editions map[string]model.Edition
}

// Resolve returns, per edition of current with a parseable price, the most
// recent strictly higher price found in history within [now-lookback, now).
// Editions without such a price are omitted.
func (r *Resolver) Resolve(history []model.Snapshot, current model.Snapshot, now time.Time) (map[string]Reference, error) {
	window, err := r.window(history, current.ProductID, now)
	if err != nil {
		return nil, err
	}
	currentIdx, err := r.matcher.Index(current)
	if err != nil {
		return nil, err
	}

	refs := make(map[string]Reference)
	for name, e := range currentIdx {
		cur := r.normalizer.Normalize(e.PriceText)
		if !cur.Known {
			continue
		}
		if ref, ok := r.nearestHigher(window, name, cur); ok {
			refs[name] = ref
		}
	}
	return refs, nil
}

// Events resolves references and converts them into discount events ordered
// by the current snapshot's edition order.
func (r *Resolver) Events(product model.Product, history []model.Snapshot, current model.Snapshot, now time.Time) ([]model.DiscountEvent, error) {
	refs, err := r.Resolve(history, current, now)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}

	currentIdx, err := r.matcher.Index(current)
	if err != nil {
		return nil, err
	}

	events := make([]model.DiscountEvent, 0, len(refs))
	for _, e := range current.Editions {
		ref, ok := refs[e.Name]
		if !ok {
			continue
		}
		// Emit each edition once even when the name repeats.
		delete(refs, e.Name)

		cur := currentIdx[e.Name]
		events = append(events, model.DiscountEvent{
			ProductID:          product.ID,
			ProductName:        product.DisplayName(),
			EditionName:        e.Name,
			ReferencePrice:     ref.Price,
			ReferencePriceText: ref.PriceText,
			CurrentPrice:       r.normalizer.Normalize(cur.PriceText).Value,
			CurrentPriceText:   cur.PriceText,
			AsOf:               now,
			Since:              ref.Since,
			DurationDays:       DurationDays(ref.Since, now),
		})
	}
	return events, nil
}

// window keeps the product's snapshots inside [now-lookback, now), ascending.
func (r *Resolver) window(history []model.Snapshot, productID string, now time.Time) ([]indexed, error) {
	from := now.Add(-r.lookback)

	var out []indexed
	for _, s := range history {
		if s.ProductID != productID {
			continue
		}
		if s.TakenAt.Before(from) || !s.TakenAt.Before(now) {
			continue
		}
		idx, err := r.matcher.Index(s)
		if err != nil {
			return nil, err
		}
		out = append(out, indexed{snap: s, editions: idx})
	}

	slices.SortStableFunc(out, func(a, b indexed) int {
		return a.snap.TakenAt.Compare(b.snap.TakenAt)
	})
	return out, nil
}

// nearestHigher scans the window newest-first and returns the first price
// strictly above cur.
func (r *Resolver) nearestHigher(window []indexed, name string, cur price.Amount) (Reference, bool) {
	for i := len(window) - 1; i >= 0; i-- {
		e, ok := window[i].editions[name]
		if !ok {
			continue
		}
		if p := r.normalizer.Normalize(e.PriceText); p.Greater(cur) {
			return Reference{Price: p.Value, PriceText: e.PriceText, Since: window[i].snap.TakenAt}, true
		}
	}
	return Reference{}, false
}
