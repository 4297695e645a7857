package discount

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ps-discounts/internal/detect"
	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/model"
)

// HistorySource is the read side of the snapshot store.
type HistorySource interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetHistory(ctx context.Context, productID string, from, to time.Time) ([]model.Snapshot, error)
	GetLatestTimestamp(ctx context.Context) (time.Time, bool, error)
	GetPreviousTimestamp(ctx context.Context, before time.Time) (time.Time, bool, error)
}

// Analyzer runs discount analysis for every product in a HistorySource.
// Each product only reads its own history, so products are analyzed
// independently.
type Analyzer struct {
	src         HistorySource
	resolver    *Resolver
	detector    *detect.Detector
	concurrency int
}

// NewAnalyzer creates an Analyzer. concurrency < 1 runs products one at a
// time.
func NewAnalyzer(src HistorySource, resolver *Resolver, detector *detect.Detector, concurrency int) *Analyzer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Analyzer{
		src:         src,
		resolver:    resolver,
		detector:    detector,
		concurrency: concurrency,
	}
}

// LatestTimestamp returns the newest snapshot time across all products.
func (a *Analyzer) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	ts, ok, err := a.src.GetLatestTimestamp(ctx)
	if err != nil {
		return time.Time{}, false, eris.Wrap(err, "discount: latest timestamp")
	}
	return ts, ok, nil
}

// ComparePair returns the two newest snapshot timestamps in the store. ok is
// false when fewer than two exist.
func (a *Analyzer) ComparePair(ctx context.Context) (previous, latest time.Time, ok bool, err error) {
	latest, ok, err = a.LatestTimestamp(ctx)
	if err != nil || !ok {
		return time.Time{}, time.Time{}, false, err
	}
	previous, ok, err = a.src.GetPreviousTimestamp(ctx, latest)
	if err != nil {
		return time.Time{}, time.Time{}, false, eris.Wrap(err, "discount: previous timestamp")
	}
	if !ok {
		return time.Time{}, time.Time{}, false, nil
	}
	return previous, latest, true, nil
}

// Discounts returns the active window-based discounts as of now, which is
// expected to be a scrape timestamp. Products without a snapshot at now were
// not captured by that scrape and are skipped.
func (a *Analyzer) Discounts(ctx context.Context, now time.Time) ([]model.DiscountEvent, error) {
	from := now.Add(-a.resolver.Lookback())
	return a.forEachProduct(ctx, "window", func(ctx context.Context, p model.Product) ([]model.DiscountEvent, error) {
		history, err := a.src.GetHistory(ctx, p.ID, from, now)
		if err != nil {
			return nil, eris.Wrapf(err, "discount: history for %s", p.ID)
		}
		if len(history) == 0 {
			return nil, nil
		}
		current := history[len(history)-1]
		if !current.TakenAt.Equal(now) {
			return nil, nil
		}
		return a.resolver.Events(p, history, current, now)
	})
}

// Drops compares every product's snapshot at previous with its snapshot at
// latest. Products missing from either scrape are skipped.
func (a *Analyzer) Drops(ctx context.Context, previous, latest time.Time) ([]model.DiscountEvent, error) {
	return a.forEachProduct(ctx, "compare", func(ctx context.Context, p model.Product) ([]model.DiscountEvent, error) {
		history, err := a.src.GetHistory(ctx, p.ID, previous, latest)
		if err != nil {
			return nil, eris.Wrapf(err, "discount: history for %s", p.ID)
		}

		var older, newer *model.Snapshot
		for i := range history {
			switch {
			case history[i].TakenAt.Equal(previous):
				older = &history[i]
			case history[i].TakenAt.Equal(latest):
				newer = &history[i]
			}
		}
		if older == nil || newer == nil {
			return nil, nil
		}

		drops, err := a.detector.Detect(*older, *newer)
		if err != nil {
			return nil, err
		}
		events := make([]model.DiscountEvent, 0, len(drops))
		for _, d := range drops {
			events = append(events, model.DiscountEvent{
				ProductID:          p.ID,
				ProductName:        p.DisplayName(),
				EditionName:        d.EditionName,
				ReferencePrice:     d.OldPrice,
				ReferencePriceText: d.OldPriceText,
				CurrentPrice:       d.NewPrice,
				CurrentPriceText:   d.NewPriceText,
				AsOf:               latest,
				Since:              previous,
				DurationDays:       DurationDays(previous, latest),
			})
		}
		return events, nil
	})
}

type productFunc func(ctx context.Context, p model.Product) ([]model.DiscountEvent, error)

func (a *Analyzer) forEachProduct(ctx context.Context, mode string, fn productFunc) ([]model.DiscountEvent, error) {
	products, err := a.src.ListProducts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "discount: list products")
	}

	log := zap.L().With(zap.String("component", "discount.analyzer"), zap.String("mode", mode))
	start := time.Now()

	results := make([][]model.DiscountEvent, len(products))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, p := range products {
		g.Go(func() error {
			events, err := fn(gctx, p)
			if errors.Is(err, match.ErrDuplicateEdition) {
				log.Warn("skipping product with duplicate edition names",
					zap.String("product", p.ID),
					zap.Error(err),
				)
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = events
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var events []model.DiscountEvent
	for _, r := range results {
		events = append(events, r...)
	}

	log.Info("analysis complete",
		zap.Int("products", len(products)),
		zap.Int("events", len(events)),
		zap.Duration("duration", time.Since(start)),
	)
	return events, nil
}
