package scrape

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/ps-discounts/internal/model"
)

// Summary counts the outcome of one scrape run.
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int64         `json:"succeeded"`
	Failed    int64         `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// Runner scrapes a product list with a bounded worker pool. Requests are
// paced by a shared limiter.
type Runner struct {
	scraper Scraper
	workers int
	limiter *rate.Limiter
}

// NewRunner creates a Runner. requestsPerSec <= 0 disables pacing.
func NewRunner(s Scraper, workers int, requestsPerSec float64) *Runner {
	if workers < 1 {
		workers = 1
	}
	limit := rate.Inf
	if requestsPerSec > 0 {
		limit = rate.Limit(requestsPerSec)
	}
	return &Runner{
		scraper: s,
		workers: workers,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Run scrapes every product and returns one snapshot per successful page,
// all stamped with takenAt and ordered by product id. A failing product is
// logged and left out; only cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, products []model.Product, takenAt time.Time) ([]model.Snapshot, Summary, error) {
	log := zap.L().With(zap.String("component", "scrape.runner"))
	start := time.Now()
	summary := Summary{Total: len(products)}

	log.Info("scrape started",
		zap.Int("products", len(products)),
		zap.Int("workers", r.workers),
	)

	var (
		mu        sync.Mutex
		snapshots []model.Snapshot
	)
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, p := range products {
		g.Go(func() error {
			if err := r.limiter.Wait(gctx); err != nil {
				return eris.Wrap(err, "scrape: rate limiter wait")
			}

			editions, err := r.scraper.Scrape(gctx, p)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				log.Warn("product scrape failed", zap.String("product", p.ID), zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Debug("product scraped", zap.String("product", p.ID), zap.Int("editions", len(editions)))

			mu.Lock()
			snapshots = append(snapshots, model.Snapshot{ProductID: p.ID, TakenAt: takenAt, Editions: editions})
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	summary.Succeeded = succeeded.Load()
	summary.Failed = failed.Load()
	summary.Duration = time.Since(start)
	if err != nil {
		return nil, summary, eris.Wrap(err, "scrape: run")
	}

	slices.SortFunc(snapshots, func(a, b model.Snapshot) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})

	log.Info("scrape complete",
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
		zap.Duration("duration", summary.Duration),
	)
	return snapshots, summary, nil
}
