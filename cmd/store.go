package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/detect"
	"github.com/sells-group/ps-discounts/internal/discount"
	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/price"
	"github.com/sells-group/ps-discounts/internal/store"
)

// initStore opens the configured store and applies its schema.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newAnalyzer wires the normalizer, matcher, detector and resolver from the
// analysis config.
func newAnalyzer(src discount.HistorySource, lookbackDays int) (*discount.Analyzer, error) {
	policy, err := match.ParsePolicy(cfg.Analysis.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	var tokens []string
	if len(cfg.Analysis.FreeTokens) > 0 {
		tokens = cfg.Analysis.FreeTokens
	}
	normalizer := price.NewNormalizer(tokens)
	matcher := match.New(policy)

	return discount.NewAnalyzer(
		src,
		discount.NewResolver(lookbackDays, matcher, normalizer),
		detect.New(matcher, normalizer),
		cfg.Analysis.Concurrency,
	), nil
}
