package discount

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ps-discounts/internal/detect"
	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/price"
	"github.com/sells-group/ps-discounts/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newAnalyzer(src HistorySource, policy match.DuplicatePolicy) *Analyzer {
	m := match.New(policy)
	n := price.NewNormalizer(nil)
	return NewAnalyzer(src, NewResolver(7, m, n), detect.New(m, n), 4)
}

func seed(t *testing.T, st *store.SQLiteStore, id, name string, snaps map[int][]model.Edition) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertProduct(ctx, model.Product{ID: id, Name: name}))
	for d, eds := range snaps {
		_, err := st.Append(ctx, id, at(d), eds)
		require.NoError(t, err)
	}
}

func TestAnalyzer_Discounts_EndToEnd(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "P1", "Game One", map[int][]model.Edition{
		0: {std("1.749,00 TL"), {Name: "Deluxe", PriceText: "2.099,00"}},
		3: {std("1.399,00 TL"), {Name: "Deluxe", PriceText: "2.099,00"}},
	})
	seed(t, st, "P2", "Game Two", map[int][]model.Edition{
		1: {std("500,00")},
		3: {std("600,00")},
	})

	a := newAnalyzer(st, match.LastWins)
	ctx := context.Background()

	latest, ok, err := a.LatestTimestamp(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(at(3)))

	events, err := a.Discounts(ctx, latest)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, "P1", e.ProductID)
	assert.Equal(t, "Game One", e.ProductName)
	assert.Equal(t, "Standard", e.EditionName)
	assert.InDelta(t, 1749.0, e.ReferencePrice, 0.001)
	assert.InDelta(t, 1399.0, e.CurrentPrice, 0.001)
	assert.True(t, e.Since.Equal(at(0)))
	assert.Equal(t, 3, e.DurationDays)
}

func TestAnalyzer_Discounts_OutsideLookback(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "P1", "Game One", map[int][]model.Edition{
		0:  {std("1.000,00")},
		10: {std("800,00")},
	})

	events, err := newAnalyzer(st, match.LastWins).Discounts(context.Background(), at(10))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAnalyzer_Discounts_EmptyStore(t *testing.T) {
	st := newTestStore(t)
	a := newAnalyzer(st, match.LastWins)

	_, ok, err := a.LatestTimestamp(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	events, err := a.Discounts(context.Background(), at(0))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAnalyzer_Drops(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "P1", "Game One", map[int][]model.Edition{
		0: {std("300,00")},
		1: {std("250,00")},
		2: {std("200,00"), {Name: "Gold", PriceText: "400,00"}},
	})
	// Not captured at the latest timestamp.
	seed(t, st, "P2", "Game Two", map[int][]model.Edition{
		0: {std("300,00")},
		1: {std("100,00")},
	})
	// Not captured at the previous timestamp.
	seed(t, st, "P3", "Game Three", map[int][]model.Edition{
		0: {std("900,00")},
		2: {std("100,00")},
	})

	a := newAnalyzer(st, match.LastWins)
	ctx := context.Background()

	previous, latest, ok, err := a.ComparePair(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, previous.Equal(at(1)))
	assert.True(t, latest.Equal(at(2)))

	events, err := a.Drops(ctx, previous, latest)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "P1", events[0].ProductID)
	assert.Equal(t, "250,00", events[0].ReferencePriceText)
	assert.Equal(t, "200,00", events[0].CurrentPriceText)
	assert.True(t, events[0].Since.Equal(at(1)))
	assert.True(t, events[0].AsOf.Equal(at(2)))
	assert.Equal(t, 1, events[0].DurationDays)
}

func TestAnalyzer_ComparePair_NeedsTwoScrapes(t *testing.T) {
	st := newTestStore(t)
	a := newAnalyzer(st, match.LastWins)
	ctx := context.Background()

	_, _, ok, err := a.ComparePair(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// Two products captured by the same single scrape.
	seed(t, st, "P1", "Game One", map[int][]model.Edition{0: {std("300,00")}})
	seed(t, st, "P2", "Game Two", map[int][]model.Edition{0: {std("100,00")}})

	_, _, ok, err = a.ComparePair(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnalyzer_Discounts_SkipsProductsMissingFromScrape(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "P1", "Game One", map[int][]model.Edition{
		0: {std("1.749,00")},
		2: {std("1.399,00")},
	})
	// Last captured before the evaluated scrape.
	seed(t, st, "P2", "Game Two", map[int][]model.Edition{
		0: {std("500,00")},
		1: {std("300,00")},
	})

	events, err := newAnalyzer(st, match.LastWins).Discounts(context.Background(), at(2))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "P1", events[0].ProductID)
}

func TestAnalyzer_RejectPolicySkipsProduct(t *testing.T) {
	st := newTestStore(t)
	seed(t, st, "BAD", "Bad", map[int][]model.Edition{
		0: {std("300,00"), std("310,00")},
		1: {std("100,00")},
	})
	seed(t, st, "GOOD", "Good", map[int][]model.Edition{
		0: {std("300,00")},
		1: {std("100,00")},
	})

	events, err := newAnalyzer(st, match.Reject).Discounts(context.Background(), at(1))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "GOOD", events[0].ProductID)
}

type failingSource struct{ err error }

func (f failingSource) ListProducts(context.Context) ([]model.Product, error) {
	return []model.Product{{ID: "P"}}, nil
}

func (f failingSource) GetHistory(context.Context, string, time.Time, time.Time) ([]model.Snapshot, error) {
	return nil, f.err
}

func (f failingSource) GetLatestTimestamp(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, f.err
}

func (f failingSource) GetPreviousTimestamp(context.Context, time.Time) (time.Time, bool, error) {
	return time.Time{}, false, f.err
}

func TestAnalyzer_PropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	a := newAnalyzer(failingSource{err: boom}, match.LastWins)

	_, err := a.Discounts(context.Background(), at(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history for P")

	_, _, err = a.LatestTimestamp(context.Background())
	assert.ErrorContains(t, err, "latest timestamp")
}
