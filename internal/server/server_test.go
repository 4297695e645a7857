package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ps-discounts/internal/detect"
	"github.com/sells-group/ps-discounts/internal/discount"
	"github.com/sells-group/ps-discounts/internal/match"
	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/price"
	"github.com/sells-group/ps-discounts/internal/report"
	"github.com/sells-group/ps-discounts/internal/store"
)

var t0 = time.Date(2025, 6, 19, 17, 2, 0, 0, time.UTC)

func newTestServer(t *testing.T, seed bool) (*Server, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	if seed {
		_, err = st.UpsertProducts(ctx, []model.Product{{ID: "2", Name: "Zeta"}, {ID: "1", Name: "Alpha"}})
		require.NoError(t, err)
		_, err = st.Append(ctx, "1", t0, []model.Edition{{Name: "Standard", PriceText: "1.749,00"}})
		require.NoError(t, err)
		_, err = st.Append(ctx, "1", t0.Add(72*time.Hour), []model.Edition{{Name: "Standard", PriceText: "1.399,00"}})
		require.NoError(t, err)
	}

	analyze := func(ctx context.Context, lookbackDays int, now time.Time) ([]model.DiscountEvent, error) {
		m := match.New(match.LastWins)
		n := price.NewNormalizer(nil)
		a := discount.NewAnalyzer(st, discount.NewResolver(lookbackDays, m, n), detect.New(m, n), 2)
		return a.Discounts(ctx, now)
	}
	return New(st, analyze, Config{DefaultLookbackDays: 7, MaxLookbackDays: 30}), st
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s.Handler(), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGames_SortedByName(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var products []model.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Equal(t, []model.Product{{ID: "1", Name: "Alpha"}, {ID: "2", Name: "Zeta"}}, products)
}

func TestGames_Empty(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s.Handler(), "/api/games")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestGamePrice_Latest(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/games/1/price")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Alpha", resp.Product.Name)
	assert.True(t, resp.Snapshot.TakenAt.Equal(t0.Add(72*time.Hour)))
	assert.Equal(t, "1.399,00", resp.Snapshot.Editions[0].PriceText)
}

func TestGamePrice_NotFound(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/games/2/price")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "no price data")
}

func TestDiscounts(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/discounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, 7, r.LookbackDays)
	require.Len(t, r.Events, 1)
	assert.Equal(t, "Alpha", r.Events[0].ProductName)
	assert.Equal(t, 3, r.Events[0].DurationDays)
}

func TestDiscounts_ShortLookback(t *testing.T) {
	s, _ := newTestServer(t, true)
	rec := get(t, s.Handler(), "/api/discounts?lookback_days=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.Equal(t, 2, r.LookbackDays)
	assert.Empty(t, r.Events)
}

func TestDiscounts_BadLookback(t *testing.T) {
	s, _ := newTestServer(t, true)
	for _, q := range []string{"abc", "0", "31"} {
		rec := get(t, s.Handler(), "/api/discounts?lookback_days="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestDiscounts_NoData(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s.Handler(), "/api/discounts")
	require.Equal(t, http.StatusOK, rec.Code)

	var r report.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r))
	assert.True(t, r.NoData)
}

type brokenSource struct{ Source }

func (brokenSource) ListProducts(context.Context) ([]model.Product, error) {
	return nil, errors.New("db down")
}

func TestGames_InternalError(t *testing.T) {
	s := New(brokenSource{}, nil, Config{})
	rec := get(t, s.Handler(), "/api/games")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/api/games", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t, false)
	rec := get(t, s.Handler(), "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
