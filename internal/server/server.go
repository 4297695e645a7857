// Package server exposes the price history over a read-only HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/report"
	"github.com/sells-group/ps-discounts/internal/store"
)

// Source is the read side of the store used by the API.
type Source interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	LatestSnapshot(ctx context.Context, productID string) (*model.Snapshot, error)
	GetLatestTimestamp(ctx context.Context) (time.Time, bool, error)
}

// AnalyzeFunc runs window analysis with the given lookback as of now.
type AnalyzeFunc func(ctx context.Context, lookbackDays int, now time.Time) ([]model.DiscountEvent, error)

// Config holds server settings.
type Config struct {
	Port                int
	DefaultLookbackDays int
	MaxLookbackDays     int
}

// Server serves the API.
type Server struct {
	src     Source
	analyze AnalyzeFunc
	cfg     Config
	now     func() time.Time
}

// New creates a Server.
func New(src Source, analyze AnalyzeFunc, cfg Config) *Server {
	if cfg.DefaultLookbackDays <= 0 {
		cfg.DefaultLookbackDays = 7
	}
	if cfg.MaxLookbackDays < cfg.DefaultLookbackDays {
		cfg.MaxLookbackDays = 365
	}
	return &Server{src: src, analyze: analyze, cfg: cfg, now: time.Now}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/api", func(r chi.Router) {
		r.Get("/games", s.handleGames)
		r.Get("/games/{id}/price", s.handleGamePrice)
		r.Get("/discounts", s.handleDiscounts)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}

func (s *Server) handleGames(w http.ResponseWriter, r *http.Request) {
	products, err := s.src.ListProducts(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

type priceResponse struct {
	Product  model.Product  `json:"product"`
	Snapshot model.Snapshot `json:"snapshot"`
}

func (s *Server) handleGamePrice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snap, err := s.src.LatestSnapshot(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no price data for game "+id)
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	product := model.Product{ID: id}
	p, err := s.src.GetProduct(r.Context(), id)
	switch {
	case err == nil:
		product = *p
	case !errors.Is(err, store.ErrNotFound):
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, priceResponse{Product: product, Snapshot: *snap})
}

// handleDiscounts evaluates the window as of the newest snapshot in the store.
func (s *Server) handleDiscounts(w http.ResponseWriter, r *http.Request) {
	lookback := s.cfg.DefaultLookbackDays
	if v := r.URL.Query().Get("lookback_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > s.cfg.MaxLookbackDays {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("lookback_days must be an integer between 1 and %d", s.cfg.MaxLookbackDays))
			return
		}
		lookback = n
	}

	latest, ok, err := s.src.GetLatestTimestamp(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, report.Empty(report.ModeWindow, s.now().UTC()))
		return
	}

	events, err := s.analyze(r.Context(), lookback, latest)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.New(report.ModeWindow, latest, lookback, events, s.now().UTC()))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
