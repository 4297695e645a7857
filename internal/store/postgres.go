package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ps-discounts/internal/db"
	"github.com/sells-group/ps-discounts/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// pgUniqueViolation is the SQLSTATE of a unique constraint violation.
const pgUniqueViolation = "23505"

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := newPoolConfig(connString, poolCfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func newPoolConfig(connString string, poolCfg *PoolConfig) (*pgxpool.Config, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// pgx caches each statement per connection, so queries stay inline.
	pgxCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
	return pgxCfg, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS products (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	product_id TEXT NOT NULL,
	taken_at   TIMESTAMPTZ NOT NULL,
	editions   JSONB NOT NULL DEFAULT '[]'::jsonb,
	UNIQUE (product_id, taken_at)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertProduct(ctx context.Context, p model.Product) error {
	if p.ID == "" {
		return eris.New("postgres: upsert product: empty id")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO products (id, name) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		p.ID, p.Name,
	)
	return eris.Wrapf(err, "postgres: upsert product %s", p.ID)
}

// UpsertProducts merges the catalog through a COPY-fed temp table.
func (s *PostgresStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	seen := make(map[string]int, len(products))
	rows := make([][]any, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		// ON CONFLICT cannot touch the same row twice in one statement.
		if i, ok := seen[p.ID]; ok {
			rows[i][1] = p.Name
			continue
		}
		seen[p.ID] = len(rows)
		rows = append(rows, []any{p.ID, p.Name})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "products",
		Columns:      []string{"id", "name"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert products")
	}
	return int(n), nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM products WHERE id = $1`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "product %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get product %s", id)
	}
	return &p, nil
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM products ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list products")
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "postgres: list products iterate")
}

func (s *PostgresStore) Append(ctx context.Context, productID string, takenAt time.Time, editions []model.Edition) (*model.Snapshot, error) {
	snaps, err := prepare([]model.Snapshot{{ProductID: productID, TakenAt: takenAt, Editions: editions}})
	if err != nil {
		return nil, err
	}
	snap := snaps[0]
	snap.ID = uuid.New().String()

	editionsJSON, err := json.Marshal(snap.Editions)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal editions")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (id, product_id, taken_at, editions) VALUES ($1, $2, $3, $4)`,
		snap.ID, snap.ProductID, snap.TakenAt, editionsJSON,
	)
	if err != nil {
		return nil, postgresInsertError(err, "postgres: insert snapshot for "+snap.ProductID)
	}
	return &snap, nil
}

// AppendBatch bulk-loads snapshots with COPY. COPY is atomic, so a
// duplicate anywhere in the batch leaves the table unchanged.
func (s *PostgresStore) AppendBatch(ctx context.Context, snapshots []model.Snapshot) (int, error) {
	snaps, err := prepare(snapshots)
	if err != nil {
		return 0, err
	}

	rows := make([][]any, 0, len(snaps))
	for _, snap := range snaps {
		if snap.ID == "" {
			snap.ID = uuid.New().String()
		}
		editionsJSON, err := json.Marshal(snap.Editions)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal editions")
		}
		rows = append(rows, []any{snap.ID, snap.ProductID, snap.TakenAt, editionsJSON})
	}

	n, err := db.CopyFrom(ctx, s.pool, "snapshots", []string{"id", "product_id", "taken_at", "editions"}, rows)
	if err != nil {
		return 0, postgresInsertError(err, "postgres: append batch")
	}
	return int(n), nil
}

func (s *PostgresStore) GetHistory(ctx context.Context, productID string, from, to time.Time) ([]model.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, product_id, taken_at, editions FROM snapshots
		 WHERE product_id = $1 AND taken_at >= $2 AND taken_at <= $3
		 ORDER BY taken_at ASC`,
		productID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get history %s", productID)
	}
	defer rows.Close()

	var history []model.Snapshot
	for rows.Next() {
		snap, err := scanPostgresSnapshot(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *snap)
	}
	return history, eris.Wrap(rows.Err(), "postgres: get history iterate")
}

func (s *PostgresStore) GetLatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(taken_at) FROM snapshots`).Scan(&ts); err != nil {
		return time.Time{}, false, eris.Wrap(err, "postgres: latest timestamp")
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

func (s *PostgresStore) GetPreviousTimestamp(ctx context.Context, before time.Time) (time.Time, bool, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(taken_at) FROM snapshots WHERE taken_at < $1`,
		before.UTC().Truncate(time.Millisecond),
	).Scan(&ts)
	if err != nil {
		return time.Time{}, false, eris.Wrap(err, "postgres: previous timestamp")
	}
	if ts == nil {
		return time.Time{}, false, nil
	}
	return ts.UTC(), true, nil
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, productID string) (*model.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, product_id, taken_at, editions FROM snapshots
		 WHERE product_id = $1 ORDER BY taken_at DESC LIMIT 1`,
		productID,
	)
	snap, err := scanPostgresSnapshot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot for product %s", productID)
	}
	return snap, err
}

func postgresInsertError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return eris.Wrap(ErrDuplicateSnapshot, msg)
	}
	return eris.Wrap(err, msg)
}

func scanPostgresSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var editionsJSON []byte

	if err := row.Scan(&snap.ID, &snap.ProductID, &snap.TakenAt, &editionsJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "postgres: scan snapshot")
	}
	snap.TakenAt = snap.TakenAt.UTC()
	if err := json.Unmarshal(editionsJSON, &snap.Editions); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal editions of %s", snap.ID)
	}
	return &snap, nil
}
