package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ps-discounts/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Timestamps are
// stored as unix milliseconds and editions as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS products (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS snapshots (
	id         TEXT PRIMARY KEY,
	product_id TEXT NOT NULL,
	taken_at   INTEGER NOT NULL,
	editions   TEXT NOT NULL,
	UNIQUE (product_id, taken_at)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_taken_at ON snapshots(taken_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p model.Product) error {
	if p.ID == "" {
		return eris.New("sqlite: upsert product: empty id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name,
	)
	return eris.Wrapf(err, "sqlite: upsert product %s", p.ID)
}

func (s *SQLiteStore) UpsertProducts(ctx context.Context, products []model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert products: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products (id, name) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert products: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	n := 0
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Name); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert product %s", p.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert products: commit")
	}
	return n, nil
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM products WHERE id = ?`, id).Scan(&p.ID, &p.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "product %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get product %s", id)
	}
	return &p, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM products ORDER BY name, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close() //nolint:errcheck

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		products = append(products, p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

func (s *SQLiteStore) Append(ctx context.Context, productID string, takenAt time.Time, editions []model.Edition) (*model.Snapshot, error) {
	snaps, err := prepare([]model.Snapshot{{ProductID: productID, TakenAt: takenAt, Editions: editions}})
	if err != nil {
		return nil, err
	}
	snap := snaps[0]
	snap.ID = uuid.New().String()

	editionsJSON, err := json.Marshal(snap.Editions)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal editions")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (id, product_id, taken_at, editions) VALUES (?, ?, ?, ?)`,
		snap.ID, snap.ProductID, snap.TakenAt.UnixMilli(), string(editionsJSON),
	)
	if err != nil {
		return nil, sqliteInsertError(err, snap)
	}
	return &snap, nil
}

// AppendBatch writes all snapshots in one transaction. Any invalid or
// duplicate snapshot aborts the whole batch.
func (s *SQLiteStore) AppendBatch(ctx context.Context, snapshots []model.Snapshot) (int, error) {
	snaps, err := prepare(snapshots)
	if err != nil {
		return 0, err
	}
	if len(snaps) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append batch: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO snapshots (id, product_id, taken_at, editions) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append batch: prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, snap := range snaps {
		if snap.ID == "" {
			snap.ID = uuid.New().String()
		}
		editionsJSON, err := json.Marshal(snap.Editions)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal editions")
		}
		if _, err := stmt.ExecContext(ctx, snap.ID, snap.ProductID, snap.TakenAt.UnixMilli(), string(editionsJSON)); err != nil {
			return 0, sqliteInsertError(err, snap)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: append batch: commit")
	}
	return len(snaps), nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, productID string, from, to time.Time) ([]model.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, product_id, taken_at, editions FROM snapshots
		 WHERE product_id = ? AND taken_at >= ? AND taken_at <= ?
		 ORDER BY taken_at ASC`,
		productID, from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get history %s", productID)
	}
	defer rows.Close() //nolint:errcheck

	var history []model.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, *snap)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: get history iterate")
}

func (s *SQLiteStore) GetLatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	var ms sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(taken_at) FROM snapshots`).Scan(&ms); err != nil {
		return time.Time{}, false, eris.Wrap(err, "sqlite: latest timestamp")
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), true, nil
}

// GetPreviousTimestamp returns the newest snapshot time strictly before
// before, across all products.
func (s *SQLiteStore) GetPreviousTimestamp(ctx context.Context, before time.Time) (time.Time, bool, error) {
	var ms sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(taken_at) FROM snapshots WHERE taken_at < ?`,
		before.UTC().Truncate(time.Millisecond).UnixMilli(),
	).Scan(&ms)
	if err != nil {
		return time.Time{}, false, eris.Wrap(err, "sqlite: previous timestamp")
	}
	if !ms.Valid {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms.Int64).UTC(), true, nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, productID string) (*model.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_id, taken_at, editions FROM snapshots
		 WHERE product_id = ? ORDER BY taken_at DESC LIMIT 1`,
		productID,
	)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "snapshot for product %s", productID)
	}
	return snap, err
}

// sqliteInsertError maps unique-constraint violations to ErrDuplicateSnapshot.
func sqliteInsertError(err error, snap model.Snapshot) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return eris.Wrapf(ErrDuplicateSnapshot, "product %s at %s", snap.ProductID, snap.TakenAt.Format(time.RFC3339))
	}
	return eris.Wrapf(err, "sqlite: insert snapshot for %s", snap.ProductID)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scannable) (*model.Snapshot, error) {
	var snap model.Snapshot
	var takenAt int64
	var editionsJSON string

	if err := row.Scan(&snap.ID, &snap.ProductID, &takenAt, &editionsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan snapshot")
	}
	snap.TakenAt = time.UnixMilli(takenAt).UTC()
	if err := json.Unmarshal([]byte(editionsJSON), &snap.Editions); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal editions of %s", snap.ID)
	}
	return &snap, nil
}
