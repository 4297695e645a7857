// Package legacy imports price history from the table-per-run SQLite layout,
// where every scrape run wrote a games_DD_MM_YYYY_HH_MM table with one row
// per product and numbered edition columns.
package legacy

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/ps-discounts/internal/model"
	"github.com/sells-group/ps-discounts/internal/scrape"
	"github.com/sells-group/ps-discounts/internal/store"
)

const (
	tablePrefix = "games_"
	tableLayout = "02_01_2006_15_04"

	editionNameCol  = "surum_adi_"
	editionPriceCol = "fiyat_"
)

// Table is one legacy snapshot table and the run time encoded in its name.
type Table struct {
	Name    string
	TakenAt time.Time
}

// Sink receives imported products and snapshots.
type Sink interface {
	UpsertProducts(ctx context.Context, products []model.Product) (int, error)
	AppendBatch(ctx context.Context, snapshots []model.Snapshot) (int, error)
}

// Summary counts what an import did.
type Summary struct {
	Tables    int `json:"tables"`
	Skipped   int `json:"skipped"`
	Snapshots int `json:"snapshots"`
	Products  int `json:"products"`
}

// Importer reads a legacy database.
type Importer struct {
	db  *sql.DB
	loc *time.Location
}

// Open opens an existing legacy database. Table names are interpreted in
// loc; nil means UTC.
func Open(path string, loc *time.Location) (*Importer, error) {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrap(err, "legacy: open")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "legacy: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrapf(err, "legacy: open %s", path)
	}
	return &Importer{db: db, loc: loc}, nil
}

// Close releases the database.
func (i *Importer) Close() error {
	return i.db.Close()
}

// ParseTableName extracts the run time from a games_DD_MM_YYYY_HH_MM name.
func ParseTableName(name string, loc *time.Location) (time.Time, bool) {
	rest, ok := strings.CutPrefix(name, tablePrefix)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(tableLayout, rest, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

// Tables lists the snapshot tables, oldest first. Tables whose names do not
// follow the layout are ignored.
func (i *Importer) Tables(ctx context.Context) ([]Table, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name LIKE 'games\_%' ESCAPE '\'`)
	if err != nil {
		return nil, eris.Wrap(err, "legacy: list tables")
	}
	defer rows.Close() //nolint:errcheck

	var tables []Table
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "legacy: scan table name")
		}
		ts, ok := ParseTableName(name, i.loc)
		if !ok {
			zap.L().Debug("legacy: ignoring table", zap.String("table", name))
			continue
		}
		tables = append(tables, Table{Name: name, TakenAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "legacy: list tables iterate")
	}

	slices.SortFunc(tables, func(a, b Table) int { return a.TakenAt.Compare(b.TakenAt) })
	return tables, nil
}

// ReadTable converts one table into products and snapshots stamped with the
// table's run time. Edition slots without a name are skipped.
func (i *Importer) ReadTable(ctx context.Context, t Table) ([]model.Product, []model.Snapshot, error) {
	rows, err := i.db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM %q`, t.Name))
	if err != nil {
		return nil, nil, eris.Wrapf(err, "legacy: read %s", t.Name)
	}
	defer rows.Close() //nolint:errcheck

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, eris.Wrapf(err, "legacy: columns of %s", t.Name)
	}
	layout := newColumnLayout(cols)
	if layout.conceptID < 0 {
		return nil, nil, eris.Errorf("legacy: table %s has no concept_id column", t.Name)
	}

	var (
		products  []model.Product
		snapshots []model.Snapshot
	)
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for j := range values {
		dest[j] = &values[j]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, eris.Wrapf(err, "legacy: scan row of %s", t.Name)
		}
		id := strings.TrimSpace(values[layout.conceptID].String)
		if id == "" {
			continue
		}
		var name string
		if layout.name >= 0 {
			name = strings.TrimSpace(values[layout.name].String)
		}
		products = append(products, model.Product{ID: id, Name: name})

		editions := []model.Edition{}
		for _, slot := range layout.slots {
			edName := values[slot.name].String
			if !values[slot.name].Valid || edName == "" {
				continue
			}
			priceText := scrape.UnavailablePrice
			if slot.price >= 0 && values[slot.price].Valid {
				priceText = scrape.CleanPrice(values[slot.price].String)
			}
			editions = append(editions, model.Edition{Name: edName, PriceText: priceText})
		}
		snapshots = append(snapshots, model.Snapshot{ProductID: id, TakenAt: t.TakenAt, Editions: editions})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, eris.Wrapf(err, "legacy: read %s iterate", t.Name)
	}
	return products, snapshots, nil
}

// Import copies every table into sink, oldest first. A table whose run is
// already present is skipped, so re-running an import is harmless.
func (i *Importer) Import(ctx context.Context, sink Sink) (Summary, error) {
	log := zap.L().With(zap.String("component", "legacy.importer"))

	tables, err := i.Tables(ctx)
	if err != nil {
		return Summary{}, err
	}

	var sum Summary
	for _, t := range tables {
		products, snapshots, err := i.ReadTable(ctx, t)
		if err != nil {
			return sum, err
		}
		n, err := sink.UpsertProducts(ctx, products)
		if err != nil {
			return sum, eris.Wrapf(err, "legacy: upsert products from %s", t.Name)
		}
		sum.Products += n

		appended, err := sink.AppendBatch(ctx, snapshots)
		if errors.Is(err, store.ErrDuplicateSnapshot) {
			sum.Skipped++
			log.Info("table already imported", zap.String("table", t.Name))
			continue
		}
		if err != nil {
			return sum, eris.Wrapf(err, "legacy: append snapshots from %s", t.Name)
		}
		sum.Tables++
		sum.Snapshots += appended
		log.Info("table imported",
			zap.String("table", t.Name),
			zap.Time("taken_at", t.TakenAt),
			zap.Int("snapshots", appended),
		)
	}
	return sum, nil
}

type editionSlot struct {
	n     int
	name  int
	price int
}

type columnLayout struct {
	conceptID int
	name      int
	slots     []editionSlot
}

// newColumnLayout maps column names to indexes. Edition slots are ordered
// by their number so editions keep their page order.
func newColumnLayout(cols []string) columnLayout {
	l := columnLayout{conceptID: -1, name: -1}
	prices := make(map[int]int)
	for j, c := range cols {
		switch {
		case c == "concept_id":
			l.conceptID = j
		case c == "name":
			l.name = j
		case strings.HasPrefix(c, editionNameCol):
			if n, err := strconv.Atoi(strings.TrimPrefix(c, editionNameCol)); err == nil {
				l.slots = append(l.slots, editionSlot{n: n, name: j, price: -1})
			}
		case strings.HasPrefix(c, editionPriceCol):
			if n, err := strconv.Atoi(strings.TrimPrefix(c, editionPriceCol)); err == nil {
				prices[n] = j
			}
		}
	}
	for k := range l.slots {
		if p, ok := prices[l.slots[k].n]; ok {
			l.slots[k].price = p
		}
	}
	slices.SortFunc(l.slots, func(a, b editionSlot) int { return a.n - b.n })
	return l
}
