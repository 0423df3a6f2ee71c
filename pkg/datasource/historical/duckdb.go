package historical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// DuckDB serves OHLCV history stored in one "<base>_<quote>_bars" table per symbol with the
// columns ts, open, high, low, close and volume.
type DuckDB struct {
	dataSourceName string
	basePeriod     time.Duration
	db             *sql.DB
}

// NewDuckDB creates a reader over the database at dataSourceName. An empty name opens an
// in-memory database. basePeriod is the period of the stored rows.
func NewDuckDB(dataSourceName string, basePeriod time.Duration) *DuckDB {
	return &DuckDB{
		dataSourceName: dataSourceName,
		basePeriod:     basePeriod,
	}
}

func (d *DuckDB) Connect() error {
	db, err := sql.Open("duckdb", d.dataSourceName)
	if err != nil {
		return fmt.Errorf("sql.Open: %w", err)
	}
	d.db = db
	return nil
}

func (d *DuckDB) Close() {
	if d.db != nil {
		_ = d.db.Close()
	}
}

func (d *DuckDB) ProductHistory(ctx context.Context, symbol string, start, stop time.Time, resolution time.Duration) ([]common.Bar, error) {
	query := fmt.Sprintf(`SELECT ts, open, high, low, close, volume FROM %s WHERE ts BETWEEN ? AND ? ORDER BY ts`, tableName(symbol))

	rows, err := d.db.QueryContext(ctx, query, start.UTC(), stop.UTC())
	if err != nil {
		return nil, fmt.Errorf("error querying %s history: %w", symbol, err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	var bars []common.Bar
	for rows.Next() {
		var ts time.Time
		var open, high, low, closePrice, volume float64
		if err := rows.Scan(&ts, &open, &high, &low, &closePrice, &volume); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		bars = append(bars, common.Bar{
			Symbol:    symbol,
			TimeStamp: ts.UTC(),
			Period:    d.basePeriod,
			Open:      fixed.FromFloat64(open),
			High:      fixed.FromFloat64(high),
			Low:       fixed.FromFloat64(low),
			Close:     fixed.FromFloat64(closePrice),
			Volume:    fixed.FromFloat64(volume),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error scanning rows: %w", err)
	}

	return datasource.Resample(bars, resolution), nil
}

// Store creates the symbol table when missing and appends bars to it.
func (d *DuckDB) Store(ctx context.Context, symbol string, bars []common.Bar) error {
	table := tableName(symbol)
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (ts TIMESTAMP, open DOUBLE, high DOUBLE, low DOUBLE, close DOUBLE, volume DOUBLE)`, table)
	if _, err := d.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("error creating %s: %w", table, err)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	insert := fmt.Sprintf(`INSERT INTO %s VALUES (?, ?, ?, ?, ?, ?)`, table)
	for _, bar := range bars {
		if _, err := tx.ExecContext(ctx, insert, bar.TimeStamp.UTC(),
			bar.Open.Float(), bar.High.Float(), bar.Low.Float(), bar.Close.Float(), bar.Volume.Float()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("error inserting bar at %s: %w", bar.TimeStamp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing %s: %w", table, err)
	}
	return nil
}

func tableName(symbol string) string {
	name := strings.ToLower(strings.ReplaceAll(symbol, "-", "_"))
	return `"` + strings.ReplaceAll(name, `"`, "") + `_bars"`
}
