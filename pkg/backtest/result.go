package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Row is the account after one replay step: the available amount of every asset and the
// account value in the quote currency.
type Row struct {
	Time      time.Time
	Available map[string]fixed.Point
	Value     fixed.Point
}

type Result struct {
	Quote  string
	Rows   []Row
	Report Report
}

// Assets lists every asset that appears in any row, sorted.
func (r *Result) Assets() []string {
	seen := make(map[string]struct{})
	for _, row := range r.Rows {
		for asset := range row.Available {
			seen[asset] = struct{}{}
		}
	}
	assets := make([]string, 0, len(seen))
	for asset := range seen {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}

// Values returns the account value series.
func (r *Result) Values() []fixed.Point {
	values := make([]fixed.Point, len(r.Rows))
	for i, row := range r.Rows {
		values[i] = row.Value
	}
	return values
}

// WriteCSV writes one line per row with a fixed column order, so equal results produce
// identical bytes. Assets missing from a row are written as 0.
func (r *Result) WriteCSV(w io.Writer) error {
	assets := r.Assets()
	writer := csv.NewWriter(w)

	header := make([]string, 0, len(assets)+2)
	header = append(header, "time")
	header = append(header, assets...)
	header = append(header, fmt.Sprintf("account_value_%s", r.Quote))
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range r.Rows {
		record[0] = row.Time.UTC().Format(time.RFC3339Nano)
		for i, asset := range assets {
			value, ok := row.Available[asset]
			if !ok {
				value = fixed.Zero
			}
			record[i+1] = value.String()
		}
		record[len(record)-1] = row.Value.String()
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("unable to write row at %s: %w", record[0], err)
		}
	}

	writer.Flush()
	return writer.Error()
}
