package datasource

import (
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

// Resample folds ascending bars into bars of the given resolution. Buckets are aligned to
// multiples of resolution since the zero time, so daily buckets start at UTC midnight.
// Bars already at or above the resolution are returned unchanged.
func Resample(bars []common.Bar, resolution time.Duration) []common.Bar {
	if len(bars) == 0 || resolution <= 0 || bars[0].Period >= resolution {
		return bars
	}

	out := make([]common.Bar, 0, len(bars))
	var current common.Bar
	var bucket time.Time

	for i, bar := range bars {
		start := bar.TimeStamp.Truncate(resolution)
		if i == 0 || !start.Equal(bucket) {
			if i > 0 {
				out = append(out, current)
			}
			bucket = start
			current = bar
			current.TimeStamp = start
			current.Period = resolution
			continue
		}

		if bar.High.Gt(current.High) {
			current.High = bar.High
		}
		if bar.Low.Lt(current.Low) {
			current.Low = bar.Low
		}
		current.Close = bar.Close
		current.Volume = current.Volume.Add(bar.Volume)
	}

	return append(out, current)
}
