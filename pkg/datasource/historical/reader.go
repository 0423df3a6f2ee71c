package historical

import (
	"fmt"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

const invalidIndex = -1

// BarReader walks the bars of one symbol in [from, to] from a bar cache file.
type BarReader struct {
	source *Source[BinaryBar]

	symbol string
	from   int64
	to     int64
	idx    int64
}

func NewBarReader(source *Source[BinaryBar], symbol string, from, to time.Time) *BarReader {
	return &BarReader{
		source: source,
		symbol: symbol,
		from:   from.UnixNano(),
		to:     to.UnixNano(),
		idx:    invalidIndex,
	}
}

// GetNext returns the next bar of the range or ErrEof once the range is exhausted.
func (r *BarReader) GetNext() (common.Bar, error) {
	var entry BinaryBar

	if r.idx == invalidIndex {
		if err := r.lookupStartIndex(); err != nil {
			return common.Bar{}, err
		}
	}

	if err := r.source.Read(r.idx, &entry); err != nil {
		return common.Bar{}, err
	}
	r.idx++

	if entry.TimeStamp > r.to {
		return common.Bar{}, ErrEof
	}
	return entry.ToBar(r.symbol), nil
}

// ReadAll drains the reader.
func (r *BarReader) ReadAll() ([]common.Bar, error) {
	var bars []common.Bar
	for {
		bar, err := r.GetNext()
		if err == ErrEof {
			return bars, nil
		}
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
}

func (r *BarReader) lookupStartIndex() error {
	entryCount, err := r.source.EntryCount()
	if err != nil {
		return fmt.Errorf("error getting entry count: %w", err)
	}

	var entry BinaryBar

	low := int64(0)
	high := entryCount - 1

	for low <= high {
		mid := (low + high) / 2

		if err := r.source.Read(mid, &entry); err != nil {
			return fmt.Errorf("error reading entry at index %d: %w", mid, err)
		}

		if entry.TimeStamp < r.from {
			low = mid + 1
		} else {
			high = mid - 1
		}
	}

	r.idx = low
	return nil
}
