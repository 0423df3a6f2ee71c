package historical

import (
	"fmt"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// priceScale is the number of decimal digits kept by the binary cache.
const priceScale = 8

// BinaryBar is the fixed-size on-disk record of the bar cache. Prices and volume are stored
// as whole multiples of 10^-8. The layout has no padding so it can be cast from the mapped
// bytes directly.
type BinaryBar struct {
	TimeStamp int64
	Period    int64
	Open      int64
	High      int64
	Low       int64
	Close     int64
	Volume    int64
}

func NewBinaryBar(bar common.Bar) (BinaryBar, error) {
	b := BinaryBar{
		TimeStamp: bar.TimeStamp.UnixNano(),
		Period:    int64(bar.Period),
	}

	fields := []struct {
		name  string
		value fixed.Point
		dst   *int64
	}{
		{"open", bar.Open, &b.Open},
		{"high", bar.High, &b.High},
		{"low", bar.Low, &b.Low},
		{"close", bar.Close, &b.Close},
		{"volume", bar.Volume, &b.Volume},
	}
	for _, f := range fields {
		v, ok := f.value.ScaledInt64(priceScale)
		if !ok {
			return BinaryBar{}, fmt.Errorf("%s %s of bar at %s out of range", f.name, f.value, bar.TimeStamp)
		}
		*f.dst = v
	}
	return b, nil
}

func (b BinaryBar) ToBar(symbol string) common.Bar {
	return common.Bar{
		Symbol:    symbol,
		TimeStamp: time.Unix(0, b.TimeStamp).UTC(),
		Period:    time.Duration(b.Period),
		Open:      fixed.FromInt64(b.Open, priceScale),
		High:      fixed.FromInt64(b.High, priceScale),
		Low:       fixed.FromInt64(b.Low, priceScale),
		Close:     fixed.FromInt64(b.Close, priceScale),
		Volume:    fixed.FromInt64(b.Volume, priceScale),
	}
}
