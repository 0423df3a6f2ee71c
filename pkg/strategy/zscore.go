package strategy

import (
	"errors"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

var (
	errNotReady = errors.New("not enough data")
	errFlat     = errors.New("window has no variance")
)

// zScore measures how many sample standard deviations the latest value sits from the window mean.
type zScore struct {
	window *fixed.Ring
}

func newZScore(windowSize int) *zScore {
	return &zScore{window: fixed.NewRing(windowSize)}
}

func (z *zScore) add(p fixed.Point) {
	z.window.Add(p)
}

func (z *zScore) value() (fixed.Point, error) {
	if !z.window.IsFull() {
		return fixed.Zero, errNotReady
	}
	stdDev := z.window.SampleStdDev()
	if stdDev.IsZero() {
		return fixed.Zero, errFlat
	}
	return z.window.Latest().Sub(z.window.Mean()).Div(stdDev), nil
}
