package common

import "github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"

type Balance struct {
	Available fixed.Point `json:"available"`
	Hold      fixed.Point `json:"hold"`
}

func (b Balance) Total() fixed.Point {
	return b.Available.Add(b.Hold)
}
