package common

import (
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type Bar struct {
	Symbol    string        `json:"symbol,omitempty"`
	TimeStamp time.Time     `json:"ts"`
	Period    time.Duration `json:"period"`
	Open      fixed.Point   `json:"open"`
	High      fixed.Point   `json:"high"`
	Low       fixed.Point   `json:"low"`
	Close     fixed.Point   `json:"close"`
	Volume    fixed.Point   `json:"volume"`
}

type Tick struct {
	Symbol    string      `json:"symbol"`
	Price     fixed.Point `json:"price"`
	TimeStamp time.Time   `json:"ts"`
}
