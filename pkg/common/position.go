package common

import (
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type MarginType string

const (
	MarginTypeCrossed  MarginType = "crossed"
	MarginTypeIsolated MarginType = "isolated"
)

// Position is a signed futures exposure. EntryPrice carries the cumulative notional paid for
// the open size, not a per-unit price.
type Position struct {
	Symbol        string         `json:"symbol"`
	BaseAsset     string         `json:"base_asset"`
	QuoteAsset    string         `json:"quote_asset"`
	Size          fixed.Point    `json:"size"`
	EntryPrice    fixed.Point    `json:"entry_price"`
	Leverage      fixed.Point    `json:"leverage"`
	MarginType    MarginType     `json:"margin_type"`
	UnrealizedPnL fixed.Point    `json:"unrealized_pnl"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func (p Position) Long() bool {
	return p.Size.IsPos()
}

type PositionClosed struct {
	Position  Position    `json:"position"`
	Realized  fixed.Point `json:"realized"`
	TimeStamp time.Time   `json:"ts"`
}

type MarginCall struct {
	Symbol    string      `json:"symbol"`
	Size      fixed.Point `json:"size"`
	Value     fixed.Point `json:"value"`
	Cash      fixed.Point `json:"cash"`
	TimeStamp time.Time   `json:"ts"`
}
