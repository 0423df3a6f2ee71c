package exchange

import (
	"fmt"
	"strings"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// SymbolInfo is the order filter of a product. Zero limits are treated as unbounded and zero
// increments disable truncation.
type SymbolInfo struct {
	Symbol         string
	BaseAsset      string
	QuoteAsset     string
	BaseMinSize    fixed.Point
	BaseMaxSize    fixed.Point
	BaseIncrement  fixed.Point
	PriceIncrement fixed.Point
	MinPrice       fixed.Point
	MaxPrice       fixed.Point
}

// NormalizeSize truncates size to the base increment and checks it against the size bounds.
func (s SymbolInfo) NormalizeSize(size fixed.Point) (fixed.Point, error) {
	truncated, err := size.TryTruncTo(s.BaseIncrement)
	if err != nil {
		return size, fmt.Errorf("%w: size %s out of range for %s: %w", ErrInvalidOrder, size, s.Symbol, err)
	}
	size = truncated
	if s.BaseMinSize.IsPos() && size.Lt(s.BaseMinSize) {
		return size, fmt.Errorf("%w: size %s is below exchange minimum %s for %s",
			ErrInvalidOrder, size, s.BaseMinSize, s.Symbol)
	}
	if s.BaseMaxSize.IsPos() && size.Gt(s.BaseMaxSize) {
		return size, fmt.Errorf("%w: size %s is above exchange maximum %s for %s",
			ErrInvalidOrder, size, s.BaseMaxSize, s.Symbol)
	}
	return size, nil
}

// NormalizePrice truncates price to the price increment and checks it against the price bounds.
func (s SymbolInfo) NormalizePrice(price fixed.Point) (fixed.Point, error) {
	truncated, err := price.TryTruncTo(s.PriceIncrement)
	if err != nil {
		return price, fmt.Errorf("%w: price %s out of range for %s: %w", ErrInvalidOrder, price, s.Symbol, err)
	}
	price = truncated
	if s.MinPrice.IsPos() && price.Lt(s.MinPrice) {
		return price, fmt.Errorf("%w: price %s is below minimum %s for %s",
			ErrInvalidOrder, price, s.MinPrice, s.Symbol)
	}
	if s.MaxPrice.IsPos() && price.Gt(s.MaxPrice) {
		return price, fmt.Errorf("%w: price %s is above maximum %s for %s",
			ErrInvalidOrder, price, s.MaxPrice, s.Symbol)
	}
	return price, nil
}

// Symbols is a static ProductInfo backed by a map.
type Symbols map[string]SymbolInfo

func NewSymbols(infos ...SymbolInfo) Symbols {
	symbols := make(Symbols, len(infos))
	for _, info := range infos {
		info.Symbol = strings.ToUpper(info.Symbol)
		if info.BaseAsset == "" || info.QuoteAsset == "" {
			if base, quote, err := common.SplitSymbol(info.Symbol); err == nil {
				info.BaseAsset, info.QuoteAsset = base, quote
			}
		}
		symbols[info.Symbol] = info
	}
	return symbols
}

func (s Symbols) OrderFilter(symbol string) (SymbolInfo, error) {
	info, ok := s[strings.ToUpper(symbol)]
	if !ok {
		return SymbolInfo{}, fmt.Errorf("%w: no product info for %s", ErrNotFound, symbol)
	}
	return info, nil
}
