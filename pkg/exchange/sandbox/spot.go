package sandbox

import (
	"fmt"
	"time"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Spot is a paper spot exchange. Buys hold quote, sells hold base, and the fee is taken from
// whatever the order receives.
type Spot struct {
	*engine
}

var _ exchange.Exchange = (*Spot)(nil)

func NewSpot(ledger *Ledger, prices exchange.PriceSource, options ...Option) *Spot {
	s := &Spot{engine: newEngine(ledger, prices, options...)}
	s.settler = s
	return s
}

// AccountValue converts every non-zero balance into quote at the current price.
func (s *Spot) AccountValue(quote string) (fixed.Point, error) {
	total := fixed.Zero
	for asset, balance := range s.ledger.Accounts() {
		amount := balance.Total()
		if amount.IsZero() {
			continue
		}
		if asset == quote {
			total = total.Add(amount)
			continue
		}
		price, err := s.prices.Price(asset + "-" + quote)
		if err != nil {
			return fixed.Zero, fmt.Errorf("unable to value %s in %s: %w", asset, quote, err)
		}
		total = total.Add(amount.Mul(price))
	}
	return total, nil
}

func (s *Spot) admit(order common.Order, price fixed.Point) (heldFunds, error) {
	if order.ReduceOnly {
		return heldFunds{}, fmt.Errorf("%w: reduce-only orders require a futures account", exchange.ErrInvalidOrder)
	}
	base, quote, err := s.assets(order.Symbol)
	if err != nil {
		return heldFunds{}, fmt.Errorf("%w: %w", exchange.ErrInvalidOrder, err)
	}
	if order.Side == common.OrderSideBuy {
		notional, err := notionalOf(order, price)
		if err != nil {
			return heldFunds{}, err
		}
		return heldFunds{asset: quote, amount: notional}, nil
	}
	if _, err := notionalOf(order, price); err != nil {
		return heldFunds{}, err
	}
	return heldFunds{asset: base, amount: order.Size}, nil
}

func (s *Spot) settle(order common.Order, price fixed.Point, now time.Time) (Fill, error) {
	base, quote, err := s.assets(order.Symbol)
	if err != nil {
		return Fill{}, err
	}
	hold, ok := s.held[order.Id]
	if !ok {
		return Fill{}, fmt.Errorf("no funds held for order %s", order.Id)
	}

	rate := s.feeRate(order)
	notional := order.Size.Mul(price)
	fee := notional.Mul(rate)

	if order.Side == common.OrderSideBuy {
		s.ledger.ReleaseToOther(quote, hold.amount, base, order.Size.Mul(fixed.One.Sub(rate)))
	} else {
		s.ledger.ReleaseToOther(base, hold.amount, quote, notional.Sub(fee))
	}

	return Fill{Price: price, Size: order.Size, Value: notional, Fee: fee, At: now}, nil
}

func (s *Spot) afterEvaluate(time.Time) {}
