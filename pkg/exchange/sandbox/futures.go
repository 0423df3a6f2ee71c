package sandbox

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Futures is a paper perpetual futures exchange with crossed margin. Opening fills consume
// notional plus fee from the quote balance; closing fills pay back the leveraged value of the
// closed portion.
type Futures struct {
	*engine

	positions   map[string]*common.Position
	leverage    map[string]fixed.Point
	marginTypes map[string]common.MarginType
}

var _ exchange.FuturesExchange = (*Futures)(nil)

func NewFutures(ledger *Ledger, prices exchange.PriceSource, options ...Option) *Futures {
	f := &Futures{
		engine:      newEngine(ledger, prices, options...),
		positions:   make(map[string]*common.Position),
		leverage:    make(map[string]fixed.Point),
		marginTypes: make(map[string]common.MarginType),
	}
	f.settler = f
	return f
}

func (f *Futures) GetPosition(symbol string) (common.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	position, ok := f.positions[strings.ToUpper(symbol)]
	if !ok {
		return common.Position{}, false
	}
	return f.snapshot(position), true
}

func (f *Futures) GetPositions() []common.Position {
	f.mu.Lock()
	defer f.mu.Unlock()

	positions := make([]common.Position, 0, len(f.positions))
	for _, symbol := range slices.Sorted(maps.Keys(f.positions)) {
		positions = append(positions, f.snapshot(f.positions[symbol]))
	}
	return positions
}

// SetLeverage changes the leverage of symbol, or of every symbol when symbol is empty.
func (f *Futures) SetLeverage(leverage fixed.Point, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !leverage.IsPos() {
		return fmt.Errorf("%w: leverage must be positive, got %s", exchange.ErrInvalidOrder, leverage)
	}
	if len(f.positions) > 0 {
		return fmt.Errorf("%w: cannot change leverage while positions are open", exchange.ErrBacktesting)
	}
	if symbol == "" {
		f.defaultLeverage = leverage
		clear(f.leverage)
		return nil
	}
	f.leverage[strings.ToUpper(symbol)] = leverage
	return nil
}

func (f *Futures) GetLeverage(symbol string) fixed.Point {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leverageFor(strings.ToUpper(symbol))
}

func (f *Futures) SetMarginType(symbol string, marginType common.MarginType) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch marginType {
	case common.MarginTypeCrossed:
	case common.MarginTypeIsolated:
		return fmt.Errorf("%w: isolated margin is not supported", exchange.ErrBacktesting)
	default:
		return fmt.Errorf("%w: unknown margin type %q", exchange.ErrInvalidOrder, marginType)
	}
	if len(f.positions) > 0 {
		return fmt.Errorf("%w: cannot change margin type while positions are open", exchange.ErrBacktesting)
	}
	f.marginTypes[strings.ToUpper(symbol)] = marginType
	return nil
}

func (f *Futures) GetMarginType(symbol string) common.MarginType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.marginTypeFor(strings.ToUpper(symbol))
}

// CalculatePositionValue returns the leveraged value of the open position at the current price.
func (f *Futures) CalculatePositionValue(symbol string) (fixed.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	position, ok := f.positions[strings.ToUpper(symbol)]
	if !ok {
		return fixed.Zero, fmt.Errorf("%w: no open position for %s", exchange.ErrNotFound, symbol)
	}
	return f.positionValue(position)
}

// CheckMarginCall flattens every position whose value would leave the account negative.
func (f *Futures) CheckMarginCall() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkMarginCall(f.clock.Now())
}

// DoFunding applies a funding rate to the position of symbol. A positive rate means longs pay
// shorts; the paying side's size shrinks by the rate, the receiving side's size grows.
func (f *Futures) DoFunding(symbol string, rate fixed.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()

	position, ok := f.positions[strings.ToUpper(symbol)]
	if !ok || rate.IsZero() {
		return
	}

	factor := fixed.One.Add(rate.Abs())
	if rate.IsPos() == position.Long() {
		factor = fixed.One.Sub(rate.Abs())
	}
	position.Size = position.Size.Mul(factor)

	f.logger.Debug("funding applied",
		zap.String("symbol", position.Symbol),
		zap.Stringer("rate", rate),
		zap.Stringer("size", position.Size))
}

// AccountValue is the quote balance plus the value of every position quoted in it.
func (f *Futures) AccountValue(quote string) (fixed.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	balance, err := f.ledger.Account(quote)
	if err != nil {
		return fixed.Zero, err
	}
	total := balance.Total()
	for _, position := range f.positions {
		if position.QuoteAsset != quote {
			continue
		}
		value, err := f.positionValue(position)
		if err != nil {
			return fixed.Zero, err
		}
		total = total.Add(value)
	}
	return total, nil
}

func (f *Futures) admit(order common.Order, price fixed.Point) (heldFunds, error) {
	position, exists := f.positions[order.Symbol]
	closing := exists && closes(position, order.Side)

	if order.ReduceOnly {
		if order.Type != common.OrderTypeMarket {
			return heldFunds{}, fmt.Errorf("%w: reduce-only is only supported on market orders", exchange.ErrInvalidOrder)
		}
		if !closing {
			return heldFunds{}, fmt.Errorf("%w: reduce-only order would open or extend a position on %s",
				exchange.ErrInvalidOrder, order.Symbol)
		}
	}

	if closing {
		if order.Size.Gt(position.Size.Abs()) {
			return heldFunds{}, fmt.Errorf("%w: order size %s exceeds position size %s on %s, close your position first",
				exchange.ErrInvalidOrder, order.Size, position.Size.Abs(), order.Symbol)
		}
		return heldFunds{}, nil
	}

	_, quote, err := f.assets(order.Symbol)
	if err != nil {
		return heldFunds{}, fmt.Errorf("%w: %w", exchange.ErrInvalidOrder, err)
	}
	notional, err := notionalOf(order, price)
	if err != nil {
		return heldFunds{}, err
	}
	cost, err := notional.TryMul(fixed.One.Add(f.feeRate(order)))
	if err != nil {
		return heldFunds{}, fmt.Errorf("%w: cost of %s %s out of range: %w", exchange.ErrInvalidOrder, order.Size, order.Symbol, err)
	}
	return heldFunds{asset: quote, amount: cost}, nil
}

func (f *Futures) settle(order common.Order, price fixed.Point, now time.Time) (Fill, error) {
	position, exists := f.positions[order.Symbol]
	closing := exists && closes(position, order.Side)
	hold, held := f.held[order.Id]

	notional := order.Size.Mul(price)
	fee := notional.Mul(f.feeRate(order))
	fill := Fill{Price: price, Size: order.Size, Value: notional, Fee: fee, At: now}

	if !closing {
		if order.ReduceOnly || !held {
			return Fill{}, fmt.Errorf("%w: no position left to reduce on %s", exchange.ErrInvalidOrder, order.Symbol)
		}
		f.ledger.Spend(hold.asset, hold.amount)
		f.open(position, order, notional)
		return fill, nil
	}

	if order.Size.Gt(position.Size.Abs()) {
		return Fill{}, fmt.Errorf("%w: order size %s exceeds position size %s on %s, close your position first",
			exchange.ErrInvalidOrder, order.Size, position.Size.Abs(), order.Symbol)
	}
	if held {
		// Placed as an opening order before the position flipped.
		f.ledger.ReleaseToAvailable(hold.asset, hold.amount)
		delete(f.held, order.Id)
	}
	f.reduce(position, order, price, fee, now)
	return fill, nil
}

func (f *Futures) afterEvaluate(now time.Time) {
	f.checkMarginCall(now)
}

func (f *Futures) open(position *common.Position, order common.Order, notional fixed.Point) {
	if position == nil {
		base, quote, _ := f.assets(order.Symbol)
		position = &common.Position{
			Symbol:     order.Symbol,
			BaseAsset:  base,
			QuoteAsset: quote,
			Size:       fixed.Zero,
			EntryPrice: fixed.Zero,
			Leverage:   f.leverageFor(order.Symbol),
			MarginType: f.marginTypeFor(order.Symbol),
		}
		f.positions[order.Symbol] = position
	}

	size := order.Size
	if order.Side == common.OrderSideSell {
		size = size.Neg()
	}
	position.Size = position.Size.Add(size)
	position.EntryPrice = position.EntryPrice.Add(notional)
}

func (f *Futures) reduce(position *common.Position, order common.Order, price, fee fixed.Point, now time.Time) {
	entryPart := position.EntryPrice.Mul(order.Size).Div(position.Size.Abs())
	exit := price.Mul(order.Size)

	var value fixed.Point
	if position.Long() {
		value = entryPart.Add(exit.Sub(entryPart).Mul(position.Leverage))
		position.Size = position.Size.Sub(order.Size)
	} else {
		value = entryPart.Add(entryPart.Sub(exit).Mul(position.Leverage))
		position.Size = position.Size.Add(order.Size)
	}
	position.EntryPrice = position.EntryPrice.Sub(entryPart)

	net := value.Sub(fee)
	if net.IsNeg() {
		if shortfall := f.ledger.Debit(position.QuoteAsset, net.Neg()); shortfall.IsPos() {
			f.logger.Warn("account cannot cover position loss",
				zap.String("symbol", position.Symbol),
				zap.Stringer("shortfall", shortfall))
		}
	} else {
		f.ledger.Credit(position.QuoteAsset, net)
	}

	if position.Size.Abs().Lt(f.increment(position.Symbol).MulInt(2)) {
		delete(f.positions, position.Symbol)
		f.post(bus.PositionClosedEvent, common.PositionClosed{
			Position:  *position,
			Realized:  net.Sub(entryPart),
			TimeStamp: now,
		})
	}
}

func (f *Futures) checkMarginCall(now time.Time) {
	for _, symbol := range slices.Sorted(maps.Keys(f.positions)) {
		position, ok := f.positions[symbol]
		if !ok {
			continue
		}
		value, err := f.positionValue(position)
		if err != nil {
			f.logger.Debug("unable to value position for margin check", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		cash, err := f.ledger.Account(position.QuoteAsset)
		if err != nil {
			continue
		}
		if !cash.Available.Add(value).IsNeg() {
			continue
		}

		f.logger.Warn("margin call, closing position",
			zap.String("symbol", symbol),
			zap.Stringer("size", position.Size),
			zap.Stringer("value", value),
			zap.Stringer("cash", cash.Available))
		f.post(bus.MarginCallEvent, common.MarginCall{
			Symbol:    symbol,
			Size:      position.Size,
			Value:     value,
			Cash:      cash.Available,
			TimeStamp: now,
		})

		side := common.OrderSideSell
		if !position.Long() {
			side = common.OrderSideBuy
		}
		if _, err := f.submit(common.Order{
			Symbol:     symbol,
			Side:       side,
			Type:       common.OrderTypeMarket,
			Size:       position.Size.Abs(),
			ReduceOnly: true,
		}, nil, false); err != nil {
			f.logger.Error("unable to close position on margin call", zap.String("symbol", symbol), zap.Error(err))
		}
	}
}

func (f *Futures) positionValue(position *common.Position) (fixed.Point, error) {
	price, err := f.prices.Price(position.Symbol)
	if err != nil {
		return fixed.Zero, err
	}
	current := price.Mul(position.Size.Abs())
	if position.Long() {
		return position.EntryPrice.Add(current.Sub(position.EntryPrice).Mul(position.Leverage)), nil
	}
	return position.EntryPrice.Add(position.EntryPrice.Sub(current).Mul(position.Leverage)), nil
}

func (f *Futures) snapshot(position *common.Position) common.Position {
	out := *position
	out.UnrealizedPnL = fixed.Zero
	if value, err := f.positionValue(position); err == nil {
		out.UnrealizedPnL = value.Sub(position.EntryPrice)
	}
	return out
}

func (f *Futures) leverageFor(symbol string) fixed.Point {
	if leverage, ok := f.leverage[symbol]; ok {
		return leverage
	}
	return f.defaultLeverage
}

func (f *Futures) marginTypeFor(symbol string) common.MarginType {
	if marginType, ok := f.marginTypes[symbol]; ok {
		return marginType
	}
	return common.MarginTypeCrossed
}

func closes(position *common.Position, side common.OrderSide) bool {
	if position.Long() {
		return side == common.OrderSideSell
	}
	return side == common.OrderSideBuy
}
