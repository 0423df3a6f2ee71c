package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

var defaultMinIncrement = fixed.FromInt(1, 8)

type heldFunds struct {
	asset  string
	amount fixed.Point
}

// settler carries the market-specific rules of a spot or futures engine.
type settler interface {
	// admit checks the order against account state and returns the funds to reserve for it.
	admit(order common.Order, price fixed.Point) (heldFunds, error)
	// settle applies the fill to the ledger. On error nothing was mutated and the order is canceled.
	settle(order common.Order, price fixed.Point, now time.Time) (Fill, error)
	afterEvaluate(now time.Time)
}

// engine is the order entry and matching core shared by Spot and Futures. Every exported
// method holds mu for its whole read-modify-write sequence.
type engine struct {
	mu sync.Mutex

	logger   *zap.Logger
	ledger   *Ledger
	book     *Book
	prices   exchange.PriceSource
	clock    exchange.Clock
	products exchange.ProductInfo
	router   *bus.Router
	settler  settler

	makerFee        fixed.Point
	takerFee        fixed.Point
	minIncrement    fixed.Point
	defaultLeverage fixed.Point

	held map[string]heldFunds
}

func newEngine(ledger *Ledger, prices exchange.PriceSource, options ...Option) *engine {
	e := &engine{
		logger:          zap.NewNop(),
		ledger:          ledger,
		book:            NewBook(),
		prices:          prices,
		clock:           exchange.SystemClock{},
		makerFee:        fixed.Zero,
		takerFee:        fixed.Zero,
		minIncrement:    defaultMinIncrement,
		defaultLeverage: fixed.One,
		held:            make(map[string]heldFunds),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *engine) Ledger() *Ledger {
	return e.ledger
}

func (e *engine) MarketOrder(symbol string, side common.OrderSide, size fixed.Point, opts ...exchange.OrderOption) (common.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.submit(common.Order{
		Symbol: symbol,
		Side:   side,
		Type:   common.OrderTypeMarket,
		Size:   size,
	}, opts, true)
}

func (e *engine) LimitOrder(symbol string, side common.OrderSide, price, size fixed.Point, opts ...exchange.OrderOption) (common.Order, error) {
	return e.resting(common.OrderTypeLimit, symbol, side, price, size, opts)
}

func (e *engine) StopLossOrder(symbol string, side common.OrderSide, trigger, size fixed.Point, opts ...exchange.OrderOption) (common.Order, error) {
	return e.resting(common.OrderTypeStopLoss, symbol, side, trigger, size, opts)
}

func (e *engine) TakeProfitOrder(symbol string, side common.OrderSide, trigger, size fixed.Point, opts ...exchange.OrderOption) (common.Order, error) {
	return e.resting(common.OrderTypeTakeProfit, symbol, side, trigger, size, opts)
}

func (e *engine) CancelOrder(symbol, id string) (common.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.book.Get(id)
	if err != nil {
		return common.Order{}, err
	}
	if symbol != "" && !strings.EqualFold(order.Symbol, symbol) {
		return common.Order{}, fmt.Errorf("%w: order %s does not belong to %s", exchange.ErrNotFound, id, symbol)
	}
	return e.cancel(id, "canceled by user")
}

func (e *engine) GetOpenOrders(symbol string) []common.Order {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.book.Open(symbol)
}

func (e *engine) GetOrder(symbol, id string) (common.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.book.Get(id)
	if err != nil {
		return common.Order{}, err
	}
	if symbol != "" && !strings.EqualFold(order.Symbol, symbol) {
		return common.Order{}, fmt.Errorf("%w: order %s does not belong to %s", exchange.ErrNotFound, id, symbol)
	}
	return order, nil
}

func (e *engine) GetAccount(asset string) (common.Balance, error) {
	return e.ledger.Account(asset)
}

func (e *engine) GetAccounts() map[string]common.Balance {
	return e.ledger.Accounts()
}

// OnTick evaluates the resting orders of the tick's symbol at the tick price. Futures engines
// run the margin check afterward.
func (e *engine) OnTick(_ context.Context, tick common.Tick) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evaluate(tick.Symbol, tick.Price, tick.TimeStamp)
	e.settler.afterEvaluate(tick.TimeStamp)
}

// EvaluateLimits pulls the current price of every symbol with resting orders and fills what
// has crossed. It is the body of the live watchdog.
func (e *engine) EvaluateLimits(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clock.Now()
	for _, symbol := range e.book.Symbols() {
		price, err := e.prices.Price(symbol)
		if err != nil {
			e.logger.Warn("unable to price symbol for limit evaluation",
				zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		e.evaluate(symbol, price, now)
	}
	e.settler.afterEvaluate(now)
	return nil
}

func (e *engine) resting(orderType common.OrderType, symbol string, side common.OrderSide, price, size fixed.Point, opts []exchange.OrderOption) (common.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.submit(common.Order{
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Size:       size,
		LimitPrice: price,
	}, opts, true)
}

func (e *engine) submit(order common.Order, opts []exchange.OrderOption, normalize bool) (common.Order, error) {
	for _, opt := range opts {
		opt(&order)
	}
	order.Symbol = strings.ToUpper(order.Symbol)

	if normalize {
		if err := e.normalize(&order); err != nil {
			return common.Order{}, err
		}
	}
	if err := e.book.Validate(order); err != nil {
		return common.Order{}, err
	}

	price := order.LimitPrice
	if order.Type == common.OrderTypeMarket {
		current, err := e.prices.Price(order.Symbol)
		if err != nil {
			return common.Order{}, fmt.Errorf("unable to price market order for %s: %w", order.Symbol, err)
		}
		price = current
	}

	hold, err := e.settler.admit(order, price)
	if err != nil {
		return common.Order{}, err
	}
	if hold.amount.IsPos() && !e.ledger.Reserve(hold.asset, hold.amount) {
		available, _ := e.ledger.Account(hold.asset)
		return common.Order{}, fmt.Errorf("%w: need %s %s, available %s",
			exchange.ErrInsufficientFunds, hold.amount, hold.asset, available.Available)
	}

	order.CreatedAt = e.clock.Now()
	placed, err := e.book.Place(order, common.OrderStatusOpen)
	if err != nil {
		if hold.amount.IsPos() {
			e.ledger.ReleaseToAvailable(hold.asset, hold.amount)
		}
		return common.Order{}, err
	}
	if hold.amount.IsPos() {
		e.held[placed.Id] = hold
	}

	if placed.Type == common.OrderTypeMarket {
		return e.execute(placed, price, placed.CreatedAt)
	}
	return placed, nil
}

func (e *engine) normalize(order *common.Order) error {
	if e.products == nil {
		return nil
	}
	info, err := e.products.OrderFilter(order.Symbol)
	if err != nil {
		return fmt.Errorf("%w: %w", exchange.ErrInvalidOrder, err)
	}
	if order.Size, err = info.NormalizeSize(order.Size); err != nil {
		return err
	}
	if order.LimitLike() {
		if order.LimitPrice, err = info.NormalizePrice(order.LimitPrice); err != nil {
			return err
		}
	}
	return nil
}

func (e *engine) evaluate(symbol string, price fixed.Point, now time.Time) {
	for _, order := range e.book.Open(symbol) {
		if !shouldFill(order, price) {
			continue
		}
		if _, err := e.execute(order, order.LimitPrice, now); err != nil {
			e.logger.Warn("resting order dropped at fill time",
				zap.String("id", order.Id), zap.String("symbol", order.Symbol), zap.Error(err))
		}
	}
}

func (e *engine) execute(order common.Order, price fixed.Point, now time.Time) (common.Order, error) {
	fill, err := e.settler.settle(order, price, now)
	if err != nil {
		if _, cancelErr := e.cancel(order.Id, err.Error()); cancelErr != nil {
			e.logger.Error("unable to cancel unfillable order", zap.String("id", order.Id), zap.Error(cancelErr))
		}
		return common.Order{}, err
	}
	delete(e.held, order.Id)

	filled, err := e.book.Fill(order.Id, fill)
	if err != nil {
		return common.Order{}, err
	}
	e.logger.Debug("order filled",
		zap.String("id", filled.Id),
		zap.String("symbol", filled.Symbol),
		zap.String("side", string(filled.Side)),
		zap.Stringer("price", filled.FilledPrice),
		zap.Stringer("size", filled.FilledSize))
	e.post(bus.OrderFilledEvent, common.OrderFilled{Order: filled, TimeStamp: now})
	return filled, nil
}

func (e *engine) cancel(id, reason string) (common.Order, error) {
	order, err := e.book.Cancel(id)
	if err != nil {
		return common.Order{}, err
	}
	if hold, ok := e.held[id]; ok {
		e.ledger.ReleaseToAvailable(hold.asset, hold.amount)
		delete(e.held, id)
	}
	e.post(bus.OrderCanceledEvent, common.OrderCanceled{Order: order, Reason: reason, TimeStamp: e.clock.Now()})
	return order, nil
}

func (e *engine) assets(symbol string) (string, string, error) {
	if e.products != nil {
		if info, err := e.products.OrderFilter(symbol); err == nil && info.BaseAsset != "" && info.QuoteAsset != "" {
			return info.BaseAsset, info.QuoteAsset, nil
		}
	}
	return common.SplitSymbol(symbol)
}

func (e *engine) increment(symbol string) fixed.Point {
	if e.products != nil {
		if info, err := e.products.OrderFilter(symbol); err == nil && info.BaseIncrement.IsPos() {
			return info.BaseIncrement
		}
	}
	return e.minIncrement
}

func (e *engine) feeRate(order common.Order) fixed.Point {
	if order.Type == common.OrderTypeMarket {
		return e.takerFee
	}
	return e.makerFee
}

func (e *engine) post(id bus.EventId, data any) {
	if e.router == nil {
		return
	}
	if err := e.router.Post(id, data); err != nil {
		e.logger.Warn("unable to post event", zap.Error(err))
	}
}

// shouldFill is inclusive at the boundary. Stop losses trigger on the opposite side of a limit.
// notionalOf rejects orders whose value at price does not fit the decimal range, so settlement
// never overflows.
func notionalOf(order common.Order, price fixed.Point) (fixed.Point, error) {
	notional, err := order.Size.TryMul(price)
	if err != nil {
		return fixed.Zero, fmt.Errorf("%w: notional of %s %s at %s out of range: %w",
			exchange.ErrInvalidOrder, order.Size, order.Symbol, price, err)
	}
	return notional, nil
}

func shouldFill(order common.Order, price fixed.Point) bool {
	switch order.Type {
	case common.OrderTypeLimit, common.OrderTypeTakeProfit:
		if order.Side == common.OrderSideBuy {
			return price.Lte(order.LimitPrice)
		}
		return price.Gte(order.LimitPrice)
	case common.OrderTypeStopLoss:
		if order.Side == common.OrderSideBuy {
			return price.Gte(order.LimitPrice)
		}
		return price.Lte(order.LimitPrice)
	}
	return false
}
