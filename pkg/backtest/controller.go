package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/datasource"
	"github.com/blankly-finance/blankly-sub000/pkg/utility"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

var (
	ErrAlreadyRun      = errors.New("backtest already run")
	ErrNoData          = errors.New("no replay data")
	ErrInvalidInterval = errors.New("invalid price event interval")
)

type State int

const (
	NotStarted State = iota
	Running
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// PriceField selects the bar field replayed as the price.
type PriceField string

const (
	UseOpen  PriceField = "open"
	UseClose PriceField = "close"
)

func ParsePriceField(s string) (PriceField, error) {
	switch PriceField(strings.ToLower(s)) {
	case UseOpen, "":
		return UseOpen, nil
	case UseClose:
		return UseClose, nil
	}
	return "", fmt.Errorf("unknown price field %q", s)
}

// PriceCallback is strategy code run on a fixed cadence with the current price of its symbol.
type PriceCallback func(ctx context.Context, price fixed.Point, symbol string) error

type PriceEvent struct {
	Symbol   string
	Interval time.Duration
	Callback PriceCallback
}

type FundingEvent struct {
	Symbol    string
	TimeStamp time.Time
	Rate      fixed.Point
}

// Engine is the simulated exchange the replay drives.
type Engine interface {
	OnTick(ctx context.Context, tick common.Tick)
	GetAccounts() map[string]common.Balance
	AccountValue(quote string) (fixed.Point, error)
}

// FundingEngine is implemented by engines that carry perpetual positions.
type FundingEngine interface {
	DoFunding(symbol string, rate fixed.Point)
}

type frameEntry struct {
	t      time.Time
	symbol string
	price  fixed.Point
}

type scheduledEvent struct {
	PriceEvent
	nextRun time.Time
}

// Controller replays historical bars through an engine in strict time order, firing the
// scheduled price events and recording the account after every step.
type Controller struct {
	logger    *zap.Logger
	engine    Engine
	source    *datasource.Switch
	router    *bus.Router
	histories map[string][]common.Bar
	events    []PriceEvent
	funding   []FundingEvent
	usePrice  PriceField
	quote     string
	state     State
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithRouter makes the controller drain engine events after every step so handlers observe
// fills before the next price arrives.
func WithRouter(router *bus.Router) Option {
	return func(c *Controller) {
		c.router = router
	}
}

func WithFunding(events ...FundingEvent) Option {
	return func(c *Controller) {
		c.funding = append(c.funding, events...)
	}
}

func WithUsePrice(field PriceField) Option {
	return func(c *Controller) {
		c.usePrice = field
	}
}

func WithQuoteCurrency(quote string) Option {
	return func(c *Controller) {
		c.quote = strings.ToUpper(quote)
	}
}

func NewController(engine Engine, source *datasource.Switch, histories map[string][]common.Bar, events []PriceEvent, options ...Option) *Controller {
	c := &Controller{
		logger:    zap.NewNop(),
		engine:    engine,
		source:    source,
		histories: make(map[string][]common.Bar, len(histories)),
		events:    events,
		usePrice:  UseOpen,
		quote:     "USD",
	}
	for symbol, bars := range histories {
		c.histories[strings.ToUpper(symbol)] = bars
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Controller) State() State {
	return c.state
}

// Run replays the whole history once. Price and time revert to live behaviour when it
// returns, whatever the outcome.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if c.state != NotStarted {
		return nil, ErrAlreadyRun
	}

	timeline, firsts, err := c.build()
	if err != nil {
		return nil, err
	}

	events := make([]*scheduledEvent, 0, len(c.events))
	for _, ev := range c.events {
		symbol := strings.ToUpper(ev.Symbol)
		if ev.Interval <= 0 {
			return nil, fmt.Errorf("%s every %s: %w", symbol, ev.Interval, ErrInvalidInterval)
		}
		first, ok := firsts[symbol]
		if !ok {
			return nil, fmt.Errorf("price event on %s: %w", symbol, ErrNoData)
		}
		ev.Symbol = symbol
		events = append(events, &scheduledEvent{PriceEvent: ev, nextRun: first})
	}

	funding := append([]FundingEvent(nil), c.funding...)
	sort.SliceStable(funding, func(i, j int) bool {
		return funding[i].TimeStamp.Before(funding[j].TimeStamp)
	})

	a := &audit{}
	c.attach(a)

	c.state = Running
	frame := c.source.Begin(c.histories)
	defer func() {
		c.source.End()
		utility.ResetExecutionID()
		c.state = Finished
	}()

	c.logger.Info("backtest started",
		zap.Int("steps", len(timeline)),
		zap.Int("symbols", len(c.histories)),
		zap.Int("price_events", len(events)),
		zap.String("use_price", string(c.usePrice)))

	result := &Result{Quote: c.quote}
	fundingIdx := 0
	lastValue := c.quoteBalance()

	for _, entry := range timeline {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest interrupted at %s: %w", entry.t.Format(time.RFC3339), err)
		}

		frame.Update(entry.symbol, entry.price, entry.t)

		for fundingIdx < len(funding) && !funding[fundingIdx].TimeStamp.After(entry.t) {
			c.applyFunding(funding[fundingIdx])
			fundingIdx++
		}

		c.engine.OnTick(ctx, common.Tick{Symbol: entry.symbol, Price: entry.price, TimeStamp: entry.t})
		c.drain(ctx)

		for _, ev := range events {
			if ev.Symbol != entry.symbol {
				continue
			}
			for !ev.nextRun.After(entry.t) {
				c.invoke(ctx, ev, entry.price)
				c.drain(ctx)
				ev.nextRun = ev.nextRun.Add(ev.Interval)
			}
		}

		row := c.snapshot(entry.t, &lastValue)
		result.Rows = append(result.Rows, row)
		a.addSnapshot(row.Value, row.Time)
	}

	result.Report = a.generateReport()
	c.logger.Info("backtest finished", zap.Int("rows", len(result.Rows)))
	return result, nil
}

// build flattens the histories into one ascending sequence. Equal timestamps are ordered by
// symbol so a replay is deterministic.
func (c *Controller) build() ([]frameEntry, map[string]time.Time, error) {
	var timeline []frameEntry
	firsts := make(map[string]time.Time)

	for symbol, bars := range c.histories {
		for _, bar := range bars {
			price := bar.Open
			if c.usePrice == UseClose {
				price = bar.Close
			}
			timeline = append(timeline, frameEntry{t: bar.TimeStamp, symbol: symbol, price: price})

			if first, ok := firsts[symbol]; !ok || bar.TimeStamp.Before(first) {
				firsts[symbol] = bar.TimeStamp
			}
		}
	}

	if len(timeline) == 0 {
		return nil, nil, ErrNoData
	}

	sort.SliceStable(timeline, func(i, j int) bool {
		if !timeline[i].t.Equal(timeline[j].t) {
			return timeline[i].t.Before(timeline[j].t)
		}
		return timeline[i].symbol < timeline[j].symbol
	})
	return timeline, firsts, nil
}

func (c *Controller) attach(a *audit) {
	if c.router == nil {
		return
	}
	c.router.OnOrderFilled = bus.MergeHandlers[common.OrderFilled](c.router.OnOrderFilled,
		func(context.Context, common.OrderFilled) { a.addFill() })
	c.router.OnPositionClosed = bus.MergeHandlers[common.PositionClosed](c.router.OnPositionClosed,
		func(_ context.Context, closed common.PositionClosed) { a.addClosedPosition(closed) })
}

func (c *Controller) drain(ctx context.Context) {
	if c.router != nil {
		c.router.Drain(ctx)
	}
}

func (c *Controller) applyFunding(ev FundingEvent) {
	engine, ok := c.engine.(FundingEngine)
	if !ok {
		c.logger.Warn("funding event ignored by spot engine", zap.String("symbol", ev.Symbol))
		return
	}
	engine.DoFunding(strings.ToUpper(ev.Symbol), ev.Rate)
}

// invoke runs one callback. Errors and panics are logged and the replay goes on.
func (c *Controller) invoke(ctx context.Context, ev *scheduledEvent, price fixed.Point) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("price event panicked",
				zap.String("symbol", ev.Symbol),
				zap.Time("time", ev.nextRun),
				zap.Any("panic", r))
		}
	}()

	if err := ev.Callback(ctx, price, ev.Symbol); err != nil {
		c.logger.Warn("price event failed",
			zap.String("symbol", ev.Symbol),
			zap.Time("time", ev.nextRun),
			zap.Error(err))
	}
}

// quoteBalance is the account value reported until every held asset has a replay price.
func (c *Controller) quoteBalance() fixed.Point {
	if balance, ok := c.engine.GetAccounts()[c.quote]; ok {
		return balance.Total()
	}
	return fixed.Zero
}

func (c *Controller) snapshot(t time.Time, lastValue *fixed.Point) Row {
	accounts := c.engine.GetAccounts()
	row := Row{Time: t, Available: make(map[string]fixed.Point, len(accounts))}
	for asset, balance := range accounts {
		row.Available[asset] = balance.Available
	}

	value, err := c.engine.AccountValue(c.quote)
	if err != nil {
		c.logger.Debug("account value carried forward", zap.Time("time", t), zap.Error(err))
		value = *lastValue
	}
	*lastValue = value
	row.Value = value
	return row
}
