package sandbox

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/btree"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const bookDegree = 32

type bookEntry struct {
	seq   uint64
	order *common.Order
}

func bookLess(a, b bookEntry) bool {
	return a.seq < b.seq
}

type Fill struct {
	Price fixed.Point
	Size  fixed.Point
	Value fixed.Point
	Fee   fixed.Point
	At    time.Time
}

// Book holds the order lifecycle. Active orders iterate in insertion order. It is not safe
// for concurrent use; the owning engine serializes access.
type Book struct {
	seq    uint64
	active *btree.BTreeG[bookEntry]
	index  map[string]bookEntry
	done   map[string]common.Order
}

func NewBook() *Book {
	return &Book{
		active: btree.NewG[bookEntry](bookDegree, bookLess),
		index:  make(map[string]bookEntry),
		done:   make(map[string]common.Order),
	}
}

func (b *Book) Validate(order common.Order) error {
	if order.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", exchange.ErrInvalidOrder)
	}
	if order.Side != common.OrderSideBuy && order.Side != common.OrderSideSell {
		return fmt.Errorf("%w: unknown side %q", exchange.ErrInvalidOrder, order.Side)
	}
	if !order.Size.IsPos() {
		return fmt.Errorf("%w: size must be positive, got %s", exchange.ErrInvalidOrder, order.Size)
	}
	switch order.Type {
	case common.OrderTypeMarket:
	case common.OrderTypeLimit, common.OrderTypeStopLoss, common.OrderTypeTakeProfit:
		if !order.LimitPrice.IsPos() {
			return fmt.Errorf("%w: %s order requires a positive price, got %s",
				exchange.ErrInvalidOrder, order.Type, order.LimitPrice)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", exchange.ErrInvalidOrder, order.Type)
	}
	return nil
}

// Place validates the order, assigns it an id and inserts it as active with the given status.
func (b *Book) Place(order common.Order, status common.OrderStatus) (common.Order, error) {
	if err := b.Validate(order); err != nil {
		return common.Order{}, err
	}
	if order.Type == common.OrderTypeMarket {
		order.LimitPrice = fixed.Zero
	}

	order.Id = utility.NewOrderID()
	order.Status = status
	order.FilledPrice = fixed.Zero
	order.FilledSize = fixed.Zero
	order.ExecutedValue = fixed.Zero
	order.Fee = fixed.Zero

	b.seq++
	entry := bookEntry{seq: b.seq, order: &order}
	b.active.ReplaceOrInsert(entry)
	b.index[order.Id] = entry
	return order, nil
}

func (b *Book) Cancel(id string) (common.Order, error) {
	entry, ok := b.index[id]
	if !ok {
		if order, done := b.done[id]; done {
			return order, fmt.Errorf("%w: order %s is already %s", exchange.ErrNotFound, id, order.Status)
		}
		return common.Order{}, fmt.Errorf("%w: order %s", exchange.ErrNotFound, id)
	}
	b.remove(entry)

	order := *entry.order
	order.Status = common.OrderStatusCanceled
	b.done[id] = order
	return order, nil
}

func (b *Book) Fill(id string, fill Fill) (common.Order, error) {
	entry, ok := b.index[id]
	if !ok {
		return common.Order{}, fmt.Errorf("%w: active order %s", exchange.ErrNotFound, id)
	}
	b.remove(entry)

	order := *entry.order
	order.Status = common.OrderStatusFilled
	order.FilledPrice = fill.Price
	order.FilledSize = fill.Size
	order.ExecutedValue = fill.Value
	order.Fee = fill.Fee
	order.FilledAt = fill.At
	order.ExecutionId = utility.GetExecutionID()
	b.done[id] = order
	return order, nil
}

func (b *Book) Get(id string) (common.Order, error) {
	if entry, ok := b.index[id]; ok {
		return *entry.order, nil
	}
	if order, ok := b.done[id]; ok {
		return order, nil
	}
	return common.Order{}, fmt.Errorf("%w: order %s", exchange.ErrNotFound, id)
}

// Open returns active orders for symbol in insertion order. An empty symbol selects all.
func (b *Book) Open(symbol string) []common.Order {
	orders := make([]common.Order, 0, b.active.Len())
	b.active.Ascend(func(entry bookEntry) bool {
		if symbol == "" || strings.EqualFold(entry.order.Symbol, symbol) {
			orders = append(orders, *entry.order)
		}
		return true
	})
	return orders
}

// Symbols lists the symbols that have active orders, sorted.
func (b *Book) Symbols() []string {
	set := make(map[string]struct{})
	b.active.Ascend(func(entry bookEntry) bool {
		set[entry.order.Symbol] = struct{}{}
		return true
	})
	return slices.Sorted(maps.Keys(set))
}

func (b *Book) Len() int {
	return b.active.Len()
}

func (b *Book) remove(entry bookEntry) {
	b.active.Delete(entry)
	delete(b.index, entry.order.Id)
}
