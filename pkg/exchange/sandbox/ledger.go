package sandbox

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type LedgerOption func(*Ledger)

// WithStrictLookup makes Account fail for assets that were never referenced instead of
// reporting an empty balance.
func WithStrictLookup() LedgerOption {
	return func(l *Ledger) {
		l.strict = true
	}
}

// Ledger tracks available and held funds per asset. All amounts are moved, never created,
// except through Credit and Debit which settle futures profit and loss.
type Ledger struct {
	mu       sync.Mutex
	strict   bool
	balances map[string]common.Balance
}

func NewLedger(seed map[string]fixed.Point, options ...LedgerOption) *Ledger {
	l := &Ledger{}
	for _, option := range options {
		option(l)
	}
	l.reset(seed)
	return l
}

func (l *Ledger) Account(asset string) (common.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.balances[asset]
	if !ok && l.strict {
		return common.Balance{}, fmt.Errorf("%w: no account for asset %s", exchange.ErrNotFound, asset)
	}
	if !ok {
		balance = l.touch(asset)
	}
	return balance, nil
}

func (l *Ledger) Accounts() map[string]common.Balance {
	l.mu.Lock()
	defer l.mu.Unlock()
	return maps.Clone(l.balances)
}

// Assets lists every asset the ledger has seen, sorted.
func (l *Ledger) Assets() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Sorted(maps.Keys(l.balances))
}

// Reserve moves amount from available to hold. It reports false and leaves the balance
// untouched when not enough is available.
func (l *Ledger) Reserve(asset string, amount fixed.Point) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.touch(asset)
	if amount.IsNeg() || balance.Available.Lt(amount) {
		return false
	}
	balance.Available = balance.Available.Sub(amount)
	balance.Hold = balance.Hold.Add(amount)
	l.balances[asset] = balance
	return true
}

func (l *Ledger) ReleaseToAvailable(asset string, amount fixed.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.touch(asset)
	balance.Hold = balance.Hold.Sub(amount)
	balance.Available = balance.Available.Add(amount)
	l.balances[asset] = balance
}

// ReleaseToOther removes amountFrom from the hold of one asset and credits amountTo to the
// available balance of another.
func (l *Ledger) ReleaseToOther(from string, amountFrom fixed.Point, to string, amountTo fixed.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.touch(from)
	src.Hold = src.Hold.Sub(amountFrom)
	l.balances[from] = src

	dst := l.touch(to)
	dst.Available = dst.Available.Add(amountTo)
	l.balances[to] = dst
}

// Spend removes amount from hold without crediting anything.
func (l *Ledger) Spend(asset string, amount fixed.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.touch(asset)
	balance.Hold = balance.Hold.Sub(amount)
	l.balances[asset] = balance
}

func (l *Ledger) Credit(asset string, amount fixed.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.touch(asset)
	balance.Available = balance.Available.Add(amount)
	l.balances[asset] = balance
}

// Debit takes amount from available, clamping at zero. The uncovered remainder is returned.
func (l *Ledger) Debit(asset string, amount fixed.Point) fixed.Point {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.touch(asset)
	shortfall := fixed.Zero
	if balance.Available.Lt(amount) {
		shortfall = amount.Sub(balance.Available)
		balance.Available = fixed.Zero
	} else {
		balance.Available = balance.Available.Sub(amount)
	}
	l.balances[asset] = balance
	return shortfall
}

// Override replaces every balance with the given seed.
func (l *Ledger) Override(seed map[string]fixed.Point) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reset(seed)
}

func (l *Ledger) reset(seed map[string]fixed.Point) {
	l.balances = make(map[string]common.Balance, len(seed))
	for asset, available := range seed {
		l.balances[asset] = common.Balance{Available: available, Hold: fixed.Zero}
	}
}

func (l *Ledger) touch(asset string) common.Balance {
	balance, ok := l.balances[asset]
	if !ok {
		balance = common.Balance{Available: fixed.Zero, Hold: fixed.Zero}
		l.balances[asset] = balance
	}
	return balance
}
