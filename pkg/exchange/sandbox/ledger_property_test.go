package sandbox

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Reserve and release sequences only move funds, so the grand total per asset pair never
// changes and available never goes negative.
func TestProperty_LedgerConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		assets := []string{"USD", "BTC", "ETH"}
		seed := map[string]fixed.Point{}
		for _, asset := range assets {
			seed[asset] = fixed.FromInt64(rapid.Int64Range(0, 1_000_000).Draw(t, "seed_"+asset), 2)
		}
		l := NewLedger(seed)
		total := totalOf(l)

		steps := rapid.IntRange(1, 100).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			asset := rapid.SampledFrom(assets).Draw(t, "asset")
			amount := fixed.FromInt64(rapid.Int64Range(0, 500_000).Draw(t, "amount"), 2)
			balance, _ := l.Account(asset)

			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				ok := l.Reserve(asset, amount)
				if ok != balance.Available.Gte(amount) {
					t.Fatalf("reserve of %s %s returned %v with %s available", amount, asset, ok, balance.Available)
				}
			case 1:
				l.ReleaseToAvailable(asset, fixed.Min(amount, balance.Hold))
			case 2:
				other := rapid.SampledFrom(assets).Draw(t, "other")
				moved := fixed.Min(amount, balance.Hold)
				l.ReleaseToOther(asset, moved, other, moved)
			}

			for name, b := range l.Accounts() {
				if b.Available.IsNeg() || b.Hold.IsNeg() {
					t.Fatalf("negative balance on %s: %+v", name, b)
				}
			}
			if got := totalOf(l); !got.Eq(total) {
				t.Fatalf("total changed from %s to %s", total, got)
			}
		}
	})
}

func totalOf(l *Ledger) fixed.Point {
	sum := fixed.Zero
	for _, balance := range l.Accounts() {
		sum = sum.Add(balance.Total())
	}
	return sum
}
