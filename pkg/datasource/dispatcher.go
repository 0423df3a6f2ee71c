package datasource

import (
	"context"

	"github.com/blankly-finance/blankly-sub000/pkg/bus"
	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

type TickSource interface {
	GetNext(ctx context.Context) (common.Tick, error)
}

// CreateTickDispatcher returns a step function that reads one tick and posts it to the router.
func CreateTickDispatcher(r *bus.Router, ds TickSource) func(context.Context) error {
	return func(ctx context.Context) error {
		tick, err := ds.GetNext(ctx)
		if err != nil {
			return err
		}
		return r.Post(bus.TickEvent, tick)
	}
}
