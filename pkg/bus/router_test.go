package bus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
)

func TestBusRouter_Post(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	require.NoError(t, r.Post(TickEvent, common.Tick{}))
	assert.Equal(t, uint64(1), r.postCount.Load())
}

func TestBusRouter_PostCapacityReached(t *testing.T) {
	r := NewRouter(zap.NewNop(), 1)

	require.NoError(t, r.Post(TickEvent, common.Tick{}))

	err := r.Post(TickEvent, common.Tick{})
	assert.ErrorIs(t, err, ErrCapacityReached)
	assert.Equal(t, uint64(1), r.postFails.Load())
}

func TestBusRouter_Exec(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	handled := make(chan struct{}, 1)
	r.OnTick = func(ctx context.Context, tick common.Tick) {
		handled <- struct{}{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errChan := r.Exec(ctx)

	require.NoError(t, r.Post(TickEvent, common.Tick{}))

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatal("tick handler not called")
	}

	cancel()
	err := <-errChan
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, uint64(1), r.dispatchCount.Load())
}

func TestBusRouter_DrainAllEventTypes(t *testing.T) {
	r := NewRouter(zap.NewNop(), 20)

	handled := map[EventId]bool{}

	r.OnTick = func(ctx context.Context, tick common.Tick) { handled[TickEvent] = true }
	r.OnBar = func(ctx context.Context, bar common.Bar) { handled[BarEvent] = true }
	r.OnOrderFilled = func(ctx context.Context, filled common.OrderFilled) { handled[OrderFilledEvent] = true }
	r.OnOrderCanceled = func(ctx context.Context, canceled common.OrderCanceled) { handled[OrderCanceledEvent] = true }
	r.OnPositionClosed = func(ctx context.Context, closed common.PositionClosed) { handled[PositionClosedEvent] = true }
	r.OnMarginCall = func(ctx context.Context, call common.MarginCall) { handled[MarginCallEvent] = true }

	require.NoError(t, r.Post(TickEvent, common.Tick{}))
	require.NoError(t, r.Post(BarEvent, common.Bar{}))
	require.NoError(t, r.Post(OrderFilledEvent, common.OrderFilled{}))
	require.NoError(t, r.Post(OrderCanceledEvent, common.OrderCanceled{}))
	require.NoError(t, r.Post(PositionClosedEvent, common.PositionClosed{}))
	require.NoError(t, r.Post(MarginCallEvent, common.MarginCall{}))

	assert.Equal(t, 6, r.Drain(context.Background()))
	assert.Len(t, handled, 6)
	assert.Equal(t, 0, r.Drain(context.Background()))
}

func TestBusRouter_InvalidTypeAssertion(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)
	r.OnTick = func(ctx context.Context, tick common.Tick) {
		t.Error("handler should not be called")
	}

	require.NoError(t, r.Post(TickEvent, "invalid data type"))
	r.Drain(context.Background())

	assert.Equal(t, uint64(1), r.dispatchFails.Load())
}

func TestBusRouter_NilHandlersAndUnsupportedId(t *testing.T) {
	r := NewRouter(zap.NewNop(), 10)

	require.NoError(t, r.Post(TickEvent, common.Tick{}))
	require.NoError(t, r.Post(EventId(200), nil))
	r.Drain(context.Background())

	stats := r.Statistics()
	assert.Equal(t, uint64(2), stats.DispatchCount)
	assert.Equal(t, uint64(1), stats.DispatchFails)
}

func TestBusMergeHandlers(t *testing.T) {
	var calls []string
	merged := MergeHandlers[common.Tick](
		func(ctx context.Context, tick common.Tick) { calls = append(calls, "a") },
		nil,
		func(ctx context.Context, tick common.Tick) { calls = append(calls, "b") },
	)
	merged(context.Background(), common.Tick{})
	assert.Equal(t, []string{"a", "b"}, calls)
}
