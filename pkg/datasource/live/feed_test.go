package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
)

func createMockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
}

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

func TestFeed_SubscribeAndReadTicker(t *testing.T) {
	subscribed := make(chan subscribeMessage, 1)
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		var msg subscribeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		subscribed <- msg
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscriptions","channels":[]}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"ticker","product_id":"BTC-USD","price":"42000.5","time":"2024-01-01T00:00:00Z"}`))
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	feed := NewFeed(zap.NewNop(), httpToWS(server.URL), []string{"btc-usd"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := feed.Price("BTC-USD")
	assert.ErrorIs(t, err, exchange.ErrNotFound)

	require.NoError(t, feed.Connect(ctx))
	defer func() { _ = feed.Close() }()

	msg := <-subscribed
	assert.Equal(t, "subscribe", msg.Type)
	assert.Equal(t, []string{"BTC-USD"}, msg.ProductIds)
	assert.Equal(t, []string{"ticker"}, msg.Channels)

	tick, err := feed.GetNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", tick.Symbol)
	assert.Equal(t, "42000.5", tick.Price.String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), tick.TimeStamp)

	price, err := feed.Price("btc-usd")
	require.NoError(t, err)
	assert.Equal(t, "42000.5", price.String())
}

func TestFeed_ServerError(t *testing.T) {
	server := createMockWSServer(t, func(conn *websocket.Conn) {
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","message":"bad product"}`))
		_, _, _ = conn.ReadMessage()
	})
	defer server.Close()

	feed := NewFeed(zap.NewNop(), httpToWS(server.URL), []string{"NOPE-USD"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, feed.Connect(ctx))
	defer func() { _ = feed.Close() }()

	_, err := feed.GetNext(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad product")
}

func TestFeed_NotConnected(t *testing.T) {
	feed := NewFeed(zap.NewNop(), "ws://127.0.0.1:1", nil)
	_, err := feed.GetNext(context.Background())
	assert.Error(t, err)
	assert.NoError(t, feed.Close())
}
