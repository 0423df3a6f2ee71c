package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

const tickerChannel = "ticker"

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIds []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

type tickerMessage struct {
	Type      string      `json:"type"`
	ProductId string      `json:"product_id"`
	Price     fixed.Point `json:"price"`
	Time      time.Time   `json:"time"`
	Message   string      `json:"message"`
}

// Feed subscribes to a ticker websocket and keeps the last traded price per product. It is
// the live price source of the paper engines and a tick source for the router.
type Feed struct {
	logger  *zap.Logger
	url     string
	symbols []string
	dialer  *websocket.Dialer

	connMu sync.Mutex
	conn   *websocket.Conn

	mu     sync.RWMutex
	prices map[string]fixed.Point
}

func NewFeed(logger *zap.Logger, url string, symbols []string) *Feed {
	upper := make([]string, len(symbols))
	for i, symbol := range symbols {
		upper[i] = strings.ToUpper(symbol)
	}
	return &Feed{
		logger:  logger,
		url:     url,
		symbols: upper,
		dialer:  websocket.DefaultDialer,
		prices:  make(map[string]fixed.Point),
	}
}

func (f *Feed) Connect(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("unable to dial %s: %w", f.url, err)
	}

	subscribe := subscribeMessage{
		Type:       "subscribe",
		ProductIds: f.symbols,
		Channels:   []string{tickerChannel},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		_ = conn.Close()
		return fmt.Errorf("unable to subscribe: %w", err)
	}

	f.connMu.Lock()
	f.conn = conn
	f.connMu.Unlock()

	f.logger.Info("price feed connected", zap.String("url", f.url), zap.Strings("symbols", f.symbols))
	return nil
}

func (f *Feed) Close() error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	if f.conn == nil {
		return nil
	}
	_ = f.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := f.conn.Close()
	f.conn = nil
	return err
}

// GetNext blocks until the next ticker message arrives. Other message types are skipped and
// an error message from the server is returned as an error.
func (f *Feed) GetNext(ctx context.Context) (common.Tick, error) {
	f.connMu.Lock()
	conn := f.conn
	f.connMu.Unlock()

	if conn == nil {
		return common.Tick{}, fmt.Errorf("price feed is not connected")
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}

	for {
		if err := ctx.Err(); err != nil {
			return common.Tick{}, err
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			return common.Tick{}, fmt.Errorf("cannot read data: %w", err)
		}

		var msg tickerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			f.logger.Warn("unmarshal failed", zap.ByteString("raw", raw), zap.Error(err))
			continue
		}

		switch msg.Type {
		case tickerChannel:
		case "error":
			return common.Tick{}, fmt.Errorf("feed error: %s", msg.Message)
		default:
			f.logger.Debug("skipping message", zap.String("type", msg.Type))
			continue
		}

		symbol := strings.ToUpper(msg.ProductId)
		if msg.Time.IsZero() {
			msg.Time = time.Now().UTC()
		}

		f.mu.Lock()
		f.prices[symbol] = msg.Price
		f.mu.Unlock()

		return common.Tick{Symbol: symbol, Price: msg.Price, TimeStamp: msg.Time.UTC()}, nil
	}
}

func (f *Feed) Price(symbol string) (fixed.Point, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	price, ok := f.prices[strings.ToUpper(symbol)]
	if !ok {
		return fixed.Zero, fmt.Errorf("no ticker received for %s: %w", symbol, exchange.ErrNotFound)
	}
	return price, nil
}
