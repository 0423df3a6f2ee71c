package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type Handler struct {
	ex     exchange.Exchange
	quote  string
	logger *zap.Logger
}

type submitOrderRequest struct {
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"`
	Type       string      `json:"type"`
	Size       fixed.Point `json:"size"`
	Price      fixed.Point `json:"price"`
	ReduceOnly bool        `json:"reduce_only"`
}

// SubmitOrder handles POST /orders.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	side, ok := common.ParseOrderSide(req.Side)
	if !ok {
		WriteError(w, http.StatusBadRequest, "invalid_order", fmt.Sprintf("unknown side %q", req.Side))
		return
	}

	var opts []exchange.OrderOption
	if req.ReduceOnly {
		opts = append(opts, exchange.ReduceOnly())
	}

	var order common.Order
	var err error
	switch common.OrderType(strings.ToLower(req.Type)) {
	case common.OrderTypeMarket:
		order, err = h.ex.MarketOrder(req.Symbol, side, req.Size, opts...)
	case common.OrderTypeLimit:
		order, err = h.ex.LimitOrder(req.Symbol, side, req.Price, req.Size, opts...)
	case common.OrderTypeStopLoss:
		order, err = h.ex.StopLossOrder(req.Symbol, side, req.Price, req.Size, opts...)
	case common.OrderTypeTakeProfit:
		order, err = h.ex.TakeProfitOrder(req.Symbol, side, req.Price, req.Size, opts...)
	default:
		WriteError(w, http.StatusBadRequest, "invalid_order", fmt.Sprintf("unknown order type %q", req.Type))
		return
	}
	if err != nil {
		h.logger.Debug("order rejected", zap.String("symbol", req.Symbol), zap.Error(err))
		writeExchangeError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, order)
}

// OpenOrders handles GET /orders with an optional symbol query parameter.
func (h *Handler) OpenOrders(w http.ResponseWriter, r *http.Request) {
	orders := h.ex.GetOpenOrders(r.URL.Query().Get("symbol"))
	if orders == nil {
		orders = []common.Order{}
	}
	WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ex.GetOrder(chi.URLParam(r, "symbol"), chi.URLParam(r, "order_id"))
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ex.CancelOrder(chi.URLParam(r, "symbol"), chi.URLParam(r, "order_id"))
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) Accounts(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, h.ex.GetAccounts())
}

func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ex.GetAccount(strings.ToUpper(chi.URLParam(r, "asset")))
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, balance)
}

// Value handles GET /value. The quote query parameter overrides the configured quote.
func (h *Handler) Value(w http.ResponseWriter, r *http.Request) {
	valuer, ok := h.ex.(Valuer)
	if !ok {
		WriteError(w, http.StatusNotImplemented, "unsupported", "account valuation is not available")
		return
	}

	quote := strings.ToUpper(r.URL.Query().Get("quote"))
	if quote == "" {
		quote = h.quote
	}
	value, err := valuer.AccountValue(quote)
	if err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"quote": quote, "value": value})
}
