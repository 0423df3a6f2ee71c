package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/blankly-finance/blankly-sub000/pkg/common"
	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

type FuturesHandler struct {
	ex exchange.FuturesExchange
}

func (f *FuturesHandler) Positions(w http.ResponseWriter, _ *http.Request) {
	positions := f.ex.GetPositions()
	if positions == nil {
		positions = []common.Position{}
	}
	WriteJSON(w, http.StatusOK, positions)
}

func (f *FuturesHandler) Position(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	position, ok := f.ex.GetPosition(symbol)
	if !ok {
		WriteError(w, http.StatusNotFound, "not_found", fmt.Sprintf("no open position in %s", symbol))
		return
	}
	WriteJSON(w, http.StatusOK, position)
}

type leverageRequest struct {
	Leverage fixed.Point `json:"leverage"`
}

func (f *FuturesHandler) SetLeverage(w http.ResponseWriter, r *http.Request) {
	var req leverageRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	symbol := chi.URLParam(r, "symbol")
	if err := f.ex.SetLeverage(req.Leverage, symbol); err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "leverage": f.ex.GetLeverage(symbol)})
}

type marginTypeRequest struct {
	MarginType common.MarginType `json:"margin_type"`
}

func (f *FuturesHandler) SetMarginType(w http.ResponseWriter, r *http.Request) {
	var req marginTypeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	symbol := chi.URLParam(r, "symbol")
	if err := f.ex.SetMarginType(symbol, req.MarginType); err != nil {
		writeExchangeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"symbol": symbol, "margin_type": f.ex.GetMarginType(symbol)})
}
