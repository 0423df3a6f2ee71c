package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/blankly-finance/blankly-sub000/pkg/exchange"
	"github.com/blankly-finance/blankly-sub000/pkg/utility/fixed"
)

// Valuer values the whole paper account in one currency.
type Valuer interface {
	AccountValue(quote string) (fixed.Point, error)
}

// NewRouter exposes a paper exchange over HTTP. Position and leverage routes are mounted only
// when ex is a futures exchange.
func NewRouter(ex exchange.Exchange, quote string, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	h := &Handler{ex: ex, quote: quote, logger: logger}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/orders", h.SubmitOrder)
	r.Get("/orders", h.OpenOrders)
	r.Get("/orders/{symbol}/{order_id}", h.GetOrder)
	r.Delete("/orders/{symbol}/{order_id}", h.CancelOrder)

	r.Get("/accounts", h.Accounts)
	r.Get("/accounts/{asset}", h.Account)
	r.Get("/value", h.Value)

	if futures, ok := ex.(exchange.FuturesExchange); ok {
		f := &FuturesHandler{ex: futures}
		r.Get("/positions", f.Positions)
		r.Get("/positions/{symbol}", f.Position)
		r.Put("/positions/{symbol}/leverage", f.SetLeverage)
		r.Put("/positions/{symbol}/margin-type", f.SetMarginType)
	}

	return r
}

func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if err := checkContentType(r); err != nil {
				WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
