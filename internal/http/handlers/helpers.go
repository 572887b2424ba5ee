package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

var errMissingParam = errors.New("missing param")

func zapError(err error) zap.Field {
	return zap.Error(err)
}

func readPathInt64(r *http.Request, key string) (int64, error) {
	value := chi.URLParam(r, key)
	if value == "" {
		return 0, errMissingParam
	}
	var out int64
	_, err := fmt.Sscan(value, &out)
	return out, err
}

func decodeBody(r *http.Request, into any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(into)
}

// writeStoreError maps the domain error taxonomy onto the HTTP
// surface. Unrecognized errors become a logged 500.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrOrderNotFound):
		response.Error(w, http.StatusNotFound, "ORDER_NOT_FOUND", "Order not found")
	case errors.Is(err, store.ErrTableNotFound):
		response.Error(w, http.StatusNotFound, "TABLE_NOT_FOUND", "Table not found")
	case errors.Is(err, store.ErrOrderTerminal):
		response.Error(w, http.StatusConflict, "ORDER_TERMINAL", "Order can no longer be edited")
	case errors.Is(err, store.ErrInvalidTransition):
		response.Error(w, http.StatusBadRequest, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, store.ErrTableLockFailed):
		h.Logger.Error("table lock invariant violated", zapError(err))
		response.Error(w, http.StatusInternalServerError, "TABLE_LOCK_FAILED", "Table state could not be established")
	case errors.Is(err, pricing.ErrEmptyOrder):
		response.Error(w, http.StatusBadRequest, "EMPTY_ORDER", "Order must contain at least one item")
	case errors.Is(err, pricing.ErrItemNotFound):
		response.Error(w, http.StatusBadRequest, "ITEM_NOT_FOUND", err.Error())
	case errors.Is(err, pricing.ErrInvalidPrice):
		response.Error(w, http.StatusBadRequest, "INVALID_PRICE", err.Error())
	default:
		h.Logger.Error("order operation failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

// publishOrderEvent pushes a lifecycle event onto the message bus for
// the notification worker; the routing key doubles as the envelope
// type. Publish failures are logged, never surfaced; the HTTP
// mutation already succeeded.
func (h *Handler) publishOrderEvent(r *http.Request, order *store.Order, key string) {
	if h.Queue == nil || order == nil {
		return
	}
	evt := queue.OrderEvent{
		Type:      key,
		OrderID:   order.ID,
		VendorID:  order.VendorID,
		OrderType: order.OrderType,
		Status:    order.Status,
		UpdatedAt: &order.UpdatedAt,
	}
	if err := h.Queue.PublishJSON(r.Context(), queue.EventsExchange, key, evt); err != nil {
		h.Logger.Warn("order event publish failed",
			zap.Int64("orderId", order.ID), zap.String("key", key), zapError(err))
	}
}
