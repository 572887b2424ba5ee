package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

type bookingConfirmRequest struct {
	RestaurantID    int64             `json:"restaurantId"`
	CustomerName    *string           `json:"customerName"`
	CustomerPhone   *string           `json:"customerPhone"`
	DeliveryAddress string            `json:"deliveryAddress"`
	Notes           *string           `json:"notes"`
	Items           []pricing.RawItem `json:"items"`
}

// PublicBookingConfirm creates a delivery order. The booking
// reference in the response is what the customer quotes on the phone.
func (h *Handler) PublicBookingConfirm(w http.ResponseWriter, r *http.Request) {
	var req bookingConfirmRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.RestaurantID == 0 {
		response.Error(w, http.StatusBadRequest, "RESTAURANT_ID_REQUIRED", "restaurantId is required")
		return
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	if address == "" {
		response.Error(w, http.StatusBadRequest, "ADDRESS_REQUIRED", "deliveryAddress is required")
		return
	}

	reference := fmt.Sprintf("BK-%d-%d", req.RestaurantID, time.Now().UnixMilli())
	order, err := h.Orders.Create(r.Context(), store.CreateParams{
		VendorID:         req.RestaurantID,
		OrderType:        store.OrderTypeDelivery,
		Status:           store.StatusPending,
		CustomerName:     req.CustomerName,
		CustomerPhone:    req.CustomerPhone,
		Notes:            req.Notes,
		DeliveryAddress:  &address,
		BookingReference: &reference,
		RawItems:         req.Items,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.publishOrderEvent(r, order, queue.OrderCreatedKey)
	response.Created(w, order)
}
