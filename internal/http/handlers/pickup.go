package handlers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

type pickupOrderRequest struct {
	VendorID      int64             `json:"vendorId"`
	CustomerName  *string           `json:"customerName"`
	CustomerPhone *string           `json:"customerPhone"`
	Notes         *string           `json:"notes"`
	Items         []pricing.RawItem `json:"items"`
}

// PublicPickupOrder creates a takeaway order. The short pickup
// reference is shown at the counter to collect the order.
func (h *Handler) PublicPickupOrder(w http.ResponseWriter, r *http.Request) {
	var req pickupOrderRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.VendorID == 0 {
		response.Error(w, http.StatusBadRequest, "VENDOR_ID_REQUIRED", "vendorId is required")
		return
	}

	reference := fmt.Sprintf("PU-%s", uuid.NewString()[:8])
	order, err := h.Orders.Create(r.Context(), store.CreateParams{
		VendorID:        req.VendorID,
		OrderType:       store.OrderTypePickup,
		Status:          store.StatusPending,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		PickupReference: &reference,
		RawItems:        req.Items,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.publishOrderEvent(r, order, queue.OrderCreatedKey)
	response.Created(w, order)
}
