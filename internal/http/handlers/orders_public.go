package handlers

import (
	"net/http"

	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

type publicCreateOrderRequest struct {
	VendorID      int64             `json:"vendorId"`
	TableID       *int64            `json:"tableId"`
	CustomerName  *string           `json:"customerName"`
	CustomerPhone *string           `json:"customerPhone"`
	Notes         *string           `json:"notes"`
	Items         []pricing.RawItem `json:"items"`
}

// PublicCreateOrder is the QR dine-in entry point. Orders arrive as
// pending and wait for the vendor to accept them.
func (h *Handler) PublicCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req publicCreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.VendorID == 0 {
		response.Error(w, http.StatusBadRequest, "VENDOR_ID_REQUIRED", "vendorId is required")
		return
	}
	if req.TableID == nil {
		response.Error(w, http.StatusBadRequest, "TABLE_ID_REQUIRED", "tableId is required for dine-in orders")
		return
	}

	order, err := h.Orders.Create(r.Context(), store.CreateParams{
		VendorID:      req.VendorID,
		OrderType:     store.OrderTypeDineIn,
		Status:        store.StatusPending,
		TableID:       req.TableID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
		RawItems:      req.Items,
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.publishOrderEvent(r, order, queue.OrderCreatedKey)
	response.Created(w, order)
}

// PublicOrderDetail lets a customer track their order without a
// session; the order id from the create response is the capability.
func (h *Handler) PublicOrderDetail(w http.ResponseWriter, r *http.Request) {
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order id")
		return
	}

	order, err := h.Orders.GetByID(r.Context(), orderID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	response.Success(w, order)
}
