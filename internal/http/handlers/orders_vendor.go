package handlers

import (
	"net/http"
	"strings"

	"tablefare-order-service/internal/middleware"
	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

type vendorCreateOrderRequest struct {
	OrderType     string            `json:"orderType"`
	TableID       *int64            `json:"tableId"`
	CustomerName  *string           `json:"customerName"`
	CustomerPhone *string           `json:"customerPhone"`
	Notes         *string           `json:"notes"`
	Items         []pricing.RawItem `json:"items"`
}

// VendorCreateOrder is the captain entry point. Captain orders are
// born accepted, so the kitchen ticket is issued immediately.
func (h *Handler) VendorCreateOrder(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}

	var req vendorCreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	orderType := strings.ToUpper(strings.TrimSpace(req.OrderType))
	if orderType == "" {
		orderType = store.OrderTypeDineIn
	}
	switch orderType {
	case store.OrderTypeDineIn, store.OrderTypePickup, store.OrderTypeDelivery:
	default:
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_TYPE", "Unknown order type")
		return
	}
	if orderType == store.OrderTypeDineIn && req.TableID == nil {
		response.Error(w, http.StatusBadRequest, "TABLE_ID_REQUIRED", "tableId is required for dine-in orders")
		return
	}

	order, err := h.Orders.Create(r.Context(), store.CreateParams{
		VendorID:      *authCtx.VendorID,
		OrderType:     orderType,
		Status:        store.StatusAccepted,
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

func (h *Handler) VendorListOrders(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}

	params := store.ListParams{
		Status:    strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))),
		OrderType: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("orderType"))),
	}
	orders, err := h.Orders.List(r.Context(), *authCtx.VendorID, params)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	response.Success(w, orders)
}

func (h *Handler) VendorOrderDetail(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order id")
		return
	}

	order, err := h.Orders.Get(r.Context(), orderID, *authCtx.VendorID)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	response.Success(w, order)
}

type vendorUpdateItemsRequest struct {
	Items []pricing.RawItem `json:"items"`
}

// VendorUpdateOrderItems replaces the order's item list and re-prices
// it. Rejected with a conflict once the order is handed over.
func (h *Handler) VendorUpdateOrderItems(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order id")
		return
	}

	var req vendorUpdateItemsRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	order, err := h.Orders.UpdateItems(r.Context(), orderID, *authCtx.VendorID, req.Items)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	response.Success(w, order)
}

type vendorUpdateStatusRequest struct {
	Status       string  `json:"status"`
	CancelReason *string `json:"cancelReason"`
}

// VendorUpdateOrderStatus applies one lifecycle transition and fans
// the change out to the dashboard stream and the notification bus.
func (h *Handler) VendorUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order id")
		return
	}

	var req vendorUpdateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status == "" {
		response.Error(w, http.StatusBadRequest, "STATUS_REQUIRED", "status is required")
		return
	}

	order, err := h.Orders.UpdateStatus(r.Context(), orderID, *authCtx.VendorID, status, req.CancelReason)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}

	h.publishOrderEvent(r, order, queue.StatusUpdatedKey)
	response.Success(w, order)
}
