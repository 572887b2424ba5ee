package handlers

import (
	"net/http"

	"tablefare-order-service/internal/middleware"
	"tablefare-order-service/pkg/response"
)

func (h *Handler) VendorListTables(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}

	tables, err := h.Orders.Tables.ListTables(r.Context(), *authCtx.VendorID)
	if err != nil {
		h.Logger.Error("table list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list tables")
		return
	}

	response.Success(w, tables)
}

type setupTablesRequest struct {
	Count int `json:"count"`
}

// VendorSetupTables grows the vendor's numbered table set. It is
// idempotent: requesting a count at or below the current one changes
// nothing.
func (h *Handler) VendorSetupTables(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return
	}

	var req setupTablesRequest
	if err := decodeBody(r, &req); err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}
	if req.Count < 1 || req.Count > 500 {
		response.Error(w, http.StatusBadRequest, "INVALID_COUNT", "count must be between 1 and 500")
		return
	}

	tables, err := h.Orders.Tables.SetupTables(r.Context(), *authCtx.VendorID, req.Count)
	if err != nil {
		h.Logger.Error("table setup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to set up tables")
		return
	}

	response.Success(w, tables)
}
