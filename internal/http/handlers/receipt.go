package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/phpdave11/gofpdf"
	"go.uber.org/zap"

	"tablefare-order-service/internal/middleware"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/pkg/response"
)

// VendorOrderReceipt renders the thermal-printer text receipt.
func (h *Handler) VendorOrderReceipt(w http.ResponseWriter, r *http.Request) {
	order, vendorName, ok := h.loadReceiptOrder(w, r)
	if !ok {
		return
	}

	text := formatReceiptText(order, vendorName, h.Config.ReceiptWidthColumns)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// VendorOrderReceiptPDF renders the same receipt as a PDF download.
func (h *Handler) VendorOrderReceiptPDF(w http.ResponseWriter, r *http.Request) {
	order, vendorName, ok := h.loadReceiptOrder(w, r)
	if !ok {
		return
	}

	buf, err := renderReceiptPDF(order, vendorName)
	if err != nil {
		h.Logger.Error("receipt pdf render failed", zap.Int64("orderId", order.ID), zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render receipt")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="receipt-%d.pdf"`, order.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) loadReceiptOrder(w http.ResponseWriter, r *http.Request) (*store.Order, string, bool) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok || authCtx.VendorID == nil {
		response.Error(w, http.StatusForbidden, "VENDOR_ID_REQUIRED", "Vendor scope required")
		return nil, "", false
	}
	orderID, err := readPathInt64(r, "orderId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_ORDER_ID", "Invalid order id")
		return nil, "", false
	}

	order, err := h.Orders.Get(r.Context(), orderID, *authCtx.VendorID)
	if err != nil {
		h.writeStoreError(w, err)
		return nil, "", false
	}

	var vendorName string
	if err := h.DB.QueryRow(r.Context(), `select name from vendors where id = $1`, *authCtx.VendorID).Scan(&vendorName); err != nil {
		vendorName = authCtx.Name
	}
	return order, vendorName, true
}

// formatReceiptText lays the order out for a fixed-width thermal
// printer. Item names wrap; amounts stay right-aligned in the last
// column.
func formatReceiptText(order *store.Order, vendorName string, width int) string {
	if width < 32 {
		width = 48
	}

	var b strings.Builder
	rule := strings.Repeat("-", width)

	writeCentered(&b, vendorName, width)
	if order.Ticket != nil {
		writeCentered(&b, order.Ticket.TicketNumber, width)
	}
	b.WriteString(rule + "\n")

	writeKeyValue(&b, "Order", fmt.Sprintf("#%d", order.ID), width)
	writeKeyValue(&b, "Type", order.OrderType, width)
	writeKeyValue(&b, "Status", order.Status, width)
	if order.TableID != nil {
		writeKeyValue(&b, "Table", fmt.Sprintf("%d", *order.TableID), width)
	}
	if order.PickupReference != nil {
		writeKeyValue(&b, "Pickup", *order.PickupReference, width)
	}
	if order.BookingReference != nil {
		writeKeyValue(&b, "Booking", *order.BookingReference, width)
	}
	writeKeyValue(&b, "Placed", order.PlacedAt.Format("02 Jan 2006 15:04"), width)
	b.WriteString(rule + "\n")

	for _, item := range order.Items {
		writeAmountLine(&b, fmt.Sprintf("%dx %s", item.Quantity, item.Name), item.LineTotal, width)
		for _, addon := range item.Addons {
			writeAmountLine(&b, fmt.Sprintf("  + %dx %s", addon.Quantity, addon.Name), addon.Subtotal, width)
		}
		if item.GSTAmount != "0.00" {
			writeAmountLine(&b, fmt.Sprintf("  GST %s%%", item.GSTRate), item.GSTAmount, width)
		}
	}

	b.WriteString(rule + "\n")
	writeAmountLine(&b, "TOTAL", order.TotalAmount, width)
	b.WriteString(rule + "\n")
	writeCentered(&b, "Thank you, visit again!", width)

	return b.String()
}

func writeCentered(b *strings.Builder, text string, width int) {
	text = strings.TrimSpace(text)
	if len(text) >= width {
		b.WriteString(text + "\n")
		return
	}
	pad := (width - len(text)) / 2
	b.WriteString(strings.Repeat(" ", pad) + text + "\n")
}

func writeKeyValue(b *strings.Builder, key, value string, width int) {
	writeAmountLine(b, key+":", value, width)
}

func writeAmountLine(b *strings.Builder, label, amount string, width int) {
	space := width - len(label) - len(amount)
	if space < 1 {
		keep := width - len(amount) - 2
		if keep < 1 {
			keep = 1
		}
		if len(label) > keep {
			label = label[:keep]
		}
		space = width - len(label) - len(amount)
		if space < 1 {
			space = 1
		}
	}
	b.WriteString(label + strings.Repeat(" ", space) + amount + "\n")
}

func renderReceiptPDF(order *store.Order, vendorName string) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, vendorName, "", 1, "C", false, 0, "")
	if order.Ticket != nil {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, order.Ticket.TicketNumber, "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Order #%d", order.ID), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 5, order.OrderType, "", 1, "C", false, 0, "")
	if order.TableID != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Table %d", *order.TableID), "", 1, "C", false, 0, "")
	}
	pdf.CellFormat(0, 5, fmt.Sprintf("Placed: %s", order.PlacedAt.Format("02 Jan 2006 15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(0, 6, "Items", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, item := range order.Items {
		pdf.CellFormat(120, 5, fmt.Sprintf("%dx %s", item.Quantity, item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 5, item.LineTotal, "", 1, "R", false, 0, "")
		for _, addon := range item.Addons {
			pdf.CellFormat(120, 5, fmt.Sprintf("   + %dx %s", addon.Quantity, addon.Name), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, addon.Subtotal, "", 1, "R", false, 0, "")
		}
		if item.GSTAmount != "0.00" {
			pdf.CellFormat(120, 5, fmt.Sprintf("   GST %s%%", item.GSTRate), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 5, item.GSTAmount, "", 1, "R", false, 0, "")
		}
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(120, 7, "TOTAL", "T", 0, "L", false, 0, "")
	pdf.CellFormat(0, 7, order.TotalAmount, "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
