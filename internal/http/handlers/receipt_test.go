package handlers

import (
	"strings"
	"testing"
	"time"

	"tablefare-order-service/internal/pricing"
	"tablefare-order-service/internal/store"
)

func receiptOrder() *store.Order {
	tableID := int64(4)
	return &store.Order{
		ID:        101,
		VendorID:  7,
		OrderType: store.OrderTypeDineIn,
		Status:    store.StatusReady,
		TableID:   &tableID,
		Items: []pricing.LineItem{
			{
				ItemID: 1, Name: "Margherita Pizza", Quantity: 2,
				UnitPrice: "200.00", GSTRate: "5.00", GSTMode: "exclude",
				Subtotal: "400.00", GSTAmount: "20.00", LineTotal: "420.00",
				Addons: []pricing.LineAddon{
					{AddonID: 7, Name: "Extra Cheese", UnitPrice: "30.00", Quantity: 1, Subtotal: "30.00"},
				},
			},
			{
				ItemID: 3, Name: "Plain Dosa", Quantity: 1,
				UnitPrice: "80.00", GSTRate: "0.00", GSTMode: "exclude",
				Subtotal: "80.00", GSTAmount: "0.00", LineTotal: "80.00",
			},
		},
		TotalAmount: "500.00",
		PlacedAt:    time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
		Ticket:      &store.Ticket{TicketNumber: "KOT-7-101"},
	}
}

func TestFormatReceiptTextLayout(t *testing.T) {
	text := formatReceiptText(receiptOrder(), "Spice Garden", 48)
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	for _, line := range lines {
		if len(line) > 48 {
			t.Fatalf("line exceeds 48 columns: %q", line)
		}
	}

	if !strings.Contains(text, "Spice Garden") {
		t.Fatal("expected vendor name in header")
	}
	if !strings.Contains(text, "KOT-7-101") {
		t.Fatal("expected ticket number in header")
	}
	if !strings.Contains(text, "2x Margherita Pizza") {
		t.Fatal("expected item quantity prefix")
	}
	if !strings.Contains(text, "Extra Cheese") {
		t.Fatal("expected addon line")
	}

	var totalLine string
	for _, line := range lines {
		if strings.HasPrefix(line, "TOTAL") {
			totalLine = line
		}
	}
	if totalLine == "" {
		t.Fatal("expected a TOTAL line")
	}
	if !strings.HasSuffix(totalLine, "500.00") {
		t.Fatalf("expected total right-aligned with amount, got %q", totalLine)
	}
	if len(totalLine) != 48 {
		t.Fatalf("expected TOTAL line padded to 48 columns, got %d", len(totalLine))
	}
}

func TestFormatReceiptTextZeroRateOmitsGSTLine(t *testing.T) {
	text := formatReceiptText(receiptOrder(), "Spice Garden", 48)

	if strings.Contains(text, "GST 0.00%") {
		t.Fatal("zero-rate lines must not print a GST row")
	}
	if !strings.Contains(text, "GST 5.00%") {
		t.Fatal("taxed lines must print their GST row")
	}
}

func TestFormatReceiptTextNarrowWidthFallsBack(t *testing.T) {
	text := formatReceiptText(receiptOrder(), "Spice Garden", 10)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		if len(line) > 48 {
			t.Fatalf("fallback width exceeded: %q", line)
		}
	}
}
