package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"tablefare-order-service/internal/events"
)

func TestTicketNumber(t *testing.T) {
	cases := []struct {
		name     string
		vendorID int64
		orderID  int64
		want     string
	}{
		{name: "plain ids", vendorID: 7, orderID: 42, want: "KOT-7-42"},
		{name: "large ids", vendorID: 120034, orderID: 998877, want: "KOT-120034-998877"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TicketNumber(tc.vendorID, tc.orderID); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}

	if TicketNumber(7, 42) != TicketNumber(7, 42) {
		t.Fatal("ticket numbers must be stable across calls")
	}
}

func scanTicketRow(dest []any, id, orderID, vendorID int64, number string) error {
	now := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
	*(dest[0].(*int64)) = id
	*(dest[1].(*int64)) = orderID
	*(dest[2].(*int64)) = vendorID
	*(dest[3].(*string)) = number
	*(dest[4].(*json.RawMessage)) = json.RawMessage(`[]`)
	*(dest[5].(*time.Time)) = now
	*(dest[6].(*time.Time)) = now
	return nil
}

func TestEnsureTicketReturnsExisting(t *testing.T) {
	inserts := 0
	db := &fakeDB{
		queryRow: func(sql string, _ []any) pgx.Row {
			if strings.Contains(sql, "insert") {
				inserts++
			}
			return fakeRow{scan: func(dest ...any) error {
				return scanTicketRow(dest, 9, 42, 7, "KOT-7-42")
			}}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	issuer := NewTicketIssuer(db, zap.NewNop(), broadcaster)
	ticket, created, err := issuer.EnsureTicket(context.Background(), 7, 42, json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("an existing ticket must not count as newly issued")
	}
	if inserts != 0 {
		t.Fatal("an existing ticket must short-circuit the insert")
	}
	if ticket.TicketNumber != "KOT-7-42" {
		t.Fatalf("unexpected ticket number %s", ticket.TicketNumber)
	}
	expectNoEvent(t, sub)
}

func TestEnsureTicketFirstIssue(t *testing.T) {
	db := &fakeDB{
		queryRow: func(sql string, _ []any) pgx.Row {
			if strings.Contains(sql, "insert") {
				return fakeRow{scan: func(dest ...any) error {
					now := time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)
					*(dest[0].(*int64)) = 9
					*(dest[1].(*time.Time)) = now
					*(dest[2].(*time.Time)) = now
					return nil
				}}
			}
			return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	issuer := NewTicketIssuer(db, zap.NewNop(), broadcaster)
	ticket, created, err := issuer.EnsureTicket(context.Background(), 7, 42, json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("the first acceptance must issue a ticket")
	}
	if ticket.ID != 9 || ticket.TicketNumber != "KOT-7-42" {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}

	evt := receiveEvent(t, sub)
	if evt.Type != events.TypeKOTCreated {
		t.Fatalf("expected kot-created, got %s", evt.Type)
	}
	if evt.OrderID != 42 || evt.VendorID != 7 || evt.TicketID != 9 {
		t.Fatalf("unexpected event body: %+v", evt)
	}
}

func TestEnsureTicketLosesInsertRace(t *testing.T) {
	// Two concurrent acceptances can both miss the initial lookup; the
	// conflict clause makes the loser's insert return no row and the
	// winner's ticket is refetched.
	selects := 0
	db := &fakeDB{
		queryRow: func(sql string, _ []any) pgx.Row {
			if strings.Contains(sql, "insert") {
				return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
			}
			selects++
			if selects == 1 {
				return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
			}
			return fakeRow{scan: func(dest ...any) error {
				return scanTicketRow(dest, 11, 42, 7, "KOT-7-42")
			}}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	issuer := NewTicketIssuer(db, zap.NewNop(), broadcaster)
	ticket, created, err := issuer.EnsureTicket(context.Background(), 7, 42, json.RawMessage(`[]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("losing the insert race must not count as issuing")
	}
	if ticket.ID != 11 {
		t.Fatalf("expected the winner's ticket, got id %d", ticket.ID)
	}
	if selects != 2 {
		t.Fatalf("expected a refetch after the lost race, got %d lookups", selects)
	}
	expectNoEvent(t, sub)
}
