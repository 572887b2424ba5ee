package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"tablefare-order-service/internal/events"
)

// Ticket is the kitchen order ticket (KOT) printed or displayed for
// the kitchen. Items is the JSON snapshot of the order lines at issue
// time, refreshed when the order is edited before handover.
type Ticket struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"orderId"`
	VendorID     int64           `json:"vendorId"`
	TicketNumber string          `json:"ticketNumber"`
	Items        json.RawMessage `json:"items"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// TicketIssuer guarantees at most one ticket per order. Issue is safe
// to call repeatedly and from concurrent requests; the unique index on
// order_id is the arbiter.
type TicketIssuer struct {
	DB     querier
	Logger *zap.Logger
	Events *events.Broadcaster
}

func NewTicketIssuer(db querier, logger *zap.Logger, broadcaster *events.Broadcaster) *TicketIssuer {
	return &TicketIssuer{DB: db, Logger: logger, Events: broadcaster}
}

// TicketNumber derives the stable human-readable ticket number. Two
// calls for the same order always produce the same number.
func TicketNumber(vendorID, orderID int64) string {
	return fmt.Sprintf("KOT-%d-%d", vendorID, orderID)
}

// EnsureTicket returns the order's ticket, creating it if this is the
// first acceptance. The bool reports whether a new ticket was issued.
func (t *TicketIssuer) EnsureTicket(ctx context.Context, vendorID, orderID int64, items json.RawMessage) (*Ticket, bool, error) {
	if existing, err := t.getByOrder(ctx, orderID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	ticket := &Ticket{
		OrderID:      orderID,
		VendorID:     vendorID,
		TicketNumber: TicketNumber(vendorID, orderID),
		Items:        items,
	}
	err := t.DB.QueryRow(ctx, `
		insert into kitchen_tickets (order_id, vendor_id, ticket_number, items, created_at, updated_at)
		values ($1, $2, $3, $4, now(), now())
		on conflict (order_id) do nothing
		returning id, created_at, updated_at
	`, orderID, vendorID, ticket.TicketNumber, items).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err == nil {
		if t.Events != nil {
			t.Events.Publish(events.Event{
				Type:     events.TypeKOTCreated,
				VendorID: vendorID,
				OrderID:  orderID,
				TicketID: ticket.ID,
			})
		}
		return ticket, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	// Lost the insert race; the winner's row is authoritative.
	existing, err := t.getByOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// RefreshSnapshot rewrites the ticket's item snapshot after an order
// edit. Orders that never reached acceptance have no ticket and that
// is not an error.
func (t *TicketIssuer) RefreshSnapshot(ctx context.Context, orderID int64, items json.RawMessage) error {
	_, err := t.DB.Exec(ctx, `
		update kitchen_tickets set items = $2, updated_at = now() where order_id = $1
	`, orderID, items)
	return err
}

func (t *TicketIssuer) getByOrder(ctx context.Context, orderID int64) (*Ticket, error) {
	ticket := &Ticket{}
	err := t.DB.QueryRow(ctx, `
		select id, order_id, vendor_id, ticket_number, items, created_at, updated_at
		from kitchen_tickets
		where order_id = $1
	`, orderID).Scan(&ticket.ID, &ticket.OrderID, &ticket.VendorID, &ticket.TicketNumber, &ticket.Items, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return ticket, nil
}
