package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tablefare-order-service/internal/events"
	"tablefare-order-service/internal/pricing"
)

// Order is the unified record for dine-in, pickup and delivery
// fulfillment. Items is the normalized line snapshot produced by the
// pricing normalizer; money fields are fixed 2-decimal strings.
type Order struct {
	ID               int64              `json:"id"`
	VendorID         int64              `json:"vendorId"`
	OrderType        string             `json:"orderType"`
	Status           string             `json:"status"`
	TableID          *int64             `json:"tableId,omitempty"`
	CustomerName     *string            `json:"customerName,omitempty"`
	CustomerPhone    *string            `json:"customerPhone,omitempty"`
	Notes            *string            `json:"notes,omitempty"`
	DeliveryAddress  *string            `json:"deliveryAddress,omitempty"`
	PickupReference  *string            `json:"pickupReference,omitempty"`
	BookingReference *string            `json:"bookingReference,omitempty"`
	Items            []pricing.LineItem `json:"items"`
	TotalAmount      string             `json:"totalAmount"`
	CancelReason     *string            `json:"cancelReason,omitempty"`
	PlacedAt         time.Time          `json:"placedAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
	AcceptedAt       *time.Time         `json:"acceptedAt,omitempty"`
	PreparingAt      *time.Time         `json:"preparingAt,omitempty"`
	ReadyAt          *time.Time         `json:"readyAt,omitempty"`
	OutForDeliveryAt *time.Time         `json:"outForDeliveryAt,omitempty"`
	DeliveredAt      *time.Time         `json:"deliveredAt,omitempty"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty"`
	CancelledAt      *time.Time         `json:"cancelledAt,omitempty"`
	Ticket           *Ticket            `json:"ticket,omitempty"`
}

// CreateParams carries everything a fulfillment endpoint collects.
// Status must be pending or accepted; captains create pre-accepted
// orders, public flows create pending ones.
type CreateParams struct {
	VendorID         int64
	OrderType        string
	Status           string
	TableID          *int64
	CustomerName     *string
	CustomerPhone    *string
	Notes            *string
	DeliveryAddress  *string
	PickupReference  *string
	BookingReference *string
	RawItems         []pricing.RawItem
}

type ListParams struct {
	Status    string
	OrderType string
	Limit     int
	Offset    int
}

// Store coordinates order mutations with the table lock manager, the
// ticket issuer and the event broadcaster. All writes go through it;
// handlers never touch the orders table directly.
type Store struct {
	DB         *pgxpool.Pool
	Logger     *zap.Logger
	Normalizer *pricing.Normalizer
	Tables     *TableLocks
	Tickets    *TicketIssuer
	Events     *events.Broadcaster
}

func New(db *pgxpool.Pool, logger *zap.Logger, normalizer *pricing.Normalizer, broadcaster *events.Broadcaster) *Store {
	return &Store{
		DB:         db,
		Logger:     logger,
		Normalizer: normalizer,
		Tables:     NewTableLocks(db, logger, broadcaster),
		Tickets:    NewTicketIssuer(db, logger, broadcaster),
		Events:     broadcaster,
	}
}

// Create normalizes and persists a new order, locks the table for
// dine-in, and issues the kitchen ticket when the order is born
// accepted. A failed table lock aborts the whole creation.
func (s *Store) Create(ctx context.Context, params CreateParams) (*Order, error) {
	status := params.Status
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusAccepted {
		return nil, fmt.Errorf("%w: cannot create order as %s", ErrInvalidTransition, status)
	}

	normalized, err := s.Normalizer.Normalize(ctx, params.VendorID, params.RawItems)
	if err != nil {
		return nil, err
	}
	itemsJSON, err := json.Marshal(normalized.Items)
	if err != nil {
		return nil, err
	}

	// The insert and the table lock commit or roll back together so a
	// failed lock leaves no orphaned order row behind.
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var (
		orderID    int64
		placedAt   time.Time
		updatedAt  time.Time
		acceptedAt pgtype.Timestamptz
	)
	err = tx.QueryRow(ctx, `
		insert into orders (
			vendor_id, order_type, status, table_id,
			customer_name, customer_phone, notes,
			delivery_address, pickup_reference, booking_reference,
			items, total_amount,
			placed_at, updated_at, accepted_at
		)
		values (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			now(), now(),
			case when $3 = 'accepted' then now() end
		)
		returning id, placed_at, updated_at, accepted_at
	`,
		params.VendorID, params.OrderType, status, params.TableID,
		params.CustomerName, params.CustomerPhone, params.Notes,
		params.DeliveryAddress, params.PickupReference, params.BookingReference,
		itemsJSON, normalized.TotalAmount,
	).Scan(&orderID, &placedAt, &updatedAt, &acceptedAt)
	if err != nil {
		return nil, err
	}

	lockedTable := params.OrderType == OrderTypeDineIn && params.TableID != nil
	if lockedTable {
		if err := s.Tables.lockOn(ctx, tx, params.VendorID, *params.TableID, orderID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if lockedTable {
		s.Tables.publishState(params.VendorID, *params.TableID, false)
	}

	if status == StatusAccepted {
		if _, _, err := s.Tickets.EnsureTicket(ctx, params.VendorID, orderID, itemsJSON); err != nil {
			s.Logger.Error("kitchen ticket issue failed on create",
				zap.Int64("orderId", orderID), zap.Error(err))
		}
	}

	evt := events.Event{
		Type:      events.TypeOrderCreated,
		VendorID:  params.VendorID,
		OrderID:   orderID,
		OrderType: params.OrderType,
		Status:    status,
	}
	if params.TableID != nil {
		evt.TableID = *params.TableID
	}
	s.Events.Publish(evt)

	return s.Get(ctx, orderID, params.VendorID)
}

// UpdateStatus applies one forward transition, stamps the matching
// one-shot timestamp, and reconciles the table lock afterwards. The
// ticket side effect on acceptance is best-effort; the transition
// itself is not rolled back when ticket issuing fails.
func (s *Store) UpdateStatus(ctx context.Context, orderID, vendorID int64, newStatus string, cancelReason *string) (*Order, error) {
	if !IsKnownStatus(newStatus) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var (
		current   string
		orderType string
		tableID   pgtype.Int8
	)
	err = tx.QueryRow(ctx, `
		select status, order_type, table_id
		from orders
		where id = $1 and vendor_id = $2
		for update
	`, orderID, vendorID).Scan(&current, &orderType, &tableID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if !CanTransition(current, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, newStatus)
	}

	_, err = tx.Exec(ctx, `
		update orders
		set status = $3,
			updated_at = now(),
			accepted_at = case when $3 = 'accepted' then coalesce(accepted_at, now()) else accepted_at end,
			preparing_at = case when $3 = 'preparing' then coalesce(preparing_at, now()) else preparing_at end,
			ready_at = case when $3 = 'ready' then coalesce(ready_at, now()) else ready_at end,
			out_for_delivery_at = case when $3 = 'out_for_delivery' then coalesce(out_for_delivery_at, now()) else out_for_delivery_at end,
			delivered_at = case when $3 = 'delivered' then coalesce(delivered_at, now()) else delivered_at end,
			completed_at = case when $3 = 'completed' then coalesce(completed_at, now()) else completed_at end,
			cancelled_at = case when $3 = 'cancelled' then coalesce(cancelled_at, now()) else cancelled_at end,
			cancel_reason = case when $3 = 'cancelled' then coalesce($4, cancel_reason) else cancel_reason end
		where id = $1 and vendor_id = $2
	`, orderID, vendorID, newStatus, cancelReason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if orderType == OrderTypeDineIn && tableID.Valid {
		if OccupiesTable(newStatus) {
			err = s.Tables.Lock(ctx, vendorID, tableID.Int64, orderID)
		} else {
			err = s.Tables.Refresh(ctx, vendorID, tableID.Int64)
		}
		if err != nil {
			return nil, err
		}
	}

	if newStatus == StatusAccepted {
		var itemsJSON json.RawMessage
		if err := s.DB.QueryRow(ctx, `
			select items from orders where id = $1
		`, orderID).Scan(&itemsJSON); err == nil {
			if _, _, err := s.Tickets.EnsureTicket(ctx, vendorID, orderID, itemsJSON); err != nil {
				s.Logger.Error("kitchen ticket issue failed on acceptance",
					zap.Int64("orderId", orderID), zap.Error(err))
			}
		}
	}

	s.Events.Publish(events.Event{
		Type:      events.TypeOrderStatusChanged,
		VendorID:  vendorID,
		OrderID:   orderID,
		OrderType: orderType,
		Status:    newStatus,
		TableID:   tableID.Int64,
	})

	return s.Get(ctx, orderID, vendorID)
}

// UpdateItems re-runs the pricing normalizer over the edited item
// list and refreshes the kitchen ticket snapshot. Orders that were
// handed over cannot be edited.
func (s *Store) UpdateItems(ctx context.Context, orderID, vendorID int64, rawItems []pricing.RawItem) (*Order, error) {
	var status string
	err := s.DB.QueryRow(ctx, `
		select status from orders where id = $1 and vendor_id = $2
	`, orderID, vendorID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if IsTerminalForEditing(status) {
		return nil, fmt.Errorf("%w: status %s", ErrOrderTerminal, status)
	}

	normalized, err := s.Normalizer.Normalize(ctx, vendorID, rawItems)
	if err != nil {
		return nil, err
	}
	itemsJSON, err := json.Marshal(normalized.Items)
	if err != nil {
		return nil, err
	}

	tag, err := s.DB.Exec(ctx, `
		update orders set items = $3, total_amount = $4, updated_at = now()
		where id = $1 and vendor_id = $2
	`, orderID, vendorID, itemsJSON, normalized.TotalAmount)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}

	if err := s.Tickets.RefreshSnapshot(ctx, orderID, itemsJSON); err != nil {
		s.Logger.Error("kitchen ticket snapshot refresh failed",
			zap.Int64("orderId", orderID), zap.Error(err))
	}

	s.Events.Publish(events.Event{
		Type:     events.TypeOrderUpdated,
		VendorID: vendorID,
		OrderID:  orderID,
		Status:   status,
	})

	return s.Get(ctx, orderID, vendorID)
}

const orderColumns = `
	o.id, o.vendor_id, o.order_type, o.status, o.table_id,
	o.customer_name, o.customer_phone, o.notes,
	o.delivery_address, o.pickup_reference, o.booking_reference,
	o.items, o.total_amount, o.cancel_reason,
	o.placed_at, o.updated_at,
	o.accepted_at, o.preparing_at, o.ready_at, o.out_for_delivery_at,
	o.delivered_at, o.completed_at, o.cancelled_at,
	kt.id, kt.ticket_number, kt.items, kt.created_at, kt.updated_at
`

// Get fetches one order scoped to a vendor, with its ticket when one
// exists.
func (s *Store) Get(ctx context.Context, orderID, vendorID int64) (*Order, error) {
	row := s.DB.QueryRow(ctx, `
		select `+orderColumns+`
		from orders o
		left join kitchen_tickets kt on kt.order_id = o.id
		where o.id = $1 and o.vendor_id = $2
	`, orderID, vendorID)
	return scanOrder(row)
}

// GetByID fetches one order without vendor scoping, for the public
// order-tracking endpoint.
func (s *Store) GetByID(ctx context.Context, orderID int64) (*Order, error) {
	row := s.DB.QueryRow(ctx, `
		select `+orderColumns+`
		from orders o
		left join kitchen_tickets kt on kt.order_id = o.id
		where o.id = $1
	`, orderID)
	return scanOrder(row)
}

// List returns the vendor's orders, newest first. Orders that are
// past acceptance but missing their ticket get one issued on the way
// out; listing is the natural repair point for tickets lost to an
// earlier failed side effect.
func (s *Store) List(ctx context.Context, vendorID int64, params ListParams) ([]Order, error) {
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.DB.Query(ctx, `
		select `+orderColumns+`
		from orders o
		left join kitchen_tickets kt on kt.order_id = o.id
		where o.vendor_id = $1
		  and ($2 = '' or o.status = $2)
		  and ($3 = '' or o.order_type = $3)
		order by o.placed_at desc
		limit $4 offset $5
	`, vendorID, params.Status, params.OrderType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		order := &orders[i]
		if order.Ticket != nil || order.AcceptedAt == nil || order.Status == StatusCancelled {
			continue
		}
		itemsJSON, err := json.Marshal(order.Items)
		if err != nil {
			continue
		}
		ticket, _, err := s.Tickets.EnsureTicket(ctx, vendorID, order.ID, itemsJSON)
		if err != nil {
			s.Logger.Error("lazy kitchen ticket backfill failed",
				zap.Int64("orderId", order.ID), zap.Error(err))
			continue
		}
		order.Ticket = ticket
	}

	return orders, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		order            Order
		tableID          pgtype.Int8
		customerName     pgtype.Text
		customerPhone    pgtype.Text
		notes            pgtype.Text
		deliveryAddress  pgtype.Text
		pickupReference  pgtype.Text
		bookingReference pgtype.Text
		itemsJSON        []byte
		cancelReason     pgtype.Text
		acceptedAt       pgtype.Timestamptz
		preparingAt      pgtype.Timestamptz
		readyAt          pgtype.Timestamptz
		outForDeliveryAt pgtype.Timestamptz
		deliveredAt      pgtype.Timestamptz
		completedAt      pgtype.Timestamptz
		cancelledAt      pgtype.Timestamptz
		ticketID         pgtype.Int8
		ticketNumber     pgtype.Text
		ticketItems      []byte
		ticketCreatedAt  pgtype.Timestamptz
		ticketUpdatedAt  pgtype.Timestamptz
	)

	err := row.Scan(
		&order.ID, &order.VendorID, &order.OrderType, &order.Status, &tableID,
		&customerName, &customerPhone, &notes,
		&deliveryAddress, &pickupReference, &bookingReference,
		&itemsJSON, &order.TotalAmount, &cancelReason,
		&order.PlacedAt, &order.UpdatedAt,
		&acceptedAt, &preparingAt, &readyAt, &outForDeliveryAt,
		&deliveredAt, &completedAt, &cancelledAt,
		&ticketID, &ticketNumber, &ticketItems, &ticketCreatedAt, &ticketUpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if tableID.Valid {
		order.TableID = &tableID.Int64
	}
	order.CustomerName = textPtr(customerName)
	order.CustomerPhone = textPtr(customerPhone)
	order.Notes = textPtr(notes)
	order.DeliveryAddress = textPtr(deliveryAddress)
	order.PickupReference = textPtr(pickupReference)
	order.BookingReference = textPtr(bookingReference)
	order.CancelReason = textPtr(cancelReason)
	order.AcceptedAt = timePtr(acceptedAt)
	order.PreparingAt = timePtr(preparingAt)
	order.ReadyAt = timePtr(readyAt)
	order.OutForDeliveryAt = timePtr(outForDeliveryAt)
	order.DeliveredAt = timePtr(deliveredAt)
	order.CompletedAt = timePtr(completedAt)
	order.CancelledAt = timePtr(cancelledAt)

	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, err
		}
	}
	if order.Items == nil {
		order.Items = []pricing.LineItem{}
	}

	if ticketID.Valid {
		order.Ticket = &Ticket{
			ID:           ticketID.Int64,
			OrderID:      order.ID,
			VendorID:     order.VendorID,
			TicketNumber: ticketNumber.String,
			Items:        json.RawMessage(ticketItems),
			CreatedAt:    ticketCreatedAt.Time,
			UpdatedAt:    ticketUpdatedAt.Time,
		}
	}

	return &order, nil
}

func textPtr(value pgtype.Text) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func timePtr(value pgtype.Timestamptz) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}
