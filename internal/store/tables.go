package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"

	"tablefare-order-service/internal/events"
)

// querier is the query surface shared by pgxpool.Pool and pgx.Tx, so
// lock and ticket operations can run inside a caller's transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Table is a physical dine-in table. IsActive means "free": it is
// derived from the orders currently sitting on the table, never set
// directly by a request.
type Table struct {
	ID             int64     `json:"id"`
	VendorID       int64     `json:"vendorId"`
	TableNumber    string    `json:"tableNumber"`
	IsActive       bool      `json:"isActive"`
	CurrentOrderID *int64    `json:"currentOrderId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// TableLocks keeps restaurant_tables.is_active in sync with the
// orders on each table. Lock and Refresh both recompute from current
// state, so replaying them in any order converges on the same answer.
type TableLocks struct {
	DB     querier
	Logger *zap.Logger
	Events *events.Broadcaster
}

func NewTableLocks(db querier, logger *zap.Logger, broadcaster *events.Broadcaster) *TableLocks {
	return &TableLocks{DB: db, Logger: logger, Events: broadcaster}
}

// Lock marks the table as occupied by the given order and verifies the
// write landed. A table that still reads free afterwards means the
// lock invariant is broken and the caller must abort the mutation.
func (t *TableLocks) Lock(ctx context.Context, vendorID, tableID, orderID int64) error {
	if err := t.lockOn(ctx, t.DB, vendorID, tableID, orderID); err != nil {
		return err
	}
	t.publishState(vendorID, tableID, false)
	return nil
}

// lockOn runs the lock write and its read-back verification against
// q, which may be a transaction. The caller publishes the state
// change once the write is durable.
func (t *TableLocks) lockOn(ctx context.Context, q querier, vendorID, tableID, orderID int64) error {
	tag, err := q.Exec(ctx, `
		update restaurant_tables
		set is_active = false, current_order_id = $3, updated_at = now()
		where id = $1 and vendor_id = $2
	`, tableID, vendorID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTableNotFound
	}

	var isActive bool
	if err := q.QueryRow(ctx, `
		select is_active from restaurant_tables where id = $1 and vendor_id = $2
	`, tableID, vendorID).Scan(&isActive); err != nil {
		return err
	}
	if isActive {
		t.Logger.Error("table lock verification failed",
			zap.Int64("vendorId", vendorID),
			zap.Int64("tableId", tableID),
			zap.Int64("orderId", orderID),
		)
		return fmt.Errorf("%w: table %d", ErrTableLockFailed, tableID)
	}
	return nil
}

// Refresh recomputes is_active from the orders currently occupying
// the table. It is the release path and also the repair path: calling
// it on a table in any state settles it to the correct one.
func (t *TableLocks) Refresh(ctx context.Context, vendorID, tableID int64) error {
	var isActive bool
	err := t.DB.QueryRow(ctx, `
		update restaurant_tables t
		set is_active = not exists (
			select 1 from orders o
			where o.table_id = t.id and o.vendor_id = t.vendor_id
			  and o.status = any($3)
		),
		current_order_id = (
			select o.id from orders o
			where o.table_id = t.id and o.vendor_id = t.vendor_id
			  and o.status = any($3)
			order by o.placed_at desc
			limit 1
		),
		updated_at = now()
		where t.id = $1 and t.vendor_id = $2
		returning t.is_active
	`, tableID, vendorID, occupyingList()).Scan(&isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableNotFound
		}
		return err
	}

	t.publishState(vendorID, tableID, isActive)
	return nil
}

// ListTables returns the vendor's tables with their live lock state.
func (t *TableLocks) ListTables(ctx context.Context, vendorID int64) ([]Table, error) {
	rows, err := t.DB.Query(ctx, `
		select id, vendor_id, table_number, is_active, current_order_id, updated_at
		from restaurant_tables
		where vendor_id = $1
		order by id asc
	`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]Table, 0)
	for rows.Next() {
		var (
			table          Table
			currentOrderID pgtype.Int8
		)
		if err := rows.Scan(&table.ID, &table.VendorID, &table.TableNumber, &table.IsActive, &currentOrderID, &table.UpdatedAt); err != nil {
			return nil, err
		}
		if currentOrderID.Valid {
			table.CurrentOrderID = &currentOrderID.Int64
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// SetupTables grows the vendor's table set to the requested count,
// numbering new tables T1, T2, ... after the highest existing one.
// It never shrinks: removing tables is an explicit admin action.
func (t *TableLocks) SetupTables(ctx context.Context, vendorID int64, count int) ([]Table, error) {
	if count < 1 {
		return t.ListTables(ctx, vendorID)
	}

	var existing int
	if err := t.DB.QueryRow(ctx, `
		select count(*) from restaurant_tables where vendor_id = $1
	`, vendorID).Scan(&existing); err != nil {
		return nil, err
	}

	for i := existing + 1; i <= count; i++ {
		if _, err := t.DB.Exec(ctx, `
			insert into restaurant_tables (vendor_id, table_number, is_active, updated_at)
			values ($1, $2, true, now())
			on conflict (vendor_id, table_number) do nothing
		`, vendorID, fmt.Sprintf("T%d", i)); err != nil {
			return nil, err
		}
	}

	return t.ListTables(ctx, vendorID)
}

func (t *TableLocks) publishState(vendorID, tableID int64, isActive bool) {
	if t.Events == nil {
		return
	}
	open := isActive
	t.Events.Publish(events.Event{
		Type:      events.TypeTableStatusChanged,
		VendorID:  vendorID,
		TableID:   tableID,
		TableOpen: &open,
	})
}

func occupyingList() []string {
	list := make([]string, 0, len(occupyingStatuses))
	for status := range occupyingStatuses {
		list = append(list, status)
	}
	return list
}
