package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"tablefare-order-service/internal/events"
)

type fakeRow struct {
	scan func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

// fakeDB satisfies querier so the SQL-facing logic can be exercised
// without a database.
type fakeDB struct {
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
	queryRow func(sql string, args []any) pgx.Row
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return f.exec(sql, args)
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return f.queryRow(sql, args)
}

func receiveEvent(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	default:
		t.Fatal("expected a published event")
		return events.Event{}
	}
}

func expectNoEvent(t *testing.T, sub *events.Subscription) {
	t.Helper()
	select {
	case evt := <-sub.Events():
		t.Fatalf("unexpected event published: %+v", evt)
	default:
	}
}

func TestLockUnknownTable(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 0"), nil
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	locks := NewTableLocks(db, zap.NewNop(), broadcaster)
	if err := locks.Lock(context.Background(), 7, 4, 42); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	expectNoEvent(t, sub)
}

func TestLockVerificationFailure(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
		queryRow: func(string, []any) pgx.Row {
			return fakeRow{scan: func(dest ...any) error {
				*(dest[0].(*bool)) = true
				return nil
			}}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	locks := NewTableLocks(db, zap.NewNop(), broadcaster)
	if err := locks.Lock(context.Background(), 7, 4, 42); !errors.Is(err, ErrTableLockFailed) {
		t.Fatalf("expected ErrTableLockFailed, got %v", err)
	}
	expectNoEvent(t, sub)
}

func TestLockMarksTableOccupied(t *testing.T) {
	db := &fakeDB{
		exec: func(string, []any) (pgconn.CommandTag, error) {
			return pgconn.NewCommandTag("UPDATE 1"), nil
		},
		queryRow: func(string, []any) pgx.Row {
			return fakeRow{scan: func(dest ...any) error {
				*(dest[0].(*bool)) = false
				return nil
			}}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	locks := NewTableLocks(db, zap.NewNop(), broadcaster)
	if err := locks.Lock(context.Background(), 7, 4, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evt := receiveEvent(t, sub)
	if evt.Type != events.TypeTableStatusChanged {
		t.Fatalf("expected table-status-changed, got %s", evt.Type)
	}
	if evt.VendorID != 7 || evt.TableID != 4 {
		t.Fatalf("unexpected event target: vendor %d table %d", evt.VendorID, evt.TableID)
	}
	if evt.TableOpen == nil || *evt.TableOpen {
		t.Fatal("a locked table must broadcast as closed")
	}
}

func TestRefreshPublishesRecomputedState(t *testing.T) {
	var gotStatuses []string
	db := &fakeDB{
		queryRow: func(_ string, args []any) pgx.Row {
			gotStatuses = args[2].([]string)
			return fakeRow{scan: func(dest ...any) error {
				*(dest[0].(*bool)) = true
				return nil
			}}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	locks := NewTableLocks(db, zap.NewNop(), broadcaster)
	if err := locks.Refresh(context.Background(), 7, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	occupying := make(map[string]bool, len(gotStatuses))
	for _, status := range gotStatuses {
		occupying[status] = true
	}
	if !occupying[StatusAccepted] || !occupying[StatusPending] {
		t.Fatalf("recompute must count live orders as occupying, got %v", gotStatuses)
	}
	for _, released := range []string{StatusDelivered, StatusCompleted, StatusCancelled} {
		if occupying[released] {
			t.Fatalf("%s orders must not hold the table", released)
		}
	}

	evt := receiveEvent(t, sub)
	if evt.Type != events.TypeTableStatusChanged {
		t.Fatalf("expected table-status-changed, got %s", evt.Type)
	}
	if evt.TableOpen == nil || !*evt.TableOpen {
		t.Fatal("a freed table must broadcast as open")
	}
}

func TestRefreshUnknownTable(t *testing.T) {
	db := &fakeDB{
		queryRow: func(string, []any) pgx.Row {
			return fakeRow{scan: func(...any) error { return pgx.ErrNoRows }}
		},
	}
	broadcaster := events.NewBroadcaster(zap.NewNop())
	sub := broadcaster.Subscribe(7, "vendor")
	defer broadcaster.Unsubscribe(sub)

	locks := NewTableLocks(db, zap.NewNop(), broadcaster)
	if err := locks.Refresh(context.Background(), 7, 99); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	expectNoEvent(t, sub)
}
