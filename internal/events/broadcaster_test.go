package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func drain(t *testing.T, sub *Subscription, want int) []Event {
	t.Helper()
	received := make([]Event, 0, want)
	for len(received) < want {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				t.Fatalf("subscription closed after %d of %d events", len(received), want)
			}
			received = append(received, evt)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(received), want)
		}
	}
	return received
}

func TestPublishScopedToVendor(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	mine := b.Subscribe(1, "VENDOR_OWNER")
	other := b.Subscribe(2, "VENDOR_OWNER")
	defer b.Unsubscribe(mine)
	defer b.Unsubscribe(other)

	b.Publish(Event{Type: TypeOrderCreated, VendorID: 1, OrderID: 42})

	got := drain(t, mine, 1)
	if got[0].OrderID != 42 {
		t.Fatalf("expected orderId 42, got %d", got[0].OrderID)
	}

	select {
	case evt := <-other.Events():
		t.Fatalf("vendor 2 received vendor 1 event: %+v", evt)
	default:
	}
}

func TestPublishPreservesOrder(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	sub := b.Subscribe(1, "CAPTAIN")
	defer b.Unsubscribe(sub)

	b.Publish(Event{Type: TypeOrderCreated, VendorID: 1, OrderID: 1})
	b.Publish(Event{Type: TypeOrderStatusChanged, VendorID: 1, OrderID: 1, Status: "accepted"})
	b.Publish(Event{Type: TypeKOTCreated, VendorID: 1, OrderID: 1, TicketID: 9})

	got := drain(t, sub, 3)
	wantTypes := []Type{TypeOrderCreated, TypeOrderStatusChanged, TypeKOTCreated}
	for i, want := range wantTypes {
		if got[i].Type != want {
			t.Fatalf("event %d: expected %s, got %s", i, want, got[i].Type)
		}
	}
}

func TestStalledSubscriberIsDropped(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	stalled := b.Subscribe(1, "VENDOR_OWNER")

	// Nobody drains the subscription; overflow its buffer.
	for i := 0; i < subscriptionBuffer+1; i++ {
		b.Publish(Event{Type: TypeOrderUpdated, VendorID: 1, OrderID: int64(i)})
	}

	if count := b.SubscriberCount(1); count != 0 {
		t.Fatalf("expected the stalled subscriber to be dropped, got %d", count)
	}

	// The dropped subscription's channel must be closed once drained.
	drained := 0
	for range stalled.Events() {
		drained++
	}
	if drained != subscriptionBuffer {
		t.Fatalf("expected %d buffered events, got %d", subscriptionBuffer, drained)
	}

	// The vendor can resubscribe and keeps receiving events.
	healthy := b.Subscribe(1, "VENDOR_OWNER")
	defer b.Unsubscribe(healthy)
	b.Publish(Event{Type: TypeOrderUpdated, VendorID: 1, OrderID: 999})
	got := drain(t, healthy, 1)
	if got[0].OrderID != 999 {
		t.Fatalf("expected orderId 999, got %d", got[0].OrderID)
	}
}

func TestPublishDuringUnsubscribe(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())

	var panicked atomic.Bool
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicked.Store(true)
				}
			}()
			for {
				select {
				case <-stop:
					return
				default:
					b.Publish(Event{Type: TypeOrderStatusChanged, VendorID: 1, OrderID: 7})
				}
			}
		}()
	}

	// Churn subscriptions while the publishers run. Without the
	// send/close exclusion a publisher hits a closed channel here.
	for i := 0; i < 500; i++ {
		sub := b.Subscribe(1, "VENDOR_OWNER")
		b.Unsubscribe(sub)
	}

	close(stop)
	wg.Wait()

	if panicked.Load() {
		t.Fatal("publishing raced a closing subscription into a panic")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	sub := b.Subscribe(1, "CAPTAIN")

	b.Unsubscribe(sub)
	b.Unsubscribe(sub)
	b.Unsubscribe(nil)

	if count := b.SubscriberCount(1); count != 0 {
		t.Fatalf("expected 0 subscribers, got %d", count)
	}

	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}
