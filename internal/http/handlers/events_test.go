package handlers

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
)

type recordedPublish struct {
	exchange string
	key      string
	payload  any
}

type recordingPublisher struct {
	calls []recordedPublish
	err   error
}

func (p *recordingPublisher) PublishJSON(_ context.Context, exchange, routingKey string, payload any) error {
	p.calls = append(p.calls, recordedPublish{exchange: exchange, key: routingKey, payload: payload})
	return p.err
}

func eventOrder() *store.Order {
	return &store.Order{
		ID:        42,
		VendorID:  7,
		OrderType: store.OrderTypePickup,
		Status:    store.StatusPending,
		UpdatedAt: time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
	}
}

func TestPublishOrderEventCreationEnvelope(t *testing.T) {
	pub := &recordingPublisher{}
	h := &Handler{Logger: zap.NewNop(), Queue: pub}
	r := httptest.NewRequest("POST", "/api/public/pickup/order", nil)

	h.publishOrderEvent(r, eventOrder(), queue.OrderCreatedKey)

	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.calls))
	}
	call := pub.calls[0]
	if call.exchange != queue.EventsExchange {
		t.Fatalf("expected exchange %s, got %s", queue.EventsExchange, call.exchange)
	}
	if call.key != queue.OrderCreatedKey {
		t.Fatalf("expected routing key %s, got %s", queue.OrderCreatedKey, call.key)
	}
	evt, ok := call.payload.(queue.OrderEvent)
	if !ok {
		t.Fatalf("expected queue.OrderEvent payload, got %T", call.payload)
	}
	if evt.Type != queue.OrderCreatedKey {
		t.Fatalf("envelope type must match the routing key, got %s", evt.Type)
	}
	if evt.OrderID != 42 || evt.VendorID != 7 {
		t.Fatalf("unexpected envelope ids: order %d vendor %d", evt.OrderID, evt.VendorID)
	}
	if evt.OrderType != store.OrderTypePickup || evt.Status != store.StatusPending {
		t.Fatalf("unexpected envelope body: %+v", evt)
	}
	if evt.UpdatedAt == nil || !evt.UpdatedAt.Equal(eventOrder().UpdatedAt) {
		t.Fatal("expected the order's updatedAt on the envelope")
	}
}

func TestPublishOrderEventStatusKey(t *testing.T) {
	pub := &recordingPublisher{}
	h := &Handler{Logger: zap.NewNop(), Queue: pub}
	r := httptest.NewRequest("PUT", "/api/vendor/orders/42/status", nil)

	order := eventOrder()
	order.Status = store.StatusReady
	h.publishOrderEvent(r, order, queue.StatusUpdatedKey)

	if len(pub.calls) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(pub.calls))
	}
	if pub.calls[0].key != queue.StatusUpdatedKey {
		t.Fatalf("expected routing key %s, got %s", queue.StatusUpdatedKey, pub.calls[0].key)
	}
	evt := pub.calls[0].payload.(queue.OrderEvent)
	if evt.Type != queue.StatusUpdatedKey || evt.Status != store.StatusReady {
		t.Fatalf("unexpected envelope: %+v", evt)
	}
}

func TestPublishOrderEventWithoutBroker(t *testing.T) {
	h := &Handler{Logger: zap.NewNop()}
	r := httptest.NewRequest("POST", "/api/public/orders", nil)

	// Must be a no-op when the broker is not configured.
	h.publishOrderEvent(r, eventOrder(), queue.OrderCreatedKey)
	h.publishOrderEvent(r, nil, queue.OrderCreatedKey)
}

func TestPublishOrderEventSwallowsBrokerError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	h := &Handler{Logger: zap.NewNop(), Queue: pub}
	r := httptest.NewRequest("POST", "/api/public/orders", nil)

	h.publishOrderEvent(r, eventOrder(), queue.OrderCreatedKey)

	if len(pub.calls) != 1 {
		t.Fatal("publish must still be attempted when the broker errors")
	}
}
