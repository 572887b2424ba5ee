package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	TypeOrderCreated       Type = "order-created"
	TypeOrderUpdated       Type = "order-updated"
	TypeOrderStatusChanged Type = "order-status-changed"
	TypeKOTCreated         Type = "kot-created"
	TypeTableStatusChanged Type = "table-status-changed"
)

// Event carries enough identifiers for a dashboard to refetch; it is
// not a full snapshot.
type Event struct {
	Type       Type      `json:"type"`
	VendorID   int64     `json:"vendorId"`
	OrderID    int64     `json:"orderId,omitempty"`
	OrderType  string    `json:"orderType,omitempty"`
	Status     string    `json:"status,omitempty"`
	TableID    int64     `json:"tableId,omitempty"`
	TableOpen  *bool     `json:"tableOpen,omitempty"`
	TicketID   int64     `json:"ticketId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const subscriptionBuffer = 64

// Subscription is one live dashboard connection's view of the vendor
// event feed. The owning gateway drains Events until it closes.
type Subscription struct {
	ID       uuid.UUID
	VendorID int64
	Role     string

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// trySend and close share s.mu so a publisher can never send on a
// channel that a concurrent unsubscribe has already closed. The bool
// reports whether the event found room; a closed subscription counts
// as delivered since the subscriber is already gone.
func (s *Subscription) trySend(evt Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Broadcaster is the in-process fan-out for order lifecycle events,
// scoped per vendor. There is no backlog: subscribers that connect
// late reconcile by refetching, not by replay.
type Broadcaster struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[int64]map[*Subscription]struct{}
}

func NewBroadcaster(logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		subs:   make(map[int64]map[*Subscription]struct{}),
	}
}

func (b *Broadcaster) Subscribe(vendorID int64, role string) *Subscription {
	sub := &Subscription{
		ID:       uuid.New(),
		VendorID: vendorID,
		Role:     role,
		ch:       make(chan Event, subscriptionBuffer),
	}

	b.mu.Lock()
	if b.subs[vendorID] == nil {
		b.subs[vendorID] = make(map[*Subscription]struct{})
	}
	b.subs[vendorID][sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Unsubscribe is idempotent and always closes the subscription's
// channel so the draining goroutine unblocks.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	b.mu.Lock()
	if clients := b.subs[sub.VendorID]; clients != nil {
		delete(clients, sub)
		if len(clients) == 0 {
			delete(b.subs, sub.VendorID)
		}
	}
	b.mu.Unlock()

	sub.close()
}

// Publish delivers the event to every subscriber of the event's
// vendor, in publish order. A subscriber whose buffer is full is
// dropped so one stalled connection cannot affect the others.
func (b *Broadcaster) Publish(evt Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}

	b.mu.RLock()
	clientsMap := b.subs[evt.VendorID]
	clients := make([]*Subscription, 0, len(clientsMap))
	for sub := range clientsMap {
		clients = append(clients, sub)
	}
	b.mu.RUnlock()

	for _, sub := range clients {
		if !sub.trySend(evt) {
			if b.logger != nil {
				b.logger.Warn("dropping stalled event subscriber",
					zap.String("subscriptionId", sub.ID.String()),
					zap.Int64("vendorId", sub.VendorID),
					zap.String("role", sub.Role),
				)
			}
			b.Unsubscribe(sub)
		}
	}
}

// SubscriberCount reports live subscriptions for a vendor.
func (b *Broadcaster) SubscriberCount(vendorID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[vendorID])
}
