package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange = "tablefare.events"
	EventsQueue    = "tablefare.notifications"

	// Routing keys double as the envelope type discriminator.
	OrderCreatedKey  = "order.created"
	StatusUpdatedKey = "order.status.updated"

	NotificationJobsExchange = "tablefare.notification_jobs"
	NotificationJobsQueue    = "tablefare.notification_jobs.process"
	NotificationJobsDLQ      = "tablefare.notification_jobs.dlq"
	NotificationJobsRK       = "process"
	NotificationJobsDeadRK   = "dead"
)

// OrderEvent is the wire envelope published after order creation and
// every status mutation. The worker turns it into customer push jobs.
type OrderEvent struct {
	Type      string     `json:"type"`
	OrderID   int64      `json:"orderId"`
	VendorID  int64      `json:"vendorId"`
	OrderType string     `json:"orderType"`
	Status    string     `json:"status"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// EnsureEventsTopology declares the topic exchange the service
// publishes to and the worker's consume queue.
func EnsureEventsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange, "topic"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(EventsQueue, nil); err != nil {
		return err
	}
	return qc.BindQueue(EventsQueue, EventsExchange, "order.#")
}

// EnsureNotificationJobsTopology declares the direct exchange, the
// processing queue and its dead-letter queue for push jobs.
func EnsureNotificationJobsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}

	if err := qc.EnsureExchange(NotificationJobsExchange, "direct"); err != nil {
		return err
	}

	if _, err := qc.EnsureQueue(NotificationJobsDLQ, nil); err != nil {
		return err
	}
	if err := qc.BindQueue(NotificationJobsDLQ, NotificationJobsExchange, NotificationJobsDeadRK); err != nil {
		return err
	}

	_, err := qc.EnsureQueue(NotificationJobsQueue, amqp.Table{
		"x-dead-letter-exchange":    NotificationJobsExchange,
		"x-dead-letter-routing-key": NotificationJobsDeadRK,
	})
	if err != nil {
		return err
	}
	return qc.BindQueue(NotificationJobsQueue, NotificationJobsExchange, NotificationJobsRK)
}

// ProcessEventToJobs consumes one status event and enqueues the
// matching customer push job. Events with no push-worthy stage are
// acked and dropped.
func ProcessEventToJobs(ctx context.Context, db *pgxpool.Pool, qc *Client, body []byte) error {
	if db == nil || qc == nil {
		return nil
	}

	var evt OrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return err
	}
	// Creation events ride the same exchange but carry no
	// push-worthy stage of their own.
	if evt.Type != StatusUpdatedKey {
		return nil
	}

	stage := mapStatusToPushStage(evt.Status)
	if stage == "" {
		return nil
	}

	var (
		orderType     string
		vendorName    string
		customerName  *string
		customerPhone *string
	)
	err := db.QueryRow(ctx, `
		select o.order_type, v.name, o.customer_name, o.customer_phone
		from orders o
		join vendors v on v.id = o.vendor_id
		where o.id = $1 and o.vendor_id = $2
	`, evt.OrderID, evt.VendorID).Scan(&orderType, &vendorName, &customerName, &customerPhone)
	if err != nil {
		return err
	}

	// No contact channel means nothing to deliver.
	if customerPhone == nil || strings.TrimSpace(*customerPhone) == "" {
		return nil
	}

	payload := map[string]any{
		"kind":          "push.customer_order_status",
		"orderId":       fmt.Sprintf("%d", evt.OrderID),
		"orderType":     orderType,
		"stage":         stage,
		"vendorName":    vendorName,
		"customerPhone": strings.TrimSpace(*customerPhone),
	}
	if customerName != nil {
		payload["customerName"] = *customerName
	}

	job := map[string]any{
		"kind":      "push.customer_order_status",
		"payload":   payload,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"attempt":   1,
	}
	return qc.PublishJSON(ctx, NotificationJobsExchange, NotificationJobsRK, job)
}

func mapStatusToPushStage(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "accepted", "preparing":
		return "PREPARING"
	case "ready":
		return "READY"
	case "out_for_delivery":
		return "ON_THE_WAY"
	case "delivered", "completed":
		return "COMPLETED"
	case "cancelled":
		return "CANCELLED"
	default:
		return ""
	}
}
