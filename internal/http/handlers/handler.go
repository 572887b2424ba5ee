package handlers

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tablefare-order-service/internal/config"
	"tablefare-order-service/internal/events"
	"tablefare-order-service/internal/store"
)

// EventPublisher is the slice of the queue client the handlers use;
// it stays an interface so tests can record publications.
type EventPublisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, payload any) error
}

type Handler struct {
	DB     *pgxpool.Pool
	Logger *zap.Logger
	Config config.Config
	Queue  EventPublisher
	Orders *store.Store
	Events *events.Broadcaster
}
