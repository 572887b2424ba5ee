package httpapi

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tablefare-order-service/internal/config"
	"tablefare-order-service/internal/events"
	"tablefare-order-service/internal/http/handlers"
	"tablefare-order-service/internal/middleware"
	"tablefare-order-service/internal/queue"
	"tablefare-order-service/internal/store"
	"tablefare-order-service/internal/ws"
)

func NewRouter(db *pgxpool.Pool, logger *zap.Logger, cfg config.Config, queueClient *queue.Client, orders *store.Store, broadcaster *events.Broadcaster, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"X-Requested-With",
				"Cache-Control",
				"Last-Event-ID",
			},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{
		DB:     db,
		Logger: logger,
		Config: cfg,
		Orders: orders,
		Events: broadcaster,
	}
	// A nil *queue.Client must stay a nil interface so the handlers'
	// Queue == nil guard keeps working when the broker is absent.
	if queueClient != nil {
		h.Queue = queueClient
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Post("/orders", h.PublicCreateOrder)
		r.Get("/orders/{orderId}", h.PublicOrderDetail)
		r.Post("/booking/confirm", h.PublicBookingConfirm)
		r.Post("/pickup/order", h.PublicPickupOrder)
	})

	r.Route("/api/vendor", func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSecret))
		r.Use(middleware.RequireVendor)

		r.Post("/orders", h.VendorCreateOrder)
		r.Get("/orders", h.VendorListOrders)
		r.Get("/orders/stream", h.VendorOrdersStream)
		r.Get("/orders/{orderId}", h.VendorOrderDetail)
		r.Put("/orders/{orderId}", h.VendorUpdateOrderItems)
		r.Put("/orders/{orderId}/status", h.VendorUpdateOrderStatus)
		r.Get("/orders/{orderId}/receipt", h.VendorOrderReceipt)
		r.Get("/orders/{orderId}/receipt.pdf", h.VendorOrderReceiptPDF)

		r.Get("/tables", h.VendorListTables)
		r.Post("/tables/setup", h.VendorSetupTables)
	})

	r.Get("/ws/vendor/orders", wsServer.VendorOrdersWS)

	return r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
