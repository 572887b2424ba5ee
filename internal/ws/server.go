package ws

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tablefare-order-service/internal/auth"
	"tablefare-order-service/internal/config"
	"tablefare-order-service/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server exposes the vendor dashboard websocket. It is a thin pump
// from the in-process event broadcaster onto the wire; it holds no
// state of its own beyond live connections.
type Server struct {
	Logger *zap.Logger
	Config config.Config
	Events *events.Broadcaster
}

func New(logger *zap.Logger, cfg config.Config, broadcaster *events.Broadcaster) *Server {
	return &Server{Logger: logger, Config: cfg, Events: broadcaster}
}

type wsClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsClient) writeJSON(value any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(value)
}

func (c *wsClient) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// VendorOrdersWS streams order lifecycle events for the token's
// vendor. Browsers cannot set headers on websocket dials, so the
// bearer token arrives as a query parameter.
func (s *Server) VendorOrdersWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	token := auth.ParseBearerToken(r.URL.Query().Get("token"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	claims, err := auth.VerifyAccessToken(token, s.Config.JWTSecret)
	if err != nil || claims.VendorID == nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}
	vendorID, err := strconv.ParseInt(*claims.VendorID, 10, 64)
	if err != nil {
		_ = conn.WriteJSON(map[string]any{"type": "error", "message": "unauthorized"})
		return
	}

	client := &wsClient{conn: conn}
	sub := s.Events.Subscribe(vendorID, string(claims.Role))
	defer s.Events.Unsubscribe(sub)

	_ = client.writeJSON(map[string]any{
		"type":           "connected",
		"subscriptionId": sub.ID.String(),
	})

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(s.Config.WSHeartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := client.writeJSON(map[string]any{"type": "event", "data": evt}); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := client.ping(); err != nil {
				return
			}
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		}
	}
}
