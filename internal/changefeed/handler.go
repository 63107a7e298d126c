package changefeed

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/asperus/agenda/pkg/logging"
)

// Frame is a message on the feed socket.
type Frame struct {
	Type     string    `json:"type"` // "subscribed", "change", "ping", "pong", "error"
	Event    *Event    `json:"event,omitempty"`
	Identity *Identity `json:"identity,omitempty"`
	Text     string    `json:"text,omitempty"`
}

// Identity is what a viewer is looking at. It is recorded for logs; events are
// not filtered by it.
type Identity struct {
	StoreID      string `json:"store_id,omitempty"`
	Professional string `json:"professional,omitempty"`
	From         string `json:"from,omitempty"`
}

// Handler streams change events over a WebSocket, one broker subscription
// per connection.
type Handler struct {
	broker       Broker
	logger       *logging.Logger
	pingInterval time.Duration
}

func NewHandler(broker Broker, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{broker: broker, logger: logger, pingInterval: 30 * time.Second}
}

func (h *Handler) WithPingInterval(d time.Duration) *Handler {
	if d > 0 {
		h.pingInterval = d
	}
	return h
}

// HandleWebSocket handles GET /feed. Browser origins are checked by the CORS
// middleware, so the handshake accepts clients that send no Origin header.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	srv := websocket.Server{
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler: func(conn *websocket.Conn) {
			h.serveWS(conn, r)
		},
	}
	srv.ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	q := r.URL.Query()
	identity := Identity{
		StoreID:      q.Get("store_id"),
		Professional: q.Get("professional"),
		From:         q.Get("from"),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	send := func(f Frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return websocket.JSON.Send(conn, f)
	}

	sub, err := h.broker.Subscribe(ctx)
	if err != nil {
		h.logger.Error("feed: subscribe failed", "error", err, "store_id", identity.StoreID)
		_ = send(Frame{Type: "error", Text: "change feed unavailable"})
		return
	}
	defer sub.Close()

	if err := send(Frame{Type: "subscribed", Identity: &identity}); err != nil {
		return
	}
	h.logger.Info("feed: connection opened", "store_id", identity.StoreID, "professional", identity.Professional, "from", identity.From)

	go func() {
		defer cancel()
		for {
			var in Frame
			if err := websocket.JSON.Receive(conn, &in); err != nil {
				h.logger.Debug("feed: connection closed", "store_id", identity.StoreID, "error", err)
				return
			}
			if in.Type == "ping" {
				_ = send(Frame{Type: "pong"})
			}
		}
	}()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := send(Frame{Type: "change", Event: &evt}); err != nil {
				return
			}
		case <-ticker.C:
			if err := send(Frame{Type: "ping"}); err != nil {
				return
			}
		}
	}
}
