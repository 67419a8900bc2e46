package resource

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-gateway/internal/envelope"
	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

// Observe message types.
const (
	ObserveTypeEvent = "event"
	ObserveTypeError = "error"

	// observeSendBufferSize is the per-observer outbound message buffer size.
	observeSendBufferSize = 64
)

// Defaults for unset WebSocket settings.
const (
	defaultMaxMessageSize = 4096
	defaultPingInterval   = 30
	defaultPongTimeout    = 10
)

// ObserveMessage is one frame sent to an observer.
type ObserveMessage struct {
	Type      string          `json:"type"`
	Resource  string          `json:"resource"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// observers tracks open OBSERVE streams.
type observers struct {
	cfg     config.WebSocketConfig
	logger  Logger
	mu      sync.RWMutex
	clients map[*observer]struct{}
}

// observer is one WebSocket stream bound to a single resource.
type observer struct {
	id       string
	hub      *observers
	conn     *websocket.Conn
	resource envelope.Resource
	send     chan []byte
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

func newObservers(cfg config.WebSocketConfig, logger Logger) *observers {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaultPongTimeout
	}
	return &observers{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*observer]struct{}),
	}
}

func (h *observers) register(o *observer) {
	h.mu.Lock()
	h.clients[o] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("observer connected", "observer", o.id, "resource", o.resource, "observers", n)
}

// unregister removes o. Only the caller that removes it closes its send
// channel.
func (h *observers) unregister(o *observer) {
	h.mu.Lock()
	_, existed := h.clients[o]
	delete(h.clients, o)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(o.send)
	}
	h.logger.Debug("observer disconnected", "observer", o.id, "observers", n)
}

// count returns the number of open streams.
func (h *observers) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// broadcast sends payload to every observer of resource.
func (h *observers) broadcast(resource envelope.Resource, payload []byte, at time.Time) {
	data, err := eventFrame(resource, payload, at)
	if err != nil {
		h.logger.Error("failed to marshal observe event", "resource", resource, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*observer, 0, len(h.clients))
	for o := range h.clients {
		if o.resource == resource {
			targets = append(targets, o)
		}
	}
	h.mu.RUnlock()

	for _, o := range targets {
		o.trySend(data)
	}
}

// closeAll disconnects every observer.
func (h *observers) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for o := range h.clients {
		close(o.send)
		if o.conn != nil {
			o.conn.Close()
		}
		delete(h.clients, o)
	}
}

func eventFrame(resource envelope.Resource, payload []byte, at time.Time) ([]byte, error) {
	msg := ObserveMessage{
		Type:      ObserveTypeEvent,
		Resource:  resource.String(),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
	if json.Valid(payload) {
		msg.Payload = json.RawMessage(payload)
	} else {
		msg.Type = ObserveTypeError
		msg.Message = "payload is not JSON"
	}
	return json.Marshal(msg)
}

// handleObserve upgrades the request to an OBSERVE stream. The cached
// payload, if any, is sent first.
func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	resource, ok := resourceParam(r)
	if !ok {
		writeNotFound(w, "unknown resource")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "resource", resource, "error", err)
		return
	}

	o := &observer{
		id:       uuid.NewString(),
		hub:      s.observers,
		conn:     conn,
		resource: resource,
		send:     make(chan []byte, observeSendBufferSize),
	}

	if e, ok := s.cache.get(resource); ok {
		if data, err := eventFrame(resource, e.payload, e.updated); err == nil {
			o.send <- data
		}
	}

	s.observers.register(o)

	go o.writePump()
	go o.readPump()
}

// readPump discards client frames and detects disconnects.
func (o *observer) readPump() {
	defer func() {
		o.hub.unregister(o)
		o.conn.Close()
	}()

	cfg := o.hub.cfg
	o.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	wait := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	o.conn.SetReadDeadline(time.Now().Add(wait))
	o.conn.SetPongHandler(func(string) error {
		return o.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		if _, _, err := o.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				o.hub.logger.Warn("observer read error", "observer", o.id, "error", err)
			}
			return
		}
	}
}

// writePump writes queued frames and keeps the connection alive with pings.
func (o *observer) writePump() {
	cfg := o.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case message, ok := <-o.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				o.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// trySend queues data, dropping it for a slow or closed observer.
func (o *observer) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case o.send <- data:
	default:
	}
}
