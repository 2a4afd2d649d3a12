package main

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"morphfield/sculptor/internal/config"
	"morphfield/sculptor/internal/geometry"
	"morphfield/sculptor/internal/gesture"
	"morphfield/sculptor/internal/input"
	"morphfield/sculptor/internal/logging"
	"morphfield/sculptor/internal/stream"
)

// clientRole distinguishes landmark producers from frame consumers.
type clientRole string

const (
	roleCapture clientRole = "capture"
	roleView    clientRole = "view"
)

// sendBufferSize is the per-client outbound queue depth. A viewer that falls
// this many frames behind starts losing frames rather than stalling the tick.
const sendBufferSize = 16

// client is one connected WebSocket peer.
type client struct {
	id       string
	role     clientRole
	conn     *websocket.Conn
	send     chan outboundMessage
	compress bool
}

// outboundMessage pairs a payload with its WebSocket message type.
type outboundMessage struct {
	messageType int
	payload     []byte
}

// Hub owns the WebSocket client set: it ingests landmark frames from capture
// clients and fans encoded position frames out to view clients.
type Hub struct {
	logger       *logging.Logger
	cell         *gesture.Cell
	gate         *input.Gate
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	maxPayload   int64
	maxClients   int

	mu      sync.Mutex
	clients map[*client]bool
	capture int
	view    int
	dropped uint64
}

// NewHub wires a hub against the shared interaction cell and ingest gate.
func NewHub(cfg *config.Config, cell *gesture.Cell, gate *input.Gate, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	h := &Hub{
		logger:       logger,
		cell:         cell,
		gate:         gate,
		pingInterval: cfg.PingInterval,
		maxPayload:   cfg.MaxPayloadBytes,
		maxClients:   cfg.MaxClients,
		clients:      make(map[*client]bool),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: originChecker(cfg.AllowedOrigins),
	}
	return h
}

// originChecker builds the upgrade origin policy. An empty allowlist admits
// every origin, which suits same-host installations.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	normalized := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		normalized[strings.ToLower(strings.TrimSpace(origin))] = true
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
		if origin == "" {
			return true
		}
		if normalized[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && normalized[parsed.Host] {
			return true
		}
		return false
	}
}

// ServeWS upgrades an HTTP request into a sculptor WebSocket session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	role := roleView
	if r.URL.Query().Get("role") == string(roleCapture) {
		role = roleCapture
	}
	compress := r.URL.Query().Get("compress") == "snappy"

	h.mu.Lock()
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		h.mu.Unlock()
		http.Error(w, "client limit reached", http.StatusServiceUnavailable)
		return
	}
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	if h.maxPayload > 0 {
		conn.SetReadLimit(h.maxPayload)
	}

	c := &client{
		id:       uuid.NewString(),
		role:     role,
		conn:     conn,
		send:     make(chan outboundMessage, sendBufferSize),
		compress: compress,
	}
	h.register(c)
	h.logger.Info("client connected",
		logging.String("client_id", c.id),
		logging.String("role", string(role)),
		logging.Bool("compress", compress),
	)

	go h.writeLoop(c)
	go h.readLoop(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	switch c.role {
	case roleCapture:
		h.capture++
	default:
		h.view++
	}
	h.mu.Unlock()
}

// unregister drops a client and, when the last capture client leaves, resets
// the interaction cell so the sculpture drifts back to its neutral pose.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	switch c.role {
	case roleCapture:
		h.capture--
	default:
		h.view--
	}
	lastCapture := c.role == roleCapture && h.capture == 0
	h.mu.Unlock()

	close(c.send)
	if h.gate != nil {
		h.gate.Forget(c.id)
	}
	if lastCapture && h.cell != nil {
		h.cell.Reset()
	}
	h.logger.Info("client disconnected", logging.String("client_id", c.id), logging.String("role", string(c.role)))
}

// readLoop consumes inbound messages until the connection dies. Only capture
// clients are expected to send payloads; viewer chatter is discarded.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("read error", logging.String("client_id", c.id), logging.Error(err))
			}
			return
		}
		if c.role != roleCapture {
			continue
		}
		if err := h.handleLandmarks(c.id, raw); err != nil {
			//1.- Rejected frames are dropped; the animation keeps running on
			// whatever sample is already in the cell.
			h.logger.Debug("landmark frame dropped", logging.String("client_id", c.id), logging.Error(err))
		}
	}
}

// writeLoop drains the outbound queue and keeps the connection alive with
// pings at the configured interval.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.messageType, msg.payload); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

// PublishFrame implements engine.FrameSink: it encodes the tick's buffer once
// per payload variant and fans it out without blocking the animation loop.
func (h *Hub) PublishFrame(tick uint64, shape geometry.ShapeKind, points []geometry.Point3) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.view == 0 {
		return
	}

	//1.- Encode lazily per variant so a tick with only plain viewers never
	// pays for compression. Payloads are freshly allocated each tick because
	// queued sends may outlive the tick that produced them.
	var plain, packed []byte
	var err error
	for c := range h.clients {
		if c.role != roleView {
			continue
		}
		var payload []byte
		if c.compress {
			if packed == nil {
				packed, err = stream.Encode(tick, shape, points, true)
				if err != nil {
					h.logger.Error("frame encode failed", logging.Error(err))
					return
				}
			}
			payload = packed
		} else {
			if plain == nil {
				plain, err = stream.Encode(tick, shape, points, false)
				if err != nil {
					h.logger.Error("frame encode failed", logging.Error(err))
					return
				}
			}
			payload = plain
		}
		select {
		case c.send <- outboundMessage{messageType: websocket.BinaryMessage, payload: payload}:
		default:
			//2.- A full queue means the viewer is behind; drop this frame for
			// it rather than stalling every other client.
			h.dropped++
		}
	}
}

// BroadcastControl sends a JSON control message (color change, preset apply)
// to every view client.
func (h *Hub) BroadcastControl(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("control message encode failed", logging.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.role != roleView {
			continue
		}
		select {
		case c.send <- outboundMessage{messageType: websocket.TextMessage, payload: data}:
		default:
			h.dropped++
		}
	}
}

// ClientCounts reports connected capture and view clients.
func (h *Hub) ClientCounts() (capture, view int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.capture, h.view
}

// DroppedFrames reports how many outbound messages were discarded because a
// client's queue was full.
func (h *Hub) DroppedFrames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// CloseAll disconnects every client during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}
