package realtime

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/charlesng35/jobboard/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxControlSize = 4 << 10

	outboxSize = 64
)

// Message is the JSON envelope pushed to a subscriber.
type Message struct {
	Stream string         `json:"stream"`
	Event  string         `json:"event"`
	Data   any            `json:"data,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithAllowedOrigins accepts cross-origin upgrades from the listed origins,
// in addition to same-origin and loopback requests. "*" accepts any origin.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		h.origins.allow(origins...)
	}
}

// WithHubLogger overrides the hub logger.
func WithHubLogger(log *zap.Logger) HubOption {
	return func(h *Hub) {
		if log != nil {
			h.log = log
		}
	}
}

// Hub tracks the live sockets of each user. A user may hold several sockets
// (tabs, devices); each socket picks the streams it listens to.
type Hub struct {
	mu      sync.RWMutex
	users   map[string]map[*subscriber]struct{}
	closed  bool
	origins *originPolicy
	upgrade websocket.Upgrader
	log     *zap.Logger
}

// NewHub constructs a Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		users:   make(map[string]map[*subscriber]struct{}),
		origins: newOriginPolicy(),
		log:     logger.WithModule("realtime"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.upgrade = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Serve upgrades the request and blocks until the socket closes. allowed
// restricts which streams the socket may join; nil permits any stream.
func (h *Hub) Serve(userID string, streams []string, allowed map[string]struct{}, w http.ResponseWriter, r *http.Request) {
	socket, err := h.upgrade.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade rejected", zap.String("user_id", userID), zap.Error(err))
		return
	}

	sub := newSubscriber(h, socket, userID, allowed)
	if !h.attach(sub) {
		_ = socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = socket.Close()
		return
	}
	sub.join(streams)

	go sub.pump()
	sub.listen()
}

// BroadcastToUser queues message on every socket of userID listening to stream.
func (h *Hub) BroadcastToUser(stream, userID string, message Message) {
	stream = normalizeStream(stream)
	if stream == "" || userID == "" {
		return
	}
	message.Stream = stream

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.users[userID] {
		if sub.listensTo(stream) {
			sub.deliver(message)
		}
	}
}

// Subscribers reports how many sockets of userID listen to stream.
func (h *Hub) Subscribers(stream, userID string) int {
	stream = normalizeStream(stream)

	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for sub := range h.users[userID] {
		if sub.listensTo(stream) {
			count++
		}
	}
	return count
}

// Close disconnects every socket and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var subs []*subscriber
	for _, set := range h.users {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.disconnect()
	}
}

func (h *Hub) attach(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set := h.users[sub.userID]
	if set == nil {
		set = make(map[*subscriber]struct{})
		h.users[sub.userID] = set
	}
	set[sub] = struct{}{}
	return true
}

func (h *Hub) detach(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.users[sub.userID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.users, sub.userID)
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	return h.origins.permits(r.Header.Get("Origin"), r.Host)
}

func normalizeStream(stream string) string {
	return strings.ToLower(strings.TrimSpace(stream))
}
