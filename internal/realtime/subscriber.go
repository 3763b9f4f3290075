package realtime

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// control is a client-to-server frame.
type control struct {
	Action  string   `json:"action"`
	Streams []string `json:"streams"`
}

// subscriber is one websocket of one user.
type subscriber struct {
	hub     *Hub
	socket  *websocket.Conn
	userID  string
	allowed map[string]struct{}

	mu      sync.Mutex
	streams map[string]struct{}
	outbox  chan Message
	done    bool
	once    sync.Once
}

func newSubscriber(hub *Hub, socket *websocket.Conn, userID string, allowed map[string]struct{}) *subscriber {
	return &subscriber{
		hub:     hub,
		socket:  socket,
		userID:  userID,
		allowed: allowed,
		streams: make(map[string]struct{}),
		outbox:  make(chan Message, outboxSize),
	}
}

func (s *subscriber) join(streams []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range streams {
		stream := normalizeStream(raw)
		if stream == "" {
			continue
		}
		if s.allowed != nil {
			if _, ok := s.allowed[stream]; !ok {
				s.hub.log.Debug("stream not permitted", zap.String("stream", stream), zap.String("user_id", s.userID))
				continue
			}
		}
		s.streams[stream] = struct{}{}
	}
}

func (s *subscriber) leave(streams []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, raw := range streams {
		delete(s.streams, normalizeStream(raw))
	}
}

func (s *subscriber) listensTo(stream string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[stream]
	return ok
}

// deliver never blocks: a subscriber whose outbox is full is dropped.
func (s *subscriber) deliver(message Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.outbox <- message:
	default:
		s.hub.log.Warn("dropping slow subscriber", zap.String("user_id", s.userID))
		go s.disconnect()
	}
}

// listen reads control frames until the socket fails.
func (s *subscriber) listen() {
	defer s.disconnect()

	s.socket.SetReadLimit(maxControlSize)
	_ = s.socket.SetReadDeadline(time.Now().Add(pongWait))
	s.socket.SetPongHandler(func(string) error {
		return s.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.log.Debug("socket closed unexpectedly", zap.String("user_id", s.userID), zap.Error(err))
			}
			return
		}
		s.handle(frame)
	}
}

func (s *subscriber) handle(frame []byte) {
	if len(frame) == 0 {
		return
	}
	var msg control
	if err := json.Unmarshal(frame, &msg); err != nil {
		s.hub.log.Debug("malformed control frame", zap.String("user_id", s.userID), zap.Error(err))
		return
	}
	switch strings.ToLower(strings.TrimSpace(msg.Action)) {
	case "subscribe":
		s.join(msg.Streams)
	case "unsubscribe":
		s.leave(msg.Streams)
	case "ping":
		s.deliver(Message{Event: "pong"})
	default:
		s.hub.log.Debug("unknown control action", zap.String("action", msg.Action), zap.String("user_id", s.userID))
	}
}

// pump writes queued messages and keepalive pings.
func (s *subscriber) pump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.disconnect()
	}()

	for {
		select {
		case message, ok := <-s.outbox:
			_ = s.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.socket.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := s.socket.WriteJSON(message); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *subscriber) disconnect() {
	s.once.Do(func() {
		s.hub.detach(s)
		s.mu.Lock()
		s.done = true
		s.streams = map[string]struct{}{}
		close(s.outbox)
		s.mu.Unlock()
		_ = s.socket.Close()
	})
}
