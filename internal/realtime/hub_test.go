package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub, userID string, streams ...string) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(userID, streams, nil, w, r)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		for _, stream := range streams {
			if hub.Subscribers(stream, userID) == 0 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
	return conn
}

func TestHubDeliversToSubscribedUser(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications)

	hub.BroadcastToUser(StreamNotifications, "user-2", Message{Event: "ignored"})
	hub.BroadcastToUser(StreamApplications, "user-1", Message{Event: "ignored"})
	hub.BroadcastToUser(" Notifications ", "user-1", Message{Event: "notification.created", Data: map[string]any{"id": "n-1"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, StreamNotifications, msg.Stream)
	require.Equal(t, "notification.created", msg.Event)
}

func TestHubControlMessages(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "subscribe", "streams": []string{StreamApplications}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamApplications, "user-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "unsubscribe", "streams": []string{StreamNotifications}}))
	require.Eventually(t, func() bool { return hub.Subscribers(StreamNotifications, "user-1") == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "pong", msg.Event)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers(StreamApplications, "user-1") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubCheckOrigin(t *testing.T) {
	hub := NewHub(WithAllowedOrigins("https://app.jobboard.example"))

	request := func(origin, host string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://"+host+"/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	require.True(t, hub.checkOrigin(request("", "api.jobboard.example")))
	require.True(t, hub.checkOrigin(request("https://api.jobboard.example", "api.jobboard.example")))
	require.True(t, hub.checkOrigin(request("https://app.jobboard.example", "api.jobboard.example")))
	require.True(t, hub.checkOrigin(request("http://localhost:5173", "api.jobboard.example")))
	require.False(t, hub.checkOrigin(request("https://evil.example", "api.jobboard.example")))

	open := NewHub(WithAllowedOrigins("*"))
	require.True(t, open.checkOrigin(request("https://evil.example", "api.jobboard.example")))
}

func TestHubCloseDisconnectsSubscribers(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "user-1", StreamNotifications, StreamApplications)

	hub.Close()
	require.Zero(t, hub.Subscribers(StreamNotifications, "user-1"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestHubIgnoresStreamsOutsideAllowList(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.Serve("user-9", []string{"admin-feed", StreamNotifications}, map[string]struct{}{StreamNotifications: {}}, w, r)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Subscribers(StreamNotifications, "user-9") == 1 }, time.Second, 10*time.Millisecond)
	require.Zero(t, hub.Subscribers("admin-feed", "user-9"))
}
