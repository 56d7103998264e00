package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/humancompiler/planner/internal/escalator"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// dialHub starts a test server whose handler upgrades and registers the
// connection against hub under userID, and returns a connected client
// conn plus teardown.
func dialHub(t *testing.T, hub *LiveHub, userID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.Register(userID, conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// give the server goroutine a moment to register before the test proceeds
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount(userID) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	return client, func() { client.Close(); srv.Close() }
}

func TestSendLiveDeliversToRegisteredClient(t *testing.T) {
	hub := NewLiveHub()
	client, teardown := dialHub(t, hub, "user-1")
	defer teardown()

	if hub.ClientCount("user-1") != 1 {
		t.Fatalf("expected one registered client, got %d", hub.ClientCount("user-1"))
	}

	n := escalator.Notification{ID: "n1", Type: "notification", Level: escalator.LevelLight, Title: "hi"}
	sent := hub.SendLive(context.Background(), "user-1", n)
	if sent != 1 {
		t.Fatalf("expected 1 successful send, got %d", sent)
	}

	client.SetReadDeadline(time.Now().Add(time.Second))
	var got escalator.Notification
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.ID != "n1" || got.Title != "hi" {
		t.Fatalf("unexpected notification received: %+v", got)
	}
}

func TestSendLiveToUnknownUserReturnsZero(t *testing.T) {
	hub := NewLiveHub()
	sent := hub.SendLive(context.Background(), "nobody", escalator.Notification{})
	if sent != 0 {
		t.Fatalf("expected 0 sends for unknown user, got %d", sent)
	}
}

func TestDeregisterRemovesClient(t *testing.T) {
	hub := NewLiveHub()
	_, teardown := dialHub(t, hub, "user-1")
	defer teardown()

	var conn *websocket.Conn
	hub.mu.RLock()
	for c := range hub.clients["user-1"] {
		conn = c
	}
	hub.mu.RUnlock()

	hub.Deregister("user-1", conn)
	if hub.ClientCount("user-1") != 0 {
		t.Fatalf("expected client count 0 after deregister, got %d", hub.ClientCount("user-1"))
	}
}
