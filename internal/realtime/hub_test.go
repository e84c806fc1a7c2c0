package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"leads-backend/internal/middleware"
	"leads-backend/internal/models"

	"github.com/gorilla/websocket"
)

func serveAs(h *Hub, actor models.Actor) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r.WithContext(middleware.WithActor(r.Context(), actor)))
	}))
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitConnected(t *testing.T, h *Hub, id, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Connected(id) != want {
		if time.Now().After(deadline) {
			t.Fatalf("principal %d: expected %d connections, have %d", id, want, h.Connected(id))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishReachesRecipientOnly(t *testing.T) {
	h := NewHub(nil)
	alice := serveAs(h, models.Actor{ID: 7, Role: models.RoleAgent, Name: "Alice"})
	defer alice.Close()
	bob := serveAs(h, models.Actor{ID: 8, Role: models.RoleAgent, Name: "Bob"})
	defer bob.Close()

	a := dial(t, alice)
	defer a.Close()
	b := dial(t, bob)
	defer b.Close()
	waitConnected(t, h, 7, 1)
	waitConnected(t, h, 8, 1)

	h.Publish(7, &models.Notification{ID: 1, RecipientID: 7, LeadID: 3, Message: "Kelly marked Jane as qualified", Type: models.NotificationStatusUpdate})

	a.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := a.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(frame, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "notification" || msg.Notification.ID != 1 {
		t.Fatalf("unexpected frame %s", frame)
	}

	b.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := b.ReadMessage(); err == nil {
		t.Fatal("bob should not receive alice's notification")
	}
}

func TestDisconnectUnregisters(t *testing.T) {
	h := NewHub(nil)
	srv := serveAs(h, models.Actor{ID: 7, Role: models.RoleAgent})
	defer srv.Close()

	conn := dial(t, srv)
	waitConnected(t, h, 7, 1)
	conn.Close()
	waitConnected(t, h, 7, 0)

	// publishing with nobody connected is a no-op
	h.Publish(7, &models.Notification{ID: 2, RecipientID: 7})
}

func TestOriginCheck(t *testing.T) {
	h := NewHub([]string{"https://crm.example.com"})
	srv := serveAs(h, models.Actor{ID: 7, Role: models.RoleAgent})
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("expected foreign origin to be refused")
	}
	header.Set("Origin", "https://crm.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("allowed origin refused: %v", err)
	}
	conn.Close()
}
