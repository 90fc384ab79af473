package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tournament_market/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type staticTokens map[string]string

func (s staticTokens) Parse(token string) (string, error) {
	if uid, ok := s[token]; ok {
		return uid, nil
	}
	return "", errors.New("invalid token")
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var o Outbound
	if err := conn.ReadJSON(&o); err != nil {
		t.Fatalf("read: %v", err)
	}
	return o
}

func TestHubDeliversTournamentAndUserEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", HandleWS(hub, staticTokens{"tok-a": "alice", "tok-b": "bob"}, ""))
	srv := httptest.NewServer(r)
	defer srv.Close()

	alice := dial(t, srv, "token=tok-a")
	if o := read(t, alice); o.Type != MsgReady {
		t.Fatalf("expected ready, got %+v", o)
	}
	if err := alice.WriteJSON(Inbound{Type: MsgSubscribe, TournamentID: "t1"}); err != nil {
		t.Fatal(err)
	}
	if o := read(t, alice); o.Type != MsgSubscribed || o.TournamentID != "t1" {
		t.Fatalf("expected subscribed, got %+v", o)
	}

	bob := dial(t, srv, "token=tok-b")
	if o := read(t, bob); o.Type != MsgReady {
		t.Fatalf("expected ready, got %+v", o)
	}

	notify.Send(context.Background(), hub, notify.KindPlayerJoined, map[string]any{
		"tournament_id": "t1", "user_id": "bob",
	})

	for name, conn := range map[string]*websocket.Conn{"alice": alice, "bob": bob} {
		o := read(t, conn)
		if o.Type != MsgEvent {
			t.Fatalf("%s: expected event, got %+v", name, o)
		}
		var e notify.Event
		if err := json.Unmarshal(o.Event, &e); err != nil {
			t.Fatal(err)
		}
		if e.Kind != notify.KindPlayerJoined || e.TournamentID() != "t1" {
			t.Fatalf("%s: unexpected event %+v", name, e)
		}
	}
}

func TestHandleWSRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", HandleWS(NewHub(), staticTokens{}, ""))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=nope"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestSubscriptionLimitAndCleanup(t *testing.T) {
	hub := NewHub()
	c := NewClient("u", nil, hub)
	hub.Register(c)
	for i := 0; i < MaxSubscriptions; i++ {
		if !hub.Subscribe(c, string(rune('a'+i))) {
			t.Fatalf("subscription %d rejected", i)
		}
	}
	if hub.Subscribe(c, "one-more") {
		t.Fatal("expected limit to apply")
	}
	hub.OnDisconnect(c)
	if hub.Subscribers("a") != 0 {
		t.Fatal("subscriptions must be dropped on disconnect")
	}
}
