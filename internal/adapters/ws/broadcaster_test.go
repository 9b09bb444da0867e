package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/podium/internal/domain/events"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func dial(t *testing.T, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
		if resp != nil {
			_ = resp.Body.Close()
		}
	})
	return conn
}

func waitForClients(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, b.ClientCount())
}

func TestBroadcasterDeliversEvents(t *testing.T) {
	b := NewBroadcaster()
	t.Cleanup(func() { _ = b.Close() })

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv.URL)
	waitForClients(t, b, 1)

	sent := events.New(events.KindScoreUpdated, events.ScoreUpdated{
		Entity:    "alice",
		Category:  types.CategoryXP,
		Timeframe: types.TimeframeAllTime,
		Score:     100,
		Rank:      1,
	})
	b.Emit(context.Background(), sent)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var got events.Event
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("failed to decode broadcast: %v", err)
	}
	if got.Kind != events.KindScoreUpdated {
		t.Errorf("expected kind %q, got %q", events.KindScoreUpdated, got.Kind)
	}
	if got.ID != sent.ID {
		t.Errorf("expected event id %q, got %q", sent.ID, got.ID)
	}
}

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	t.Cleanup(func() { _ = b.Close() })

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWS))
	t.Cleanup(srv.Close)

	conns := []*websocket.Conn{dial(t, srv.URL), dial(t, srv.URL), dial(t, srv.URL)}
	waitForClients(t, b, 3)

	b.Emit(context.Background(), events.New(events.KindLeaderboardReset, events.LeaderboardReset{
		Category:  types.CategoryXP,
		Timeframe: types.TimeframeDaily,
	}))

	for i, conn := range conns {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("client %d did not receive broadcast: %v", i, err)
		}
	}
}

func TestBroadcasterDropsSlowClients(t *testing.T) {
	b := NewBroadcaster(WithSendBuffer(1))

	srv := httptest.NewServer(http.HandlerFunc(b.HandleWS))
	t.Cleanup(srv.Close)

	// The client never reads, so its buffer fills after a couple of
	// events and the broadcaster must cut it loose.
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	waitForClients(t, b, 1)

	// Large payloads saturate the socket buffer quickly, so the write
	// loop stalls and the send buffer overflows.
	padding := strings.Repeat("x", 1<<16)
	for i := 0; i < 200; i++ {
		b.Emit(context.Background(), events.New(events.KindLeaderboardUpdated, map[string]any{
			"entity":  padding,
			"rank":    i,
			"padding": padding,
		}))
	}

	waitForClients(t, b, 0)
	_ = b.Close()
}

func TestBroadcasterCloseRejectsNewClients(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(http.HandlerFunc(b.HandleWS))
	t.Cleanup(srv.Close)

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		// A refused upgrade is acceptable too.
		return
	}
	t.Cleanup(func() { _ = conn.Close() })

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to be closed by the server")
	}
	if b.ClientCount() != 0 {
		t.Errorf("expected 0 clients after close, got %d", b.ClientCount())
	}
}
