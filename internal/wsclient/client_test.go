package wsclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/park285/chess-analyzer/internal/analysis"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// echoServer answers every request with an analysis reply carrying its FEN.
// With dropFirst set, the first connection is closed after one request.
func echoServer(t *testing.T, dropFirst bool) (string, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		n := conns.Add(1)
		for {
			var req analysis.Request
			if err := wsjson.Read(r.Context(), c, &req); err != nil {
				return
			}
			if dropFirst && n == 1 {
				c.Close(websocket.StatusGoingAway, "restart")
				return
			}
			_ = wsjson.Write(r.Context(), c, analysis.Response{Type: analysis.TypeAnalysis, FEN: req.FEN})
		}
	}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http"), &conns
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	var zero T
	return zero
}

func TestSendDeliversReplies(t *testing.T) {
	url, _ := echoServer(t, false)
	c := New(url)
	defer c.Close(context.Background())

	replies := make(chan analysis.Response, 1)
	c.OnAnalysis(func(resp analysis.Response) { replies <- resp })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if c.State() != StateConnected {
		t.Fatalf("state = %v", c.State())
	}
	if err := c.Send(context.Background(), analysis.Request{Command: analysis.CommandAnalyze, FEN: "startpos"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := waitFor(t, replies)
	if diff := cmp.Diff(analysis.Response{Type: analysis.TypeAnalysis, FEN: "startpos"}, got); diff != "" {
		t.Errorf("reply mismatch (-want +got):\n%s", diff)
	}
}

func TestSendWithoutConnection(t *testing.T) {
	c := New("ws://127.0.0.1:1/ws", WithReconnect(0, 0))
	if err := c.Send(context.Background(), analysis.Request{Command: analysis.CommandReset}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send err = %v; want ErrNotConnected", err)
	}
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Connect to a closed port succeeded")
	}
	if c.State() != StateFailed {
		t.Errorf("state = %v; want failed", c.State())
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestReconnectsAfterServerDrop(t *testing.T) {
	url, conns := echoServer(t, true)
	c := New(url, WithReconnect(5, 10*time.Millisecond))
	defer c.Close(context.Background())

	states := make(chan State, 16)
	c.OnStateChange(func(s State) { states <- s })
	replies := make(chan analysis.Response, 1)
	c.OnAnalysis(func(resp analysis.Response) { replies <- resp })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.Send(context.Background(), analysis.Request{Command: analysis.CommandAnalyze, FEN: "lost"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	want := []State{StateConnecting, StateConnected, StateDisconnected, StateReconnecting, StateConnected}
	var seen []State
	for range want {
		seen = append(seen, waitFor(t, states))
	}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
	}

	if err := c.Send(context.Background(), analysis.Request{Command: analysis.CommandAnalyze, FEN: "kept"}); err != nil {
		t.Fatalf("Send after reconnect: %v", err)
	}
	if got := waitFor(t, replies); got.FEN != "kept" {
		t.Errorf("reply = %+v", got)
	}
	if n := conns.Load(); n != 2 {
		t.Errorf("server saw %d connections; want 2", n)
	}
}

func TestRemoveCallback(t *testing.T) {
	c := New("ws://unused")
	first := c.OnAnalysis(func(analysis.Response) {})
	second := c.OnAnalysis(func(analysis.Response) {})
	if first == second {
		t.Fatalf("callback ids collide: %d", first)
	}
	c.RemoveCallback(first)
	third := c.OnAnalysis(func(analysis.Response) {})
	if third == second {
		t.Errorf("id %d reused after removal", third)
	}
	if len(c.respCbs) != 2 {
		t.Errorf("callbacks = %d; want 2", len(c.respCbs))
	}
}

func TestBackoffDuration(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{6, 3200 * time.Millisecond},
		{9, 3200 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := backoffDuration(base, tt.attempt); got != tt.want {
			t.Errorf("backoffDuration(%d) = %v; want %v", tt.attempt, got, tt.want)
		}
	}
}
