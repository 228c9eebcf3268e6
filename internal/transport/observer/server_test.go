package observer

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Tick   uint64         `json:"tick"`
	States map[string]int `json:"states"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, s *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Subscribers() != want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, want, s.Subscribers())
}

func TestWSHandler_StreamsPublishedFrames(t *testing.T) {
	s := NewServer(nil)
	require.NoError(t, s.Publish(frame{Tick: 1}))
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()
	conn := dial(t, srv)

	read := func() frame {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
		_, b, err := conn.ReadMessage()
		require.NoError(t, err)
		var f frame
		require.NoError(t, json.Unmarshal(b, &f))
		return f
	}

	// The latest frame is replayed on connect.
	require.Equal(t, uint64(1), read().Tick)
	require.NoError(t, s.Publish(frame{Tick: 2, States: map[string]int{"Ready": 9}}))
	f := read()
	require.Equal(t, uint64(2), f.Tick)
	require.Equal(t, 9, f.States["Ready"])

	_ = conn.Close()
	waitSubscribers(t, s, 0)
}

func TestWSHandler_KeepsQuietSubscriberAlive(t *testing.T) {
	s := NewServer(nil)
	s.pongWait = 300 * time.Millisecond
	s.pingPeriod = 100 * time.Millisecond
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()
	conn := dial(t, srv)

	// The client only reads; its default ping handler answers with pongs.
	readErr := make(chan error, 1)
	frames := make(chan frame, 64)
	go func() {
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var f frame
			if json.Unmarshal(b, &f) == nil {
				frames <- f
			}
		}
	}()
	waitSubscribers(t, s, 1)

	for i := 1; i <= 20; i++ {
		require.NoError(t, s.Publish(frame{Tick: uint64(i)}))
		time.Sleep(50 * time.Millisecond)
	}
	select {
	case err := <-readErr:
		t.Fatalf("subscriber disconnected after %s: %v", time.Second, err)
	default:
	}
	require.Equal(t, 1, s.Subscribers())
	require.NotEmpty(t, frames)
}

func TestWSHandler_DropsPeerThatNeverPongs(t *testing.T) {
	s := NewServer(nil)
	s.pongWait = 200 * time.Millisecond
	s.pingPeriod = 50 * time.Millisecond
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	// Never reading means pings are never answered.
	_ = dial(t, srv)
	waitSubscribers(t, s, 1)
	waitSubscribers(t, s, 0)
}

func TestPublish_DropsForSlowSubscribers(t *testing.T) {
	s := NewServer(nil)
	id, ch := s.subscribe()
	defer s.unsubscribe(id)

	for i := 0; i < subscriberQueue+3; i++ {
		require.NoError(t, s.Publish(frame{Tick: uint64(i)}))
	}
	require.Len(t, ch, subscriberQueue)
	require.Equal(t, uint64(3), s.Dropped())
}

func TestHandlers_RejectNonLoopback(t *testing.T) {
	s := NewServer(nil)
	for name, h := range map[string]http.HandlerFunc{"ws": s.WSHandler(), "stats": s.StatsHandler()} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.2.3:4567"
		rec := httptest.NewRecorder()
		h(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code, name)
	}
}

func TestStatsHandler(t *testing.T) {
	s := NewServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rec := httptest.NewRecorder()
	s.StatsHandler()(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, s.Publish(frame{Tick: 7}))
	rec = httptest.NewRecorder()
	s.StatsHandler()(rec, req)
	var f frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f), rec.Body.String())
	require.Equal(t, uint64(7), f.Tick)
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:1": true,
		"[::1]:80":    true,
		"::1":         true,
		"10.0.0.1:80": false,
		"garbage":     false,
	}
	for addr, want := range cases {
		require.Equal(t, want, isLoopbackRemote(addr), addr)
	}
}
