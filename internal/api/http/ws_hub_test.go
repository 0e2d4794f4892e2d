package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"torrentplay/internal/domain"
	"torrentplay/internal/usecase"
)

func startTestHub(t *testing.T) *wsHub {
	t.Helper()
	hub := newWSHub(discardLogger())
	go hub.run()
	t.Cleanup(hub.Close)
	return hub
}

func waitForClients(t *testing.T, hub *wsHub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, got %d", want, hub.clientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	resp.Body.Close()
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read ws message: %v", err)
	}
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal ws message: %v (raw: %s)", err, data)
	}
	return msg
}

func sampleViews() []usecase.TransferView {
	return []usecase.TransferView{{
		ID:       "abc",
		Name:     "Big Buck Bunny",
		FileName: "movie.mkv",
		Progress: domain.ProgressSnapshot{Fraction: 0.5},
		Bytes:    domain.Progress{BytesCompleted: 500, Length: 1000},
	}}
}

func TestWSHubRegisterUnregister(t *testing.T) {
	hub := startTestHub(t)

	clients := make([]*wsClient, 3)
	for i := range clients {
		clients[i] = &wsClient{hub: hub, send: make(chan []byte, 4)}
		hub.register <- clients[i]
	}
	waitForClients(t, hub, 3)

	hub.unregister <- clients[0]
	waitForClients(t, hub, 2)

	// Unknown clients are ignored.
	hub.unregister <- &wsClient{hub: hub, send: make(chan []byte)}
	hub.unregister <- clients[1]
	waitForClients(t, hub, 1)

	if _, ok := <-clients[0].send; ok {
		t.Fatal("expected send channel of unregistered client to be closed")
	}
}

func TestWSHubPublishProgress(t *testing.T) {
	hub := startTestHub(t)
	client := &wsClient{hub: hub, send: make(chan []byte, 4)}
	hub.register <- client
	waitForClients(t, hub, 1)

	hub.PublishProgress(sampleViews())

	select {
	case raw := <-client.send:
		var msg struct {
			Type string                 `json:"type"`
			Data []usecase.TransferView `json:"data"`
		}
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != "transfers" || len(msg.Data) != 1 || msg.Data[0].ID != "abc" {
			t.Fatalf("unexpected message: %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestWSHubPublishNilSendsEmptyList(t *testing.T) {
	hub := startTestHub(t)
	client := &wsClient{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	waitForClients(t, hub, 1)

	hub.PublishProgress(nil)

	select {
	case raw := <-client.send:
		if !strings.Contains(string(raw), `"data":[]`) {
			t.Fatalf("expected empty list, got %s", raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestWSHubDropsSlowClient(t *testing.T) {
	hub := startTestHub(t)
	slow := &wsClient{hub: hub, send: make(chan []byte)}
	hub.register <- slow
	waitForClients(t, hub, 1)

	hub.Broadcast("transfers", []string{})
	waitForClients(t, hub, 0)
}

func TestWSHubBroadcastWithoutClients(t *testing.T) {
	hub := newWSHub(discardLogger())
	// Not running: a send would block forever if the hub tried it.
	hub.Broadcast("transfers", sampleViews())
	hub.PublishProgress(nil)
}

func TestHandleWSReceivesProgress(t *testing.T) {
	s := NewServer(nil, WithLogger(discardLogger()))
	srv := httptest.NewServer(s)
	defer srv.Close()
	defer s.Close()

	conns := []*websocket.Conn{dialWS(t, srv), dialWS(t, srv)}
	for _, c := range conns {
		defer c.Close()
	}
	waitForClients(t, s.wsHub, 2)

	s.PublishProgress(sampleViews())

	for i, conn := range conns {
		msg := readWSMessage(t, conn)
		if msg.Type != "transfers" {
			t.Fatalf("client %d: type = %q, want transfers", i, msg.Type)
		}
	}
}

func TestHandleWSClientDisconnect(t *testing.T) {
	s := NewServer(nil, WithLogger(discardLogger()))
	srv := httptest.NewServer(s)
	defer srv.Close()
	defer s.Close()

	conn := dialWS(t, srv)
	waitForClients(t, s.wsHub, 1)
	conn.Close()
	waitForClients(t, s.wsHub, 0)

	s.PublishProgress(sampleViews())
}

func TestHandleWSRejectsPlainRequest(t *testing.T) {
	s := NewServer(nil, WithLogger(discardLogger()))
	defer s.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-upgrade request, got %d", rec.Code)
	}
}

func TestServerCloseDisconnectsClients(t *testing.T) {
	s := NewServer(nil, WithLogger(discardLogger()))
	srv := httptest.NewServer(s)
	defer srv.Close()

	conn := dialWS(t, srv)
	defer conn.Close()
	waitForClients(t, s.wsHub, 1)

	s.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("expected the connection to close after server shutdown")
	}
}
