package websocket

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/blockvote/internal/logger"
	"github.com/abrezinsky/blockvote/internal/models"
)

// mockElections implements StatusSource for testing
type mockElections struct {
	mu    sync.Mutex
	views []models.ElectionView
	err   error
}

func (m *mockElections) ListElections(ctx context.Context) ([]models.ElectionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.ElectionView, len(m.views))
	copy(out, m.views)
	return out, nil
}

func (m *mockElections) set(views ...models.ElectionView) {
	m.mu.Lock()
	m.views = views
	m.mu.Unlock()
}

func view(id int64, status models.Status) models.ElectionView {
	return models.ElectionView{Election: models.Election{ID: id}, Status: status}
}

func newTestHub(t *testing.T, elections *mockElections) *Hub {
	t.Helper()
	return New(logger.NewWithWriter(io.Discard, slog.LevelDebug), elections)
}

func startHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub.Start(ctx)
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) models.WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg models.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, hub.ClientCount())
}

// drain returns every message currently queued for broadcast
func drain(hub *Hub) []models.WSMessage {
	var out []models.WSMessage
	for {
		select {
		case msg := <-hub.broadcast:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestNew_CreatesHubWithDependencies(t *testing.T) {
	hub := newTestHub(t, &mockElections{})

	if hub.log == nil {
		t.Error("expected logger to be set")
	}
	if hub.elections == nil {
		t.Error("expected status source to be set")
	}
	if hub.clients == nil || hub.statuses == nil {
		t.Error("expected maps to be initialized")
	}
	if cap(hub.broadcast) != broadcastBuffer {
		t.Errorf("expected buffered broadcast channel, got cap %d", cap(hub.broadcast))
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := newTestHub(t, &mockElections{})

	// Hub is not running, so the queue fills and overflow is dropped
	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer+10; i++ {
			hub.Publish(models.Event{Type: models.EventVoteCast})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked")
	}
	if got := len(drain(hub)); got != broadcastBuffer {
		t.Errorf("expected %d queued messages, got %d", broadcastBuffer, got)
	}
}

func TestServeWs_SnapshotThenEvents(t *testing.T) {
	elections := &mockElections{}
	elections.set(view(1, models.StatusActive), view(2, models.StatusPending))
	hub := newTestHub(t, elections)
	startHub(t, hub)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()
	ws := dial(t, server)
	waitForClients(t, hub, 1)

	snap := readMessage(t, ws)
	if snap.Type != MessageStatusSnapshot {
		t.Fatalf("expected snapshot first, got %s", snap.Type)
	}
	entries, ok := snap.Payload.([]interface{})
	if !ok || len(entries) != 2 {
		t.Fatalf("expected 2 snapshot entries, got %#v", snap.Payload)
	}

	hub.Publish(models.Event{Type: models.EventVoteCast, ElectionID: 1, CandidateID: 3})

	msg := readMessage(t, ws)
	if msg.Type != string(models.EventVoteCast) {
		t.Fatalf("expected vote-cast, got %s", msg.Type)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok {
		t.Fatalf("expected object payload, got %#v", msg.Payload)
	}
	if payload["candidate_id"] != float64(3) {
		t.Errorf("expected candidate_id 3, got %v", payload["candidate_id"])
	}
}

func TestServeWs_SnapshotFailureStillConnects(t *testing.T) {
	hub := newTestHub(t, &mockElections{err: stderrors.New("db down")})
	startHub(t, hub)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()
	ws := dial(t, server)
	waitForClients(t, hub, 1)

	hub.BroadcastMessage("ping", nil)
	if msg := readMessage(t, ws); msg.Type != "ping" {
		t.Errorf("expected ping, got %s", msg.Type)
	}
}

func TestServeWs_MultipleClients(t *testing.T) {
	hub := newTestHub(t, &mockElections{})
	startHub(t, hub)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	clients := []*websocket.Conn{dial(t, server), dial(t, server), dial(t, server)}
	waitForClients(t, hub, len(clients))

	hub.Publish(models.Event{Type: models.EventElectionCreated, ElectionID: 7})

	for i, ws := range clients {
		readMessage(t, ws) // snapshot
		if msg := readMessage(t, ws); msg.Type != string(models.EventElectionCreated) {
			t.Errorf("client %d: expected election-created, got %s", i, msg.Type)
		}
	}
}

func TestServeWs_ClientDisconnect(t *testing.T) {
	hub := newTestHub(t, &mockElections{})
	startHub(t, hub)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()
	ws := dial(t, server)
	waitForClients(t, hub, 1)

	ws.Close()
	waitForClients(t, hub, 0)
}

func TestServeWs_UpgradeError(t *testing.T) {
	hub := newTestHub(t, &mockElections{})

	// A plain HTTP request cannot be upgraded
	rr := httptest.NewRecorder()
	hub.ServeWs(rr, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
	if hub.ClientCount() != 0 {
		t.Error("expected no clients registered")
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	hub := newTestHub(t, &mockElections{})
	ctx, cancel := context.WithCancel(context.Background())
	hub.Start(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()
	ws := dial(t, server)
	waitForClients(t, hub, 1)
	readMessage(t, ws) // snapshot

	cancel()
	waitForClients(t, hub, 0)

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("expected connection to be closed")
	}
}

func TestCheckStatuses_BroadcastsOnlyTransitions(t *testing.T) {
	elections := &mockElections{}
	hub := newTestHub(t, elections)
	ctx := context.Background()

	elections.set(view(1, models.StatusPending), view(2, models.StatusActive))
	hub.checkStatuses(ctx)
	if msgs := drain(hub); len(msgs) != 0 {
		t.Fatalf("expected first observation to be silent, got %d messages", len(msgs))
	}

	elections.set(view(1, models.StatusActive), view(2, models.StatusActive), view(3, models.StatusPending))
	hub.checkStatuses(ctx)
	msgs := drain(hub)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 transition, got %d", len(msgs))
	}
	if msgs[0].Type != string(models.EventElectionStatus) {
		t.Errorf("expected election-status, got %s", msgs[0].Type)
	}
	change, ok := msgs[0].Payload.(StatusChange)
	if !ok || change.ElectionID != 1 || change.Status != models.StatusActive {
		t.Errorf("unexpected payload %#v", msgs[0].Payload)
	}

	// Deleted elections are forgotten
	elections.set(view(2, models.StatusEnded))
	hub.checkStatuses(ctx)
	drain(hub)
	hub.statusMu.Lock()
	_, tracked := hub.statuses[1]
	hub.statusMu.Unlock()
	if tracked {
		t.Error("expected election 1 to be forgotten")
	}
}

func TestCheckStatuses_SourceError(t *testing.T) {
	elections := &mockElections{err: stderrors.New("db down")}
	hub := newTestHub(t, elections)

	hub.checkStatuses(context.Background())

	if msgs := drain(hub); len(msgs) != 0 {
		t.Errorf("expected no messages, got %d", len(msgs))
	}
}

func TestWatchStatuses_StopsOnCancel(t *testing.T) {
	elections := &mockElections{}
	elections.set(view(1, models.StatusPending))
	hub := newTestHub(t, elections)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.WatchStatuses(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	elections.set(view(1, models.StatusActive))

	deadline := time.After(2 * time.Second)
	for {
		msgs := drain(hub)
		if len(msgs) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("expected a status broadcast")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchStatuses did not stop")
	}
}
