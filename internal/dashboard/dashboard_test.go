package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Umer9538/nfcapp-offline/internal/cache"
	"github.com/Umer9538/nfcapp-offline/internal/engine"
	"github.com/Umer9538/nfcapp-offline/internal/queue"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Port:   0, // Use random available port
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })

	// Give server time to start
	time.Sleep(100 * time.Millisecond)

	return server
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{
		Port:   0,
		Logger: log.New(os.Stderr, "[test] ", log.LstdFlags),
	})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if server.Addr() == "" {
		t.Fatal("Server address is empty")
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	server := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws://" + server.Addr() + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}

	handler := NewHandler(server, log.New(os.Stderr, "[test] ", 0))
	handler.OnSyncComplete(engine.Result{Success: 2, Failed: 1}, 120*time.Millisecond)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read broadcast: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if msg.Type != MessageTypeSyncComplete {
		t.Errorf("Expected %s, got %s", MessageTypeSyncComplete, msg.Type)
	}

	var payload SyncCompleteData
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("Failed to unmarshal payload: %v", err)
	}
	if payload.Success != 2 || payload.Failed != 1 {
		t.Errorf("Unexpected payload: %+v", payload)
	}
}

func TestHandlerMessageShapes(t *testing.T) {
	server := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	handler := NewHandler(server, log.New(os.Stderr, "[test] ", 0))

	handler.OnEnqueued(queue.Request{
		ID:       "req-1",
		Method:   "POST",
		Target:   "/api/profile",
		Priority: queue.PriorityHigh,
	}, 4)
	handler.OnCacheStats(cache.Stats{TotalEntries: 3, ValidEntries: 2, ExpiredEntries: 1})

	wantTypes := []MessageType{MessageTypeQueueUpdate, MessageTypeCacheStats}
	for _, want := range wantTypes {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", want, err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if msg.Type != want {
			t.Errorf("Expected %s, got %s", want, msg.Type)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read health body: %v", err)
	}
	if string(body) != `{"status":"ok","clients":0}` {
		t.Errorf("unexpected health body: %s", body)
	}
}
