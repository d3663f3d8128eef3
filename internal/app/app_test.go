package app

import (
	"context"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/connectivity"
	"github.com/Umer9538/nfcapp-offline/internal/queue"
	"github.com/Umer9538/nfcapp-offline/internal/store"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// TestReconnectDrainsQueue exercises the full wiring: mutations queued
// while offline are replayed automatically when the probe comes back.
func TestReconnectDrainsQueue(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var online atomic.Bool
	probe := connectivity.ProbeFunc(func(ctx context.Context) bool {
		return online.Load()
	})

	a := NewWithStore(store.NewMem(), probe, Config{
		SyncBaseURL:   srv.URL,
		ProbeInterval: 5 * time.Millisecond,
		Logger:        log.New(testWriter{t}, "[offline] ", 0),
	})
	defer a.Close()

	ctx := context.Background()
	a.Monitor.Start(ctx)

	// Offline: writes queue up, a manual sync is a no-op.
	for _, target := range []string{"/api/profile", "/api/contacts"} {
		if _, err := a.Queue.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: target}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	result, err := a.Engine.SyncQueue(ctx)
	if err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}
	if result.Success != 0 {
		t.Fatalf("expected offline no-op, got %+v", result)
	}

	// Back online: the reconnect hook drains the queue.
	online.Store(true)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		size, err := a.Queue.Size(ctx)
		if err != nil {
			t.Fatalf("Size failed: %v", err)
		}
		if size == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	size, _ := a.Queue.Size(ctx)
	if size != 0 {
		t.Fatalf("expected queue drained after reconnect, size=%d", size)
	}
	if got := atomic.LoadInt32(&received); got != 2 {
		t.Errorf("expected 2 replayed requests, got %d", got)
	}
}

func TestNewOpensSQLiteStore(t *testing.T) {
	a, err := New(Config{
		StorePath: t.TempDir() + "/offline.db",
		ProbeURL:  "http://127.0.0.1:1/health",
		Logger:    log.New(testWriter{t}, "[offline] ", 0),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer a.Close()

	ctx := context.Background()
	if _, err := a.Queue.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/x"}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	size, err := a.Queue.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 1 {
		t.Errorf("expected 1 queued request, got %d", size)
	}
}
