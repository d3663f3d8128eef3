package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/queue"
	"github.com/Umer9538/nfcapp-offline/internal/store"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

// staticOnline is a ConnectivitySource with a fixed answer.
type staticOnline bool

func (s staticOnline) IsOnline() bool { return bool(s) }

// recordingExecutor captures replay order and fails targets listed in
// failing.
type recordingExecutor struct {
	mu      sync.Mutex
	targets []string
	failing map[string]bool
}

func (r *recordingExecutor) Execute(ctx context.Context, req queue.Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets = append(r.targets, req.Target)
	if r.failing[req.Target] {
		return errors.New("boom")
	}
	return nil
}

func newTestEngine(t *testing.T, online ConnectivitySource, exec Executor) (*Engine, *queue.Queue) {
	t.Helper()

	logger := log.New(testWriter{t}, "", 0)
	q := queue.New(store.NewMem(), &queue.Config{Logger: logger})
	e := New(q, online, exec, &Config{
		RequestTimeout: time.Second,
		Logger:         logger,
	})
	return e, q
}

func TestSyncOfflineIsNoOp(t *testing.T) {
	exec := &recordingExecutor{}
	e, q := newTestEngine(t, staticOnline(false), exec)
	ctx := context.Background()

	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/x"})

	result, err := e.SyncQueue(ctx)
	if err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}
	if result.Success != 0 || result.Failed != 0 || result.Skipped != 0 || len(result.Errors) != 0 {
		t.Errorf("expected all-zero result offline, got %+v", result)
	}

	size, _ := q.Size(ctx)
	if size != 1 {
		t.Errorf("offline sync must not mutate the queue, size=%d", size)
	}
	if len(exec.targets) != 0 {
		t.Error("offline sync must not invoke the executor")
	}
}

func TestSyncEmptyQueue(t *testing.T) {
	e, _ := newTestEngine(t, staticOnline(true), &recordingExecutor{})

	result, err := e.SyncQueue(context.Background())
	if err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}
	if result.Success != 0 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("expected all-zero result for empty queue, got %+v", result)
	}
}

func TestSyncReplaysInPriorityOrder(t *testing.T) {
	exec := &recordingExecutor{}
	e, q := newTestEngine(t, staticOnline(true), exec)
	ctx := context.Background()

	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/low", Priority: queue.PriorityLow})
	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/high", Priority: queue.PriorityHigh})
	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/medium"})

	result, err := e.SyncQueue(ctx)
	if err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}
	if result.Success != 3 {
		t.Errorf("expected 3 successes, got %+v", result)
	}

	want := []string{"/high", "/medium", "/low"}
	if len(exec.targets) != len(want) {
		t.Fatalf("expected %d executions, got %d", len(want), len(exec.targets))
	}
	for i, target := range want {
		if exec.targets[i] != target {
			t.Errorf("position %d: expected %s, got %s", i, target, exec.targets[i])
		}
	}

	size, _ := q.Size(ctx)
	if size != 0 {
		t.Errorf("expected drained queue, size=%d", size)
	}
}

func TestSyncContinueOnError(t *testing.T) {
	exec := &recordingExecutor{failing: map[string]bool{"/fails": true}}
	e, q := newTestEngine(t, staticOnline(true), exec)
	ctx := context.Background()

	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/fails", Priority: queue.PriorityHigh})
	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/succeeds", Priority: queue.PriorityLow})

	result, err := e.SyncQueue(ctx)
	if err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}

	if result.Success != 1 || result.Failed != 1 {
		t.Errorf("expected success=1 failed=1, got %+v", result)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 item error, got %d", len(result.Errors))
	}
	if result.Errors[0].Error != "boom" {
		t.Errorf("unexpected error text %q", result.Errors[0].Error)
	}

	// The failed item stays queued with its retry counter bumped.
	items, _ := q.Items(ctx)
	if len(items) != 1 {
		t.Fatalf("expected 1 remaining item, got %d", len(items))
	}
	if items[0].Target != "/fails" || items[0].Retries != 1 {
		t.Errorf("expected /fails with retries=1, got %+v", items[0])
	}
}

func TestRetryBound(t *testing.T) {
	exec := &recordingExecutor{failing: map[string]bool{"/flaky": true}}
	e, q := newTestEngine(t, staticOnline(true), exec)
	ctx := context.Background()

	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/flaky", MaxRetries: 3})

	// Three passes fail and keep the item queued with retries 1..3.
	for pass := 1; pass <= 3; pass++ {
		result, err := e.SyncQueue(ctx)
		if err != nil {
			t.Fatalf("pass %d failed: %v", pass, err)
		}
		if result.Failed != 1 || result.Success != 0 {
			t.Fatalf("pass %d: expected failed=1, got %+v", pass, result)
		}
	}

	items, _ := q.Items(ctx)
	if len(items) != 1 || items[0].Retries != 3 {
		t.Fatalf("expected retries=3 after third failure, got %+v", items)
	}

	// The next pass observes retries >= maxRetries and drops the item
	// as skipped, never as success.
	result, err := e.SyncQueue(ctx)
	if err != nil {
		t.Fatalf("final pass failed: %v", err)
	}
	if result.Skipped != 1 || result.Success != 0 || result.Failed != 0 {
		t.Errorf("expected skipped=1, got %+v", result)
	}

	size, _ := q.Size(ctx)
	if size != 0 {
		t.Errorf("expected exhausted item removed, size=%d", size)
	}
}

func TestSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	exec := ExecutorFunc(func(ctx context.Context, req queue.Request) error {
		close(started)
		<-release
		return nil
	})

	e, q := newTestEngine(t, staticOnline(true), exec)
	ctx := context.Background()
	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/slow"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := e.SyncQueue(ctx); err != nil {
			t.Errorf("first pass failed: %v", err)
		}
	}()

	<-started

	// Overlapping call must refuse, not interleave.
	if _, err := e.SyncQueue(ctx); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("expected ErrSyncInProgress, got %v", err)
	}

	close(release)
	wg.Wait()

	// Once the pass finishes the guard is released.
	if _, err := e.SyncQueue(ctx); err != nil {
		t.Errorf("expected pass after release to run, got %v", err)
	}
}

func TestNotifyHook(t *testing.T) {
	logger := log.New(testWriter{t}, "", 0)
	q := queue.New(store.NewMem(), &queue.Config{Logger: logger})

	var notified []Result
	e := New(q, staticOnline(true), &recordingExecutor{}, &Config{
		Logger: logger,
		Notify: func(r Result, _ time.Duration) { notified = append(notified, r) },
	})

	ctx := context.Background()
	q.Enqueue(ctx, queue.WriteSpec{Method: "POST", Target: "/x"})

	if _, err := e.SyncQueue(ctx); err != nil {
		t.Fatalf("SyncQueue failed: %v", err)
	}
	if len(notified) != 1 || notified[0].Success != 1 {
		t.Errorf("expected one notification with success=1, got %v", notified)
	}
}

func TestHTTPExecutor(t *testing.T) {
	var gotMethod, gotPath, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Device-Id")
		if r.URL.Path == "/api/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	x := &HTTPExecutor{BaseURL: srv.URL}
	ctx := context.Background()

	req := queue.Request{
		ID:      "r1",
		Method:  "POST",
		Target:  "/api/profile",
		Payload: []byte(`{"name":"Ada"}`),
		Headers: map[string]string{"X-Device-Id": "band-42"},
	}
	if err := x.Execute(ctx, req); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if gotMethod != "POST" || gotPath != "/api/profile" || gotHeader != "band-42" {
		t.Errorf("unexpected request: %s %s header=%q", gotMethod, gotPath, gotHeader)
	}

	// Non-2xx is a failure.
	req.Target = "/api/broken"
	if err := x.Execute(ctx, req); err == nil {
		t.Error("expected non-2xx response to fail")
	}
}

func TestHTTPExecutorAbsoluteTarget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// BaseURL deliberately wrong; the absolute target must win.
	x := &HTTPExecutor{BaseURL: "http://127.0.0.1:1"}
	req := queue.Request{ID: "r1", Method: "GET", Target: fmt.Sprintf("%s/ping", srv.URL)}

	if err := x.Execute(context.Background(), req); err != nil {
		t.Errorf("Execute failed: %v", err)
	}
}
