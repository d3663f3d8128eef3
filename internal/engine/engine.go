// Package engine drains the mutation queue against the remote API.
//
// A sync pass reads the queue, orders it by priority (then creation time),
// and replays each request through an Executor. Individual failures never
// abort the pass: successes are removed from the queue, failures get their
// retry counter bumped and stay queued, and entries that already exhausted
// their retry budget are dropped as skipped. The pass returns an aggregate
// Result.
//
// Passes are single-flight: a SyncQueue call that overlaps a running pass
// returns ErrSyncInProgress instead of interleaving queue reads and writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/queue"
)

// ErrSyncInProgress is returned when SyncQueue is called while another
// pass is still running. The caller should treat it as a benign skip;
// the running pass is already draining the queue.
var ErrSyncInProgress = errors.New("sync pass already in progress")

// DefaultRequestTimeout bounds each executor call so a hung transport
// cannot stall a pass indefinitely.
const DefaultRequestTimeout = 30 * time.Second

// ConnectivitySource answers whether the device is online right now.
// Satisfied by *connectivity.Monitor.
type ConnectivitySource interface {
	IsOnline() bool
}

// ItemError records one failed replay attempt within a pass.
type ItemError struct {
	RequestID string `json:"requestId"`
	Error     string `json:"error"`
}

// Result aggregates the outcome of one sync pass.
//
// Skipped counts entries dropped for exhausting their retry budget; this
// is a terminal give-up, distinct from Failed (which stays queued).
type Result struct {
	Success int         `json:"success"`
	Failed  int         `json:"failed"`
	Skipped int         `json:"skipped"`
	Errors  []ItemError `json:"errors"`
}

// Config holds engine configuration.
type Config struct {
	// RequestTimeout bounds each executor call (default: 30s).
	RequestTimeout time.Duration

	// Notify, if set, fires after every completed pass with the pass
	// duration. Used to push pass results to the dashboard.
	Notify func(Result, time.Duration)

	// Logger for engine activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout: DefaultRequestTimeout,
		Logger:         log.New(os.Stderr, "[sync] ", log.LstdFlags),
	}
}

// Engine orchestrates sync passes over the mutation queue.
type Engine struct {
	queue  *queue.Queue
	online ConnectivitySource
	exec   Executor
	config *Config

	passMu sync.Mutex // single-flight guard around SyncQueue
}

// New creates a sync engine.
//
// If exec is nil, a default HTTPExecutor with no base URL is used; queue
// targets must then be absolute URLs.
func New(q *queue.Queue, online ConnectivitySource, exec Executor, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	if exec == nil {
		exec = &HTTPExecutor{}
	}

	return &Engine{
		queue:  q,
		online: online,
		exec:   exec,
		config: config,
	}
}

// SyncQueue runs one sync pass and returns the aggregate result.
//
// Returns an all-zero Result immediately when offline. Returns
// ErrSyncInProgress when another pass is already running. A storage
// failure reading the queue aborts the pass; per-item replay failures
// never do.
func (e *Engine) SyncQueue(ctx context.Context) (Result, error) {
	if !e.passMu.TryLock() {
		return Result{Errors: []ItemError{}}, ErrSyncInProgress
	}
	defer e.passMu.Unlock()

	result := Result{Errors: []ItemError{}}

	if !e.online.IsOnline() {
		return result, nil
	}

	items, err := e.queue.Items(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read queue for sync: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	// The order computed here is the replay contract for this pass;
	// entries enqueued while the pass runs wait for the next one.
	queue.SortForSync(items)

	e.config.Logger.Printf("Starting sync pass: %d queued requests", len(items))
	start := time.Now()

	for _, item := range items {
		if ctx.Err() != nil {
			e.config.Logger.Printf("Sync pass cancelled after %d/%d requests", processed(result), len(items))
			return result, ctx.Err()
		}

		if item.Exhausted() {
			if err := e.queue.Remove(ctx, item.ID); err != nil {
				e.config.Logger.Printf("Warning: failed to drop exhausted request %s: %v", item.ID, err)
			}
			result.Skipped++
			e.config.Logger.Printf("Dropped %s %s after %d attempts (id=%s)",
				item.Method, item.Target, item.Retries, item.ID)
			continue
		}

		if err := e.executeOne(ctx, item); err != nil {
			item.Retries++
			if uerr := e.queue.Update(ctx, item); uerr != nil {
				e.config.Logger.Printf("Warning: failed to persist retry count for %s: %v", item.ID, uerr)
			}
			result.Failed++
			result.Errors = append(result.Errors, ItemError{RequestID: item.ID, Error: err.Error()})
			e.config.Logger.Printf("Replay failed for %s %s (id=%s, retries=%d/%d): %v",
				item.Method, item.Target, item.ID, item.Retries, item.MaxRetries, err)
			continue
		}

		if err := e.queue.Remove(ctx, item.ID); err != nil {
			// The write was delivered; a removal failure only risks a
			// duplicate replay next pass. Delivery is best-effort,
			// not exactly-once.
			e.config.Logger.Printf("Warning: failed to remove synced request %s: %v", item.ID, err)
		}
		result.Success++
	}

	e.config.Logger.Printf("Sync pass complete in %v: success=%d failed=%d skipped=%d",
		time.Since(start).Round(time.Millisecond), result.Success, result.Failed, result.Skipped)

	if e.config.Notify != nil {
		e.config.Notify(result, time.Since(start))
	}

	return result, nil
}

// SetNotify installs or replaces the pass-completion hook. Call before
// the first sync pass.
func (e *Engine) SetNotify(fn func(Result, time.Duration)) {
	e.config.Notify = fn
}

// executeOne replays a single request under the configured timeout.
func (e *Engine) executeOne(ctx context.Context, item queue.Request) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.RequestTimeout)
	defer cancel()
	return e.exec.Execute(ctx, item)
}

func processed(r Result) int {
	return r.Success + r.Failed + r.Skipped
}
