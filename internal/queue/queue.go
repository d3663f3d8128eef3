package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Umer9538/nfcapp-offline/internal/store"
)

// StorageKey is the store key holding the persisted queue.
const StorageKey = "offline_queue"

const (
	// DefaultCapacity bounds the number of queued requests.
	DefaultCapacity = 100

	// DefaultMaxRetries is the retry ceiling applied when a WriteSpec
	// doesn't set one.
	DefaultMaxRetries = 3
)

// allowedMethods lists the HTTP methods a queued request may carry.
// GET entries are atypical but permitted.
var allowedMethods = map[string]bool{
	"GET":    true,
	"POST":   true,
	"PUT":    true,
	"PATCH":  true,
	"DELETE": true,
}

// Config holds queue configuration.
type Config struct {
	// Capacity is the maximum number of queued requests (default: 100).
	Capacity int

	// MaxRetries is the default retry ceiling per request (default: 3).
	MaxRetries int

	// Logger for queue activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Capacity:   DefaultCapacity,
		MaxRetries: DefaultMaxRetries,
		Logger:     log.New(os.Stderr, "[queue] ", log.LstdFlags),
	}
}

// Queue is a durable, capacity-bounded mutation queue.
//
// Every mutating operation persists the full queue to the store before
// returning, so a crash never loses an acknowledged enqueue. All
// operations are safe for concurrent use.
type Queue struct {
	store  store.Store
	config *Config

	mu sync.Mutex

	// test seams
	now   func() time.Time
	newID func() string
}

// New creates a queue backed by the given store.
func New(st store.Store, config *Config) *Queue {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Capacity <= 0 {
		config.Capacity = DefaultCapacity
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[queue] ", log.LstdFlags)
	}

	return &Queue{
		store:  st,
		config: config,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Enqueue appends a write operation to the queue and returns its ID.
//
// If the queue is at capacity, just enough entries are evicted to make
// room, lowest priority first and oldest first within equal priority.
// The updated queue is persisted before Enqueue returns; a store write
// failure surfaces as a store.ErrStorage-wrapped error and nothing is
// enqueued.
func (q *Queue) Enqueue(ctx context.Context, spec WriteSpec) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(spec.Method))
	if !allowedMethods[method] {
		return "", fmt.Errorf("unsupported method %q", spec.Method)
	}
	if spec.Target == "" {
		return "", fmt.Errorf("target cannot be empty")
	}

	maxRetries := spec.MaxRetries
	if maxRetries <= 0 {
		maxRetries = q.config.MaxRetries
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return "", err
	}

	// Make room before inserting, never evicting more than necessary.
	if overflow := len(items) - q.config.Capacity + 1; overflow > 0 {
		items = q.evict(items, overflow)
	}

	req := Request{
		ID:         q.newID(),
		Method:     method,
		Target:     spec.Target,
		Payload:    spec.Payload,
		Headers:    spec.Headers,
		Timestamp:  q.now().UnixMilli(),
		Retries:    0,
		MaxRetries: maxRetries,
		Priority:   spec.Priority,
	}
	items = append(items, req)

	if err := q.persist(ctx, items); err != nil {
		return "", err
	}

	q.config.Logger.Printf("Enqueued %s %s (id=%s, priority=%s, queued=%d)",
		req.Method, req.Target, req.ID, req.Priority, len(items))
	return req.ID, nil
}

// evict removes n entries, lowest priority first, oldest first within
// equal priority. The survivors keep their original insertion order.
func (q *Queue) evict(items []Request, n int) []Request {
	if n <= 0 {
		return items
	}
	if n >= len(items) {
		return nil
	}

	victims := make([]Request, len(items))
	copy(victims, items)
	sort.SliceStable(victims, func(i, j int) bool {
		if victims[i].Priority != victims[j].Priority {
			return victims[i].Priority < victims[j].Priority
		}
		return victims[i].Timestamp < victims[j].Timestamp
	})

	drop := make(map[string]bool, n)
	for _, victim := range victims[:n] {
		drop[victim.ID] = true
		q.config.Logger.Printf("Evicting %s %s (id=%s, priority=%s) to make room",
			victim.Method, victim.Target, victim.ID, victim.Priority)
	}

	kept := items[:0:0]
	for _, item := range items {
		if !drop[item.ID] {
			kept = append(kept, item)
		}
	}
	return kept
}

// Items returns the full current queue in insertion order.
// Callers needing replay order must sort explicitly with SortForSync.
func (q *Queue) Items(ctx context.Context) ([]Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Remove deletes a specific request. No-op if the ID is absent.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}

	kept := items[:0:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}

	return q.persist(ctx, kept)
}

// Update replaces the stored entry matching item.ID.
// Used by the sync engine to persist an incremented retry counter.
// No-op if the ID is absent (the entry may have been cleared meanwhile).
func (q *Queue) Update(ctx context.Context, item Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return err
	}

	changed := false
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			changed = true
			break
		}
	}
	if !changed {
		return nil
	}

	return q.persist(ctx, items)
}

// Clear empties the queue.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.persist(ctx, nil)
}

// Size returns the number of queued requests.
func (q *Queue) Size(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// PurgeBefore removes all requests created before cutoff and returns how
// many were dropped. Used by daemon maintenance and `nfcsync queue purge`.
func (q *Queue) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return 0, err
	}

	limit := cutoff.UnixMilli()
	kept := items[:0:0]
	for _, item := range items {
		if item.Timestamp >= limit {
			kept = append(kept, item)
		}
	}

	dropped := len(items) - len(kept)
	if dropped == 0 {
		return 0, nil
	}

	if err := q.persist(ctx, kept); err != nil {
		return 0, err
	}

	q.config.Logger.Printf("Purged %d requests older than %s", dropped, cutoff.Format(time.RFC3339))
	return dropped, nil
}

// SortForSync orders requests for a sync pass: priority descending, then
// creation time ascending within equal priority. This ordering is the
// replay contract; the sort is stable so equal entries keep insertion
// order.
func SortForSync(items []Request) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].Timestamp < items[j].Timestamp
	})
}

// load reads the persisted queue. An absent key is an empty queue.
// A corrupt record is logged and treated as empty rather than wedging
// every queue operation behind an unparseable blob.
func (q *Queue) load(ctx context.Context) ([]Request, error) {
	raw, ok, err := q.store.Get(ctx, StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var items []Request
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		q.config.Logger.Printf("Warning: discarding corrupt queue record: %v", err)
		return nil, nil
	}
	return items, nil
}

// persist writes the full queue back to the store.
func (q *Queue) persist(ctx context.Context, items []Request) error {
	if items == nil {
		items = []Request{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}

	if err := q.store.Set(ctx, StorageKey, string(data)); err != nil {
		return fmt.Errorf("failed to persist queue: %w", err)
	}
	return nil
}
