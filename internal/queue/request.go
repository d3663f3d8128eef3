// Package queue provides the durable, priority-ordered mutation queue
// that holds write operations issued while the device is offline.
//
// The queue is persisted as a single JSON array under a well-known store
// key. It is capacity-bounded: enqueueing at capacity evicts the least
// important entries (lowest priority first, oldest first within equal
// priority) to make room. Entries carry a retry counter that the sync
// engine increments on failed replay attempts; an entry that reaches its
// retry ceiling is dropped, not retried further.
package queue

import (
	"encoding/json"
	"time"
)

// Priority orders queued requests for replay and eviction.
//
// The zero value is PriorityMedium, so a WriteSpec that doesn't set a
// priority gets the default. Numeric comparison follows importance:
// PriorityLow < PriorityMedium < PriorityHigh.
type Priority int

const (
	// PriorityLow entries are replayed last and evicted first.
	PriorityLow Priority = -1

	// PriorityMedium is the default for requests that don't specify one.
	PriorityMedium Priority = 0

	// PriorityHigh entries are replayed first and evicted last.
	PriorityHigh Priority = 1
)

// String returns the wire name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "medium"
	}
}

// ParsePriority converts a wire name to a Priority.
// Unknown names fall back to PriorityMedium so a single bad entry can't
// poison the persisted queue.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// MarshalJSON encodes the priority as its wire name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON decodes a wire name into a Priority.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePriority(s)
	return nil
}

// WriteSpec describes a write operation to enqueue.
//
// MaxRetries of 0 means "use the queue default". Priority's zero value is
// PriorityMedium.
type WriteSpec struct {
	Method     string            `json:"method"`
	Target     string            `json:"target"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Priority   Priority          `json:"priority,omitempty"`
	MaxRetries int               `json:"maxRetries,omitempty"`
}

// Request is a pending write operation as persisted in the queue.
//
// Timestamp is epoch milliseconds (creation time, FIFO tiebreaker).
// Retries is mutated only by the sync engine on failed attempts and never
// exceeds MaxRetries while the entry remains queued.
type Request struct {
	ID         string            `json:"id"`
	Method     string            `json:"method"`
	Target     string            `json:"target"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Retries    int               `json:"retries"`
	MaxRetries int               `json:"maxRetries"`
	Priority   Priority          `json:"priority"`
}

// Time returns the creation time of the request.
func (r Request) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Exhausted reports whether the request has used up its retry budget.
func (r Request) Exhausted() bool {
	return r.Retries >= r.MaxRetries
}
