// Package conflict reconciles a locally-modified record against the
// server's copy of the same record.
//
// Records are decoded JSON objects (map[string]any). Detection and
// merging are pure functions: no I/O, no state. The caller decides what
// to do with detected conflicts; typically it picks a Strategy and calls
// Merge.
package conflict

import (
	"encoding/json"
	"reflect"
	"time"
)

// Fields excluded from comparison and merging. Identity and creation
// metadata never participate in conflict resolution.
const (
	fieldCreatedAt = "createdAt"
	fieldUpdatedAt = "updatedAt"
)

// Strategy selects how Merge reconciles the two copies.
type Strategy int

const (
	// StrategyServer keeps the server copy unchanged.
	StrategyServer Strategy = iota

	// StrategyLocal keeps the local copy unchanged.
	StrategyLocal

	// StrategyMerge keeps the server copy unless the local copy is
	// newer, in which case local fields win (identity and creation
	// metadata excepted).
	StrategyMerge
)

// String returns the wire name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyServer:
		return "server"
	case StrategyLocal:
		return "local"
	case StrategyMerge:
		return "merge"
	}
	return "unknown"
}

// FieldConflict reports one field whose local and server values diverge.
type FieldConflict struct {
	Field  string `json:"field"`
	Local  any    `json:"local"`
	Server any    `json:"server"`
}

// Detect compares a local and a server record and returns one entry per
// differing field.
//
// Only meaningful when both records carry the same identifier under
// idField; if the identifiers differ Detect returns nil. Records whose
// updatedAt values are equal are considered identical (no conflict).
// idField, createdAt and updatedAt are never reported.
func Detect(local, server map[string]any, idField string) []FieldConflict {
	if idField == "" {
		idField = "id"
	}
	if local == nil || server == nil {
		return nil
	}
	if !reflect.DeepEqual(local[idField], server[idField]) {
		return nil
	}
	if reflect.DeepEqual(local[fieldUpdatedAt], server[fieldUpdatedAt]) {
		return nil
	}

	var conflicts []FieldConflict
	for field, localValue := range local {
		if field == idField || field == fieldCreatedAt || field == fieldUpdatedAt {
			continue
		}
		serverValue, ok := server[field]
		if ok && reflect.DeepEqual(localValue, serverValue) {
			continue
		}
		conflicts = append(conflicts, FieldConflict{
			Field:  field,
			Local:  localValue,
			Server: serverValue,
		})
	}

	// Fields present only on the server copy also diverge.
	for field, serverValue := range server {
		if field == idField || field == fieldCreatedAt || field == fieldUpdatedAt {
			continue
		}
		if _, ok := local[field]; ok {
			continue
		}
		conflicts = append(conflicts, FieldConflict{
			Field:  field,
			Local:  nil,
			Server: serverValue,
		})
	}

	return conflicts
}

// Merge reconciles the two copies under the given strategy and returns
// the merged record. The inputs are never mutated.
func Merge(local, server map[string]any, strategy Strategy) map[string]any {
	switch strategy {
	case StrategyServer:
		return clone(server)
	case StrategyLocal:
		return clone(local)
	case StrategyMerge:
		merged := clone(server)
		if !newerThan(local[fieldUpdatedAt], server[fieldUpdatedAt]) {
			return merged
		}
		for field, value := range local {
			if field == "id" || field == fieldCreatedAt {
				continue
			}
			merged[field] = value
		}
		return merged
	}
	// Strategy is a closed enum; an unknown value is a programming
	// error upstream. Fall back to the server copy.
	return clone(server)
}

// clone shallow-copies a record.
func clone(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for field, value := range record {
		out[field] = value
	}
	return out
}

// newerThan reports whether a is a strictly later timestamp than b.
//
// updatedAt values arrive in whatever shape the record was serialized
// with: time.Time, RFC3339 strings, or epoch milliseconds (json numbers
// decode as float64). Unparseable values are never "newer".
func newerThan(a, b any) bool {
	at, ok := asTime(a)
	if !ok {
		return false
	}
	bt, ok := asTime(b)
	if !ok {
		return true
	}
	return at.After(bt)
}

// asTime coerces an updatedAt value to a time.Time.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case int:
		return time.UnixMilli(int64(t)), true
	case json.Number:
		if ms, err := t.Int64(); err == nil {
			return time.UnixMilli(ms), true
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}
