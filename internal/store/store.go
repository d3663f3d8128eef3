// Package store defines the durable key-value store consumed by the
// offline layer, along with the implementations shipped with it.
//
// The queue and cache persist everything through the Store interface so
// that the mobile host can supply its own platform storage. Two
// implementations are provided: SQLite (the default out-of-process store
// used by the nfcsync CLI and daemon) and Mem (an in-memory fake for
// tests).
package store

import (
	"context"
	"errors"
)

// ErrStorage is wrapped around every failed read or write against the
// underlying store. Callers can detect persistence failures with
// errors.Is:
//
//	if errors.Is(err, store.ErrStorage) {
//	    // storage is unavailable; surface to the user, do not retry blindly
//	}
var ErrStorage = errors.New("persistent store failure")

// Store is a durable string key-value store.
//
// All methods accept a context because implementations are expected to
// perform I/O. Get reports a missing key with ok=false rather than an
// error; every other failure is wrapped with ErrStorage.
type Store interface {
	// Get returns the value stored under key. ok is false if the key
	// is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListKeys returns all keys currently present.
	ListKeys(ctx context.Context) ([]string, error)

	// RemoveMany deletes all given keys in one operation.
	RemoveMany(ctx context.Context, keys []string) error
}
