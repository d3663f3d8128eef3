// Package app assembles the offline layer.
//
// App is the explicit composition root: every consumer receives the
// queue, cache, monitor, and engine from here instead of reaching for a
// shared singleton, so tests can assemble an App over fake collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/cache"
	"github.com/Umer9538/nfcapp-offline/internal/connectivity"
	"github.com/Umer9538/nfcapp-offline/internal/engine"
	"github.com/Umer9538/nfcapp-offline/internal/queue"
	"github.com/Umer9538/nfcapp-offline/internal/store"
)

// Config holds the settings for the whole layer.
type Config struct {
	// StorePath is the SQLite database path. Ignored by NewWithStore.
	StorePath string

	// QueueCapacity bounds the mutation queue (default: 100).
	QueueCapacity int

	// QueueMaxRetries is the default retry ceiling (default: 3).
	QueueMaxRetries int

	// SyncBaseURL is prepended to relative queue targets.
	SyncBaseURL string

	// SyncTimeout bounds each replay attempt (default: 30s).
	SyncTimeout time.Duration

	// ProbeURL is the endpoint polled for reachability.
	ProbeURL string

	// ProbeInterval is the connectivity poll interval (default: 10s).
	ProbeInterval time.Duration

	// Notify, if set, fires after every completed sync pass.
	Notify func(engine.Result, time.Duration)

	// Logger for all components.
	Logger *log.Logger
}

// App wires the offline layer together.
type App struct {
	Store   store.Store
	Queue   *queue.Queue
	Cache   *cache.Cache
	Monitor *connectivity.Monitor
	Engine  *engine.Engine

	logger *log.Logger
	closer func() error
}

// New opens the SQLite store at cfg.StorePath and assembles the layer
// around it. The caller MUST call Close() when done.
func New(cfg Config) (*App, error) {
	st, err := store.OpenSQLite(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}

	a := assemble(st, cfg, defaultProbe(cfg))
	a.closer = st.Close
	return a, nil
}

// defaultProbe picks the reachability probe for New. Without a probe or
// sync URL configured there is nothing to reach, so the layer assumes
// online and lets individual requests fail instead.
func defaultProbe(cfg Config) connectivity.Probe {
	url := cfg.ProbeURL
	if url == "" && cfg.SyncBaseURL != "" {
		url = strings.TrimRight(cfg.SyncBaseURL, "/") + "/health"
	}
	if url == "" {
		return connectivity.ProbeFunc(func(context.Context) bool { return true })
	}
	return &connectivity.HTTPProbe{URL: url}
}

// NewWithStore assembles the layer over an injected store and probe.
// Used by tests and by on-device hosts that bring their own storage.
func NewWithStore(st store.Store, probe connectivity.Probe, cfg Config) *App {
	return assemble(st, cfg, probe)
}

func assemble(st store.Store, cfg Config, probe connectivity.Probe) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[offline] ", log.LstdFlags)
	}

	q := queue.New(st, &queue.Config{
		Capacity:   cfg.QueueCapacity,
		MaxRetries: cfg.QueueMaxRetries,
		Logger:     logger,
	})

	c := cache.New(st, logger)

	monitorCfg := &connectivity.Config{
		Interval: cfg.ProbeInterval,
		Logger:   logger,
	}
	monitor := connectivity.New(probe, monitorCfg)

	eng := engine.New(q, monitor, &engine.HTTPExecutor{BaseURL: cfg.SyncBaseURL}, &engine.Config{
		RequestTimeout: cfg.SyncTimeout,
		Notify:         cfg.Notify,
		Logger:         logger,
	})

	// Reconnecting drains the queue automatically. An overlapping
	// manual pass is a benign skip.
	monitorCfg.OnReconnect = func(ctx context.Context) {
		if _, err := eng.SyncQueue(ctx); err != nil && !errors.Is(err, engine.ErrSyncInProgress) {
			logger.Printf("Reconnect sync failed: %v", err)
		}
	}

	return &App{
		Store:   st,
		Queue:   q,
		Cache:   c,
		Monitor: monitor,
		Engine:  eng,
		logger:  logger,
	}
}

// Close stops the monitor and releases the store.
func (a *App) Close() error {
	a.Monitor.Stop()
	if a.closer != nil {
		return a.closer()
	}
	return nil
}
