// Package daemon runs the offline layer as a long-lived process.
//
// The daemon:
// 1. Watches connectivity and triggers sync passes on reconnect
// 2. Ingests spooled mutations dropped into a watched directory
// 3. Periodically sweeps expired cache entries and stale queue entries
// 4. Broadcasts activity to the dashboard
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Umer9538/nfcapp-offline/internal/app"
	"github.com/Umer9538/nfcapp-offline/internal/dashboard"
)

// Config holds configuration for the daemon.
type Config struct {
	// SpoolDir, if set, is watched for JSON write-spec files to enqueue.
	SpoolDir string

	// MaintenanceInterval is how often to sweep expired cache entries
	// (default: 10m).
	MaintenanceInterval time.Duration

	// QueueMaxAge, if positive, purges queued requests older than this
	// during maintenance.
	QueueMaxAge time.Duration

	// DebounceInterval is how long to wait before processing spool
	// file events. This batches rapid writes together.
	DebounceInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaintenanceInterval: 10 * time.Minute,
		DebounceInterval:    100 * time.Millisecond,
		Logger:              log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon orchestrates the offline layer's background work.
type Daemon struct {
	app     *app.App
	handler *dashboard.Handler // nil when no dashboard is attached
	config  *Config

	watcher   *fsnotify.Watcher
	pending   map[string]time.Time // spool path -> first-seen time
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon over an assembled App.
//
// handler may be nil; dashboard broadcasting is then disabled.
func New(a *app.App, handler *dashboard.Handler, config *Config) (*Daemon, error) {
	if a == nil {
		return nil, fmt.Errorf("app cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = 10 * time.Minute
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		app:     a,
		handler: handler,
		config:  config,
		pending: make(map[string]time.Time),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if d.handler != nil {
		d.app.Monitor.Subscribe(d.handler.OnConnectivityChange)
	}
	d.app.Monitor.Start(d.ctx)

	// Drain anything left over from the previous run if we're online.
	d.trySync()

	if d.config.SpoolDir != "" {
		if err := d.startSpoolWatcher(); err != nil {
			return err
		}
	}

	d.wg.Add(1)
	go d.maintenanceLoop()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if d.watcher != nil {
		if err := d.watcher.Close(); err != nil {
			d.config.Logger.Printf("Error closing spool watcher: %v", err)
		}
	}

	d.app.Monitor.Stop()
	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// trySync runs one sync pass, treating an overlapping pass as a skip.
func (d *Daemon) trySync() {
	result, err := d.app.Engine.SyncQueue(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Sync pass not run: %v", err)
		return
	}
	if result.Success+result.Failed+result.Skipped > 0 {
		d.config.Logger.Printf("Sync pass: success=%d failed=%d skipped=%d",
			result.Success, result.Failed, result.Skipped)
	}
}

// maintenanceLoop periodically sweeps expired cache entries and stale
// queue entries.
func (d *Daemon) maintenanceLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runMaintenance()
		}
	}
}

// runMaintenance performs one maintenance sweep.
func (d *Daemon) runMaintenance() {
	evicted, err := d.app.Cache.CleanupExpired(d.ctx)
	if err != nil {
		d.config.Logger.Printf("Error sweeping cache: %v", err)
	} else if evicted > 0 {
		d.config.Logger.Printf("Swept %d expired cache entries", evicted)
	}

	if d.handler != nil {
		stats, err := d.app.Cache.GetStats(d.ctx)
		if err != nil {
			d.config.Logger.Printf("Error reading cache stats: %v", err)
		} else {
			d.handler.OnCacheStats(stats)
		}
	}

	if d.config.QueueMaxAge > 0 {
		cutoff := time.Now().Add(-d.config.QueueMaxAge)
		dropped, err := d.app.Queue.PurgeBefore(d.ctx, cutoff)
		if err != nil {
			d.config.Logger.Printf("Error purging stale queue entries: %v", err)
		} else if dropped > 0 {
			d.config.Logger.Printf("Purged %d queued requests older than %v", dropped, d.config.QueueMaxAge)
		}
	}
}
