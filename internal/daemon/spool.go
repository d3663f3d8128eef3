package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Umer9538/nfcapp-offline/internal/queue"
)

// rejectSuffix marks spool files that could not be ingested.
const rejectSuffix = ".rej"

// startSpoolWatcher sets up the fsnotify watcher on the spool directory
// and launches the event and processing goroutines.
func (d *Daemon) startSpoolWatcher() error {
	if err := os.MkdirAll(d.config.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("failed to create spool directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create spool watcher: %w", err)
	}
	d.watcher = watcher

	if err := watcher.Add(d.config.SpoolDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch spool directory: %w", err)
	}

	d.config.Logger.Printf("Watching spool directory %s", d.config.SpoolDir)

	// Files dropped before the daemon started still need ingesting.
	d.scanSpool()

	d.wg.Add(2)
	go d.watchSpoolEvents()
	go d.processSpool()

	return nil
}

// scanSpool queues up any spool files already present on disk.
func (d *Daemon) scanSpool() {
	entries, err := os.ReadDir(d.config.SpoolDir)
	if err != nil {
		d.config.Logger.Printf("Error scanning spool directory: %v", err)
		return
	}

	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() || !isSpoolFile(entry.Name()) {
			continue
		}
		path := filepath.Join(d.config.SpoolDir, entry.Name())
		if _, ok := d.pending[path]; !ok {
			d.pending[path] = time.Now()
		}
	}
}

// watchSpoolEvents collects filesystem events into the pending map.
func (d *Daemon) watchSpoolEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isSpoolFile(filepath.Base(event.Name)) {
				continue
			}
			d.pendingMu.Lock()
			if _, exists := d.pending[event.Name]; !exists {
				d.pending[event.Name] = time.Now()
			}
			d.pendingMu.Unlock()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Spool watcher error: %v", err)
		}
	}
}

// processSpool ingests pending spool files after the debounce interval.
func (d *Daemon) processSpool() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.ingestPending()
		}
	}
}

// ingestPending drains spool files whose debounce interval has elapsed.
func (d *Daemon) ingestPending() {
	now := time.Now()

	d.pendingMu.Lock()
	var ready []string
	for path, seen := range d.pending {
		if now.Sub(seen) >= d.config.DebounceInterval {
			ready = append(ready, path)
			delete(d.pending, path)
		}
	}
	d.pendingMu.Unlock()

	ingested := 0
	for _, path := range ready {
		if err := d.ingestSpoolFile(path); err != nil {
			d.config.Logger.Printf("Rejecting spool file %s: %v", path, err)
			if renameErr := os.Rename(path, path+rejectSuffix); renameErr != nil {
				d.config.Logger.Printf("Error renaming rejected spool file: %v", renameErr)
			}
			continue
		}
		ingested++
	}

	if ingested > 0 {
		d.config.Logger.Printf("Ingested %d spooled mutations", ingested)
		if d.handler != nil {
			if size, err := d.app.Queue.Size(d.ctx); err == nil {
				d.handler.OnQueueSize(size)
			}
		}
		// Spooled work may be deliverable immediately.
		if d.app.Monitor.IsOnline() {
			d.trySync()
		}
	}
}

// ingestSpoolFile reads one spool file, enqueues its write spec, and
// removes the file on success.
func (d *Daemon) ingestSpoolFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read spool file: %w", err)
	}

	var spec queue.WriteSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("failed to parse spool file: %w", err)
	}

	if _, err := d.app.Queue.Enqueue(d.ctx, spec); err != nil {
		return fmt.Errorf("failed to enqueue spooled mutation: %w", err)
	}

	if err := os.Remove(path); err != nil {
		d.config.Logger.Printf("Error removing ingested spool file %s: %v", path, err)
	}
	return nil
}

// isSpoolFile reports whether a file name looks like an ingestable
// spool entry. Rejected and hidden files are skipped.
func isSpoolFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	if strings.HasSuffix(name, rejectSuffix) {
		return false
	}
	return strings.HasSuffix(name, ".json")
}
