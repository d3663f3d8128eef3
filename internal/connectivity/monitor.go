// Package connectivity tracks network reachability and tells the rest of
// the offline layer when the device comes back online.
//
// The monitor polls a Probe at a fixed interval, keeps the last observed
// state, and notifies subscribers on every state change. The
// offline-to-online edge additionally fires the OnReconnect hook exactly
// once per transition; that hook is how reconnects trigger an automatic
// sync pass.
package connectivity

import (
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// Probe answers "is the network reachable right now?".
//
// The default HTTPProbe sends a lightweight request to a health endpoint;
// on-device builds wrap the platform reachability API instead.
type Probe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func(ctx context.Context) bool

// Online implements Probe.
func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// HTTPProbe reports reachability by issuing a HEAD request.
type HTTPProbe struct {
	// URL to probe, e.g. the API health endpoint.
	URL string

	// Timeout per probe attempt (default: 5s).
	Timeout time.Duration

	// Client overrides the HTTP client (default: http.DefaultClient).
	Client *http.Client
}

// Online implements Probe. Any completed response counts as reachable;
// only transport failures mean offline.
func (p *HTTPProbe) Online(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}

// Event describes a reachability change.
type Event struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Listener receives reachability change events.
type Listener func(Event)

// Config holds monitor configuration.
type Config struct {
	// Interval is how often to poll the probe (default: 10s).
	Interval time.Duration

	// OnReconnect fires once per offline-to-online transition.
	OnReconnect func(ctx context.Context)

	// Logger for monitor activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Interval: 10 * time.Second,
		Logger:   log.New(os.Stderr, "[connectivity] ", log.LstdFlags),
	}
}

// Monitor polls a probe and fans out reachability changes.
type Monitor struct {
	probe  Probe
	config *Config

	mu        sync.Mutex
	online    bool
	started   bool
	listeners map[int]Listener
	nextID    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a monitor over the given probe.
func New(probe Probe, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[connectivity] ", log.LstdFlags)
	}

	return &Monitor{
		probe:     probe,
		config:    config,
		listeners: make(map[int]Listener),
	}
}

// Start reads the current reachability and begins polling.
// Calling Start on a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true

	ctx, m.cancel = context.WithCancel(ctx)
	m.online = m.probe.Online(ctx)
	m.config.Logger.Printf("Monitoring connectivity (online=%v, interval=%v)", m.online, m.config.Interval)
	m.mu.Unlock()

	m.wg.Add(1)
	go m.poll(ctx)
}

// Stop halts polling and drops all listeners.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cancel := m.cancel
	m.listeners = make(map[int]Listener)
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.config.Logger.Println("Connectivity monitor stopped")
}

// IsOnline returns the last observed reachability state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe registers a listener invoked on every reachability change
// (not only edge transitions). The returned function unsubscribes.
func (m *Monitor) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// poll drives the probe loop until the context is cancelled.
func (m *Monitor) poll(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			m.observe(ctx, m.probe.Online(ctx))
		}
	}
}

// observe records a new probe result, notifying listeners on change and
// firing OnReconnect on the offline-to-online edge.
func (m *Monitor) observe(ctx context.Context, online bool) {
	m.mu.Lock()
	wasOnline := m.online
	if online == wasOnline {
		m.mu.Unlock()
		return
	}
	m.online = online

	event := Event{Online: online, At: time.Now()}
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	m.config.Logger.Printf("Connectivity changed: online=%v", online)

	for _, fn := range listeners {
		fn(event)
	}

	if !wasOnline && online && m.config.OnReconnect != nil {
		m.config.OnReconnect(ctx)
	}
}
