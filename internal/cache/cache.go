// Package cache provides the TTL read cache for profile, contact, and
// dashboard data fetched from the API.
//
// Entries live in the persistent store under "cache_<domain>" keys as
// JSON records of the form {data, timestamp, ttl} (epoch milliseconds).
// An entry older than its TTL is logically absent: every read path
// treats it as a miss and evicts it. Reads degrade to a miss on storage
// failure rather than erroring; a stale read must never crash a screen
// that is trying to render emergency data.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Umer9538/nfcapp-offline/internal/store"
)

// keyPrefix namespaces cache records in the shared store.
const keyPrefix = "cache_"

// Cache domains and their default TTLs. The profile and medical record
// change rarely; bracelet status and dashboard stats go stale quickly.
const (
	DomainProfile        = "profile"
	DomainMedicalData    = "medical-data"
	DomainContacts       = "emergency-contacts"
	DomainSubscription   = "subscription"
	DomainBraceletStatus = "bracelet-status"
	DomainDashboardStats = "dashboard-stats"
)

// defaultTTLs maps each known domain to its default TTL.
var defaultTTLs = map[string]time.Duration{
	DomainProfile:        24 * time.Hour,
	DomainMedicalData:    24 * time.Hour,
	DomainContacts:       12 * time.Hour,
	DomainSubscription:   6 * time.Hour,
	DomainBraceletStatus: time.Hour,
	DomainDashboardStats: 15 * time.Minute,
}

// fallbackTTL applies to domains without a registered default.
const fallbackTTL = time.Hour

// DefaultTTL returns the default TTL for a cache domain.
func DefaultTTL(domain string) time.Duration {
	if ttl, ok := defaultTTLs[domain]; ok {
		return ttl
	}
	return fallbackTTL
}

// entry is the persisted cache record.
type entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // write time, epoch ms
	TTL       int64           `json:"ttl"`       // milliseconds
}

// expired reports whether the entry is older than its TTL at now.
func (e entry) expired(now time.Time) bool {
	return now.UnixMilli()-e.Timestamp > e.TTL
}

// Stats summarizes cache occupancy.
type Stats struct {
	TotalEntries   int `json:"totalEntries"`
	ExpiredEntries int `json:"expiredEntries"`
	ValidEntries   int `json:"validEntries"`
}

// Cache is a TTL cache over the persistent store.
type Cache struct {
	store  store.Store
	logger *log.Logger

	mu  sync.Mutex
	now func() time.Time // test seam
}

// New creates a cache backed by the given store.
// If logger is nil, a default logger writing to stderr is used.
func New(st store.Store, logger *log.Logger) *Cache {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &Cache{
		store:  st,
		logger: logger,
		now:    time.Now,
	}
}

// Save writes data under the domain with the given TTL.
// A zero TTL uses the domain default. Fails with a store.ErrStorage
// wrapped error if persistence fails.
func (c *Cache) Save(ctx context.Context, domain string, data any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL(domain)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data for %s: %w", domain, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	rec := entry{
		Data:      raw,
		Timestamp: c.now().UnixMilli(),
		TTL:       ttl.Milliseconds(),
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry for %s: %w", domain, err)
	}

	if err := c.store.Set(ctx, keyPrefix+domain, string(encoded)); err != nil {
		return fmt.Errorf("failed to persist cache entry for %s: %w", domain, err)
	}
	return nil
}

// Get reads the cached value for the domain into dest and reports
// whether a live entry was found.
//
// An expired entry is evicted and reported as a miss. Storage or decode
// failures are logged and reported as a miss; reads never fail hard.
func (c *Cache) Get(ctx context.Context, domain string, dest any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.read(ctx, domain)
	if !ok {
		return false
	}

	if rec.expired(c.now()) {
		c.evict(ctx, domain)
		return false
	}

	if err := json.Unmarshal(rec.Data, dest); err != nil {
		c.logger.Printf("Warning: corrupt cache data for %s: %v", domain, err)
		c.evict(ctx, domain)
		return false
	}
	return true
}

// IsExpired reports whether the domain's entry is absent or stale.
func (c *Cache) IsExpired(ctx context.Context, domain string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.read(ctx, domain)
	if !ok {
		return true
	}
	return rec.expired(c.now())
}

// Age returns how long ago the domain's entry was written.
// ok is false if no entry exists.
func (c *Cache) Age(ctx context.Context, domain string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.read(ctx, domain)
	if !ok {
		return 0, false
	}
	return time.Duration(c.now().UnixMilli()-rec.Timestamp) * time.Millisecond, true
}

// Timestamp returns the write time of the domain's entry.
// ok is false if no entry exists.
func (c *Cache) Timestamp(ctx context.Context, domain string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.read(ctx, domain)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(rec.Timestamp), true
}

// Clear removes the domain's entry.
func (c *Cache) Clear(ctx context.Context, domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Remove(ctx, keyPrefix+domain); err != nil {
		return fmt.Errorf("failed to clear cache entry for %s: %w", domain, err)
	}
	return nil
}

// ClearAll removes every cache entry.
func (c *Cache) ClearAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	domains, err := c.listDomains(ctx)
	if err != nil {
		return err
	}

	keys := make([]string, len(domains))
	for i, domain := range domains {
		keys[i] = keyPrefix + domain
	}

	if err := c.store.RemoveMany(ctx, keys); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// Keys returns all cached domains, expired entries included.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listDomains(ctx)
}

// GetStats classifies every cached entry as valid or expired.
func (c *Cache) GetStats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	domains, err := c.listDomains(ctx)
	if err != nil {
		return Stats{}, err
	}

	now := c.now()
	stats := Stats{}
	for _, domain := range domains {
		rec, ok := c.read(ctx, domain)
		if !ok {
			continue
		}
		stats.TotalEntries++
		if rec.expired(now) {
			stats.ExpiredEntries++
		} else {
			stats.ValidEntries++
		}
	}
	return stats, nil
}

// CleanupExpired evicts every expired entry and returns how many were
// removed.
func (c *Cache) CleanupExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	domains, err := c.listDomains(ctx)
	if err != nil {
		return 0, err
	}

	now := c.now()
	var stale []string
	for _, domain := range domains {
		rec, ok := c.read(ctx, domain)
		if !ok {
			continue
		}
		if rec.expired(now) {
			stale = append(stale, keyPrefix+domain)
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if err := c.store.RemoveMany(ctx, stale); err != nil {
		return 0, fmt.Errorf("failed to evict expired entries: %w", err)
	}

	c.logger.Printf("Evicted %d expired cache entries", len(stale))
	return len(stale), nil
}

// read loads and decodes the entry for a domain. Failures are logged
// and reported as a miss. Callers must hold c.mu.
func (c *Cache) read(ctx context.Context, domain string) (entry, bool) {
	raw, ok, err := c.store.Get(ctx, keyPrefix+domain)
	if err != nil {
		c.logger.Printf("Warning: cache read failed for %s: %v", domain, err)
		return entry{}, false
	}
	if !ok {
		return entry{}, false
	}

	var rec entry
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.logger.Printf("Warning: corrupt cache entry for %s: %v", domain, err)
		c.evict(ctx, domain)
		return entry{}, false
	}
	return rec, true
}

// evict removes a domain's entry, logging (not propagating) failures.
// Callers must hold c.mu.
func (c *Cache) evict(ctx context.Context, domain string) {
	if err := c.store.Remove(ctx, keyPrefix+domain); err != nil {
		c.logger.Printf("Warning: failed to evict cache entry for %s: %v", domain, err)
	}
}

// listDomains lists cached domains from the store. Callers must hold c.mu.
func (c *Cache) listDomains(ctx context.Context) ([]string, error) {
	keys, err := c.store.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}

	var domains []string
	for _, key := range keys {
		if strings.HasPrefix(key, keyPrefix) {
			domains = append(domains, strings.TrimPrefix(key, keyPrefix))
		}
	}
	return domains, nil
}
