package certorch

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/stephenafamo/kronika"

	"github.com/bnema/gatewayd/internal/logging"
)

// DefaultCacheTTL and DefaultCacheMaxEntries bound the in-memory
// tls.Certificate cache's lifetime and size.
const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheMaxEntries = 100
	sweepInterval          = time.Hour
)

type cacheEntry struct {
	ctx        *tls.Certificate
	expiresAt  time.Time
	recordName string // certstore record this entry's cert was loaded from
}

// ttlCache is the TLSContextCacheEntry table keyed by lowercased
// servername, bounded to maxEntries with earliest-expiry eviction on
// overflow, swept hourly for plain expiry. Multiple servernames (every
// local-like host) can share one underlying certstore record, so entries
// also carry that record name for invalidateRecord.
type ttlCache struct {
	mu         sync.RWMutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	log        interface {
		Debug(msg interface{}, keyvals ...interface{})
	}
}

func newTTLCache(ttl time.Duration, maxEntries int) *ttlCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &ttlCache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		log:        logging.For("certorch.cache"),
	}
}

func (c *ttlCache) get(servername string) (*tls.Certificate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[servername]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.ctx, true
}

func (c *ttlCache) put(servername, recordName string, cert *tls.Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictEarliestLocked()
	}
	c.entries[servername] = cacheEntry{ctx: cert, expiresAt: time.Now().Add(c.ttl), recordName: recordName}
}

// evictEarliestLocked drops the entry with the earliest expiresAt. Caller
// holds c.mu.
func (c *ttlCache) evictEarliestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for k, e := range c.entries {
		if first || e.expiresAt.Before(oldestAt) {
			oldestKey, oldestAt, first = k, e.expiresAt, false
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *ttlCache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// invalidateRecord drops every cached entry loaded from recordName. A
// single certstore record (e.g. the combined local-gateway cert) can back
// many SNI-keyed entries, so this scans rather than doing a single-key
// delete.
func (c *ttlCache) invalidateRecord(recordName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if e.recordName == recordName {
			delete(c.entries, k)
		}
	}
}

// startSweeper runs the hourly expiry sweep until ctx is canceled, using
// kronika.Every for the periodic schedule.
func (c *ttlCache) startSweeper(ctx context.Context) {
	for range kronika.Every(ctx, time.Now(), sweepInterval) {
		c.sweepExpired()
		c.log.Debug("swept expired TLS context cache entries")
	}
}
