package cache

import (
	"context"
	"sync"
	"time"

	"github.com/arvinMleadai/booking-mcp-sub000/internal/booking"
)

// DateKey is the calendar-date portion of an instant in a given location,
// formatted as "2006-01-02". Using the local date, not UTC truncation, keeps
// evenings near midnight on the correct cache entry.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01-02")
}

// Loader fetches the busy periods for one whole local day.
type Loader func(ctx context.Context) ([]booking.BusyPeriod, error)

type entryKey struct {
	connectionID string
	dateKey      string
}

// BusyCache memoizes busy periods per (connection, calendar day). Entries are
// written by GetBusyPeriods on miss and cleared by Invalidate after any
// successful mutation; the cache is never authoritative over the provider.
type BusyCache struct {
	mu      sync.RWMutex
	entries map[entryKey][]booking.BusyPeriod
}

// NewBusyCache creates an empty cache.
func NewBusyCache() *BusyCache {
	return &BusyCache{entries: make(map[entryKey][]booking.BusyPeriod)}
}

// GetBusyPeriods returns the cached busy periods for the connection and date,
// invoking loader on a miss and storing its result. Loader errors are
// returned without populating the entry.
func (c *BusyCache) GetBusyPeriods(ctx context.Context, connectionID, dateKey string, loader Loader) ([]booking.BusyPeriod, error) {
	key := entryKey{connectionID: connectionID, dateKey: dateKey}

	c.mu.RLock()
	periods, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return periods, nil
	}

	loaded, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	if loaded == nil {
		loaded = []booking.BusyPeriod{}
	}

	c.mu.Lock()
	c.entries[key] = loaded
	c.mu.Unlock()
	return loaded, nil
}

// Invalidate clears the entry for one date, or every entry for the connection
// when dateKey is empty. It must run immediately after every successful
// create, update, or delete on the connection; updates additionally use the
// broad form because an update may move an event across days.
func (c *BusyCache) Invalidate(connectionID, dateKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dateKey != "" {
		delete(c.entries, entryKey{connectionID: connectionID, dateKey: dateKey})
		return
	}
	for key := range c.entries {
		if key.connectionID == connectionID {
			delete(c.entries, key)
		}
	}
}

// Len reports the number of cached entries. Intended for metrics and tests.
func (c *BusyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
