// File: internal/session/items.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Thread-safe user item bag attached to a client session.

package session

import (
	"maps"
	"slices"
	"sync"
	"time"
)

type entry struct {
	val    any
	expiry time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiry.IsZero() && now.After(e.expiry)
}

// Items is a concurrent key/value store. Entries may carry an expiry.
type Items struct {
	mu    sync.RWMutex
	store map[string]entry
	now   func() time.Time
}

// NewItems creates an empty store.
func NewItems() *Items {
	return &Items{store: make(map[string]entry), now: time.Now}
}

// Set stores value under key, clearing any expiry.
func (c *Items) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = entry{val: value}
}

// Get returns the value for key unless it is missing or expired.
func (c *Items) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.store[key]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.val, true
}

// Delete removes a key.
func (c *Items) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
}

// WithExpiration makes an existing key expire after ttl.
func (c *Items) WithExpiration(key string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.store[key]; ok {
		e.expiry = c.now().Add(ttl)
		c.store[key] = e
	}
}

// Keys returns live keys in sorted order.
func (c *Items) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	keys := make([]string, 0, len(c.store))
	for k, e := range c.store {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Snapshot returns a copy of the live entries.
func (c *Items) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	out := make(map[string]any, len(c.store))
	for k, e := range c.store {
		if !e.expired(now) {
			out[k] = e.val
		}
	}
	return out
}

// Len counts stored entries, expired ones included until they are swept.
func (c *Items) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Sweep drops expired entries.
func (c *Items) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	maps.DeleteFunc(c.store, func(_ string, e entry) bool { return e.expired(now) })
}

// Clear removes everything.
func (c *Items) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.store)
}
