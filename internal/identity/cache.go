// Package identity maps external chat identifiers to internal conversation
// ids. The cache is derived state: it can always be rebuilt from the store and
// is never consulted as a source of truth for writes.
package identity

import "sync"

// Cache is a process-local external id -> conversation id map with per-key
// locks for check-then-create sequences. It is safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]string

	lockMu sync.Mutex
	locks  map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]string),
		locks:   make(map[string]*keyLock),
	}
}

// Resolve returns the conversation id recorded for externalID.
func (c *Cache) Resolve(externalID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[externalID]
	return id, ok
}

// Record binds externalID to conversationID, replacing any previous binding.
func (c *Cache) Record(externalID, conversationID string) {
	if externalID == "" || conversationID == "" {
		return
	}
	c.mu.Lock()
	c.entries[externalID] = conversationID
	c.mu.Unlock()
}

// Invalidate drops every entry that maps to conversationID and reports how
// many were removed.
func (c *Cache) Invalidate(conversationID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for ext, id := range c.entries {
		if id == conversationID {
			delete(c.entries, ext)
			n++
		}
	}
	return n
}

// Load replaces the cache contents with bindings.
func (c *Cache) Load(bindings map[string]string) {
	entries := make(map[string]string, len(bindings))
	for ext, id := range bindings {
		entries[ext] = id
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

// Reset empties the cache.
func (c *Cache) Reset() {
	c.Load(nil)
}

// Len returns the number of cached bindings.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Lock serializes callers working on the same external id and returns the
// matching unlock function. Lock entries are reference counted and removed
// once no caller holds or waits on them.
func (c *Cache) Lock(externalID string) (unlock func()) {
	c.lockMu.Lock()
	kl, ok := c.locks[externalID]
	if !ok {
		kl = &keyLock{}
		c.locks[externalID] = kl
	}
	kl.refs++
	c.lockMu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()
			c.lockMu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(c.locks, externalID)
			}
			c.lockMu.Unlock()
		})
	}
}

// pendingLocks reports how many keys currently have a lock entry.
func (c *Cache) pendingLocks() int {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	return len(c.locks)
}
