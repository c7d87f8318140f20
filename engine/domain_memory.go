package engine

import (
	"sync"
	"time"
)

// pruneAt is the size at which Set sweeps expired entries.
const pruneAt = 1024

type domainEntry struct {
	engine  string
	expires time.Time
}

// DomainMemory remembers, per registrable domain, the engine that last
// produced media there. A remembered engine is tried alone before a full
// race. Entries expire after ttl so a site that changes what it serves to
// plain HTTP clients gets re-raced.
//
// A nil *DomainMemory remembers nothing.
type DomainMemory struct {
	mu      sync.Mutex
	entries map[string]domainEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewDomainMemory creates an empty memory whose entries live for ttl.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	return &DomainMemory{
		entries: make(map[string]domainEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the remembered engine for domain, or "".
func (dm *DomainMemory) Get(domain string) string {
	if dm == nil {
		return ""
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	e, ok := dm.entries[domain]
	if !ok {
		return ""
	}
	if !dm.now().Before(e.expires) {
		delete(dm.entries, domain)
		return ""
	}
	return e.engine
}

// Set records engine as the one that produced media for domain.
func (dm *DomainMemory) Set(domain, engine string) {
	if dm == nil || dm.ttl <= 0 {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()

	now := dm.now()
	if len(dm.entries) >= pruneAt {
		for d, e := range dm.entries {
			if !now.Before(e.expires) {
				delete(dm.entries, d)
			}
		}
	}
	dm.entries[domain] = domainEntry{engine: engine, expires: now.Add(dm.ttl)}
}

// Delete forgets domain, after its remembered engine stopped producing media.
func (dm *DomainMemory) Delete(domain string) {
	if dm == nil {
		return
	}
	dm.mu.Lock()
	delete(dm.entries, domain)
	dm.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (dm *DomainMemory) Len() int {
	if dm == nil {
		return 0
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return len(dm.entries)
}
