// Package lock provides in-process mutual exclusion scoped to a key.
package lock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Keyed serializes callers sharing a key while letting different keys proceed
// in parallel. Entries are dropped once no caller holds or waits on them.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyed() *Keyed {
	return &Keyed{entries: make(map[string]*entry)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *Keyed) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() { k.release(key, e) }
}

// TryLock takes key only if nobody holds it.
func (k *Keyed) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, busy := k.entries[key]; busy {
		return nil, false
	}
	e := &entry{refs: 1}
	e.mu.Lock()
	k.entries[key] = e
	return func() { k.release(key, e) }, true
}

func (k *Keyed) release(key string, e *entry) {
	e.mu.Unlock()
	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

// Len reports how many keys are currently held or awaited.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
