// Package keylock provides per-key mutual exclusion. The auth services hold
// a key's lock around every security-profile mutation for one account, so
// concurrent secret rotations for the same account serialize instead of
// silently overwriting each other.
package keylock

import "sync"

// KeyLock is a registry of named mutexes. The zero value is not usable;
// construct with New.
type KeyLock struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyLock {
	return &KeyLock{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key and returns the function that releases it.
// Entries are reference-counted and removed when the last holder releases,
// so the registry does not grow with the number of accounts ever seen.
func (k *KeyLock) Lock(key string) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
