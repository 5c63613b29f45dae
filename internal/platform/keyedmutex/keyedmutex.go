// Package keyedmutex serializes work per key without a global lock.
package keyedmutex

import "sync"

type refMutex struct {
	mu   sync.Mutex
	refs int
}

// Map hands out one mutex per key. Entries are dropped once nobody holds or waits on them.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*refMutex
}

func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*refMutex)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *Map[K]) Lock(key K) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *Map[K]) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
