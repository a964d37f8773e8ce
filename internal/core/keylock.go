package core

import "sync"

// keyedMutex serializes cache reads and writes per cache key so a
// concurrent lookup and invalidate for the same sender cannot race.
// Mutexes are retained for the life of the service; the key space is
// bounded by sender cardinality.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the key, creating it on first use, and
// returns an unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
