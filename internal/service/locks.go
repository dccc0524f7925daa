package service

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// ownerLocks hands out one mutex per owner and forgets it once nobody holds or waits for it.
type ownerLocks struct {
	mu    sync.Mutex
	locks map[string]*ownerLock
}

type ownerLock struct {
	mu   sync.Mutex
	refs int
}

func newOwnerLocks() *ownerLocks {
	return &ownerLocks{locks: make(map[string]*ownerLock)}
}

// Lock blocks until ownerID is free and returns the matching unlock.
func (l *ownerLocks) Lock(ownerID string) func() {
	l.mu.Lock()
	ol, ok := l.locks[ownerID]
	if !ok {
		ol = &ownerLock{}
		l.locks[ownerID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	ol.mu.Lock()
	return func() {
		ol.mu.Unlock()
		l.mu.Lock()
		ol.refs--
		if ol.refs == 0 {
			delete(l.locks, ownerID)
		}
		l.mu.Unlock()
	}
}

func (l *ownerLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

const epochStripes = 64

// writeEpochs counts cache invalidations per owner stripe. Owners sharing a stripe only
// cost each other a skipped cache fill.
type writeEpochs [epochStripes]atomic.Uint64

func (w *writeEpochs) of(ownerID string) *atomic.Uint64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ownerID))
	return &w[h.Sum32()%epochStripes]
}
