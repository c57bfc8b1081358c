package engine

import "sync"

// clientLocks hands out one RWMutex per client id. All mutations for a
// client serialize on its write lock; reads share the read lock. Different
// clients never contend. Locks are never removed: get must always return
// the same mutex for a client id, or a writer parked on the old mutex and
// a writer holding a fresh one could run at the same time. The map stays
// small (one pointer per client ever seen).
type clientLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newClientLocks() *clientLocks {
	return &clientLocks{locks: make(map[string]*sync.RWMutex)}
}

func (c *clientLocks) get(clientID string) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.locks[clientID]
	if !ok {
		lock = &sync.RWMutex{}
		c.locks[clientID] = lock
	}
	return lock
}
