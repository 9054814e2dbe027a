package storage

import (
	"sync"
	"time"
)

// lockCoordinator covers the LockTable and the WaitForGraph with one
// critical section, so that a grant/deny decision and the resulting
// wait-for edge are always mutually consistent — per spec, these two
// stores must never be observed out of sync with each other.
type lockCoordinator struct {
	mu    sync.Mutex
	locks *LockTable
	waits *WaitForGraph
}

func newLockCoordinator() *lockCoordinator {
	return &lockCoordinator{
		locks: NewLockTable(),
		waits: NewWaitForGraph(),
	}
}

const lockRetryBackoff = 2 * time.Millisecond

// acquire blocks until tid is granted mode on pid, or returns
// TransactionAborted if granting it would close a wait-for cycle.
// BufferPool.getPage passes the abort straight back; the caller of
// BufferPool.GetPage is responsible for calling
// TransactionComplete(tid, false) after an abort.
func (c *lockCoordinator) acquire(tid TransactionID, pid PageId, mode LockMode) error {
	for {
		c.mu.Lock()
		if c.locks.acquire(tid, pid, mode) {
			c.waits.clearAllPending(tid)
			c.mu.Unlock()
			return nil
		}
		if c.waits.hasCycleIfAdd(tid, pid, c.locks) {
			c.mu.Unlock()
			return newError(TransactionAborted, "granting %v on %v to %v would deadlock", mode, pid, tid)
		}
		c.waits.addPending(tid, pid)
		c.mu.Unlock()
		time.Sleep(lockRetryBackoff)
	}
}

func (c *lockCoordinator) release(tid TransactionID, pid PageId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.locks.release(tid, pid)
}

// releaseAll releases every lock tid holds and clears its pending
// requests, returning the pages it held any lock on.
func (c *lockCoordinator) releaseAll(tid TransactionID) []PageId {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := c.locks.releaseAll(tid)
	c.waits.clearAllPending(tid)
	return pages
}

func (c *lockCoordinator) holds(tid TransactionID, pid PageId) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks.holds(tid, pid)
}

func (c *lockCoordinator) pagesHeldBy(tid TransactionID) []PageId {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locks.pagesHeldBy(tid)
}
