package storage

// LockMode is the granularity of a page lock: SHARED for readers,
// EXCLUSIVE for writers.
type LockMode int

const (
	Shared LockMode = iota
	Exclusive
)

func (m LockMode) String() string {
	if m == Exclusive {
		return "EXCLUSIVE"
	}
	return "SHARED"
}

// LockTable holds two symmetric mappings — by-page and by-transaction —
// of every currently granted page lock. It has no locking of its own:
// lockCoordinator serializes every call to it under one mutex shared
// with the WaitForGraph, per spec.
type LockTable struct {
	byPage map[PageId]map[TransactionID]LockMode
	byTxn  map[TransactionID]map[PageId]LockMode
}

// NewLockTable constructs an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{
		byPage: make(map[PageId]map[TransactionID]LockMode),
		byTxn:  make(map[TransactionID]map[PageId]LockMode),
	}
}

// acquire attempts to grant mode on pid to tid per the compatibility
// matrix: IDLE grants anything; a sole SHARED holder may upgrade to
// EXCLUSIVE atomically; any other conflicting holder denies. Must be
// called with mu held by the caller (lockCoordinator serializes this
// together with wait-for-graph updates).
func (lt *LockTable) acquire(tid TransactionID, pid PageId, mode LockMode) bool {
	holders := lt.byPage[pid]

	if mode == Shared {
		if holders[tid] == Exclusive {
			// tid already holds EXCLUSIVE; a SHARED re-request is a no-op,
			// it must not downgrade the stored mode.
			return true
		}
		for other, m := range holders {
			if other != tid && m == Exclusive {
				return false
			}
		}
		lt.grant(tid, pid, Shared)
		return true
	}

	// mode == Exclusive: any holder other than tid itself conflicts,
	// whether it holds SHARED or EXCLUSIVE.
	for other := range holders {
		if other != tid {
			return false
		}
	}
	lt.grant(tid, pid, Exclusive)
	return true
}

func (lt *LockTable) grant(tid TransactionID, pid PageId, mode LockMode) {
	if lt.byPage[pid] == nil {
		lt.byPage[pid] = make(map[TransactionID]LockMode)
	}
	lt.byPage[pid][tid] = mode

	if lt.byTxn[tid] == nil {
		lt.byTxn[tid] = make(map[PageId]LockMode)
	}
	lt.byTxn[tid][pid] = mode
}

// release removes both directional entries for (tid, pid). Idempotent.
func (lt *LockTable) release(tid TransactionID, pid PageId) {
	if holders, ok := lt.byPage[pid]; ok {
		delete(holders, tid)
		if len(holders) == 0 {
			delete(lt.byPage, pid)
		}
	}
	if pages, ok := lt.byTxn[tid]; ok {
		delete(pages, pid)
		if len(pages) == 0 {
			delete(lt.byTxn, tid)
		}
	}
}

// releaseAll releases every lock tid holds, returning the set of pages
// it held any lock on.
func (lt *LockTable) releaseAll(tid TransactionID) []PageId {
	pages := make([]PageId, 0, len(lt.byTxn[tid]))
	for pid := range lt.byTxn[tid] {
		pages = append(pages, pid)
		if holders, ok := lt.byPage[pid]; ok {
			delete(holders, tid)
			if len(holders) == 0 {
				delete(lt.byPage, pid)
			}
		}
	}
	delete(lt.byTxn, tid)
	return pages
}

// holds is a pure lookup: does tid hold any lock on pid?
func (lt *LockTable) holds(tid TransactionID, pid PageId) bool {
	_, ok := lt.byTxn[tid][pid]
	return ok
}

// holders returns the current holder set of pid (used by WaitForGraph
// expansion). Callers must hold the coordinator's mutex.
func (lt *LockTable) holders(pid PageId) map[TransactionID]LockMode {
	return lt.byPage[pid]
}

// pagesHeldBy returns the pages tid currently holds any lock on.
func (lt *LockTable) pagesHeldBy(tid TransactionID) []PageId {
	pages := make([]PageId, 0, len(lt.byTxn[tid]))
	for pid := range lt.byTxn[tid] {
		pages = append(pages, pid)
	}
	return pages
}
