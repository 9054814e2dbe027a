package storage

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// BufferPool is the bounded page cache that orchestrates lock
// acquisition, fetch, eviction, flush, and transaction finalization. It
// holds the single in-memory copy of every resident page; HeapFile
// operations are expressed entirely as sequences of BufferPool page
// acquisitions.
type BufferPool struct {
	mu       sync.Mutex
	capacity int
	pages    map[PageId]Page
	lru      *lruIndex
	coord    *lockCoordinator
	files    map[string]DBFile
	active   map[TransactionID]bool

	// fetchGroup de-duplicates concurrent PageStore reads of the same
	// PageId on a cache miss: if two transactions race to fault in the
	// same page, only one disk read happens.
	fetchGroup singleflight.Group
}

// NewBufferPool constructs a pool holding at most numPages resident
// pages at once.
func NewBufferPool(numPages int) *BufferPool {
	return &BufferPool{
		capacity: numPages,
		pages:    make(map[PageId]Page),
		lru:      newLRUIndex(),
		coord:    newLockCoordinator(),
		files:    make(map[string]DBFile),
		active:   make(map[TransactionID]bool),
	}
}

// registerFile associates a DBFile with its table id so GetPage can
// route a cache-miss read to the right backing file.
func (bp *BufferPool) registerFile(f DBFile) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.files[f.TableID()] = f
}

// BeginTransaction admits tid as an active transaction. Returns a
// PreconditionViolation if tid is already active.
func (bp *BufferPool) BeginTransaction(tid TransactionID) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if bp.active[tid] {
		return StorageError{Code: PreconditionViolation, Msg: "transaction already active"}
	}
	bp.active[tid] = true
	return nil
}

// GetPage acquires the named lock on pid on behalf of tid, then returns
// the page, fetching it from disk on miss. Blocks until the lock is
// granted or the transaction is aborted by deadlock detection.
func (bp *BufferPool) GetPage(tid TransactionID, pid PageId, mode LockMode) (Page, error) {
	bp.mu.Lock()
	file, ok := bp.files[pid.TableID]
	bp.mu.Unlock()
	if !ok {
		return nil, StorageError{Code: PreconditionViolation, Msg: "no file registered for table " + pid.TableID}
	}
	return bp.getPage(tid, file, pid, mode)
}

// getPage is GetPage's internal form, taking the DBFile directly so
// HeapFile's own scans (which already hold a reference to themselves)
// do not pay a map lookup per page.
func (bp *BufferPool) getPage(tid TransactionID, file DBFile, pid PageId, mode LockMode) (Page, error) {
	if err := bp.coord.acquire(tid, pid, mode); err != nil {
		return nil, err
	}

	bp.mu.Lock()
	if p, ok := bp.pages[pid]; ok {
		bp.lru.touch(pid)
		bp.mu.Unlock()
		return p, nil
	}
	bp.mu.Unlock()

	pageAny, err, _ := bp.fetchGroup.Do(pid.TableID+"#"+strconv.Itoa(pid.PageNumber), func() (any, error) {
		bp.mu.Lock()
		if p, ok := bp.pages[pid]; ok {
			bp.mu.Unlock()
			return p, nil
		}
		bp.mu.Unlock()

		page, err := file.ReadPage(pid.PageNumber)
		if err != nil {
			return nil, err
		}

		bp.mu.Lock()
		defer bp.mu.Unlock()
		if _, ok := bp.pages[pid]; ok {
			return bp.pages[pid], nil
		}
		if len(bp.pages) >= bp.capacity {
			if err := bp.evictLocked(); err != nil {
				return nil, err
			}
		}
		bp.pages[pid] = page
		bp.lru.touch(pid)
		return page, nil
	})
	if err != nil {
		return nil, err
	}
	return pageAny.(Page), nil
}

// evictLocked selects the oldest clean page and removes it. Must be
// called with bp.mu held. Implements strict NO-STEAL LRU: dirty pages
// are never substituted for by a clock/second-chance policy.
func (bp *BufferPool) evictLocked() error {
	pid, ok := bp.lru.evictClean(func(pid PageId) bool {
		return bp.pages[pid].IsDirty()
	})
	if !ok {
		return StorageError{Code: CapacityExhausted, Msg: "buffer pool full of dirty pages"}
	}
	delete(bp.pages, pid)
	return nil
}

// ReleasePage releases tid's lock on pid unilaterally, bypassing strict
// two-phase locking. Callers accept that risk explicitly; the pool
// itself never calls this.
func (bp *BufferPool) ReleasePage(tid TransactionID, pid PageId) {
	bp.coord.release(tid, pid)
}

// HoldsLock is a pure predicate over the lock table.
func (bp *BufferPool) HoldsLock(tid TransactionID, pid PageId) bool {
	return bp.coord.holds(tid, pid)
}

// TransactionComplete finalizes tid. On commit, every page tid holds any
// lock on is flushed (FORCE) before locks are released. On abort, every
// in-pool page dirtied by tid is discarded without writing; other
// transactions' dirty pages are untouched. Either way, every lock held
// by tid is released and its pending requests are cleared.
func (bp *BufferPool) TransactionComplete(tid TransactionID, commit bool) error {
	pages := bp.coord.pagesHeldBy(tid)

	bp.mu.Lock()
	defer bp.mu.Unlock()

	var firstErr error
	for _, pid := range pages {
		page, ok := bp.pages[pid]
		if !ok {
			continue // evicted already; impossible under NO-STEAL for a dirty page, vacuous otherwise
		}
		if commit {
			if page.IsDirty() {
				file := bp.files[pid.TableID]
				if err := file.FlushPage(page); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				page.SetDirty(tid, false)
			}
		} else if page.IsDirty() {
			delete(bp.pages, pid)
			bp.lru.remove(pid)
		}
	}

	delete(bp.active, tid)
	bp.coord.releaseAll(tid)
	return firstErr
}

// InsertTuple delegates to tableID's heap file, then marks the page the
// tuple landed on dirty and re-asserts it into the pool (bumping its
// LRU position).
func (bp *BufferPool) InsertTuple(tid TransactionID, tableID string, t *Tuple) error {
	bp.mu.Lock()
	file, ok := bp.files[tableID]
	bp.mu.Unlock()
	if !ok {
		return StorageError{Code: PreconditionViolation, Msg: "no file registered for table " + tableID}
	}
	hf, ok := file.(*HeapFile)
	if !ok {
		return StorageError{Code: PreconditionViolation, Msg: "InsertTuple requires a heap file"}
	}
	pid, err := hf.InsertTuple(tid, t)
	if err != nil {
		return err
	}
	bp.markDirtyAndReassert(tid, pid)
	return nil
}

// DeleteTuple delegates to tableID's heap file, which removes t
// (identified by t.Rid), and marks the affected page dirty.
func (bp *BufferPool) DeleteTuple(tid TransactionID, tableID string, t *Tuple) error {
	bp.mu.Lock()
	file, ok := bp.files[tableID]
	bp.mu.Unlock()
	if !ok {
		return StorageError{Code: PreconditionViolation, Msg: "no file registered for table " + tableID}
	}
	hf, ok := file.(*HeapFile)
	if !ok {
		return StorageError{Code: PreconditionViolation, Msg: "DeleteTuple requires a heap file"}
	}
	pid, err := hf.DeleteTuple(tid, t)
	if err != nil {
		return err
	}
	bp.markDirtyAndReassert(tid, pid)
	return nil
}

func (bp *BufferPool) markDirtyAndReassert(tid TransactionID, pid PageId) {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	if p, ok := bp.pages[pid]; ok {
		p.SetDirty(tid, true)
		bp.lru.touch(pid)
	}
}

// FlushAllPages writes every dirty page unconditionally. Intended for
// shutdown or test teardown only — calling it during live transactions
// violates NO-STEAL.
func (bp *BufferPool) FlushAllPages() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	for pid, page := range bp.pages {
		if !page.IsDirty() {
			continue
		}
		file := bp.files[pid.TableID]
		if err := file.FlushPage(page); err != nil {
			return err
		}
		page.SetDirty(TransactionID{}, false)
	}
	return nil
}

// DiscardPage flushes pid (if dirty) then removes it from the pool.
// Used by the access method when a page becomes ineligible for reuse.
func (bp *BufferPool) DiscardPage(pid PageId) error {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	page, ok := bp.pages[pid]
	if !ok {
		return nil
	}
	if page.IsDirty() {
		file := bp.files[pid.TableID]
		if err := file.FlushPage(page); err != nil {
			return err
		}
	}
	delete(bp.pages, pid)
	bp.lru.remove(pid)
	return nil
}

// PoolSnapshot is a point-in-time view of pool occupancy for the admin
// status surface.
type PoolSnapshot struct {
	Capacity      int `json:"capacity"`
	Resident      int `json:"resident"`
	Dirty         int `json:"dirty"`
	LockedPages   int `json:"lockedPages"`
	ActiveTxns    int `json:"activeTransactions"`
}

// Snapshot reports current pool occupancy and lock-table size, for the
// read-only admin status surface. Never used by the engine itself.
func (bp *BufferPool) Snapshot() PoolSnapshot {
	bp.mu.Lock()
	resident, dirty := len(bp.pages), 0
	for _, p := range bp.pages {
		if p.IsDirty() {
			dirty++
		}
	}
	active := len(bp.active)
	bp.mu.Unlock()

	bp.coord.mu.Lock()
	locked := len(bp.coord.locks.byPage)
	bp.coord.mu.Unlock()

	return PoolSnapshot{
		Capacity:    bp.capacity,
		Resident:    resident,
		Dirty:       dirty,
		LockedPages: locked,
		ActiveTxns:  active,
	}
}
