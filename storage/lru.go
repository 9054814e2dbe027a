package storage

import "container/heap"

// lruEntry is one element of the buffer pool's auxiliary ordered index:
// a page id tagged with the monotonic counter value of its last access.
// index is maintained by container/heap so Fix/Remove are O(log n).
type lruEntry struct {
	pid    PageId
	stamp  uint64
	index  int
}

// lruIndex is a min-heap over lruEntry.stamp, giving O(log n) selection
// of the least-recently-used page. Design notes call for a monotonic
// counter in place of wall-clock time, since real-time timestamps can
// tie or invert under clock skew.
type lruIndex struct {
	items []*lruEntry
	byPid map[PageId]*lruEntry
	clock uint64
}

func newLRUIndex() *lruIndex {
	return &lruIndex{byPid: make(map[PageId]*lruEntry)}
}

// Len, Less, Swap, Push, Pop implement heap.Interface.
func (l *lruIndex) Len() int { return len(l.items) }
func (l *lruIndex) Less(i, j int) bool { return l.items[i].stamp < l.items[j].stamp }
func (l *lruIndex) Swap(i, j int) {
	l.items[i], l.items[j] = l.items[j], l.items[i]
	l.items[i].index = i
	l.items[j].index = j
}
func (l *lruIndex) Push(x any) {
	e := x.(*lruEntry)
	e.index = len(l.items)
	l.items = append(l.items, e)
}
func (l *lruIndex) Pop() any {
	old := l.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	l.items = old[:n-1]
	return e
}

// tick returns the next monotonic access-order value.
func (l *lruIndex) tick() uint64 {
	l.clock++
	return l.clock
}

// touch records (or re-stamps) pid as just accessed.
func (l *lruIndex) touch(pid PageId) {
	stamp := l.tick()
	if e, ok := l.byPid[pid]; ok {
		e.stamp = stamp
		heap.Fix(l, e.index)
		return
	}
	e := &lruEntry{pid: pid, stamp: stamp}
	heap.Push(l, e)
	l.byPid[pid] = e
}

// remove drops pid from the index; a no-op if it is not present.
func (l *lruIndex) remove(pid PageId) {
	e, ok := l.byPid[pid]
	if !ok {
		return
	}
	heap.Remove(l, e.index)
	delete(l.byPid, pid)
}

// evictClean walks the index from oldest to newest — each step an
// O(log n) heap pop — looking for the first page isDirty reports false
// for. That page is permanently removed from the index and its PageId
// returned. Every dirtier page popped along the way is pushed back
// unchanged, so a scan that finds nothing leaves the index exactly as
// it was.
func (l *lruIndex) evictClean(isDirty func(PageId) bool) (PageId, bool) {
	var skipped []*lruEntry
	defer func() {
		for _, e := range skipped {
			heap.Push(l, e)
			l.byPid[e.pid] = e
		}
	}()

	for l.Len() > 0 {
		e := heap.Pop(l).(*lruEntry)
		delete(l.byPid, e.pid)
		if !isDirty(e.pid) {
			return e.pid, true
		}
		skipped = append(skipped, e)
	}
	return PageId{}, false
}
