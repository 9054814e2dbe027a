package storage

// WaitForGraph tracks, per transaction, the set of pages it is currently
// blocked requesting a lock on. It never stores holder edges directly —
// those are derived from the LockTable at query time — so the two
// stores stay distinct, as spec design notes require, and cycle
// detection is a pure query over their union.
type WaitForGraph struct {
	pending map[TransactionID]map[PageId]struct{}
}

// NewWaitForGraph constructs an empty pending-request registry.
func NewWaitForGraph() *WaitForGraph {
	return &WaitForGraph{pending: make(map[TransactionID]map[PageId]struct{})}
}

func (g *WaitForGraph) addPending(tid TransactionID, pid PageId) {
	if g.pending[tid] == nil {
		g.pending[tid] = make(map[PageId]struct{})
	}
	g.pending[tid][pid] = struct{}{}
}

func (g *WaitForGraph) clearPending(tid TransactionID, pid PageId) {
	if pages, ok := g.pending[tid]; ok {
		delete(pages, pid)
		if len(pages) == 0 {
			delete(g.pending, tid)
		}
	}
}

// clearAllPending drops every pending request for tid, called on grant
// and on transaction completion.
func (g *WaitForGraph) clearAllPending(tid TransactionID) {
	delete(g.pending, tid)
}

// hasCycleIfAdd answers: if tid were to start waiting on pid right now,
// would that close a cycle in the bipartite wait-for graph (tid ->
// pendingPage edges, and an implicit pid -> holder edge for every
// current holder of pid)? It performs a BFS from pid, alternating
// page->holder and tid->pendingPage expansions, and returns true iff tid
// is reachable — equivalently, iff there is already a path from pid back
// to tid. Callers must hold the coordinator's mutex across both this
// call and the LockTable lookups it depends on.
func (g *WaitForGraph) hasCycleIfAdd(tid TransactionID, pid PageId, lt *LockTable) bool {
	type node struct {
		txn    *TransactionID
		page   *PageId
	}

	visitedPages := map[PageId]bool{pid: true}
	visitedTxns := map[TransactionID]bool{}
	queue := []node{{page: &pid}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur.page != nil {
			for holder := range lt.holders(*cur.page) {
				if holder == tid {
					return true
				}
				if !visitedTxns[holder] {
					visitedTxns[holder] = true
					h := holder
					queue = append(queue, node{txn: &h})
				}
			}
		} else {
			for p := range g.pending[*cur.txn] {
				if !visitedPages[p] {
					visitedPages[p] = true
					pp := p
					queue = append(queue, node{page: &pp})
				}
			}
		}
	}
	return false
}
