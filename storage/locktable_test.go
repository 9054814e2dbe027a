package storage

import "testing"

func TestLockTableSharedSharedCompatible(t *testing.T) {
	lt := NewLockTable()
	a, b := NewTransactionID(), NewTransactionID()
	pid := PageId{TableID: "t", PageNumber: 0}

	if !lt.acquire(a, pid, Shared) {
		t.Fatal("a should acquire SHARED on an idle page")
	}
	if !lt.acquire(b, pid, Shared) {
		t.Fatal("b should acquire SHARED alongside a's SHARED")
	}
}

func TestLockTableExclusiveExcludesOthers(t *testing.T) {
	lt := NewLockTable()
	a, b := NewTransactionID(), NewTransactionID()
	pid := PageId{TableID: "t", PageNumber: 0}

	if !lt.acquire(a, pid, Exclusive) {
		t.Fatal("a should acquire EXCLUSIVE on an idle page")
	}
	if lt.acquire(b, pid, Shared) {
		t.Error("b must not acquire SHARED while a holds EXCLUSIVE")
	}
	if lt.acquire(b, pid, Exclusive) {
		t.Error("b must not acquire EXCLUSIVE while a holds EXCLUSIVE")
	}
}

func TestLockTableUpgradeSoleReader(t *testing.T) {
	lt := NewLockTable()
	a := NewTransactionID()
	pid := PageId{TableID: "t", PageNumber: 0}

	if !lt.acquire(a, pid, Shared) {
		t.Fatal("a should acquire SHARED")
	}
	if !lt.acquire(a, pid, Exclusive) {
		t.Fatal("sole reader a should be able to upgrade to EXCLUSIVE")
	}
	if lt.byPage[pid][a] != Exclusive {
		t.Errorf("expected a's recorded mode to be EXCLUSIVE after upgrade, got %v", lt.byPage[pid][a])
	}
}

func TestLockTableUpgradeBlockedByOtherReader(t *testing.T) {
	lt := NewLockTable()
	a, b := NewTransactionID(), NewTransactionID()
	pid := PageId{TableID: "t", PageNumber: 0}

	lt.acquire(a, pid, Shared)
	lt.acquire(b, pid, Shared)
	if lt.acquire(a, pid, Exclusive) {
		t.Error("a must not upgrade to EXCLUSIVE while b also holds SHARED")
	}
}

func TestLockTableReleaseAllIsComplete(t *testing.T) {
	lt := NewLockTable()
	a := NewTransactionID()
	p1 := PageId{TableID: "t", PageNumber: 0}
	p2 := PageId{TableID: "t", PageNumber: 1}
	lt.acquire(a, p1, Shared)
	lt.acquire(a, p2, Exclusive)

	released := lt.releaseAll(a)
	if len(released) != 2 {
		t.Fatalf("expected 2 released pages, got %d", len(released))
	}
	if lt.holds(a, p1) || lt.holds(a, p2) {
		t.Error("a should hold nothing after releaseAll")
	}
	if _, ok := lt.byPage[p1]; ok {
		t.Error("byPage entry should be cleaned up once its holder set is empty")
	}
}

func TestLockTableReleaseIdempotent(t *testing.T) {
	lt := NewLockTable()
	a := NewTransactionID()
	pid := PageId{TableID: "t", PageNumber: 0}
	lt.acquire(a, pid, Shared)
	lt.release(a, pid)
	lt.release(a, pid)
	if lt.holds(a, pid) {
		t.Error("lock should be released")
	}
}

func TestWaitForGraphDetectsCycle(t *testing.T) {
	lt := NewLockTable()
	wfg := NewWaitForGraph()
	a, b := NewTransactionID(), NewTransactionID()
	p1 := PageId{TableID: "t", PageNumber: 0}
	p2 := PageId{TableID: "t", PageNumber: 1}

	lt.acquire(a, p1, Exclusive)
	lt.acquire(b, p2, Exclusive)
	// a now waits on p2 (held by b).
	wfg.addPending(a, p2)

	// if b were to also wait on p1 (held by a), that closes A->p2->B->p1->A.
	if !wfg.hasCycleIfAdd(b, p1, lt) {
		t.Error("expected a cycle: b waiting on p1 closes the loop back to a")
	}
}

func TestWaitForGraphNoCycleWithoutLoop(t *testing.T) {
	lt := NewLockTable()
	wfg := NewWaitForGraph()
	a, b, c := NewTransactionID(), NewTransactionID(), NewTransactionID()
	p1 := PageId{TableID: "t", PageNumber: 0}
	p2 := PageId{TableID: "t", PageNumber: 1}

	lt.acquire(a, p1, Exclusive)
	lt.acquire(b, p2, Exclusive)

	if wfg.hasCycleIfAdd(c, p1, lt) {
		t.Error("c waiting on a's page, with nothing waiting on c, should not be a cycle")
	}
}
