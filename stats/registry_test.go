package stats

import (
	"path/filepath"
	"testing"

	"txcore/storage"
)

func TestRegistryComputeIfAbsentCaches(t *testing.T) {
	bp := storage.NewBufferPool(8)
	path := filepath.Join(t.TempDir(), "t.dat")
	hf, err := storage.NewHeapFile("t", path, testTableDesc(), bp)
	if err != nil {
		t.Fatal(err)
	}

	tid := storage.NewTransactionID()
	bp.BeginTransaction(tid)
	tup := &storage.Tuple{Desc: testTableDesc(), Fields: []storage.DBValue{
		storage.IntField{Value: 1}, storage.StringField{Value: "x"},
	}}
	if err := bp.InsertTuple(tid, "t", tup); err != nil {
		t.Fatal(err)
	}
	if err := bp.TransactionComplete(tid, true); err != nil {
		t.Fatal(err)
	}

	reg := NewRegistry(bp, DefaultIOCostPerPage)
	first, err := reg.ComputeIfAbsent("t", hf)
	if err != nil {
		t.Fatal(err)
	}

	// Insert another row without invalidating the cache; ComputeIfAbsent
	// must return the original stats unchanged.
	tid2 := storage.NewTransactionID()
	bp.BeginTransaction(tid2)
	tup2 := &storage.Tuple{Desc: testTableDesc(), Fields: []storage.DBValue{
		storage.IntField{Value: 2}, storage.StringField{Value: "y"},
	}}
	if err := bp.InsertTuple(tid2, "t", tup2); err != nil {
		t.Fatal(err)
	}
	if err := bp.TransactionComplete(tid2, true); err != nil {
		t.Fatal(err)
	}

	second, err := reg.ComputeIfAbsent("t", hf)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("ComputeIfAbsent should return the cached *TableStats instance on a repeat call")
	}
	if second.numTuples != 1 {
		t.Errorf("cached stats should still reflect only the first scan (1 tuple), got %d", second.numTuples)
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry(nil, DefaultIOCostPerPage)
	if _, ok := reg.Get("nonexistent"); ok {
		t.Error("Get on a table never computed should report absent")
	}
}

func TestRegistryStartPeriodicRefreshRejectsDouble(t *testing.T) {
	reg := NewRegistry(nil, DefaultIOCostPerPage)
	if err := reg.StartPeriodicRefresh("@every 1h"); err != nil {
		t.Fatalf("first StartPeriodicRefresh: %v", err)
	}
	defer reg.Stop()

	if err := reg.StartPeriodicRefresh("@every 1h"); err != ErrRefreshAlreadyRunning {
		t.Errorf("second StartPeriodicRefresh should fail with ErrRefreshAlreadyRunning, got %v", err)
	}
}
