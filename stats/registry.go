package stats

import (
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"txcore/storage"
)

// Registry is the process-wide table-name -> TableStats singleton the
// spec calls for: a mutable map, lifecycle init-on-first-compute.
type Registry struct {
	mu     sync.RWMutex
	stats  map[string]*TableStats
	bp     *storage.BufferPool
	files  map[string]*storage.HeapFile
	cron   *cron.Cron
	ioCost float64
}

// global is the process-wide registry returned by Global.
var global = NewRegistry(nil, DefaultIOCostPerPage)

// Global returns the process-wide stats registry.
func Global() *Registry { return global }

// NewRegistry constructs a registry over bp. A nil bp is only valid for
// tests that never call Refresh/ComputeIfAbsent against a live pool.
func NewRegistry(bp *storage.BufferPool, ioCostPerPage float64) *Registry {
	return &Registry{
		stats:  make(map[string]*TableStats),
		files:  make(map[string]*storage.HeapFile),
		bp:     bp,
		ioCost: ioCostPerPage,
	}
}

// Get returns the cached stats for tableID, if any have been computed.
func (r *Registry) Get(tableID string) (*TableStats, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stats[tableID]
	return s, ok
}

// ComputeIfAbsent computes and caches tableID's stats on first call;
// subsequent calls return the cached value without rescanning.
func (r *Registry) ComputeIfAbsent(tableID string, hf *storage.HeapFile) (*TableStats, error) {
	r.mu.RLock()
	if s, ok := r.stats[tableID]; ok {
		r.mu.RUnlock()
		return s, nil
	}
	r.mu.RUnlock()

	s, err := ComputeTableStats(r.bp, hf, r.ioCost)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.stats[tableID] = s
	r.files[tableID] = hf
	r.mu.Unlock()
	return s, nil
}

// Refresh recomputes stats for every table the registry has previously
// computed stats for.
func (r *Registry) Refresh() {
	r.mu.RLock()
	targets := make(map[string]*storage.HeapFile, len(r.files))
	for name, hf := range r.files {
		targets[name] = hf
	}
	r.mu.RUnlock()

	for name, hf := range targets {
		s, err := ComputeTableStats(r.bp, hf, r.ioCost)
		if err != nil {
			log.Printf("stats: refresh of %s failed: %v", name, err)
			continue
		}
		r.mu.Lock()
		r.stats[name] = s
		r.mu.Unlock()
	}
}

// StartPeriodicRefresh begins recomputing every registered table's
// statistics on the given cron schedule (standard 5-field cron syntax).
// Call Stop to halt it.
func (r *Registry) StartPeriodicRefresh(schedule string) error {
	r.mu.Lock()
	if r.cron != nil {
		r.mu.Unlock()
		return ErrRefreshAlreadyRunning
	}
	c := cron.New()
	r.cron = c
	r.mu.Unlock()

	if _, err := c.AddFunc(schedule, r.Refresh); err != nil {
		r.mu.Lock()
		r.cron = nil
		r.mu.Unlock()
		return err
	}
	c.Start()
	return nil
}

// Stop halts the periodic refresh job, if one is running.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		r.cron.Stop()
		r.cron = nil
	}
}

// ErrRefreshAlreadyRunning is returned by StartPeriodicRefresh when a
// schedule is already active on this registry.
var ErrRefreshAlreadyRunning error = storage.StorageError{
	Code: storage.PreconditionViolation,
	Msg:  "periodic refresh already running",
}
