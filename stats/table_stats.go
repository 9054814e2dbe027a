package stats

import (
	"txcore/storage"
)

// NumHistBins is the default bucket count for both integer and string
// histograms built by ComputeTableStats.
const NumHistBins = 100

// DefaultIOCostPerPage is the assumed cost, in arbitrary units, of
// reading one page from disk, used by EstimateScanCost absent an
// explicit override.
const DefaultIOCostPerPage = 1000.0

// Stats is the interface query-level callers (out of this package's
// scope) depend on, rather than the concrete TableStats type.
type Stats interface {
	EstimateScanCost() float64
	EstimateTableCardinality(selectivity float64) int
	EstimateSelectivity(field string, op CompOp, value storage.DBValue) float64
}

// TableStats holds per-field histograms for one heap file, built by
// scanning it twice: once to learn each integer field's min/max, once
// to populate the histograms.
type TableStats struct {
	numPages      int
	numTuples     int
	ioCostPerPage float64
	fieldIndex    map[string]int
	intHists      map[string]*IntHistogram
	strHists      map[string]*StringHistogram
}

type minMax struct {
	min, max int64
	set      bool
}

// ComputeTableStats scans hf twice under its own short-lived
// transactions (so a failure midway never wedges the caller's
// transaction) and returns the resulting TableStats.
func ComputeTableStats(bp *storage.BufferPool, hf *storage.HeapFile, ioCostPerPage float64) (*TableStats, error) {
	desc := hf.Descriptor()
	fieldIndex := make(map[string]int, len(desc.Fields))
	minMaxes := make(map[string]*minMax, len(desc.Fields))
	for i, f := range desc.Fields {
		fieldIndex[f.Fname] = i
		if f.Ftype == storage.IntType {
			minMaxes[f.Fname] = &minMax{}
		}
	}

	numTuples := 0
	if err := scanHeapFile(bp, hf, func(t *storage.Tuple) error {
		numTuples++
		for _, f := range desc.Fields {
			if f.Ftype != storage.IntType {
				continue
			}
			v := t.Fields[fieldIndex[f.Fname]].(storage.IntField).Value
			mm := minMaxes[f.Fname]
			if !mm.set {
				mm.min, mm.max, mm.set = v, v, true
			} else {
				if v < mm.min {
					mm.min = v
				}
				if v > mm.max {
					mm.max = v
				}
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	intHists := make(map[string]*IntHistogram, len(minMaxes))
	for name, mm := range minMaxes {
		lo, hi := mm.min, mm.max
		if !mm.set {
			lo, hi = 0, 0
		}
		intHists[name] = NewIntHistogram(NumHistBins, lo, hi)
	}
	strHists := make(map[string]*StringHistogram)
	for _, f := range desc.Fields {
		if f.Ftype == storage.StringType {
			strHists[f.Fname] = NewStringHistogram(NumHistBins)
		}
	}

	if err := scanHeapFile(bp, hf, func(t *storage.Tuple) error {
		for _, f := range desc.Fields {
			idx := fieldIndex[f.Fname]
			switch f.Ftype {
			case storage.IntType:
				intHists[f.Fname].AddValue(t.Fields[idx].(storage.IntField).Value)
			case storage.StringType:
				strHists[f.Fname].AddValue(t.Fields[idx].(storage.StringField).Value)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if ioCostPerPage <= 0 {
		ioCostPerPage = DefaultIOCostPerPage
	}
	return &TableStats{
		numPages:      hf.NumPages(),
		numTuples:     numTuples,
		ioCostPerPage: ioCostPerPage,
		fieldIndex:    fieldIndex,
		intHists:      intHists,
		strHists:      strHists,
	}, nil
}

// scanHeapFile runs fn over every tuple of hf inside its own
// begin/commit transaction bracket.
func scanHeapFile(bp *storage.BufferPool, hf *storage.HeapFile, fn func(*storage.Tuple) error) error {
	tid := storage.NewTransactionID()
	if err := bp.BeginTransaction(tid); err != nil {
		return err
	}
	it := hf.Iterator(tid)
	for {
		t, err := it.Next()
		if err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
		if t == nil {
			break
		}
		if err := fn(t); err != nil {
			bp.TransactionComplete(tid, false)
			return err
		}
	}
	return bp.TransactionComplete(tid, true)
}

// EstimateScanCost is numPages * ioCostPerPage.
func (s *TableStats) EstimateScanCost() float64 {
	return float64(s.numPages) * s.ioCostPerPage
}

// EstimateTableCardinality is floor(numTuples * selectivity).
func (s *TableStats) EstimateTableCardinality(selectivity float64) int {
	return int(float64(s.numTuples) * selectivity)
}

// EstimateSelectivity dispatches to the named field's int or string
// histogram.
func (s *TableStats) EstimateSelectivity(field string, op CompOp, value storage.DBValue) float64 {
	switch v := value.(type) {
	case storage.IntField:
		if h, ok := s.intHists[field]; ok {
			return h.EstimateSelectivity(op, v.Value)
		}
	case storage.StringField:
		if h, ok := s.strHists[field]; ok {
			return h.EstimateSelectivity(op, v.Value)
		}
	}
	return 0
}
