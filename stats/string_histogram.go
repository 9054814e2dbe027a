package stats

import "hash/fnv"

// stringHistogramDomain bounds the integer range a StringHistogram hashes
// into. Large enough to keep collisions rare for the cardinalities this
// engine's histograms are sized for, small enough that the underlying
// IntHistogram's bucket math stays cheap.
const stringHistogramDomain = 1 << 20

// StringHistogram hashes each string to a bounded integer with FNV-1a
// and delegates entirely to an IntHistogram over [0, stringHistogramDomain).
// Its behavior is identical to IntHistogram's up to that hashing step —
// same buckets, same binary search, same six selectivity formulas —
// rather than an approximate frequency sketch.
type StringHistogram struct {
	inner *IntHistogram
}

// NewStringHistogram constructs a string histogram with the given
// bucket count over the fixed hashed domain.
func NewStringHistogram(buckets int) *StringHistogram {
	return &StringHistogram{inner: NewIntHistogram(buckets, 0, stringHistogramDomain-1)}
}

func hashString(s string) int64 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int64(h.Sum32() % stringHistogramDomain)
}

// AddValue records one occurrence of s.
func (h *StringHistogram) AddValue(s string) {
	h.inner.AddValue(hashString(s))
}

// EstimateSelectivity estimates the selectivity of `field op s` by
// hashing s and delegating to the wrapped IntHistogram. Equality and
// inequality are estimated from the count of the bucket the hash falls
// in, spread evenly over that bucket's width; ordered comparisons (<, <=, >,
// >=) are only as meaningful as the hash's order-preservation, which
// FNV does not guarantee — callers needing ordered string selectivity
// should not rely on this beyond equality/inequality.
func (h *StringHistogram) EstimateSelectivity(op CompOp, s string) float64 {
	return h.inner.EstimateSelectivity(op, hashString(s))
}
