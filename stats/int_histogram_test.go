package stats

import (
	"math"
	"testing"
)

func TestIntHistogramEqualitySelectivity(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	// Bucket containing 42 spans [41,50]: 10 recorded values, width 10.
	got := h.EstimateSelectivity(Equals, 42)
	want := 10.0 / 10.0 / 100.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("sel(=, 42) = %v, want %v", got, want)
	}
}

func TestIntHistogramGreaterThanApproximatesUniform(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	got := h.EstimateSelectivity(GreaterThan, 50)
	if math.Abs(got-0.50) > 0.01 {
		t.Errorf("sel(>, 50) = %v, want ~0.50 +/- 0.01", got)
	}
}

func TestIntHistogramEqualitySumsToOne(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	sum := 0.0
	for v := int64(1); v <= 100; v++ {
		sum += h.EstimateSelectivity(Equals, v)
	}
	if math.Abs(sum-1.0) > 0.05 {
		t.Errorf("sum of sel(=, v) over the domain = %v, want ~1", sum)
	}
}

func TestIntHistogramOutOfRange(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	if got := h.EstimateSelectivity(Equals, 0); got != 0 {
		t.Errorf("sel(=, 0) for an out-of-range value = %v, want 0", got)
	}
	if got := h.EstimateSelectivity(NotEquals, 0); got != 1 {
		t.Errorf("sel(!=, 0) for an out-of-range value = %v, want 1", got)
	}
	if got := h.EstimateSelectivity(GreaterThan, 0); got != 1 {
		t.Errorf("sel(>, 0) below min = %v, want 1", got)
	}
	if got := h.EstimateSelectivity(LessThan, 200); got != 1 {
		t.Errorf("sel(<, 200) above max = %v, want 1", got)
	}
}

func TestIntHistogramGreaterOrEqualIncludesBoundary(t *testing.T) {
	h := NewIntHistogram(10, 1, 100)
	for v := int64(1); v <= 100; v++ {
		h.AddValue(v)
	}

	gt := h.EstimateSelectivity(GreaterThan, 50)
	gte := h.EstimateSelectivity(GreaterThanOrEqual, 50)
	if gte <= gt {
		t.Errorf(">= at a boundary value should exceed strict >: gte=%v gt=%v", gte, gt)
	}
}

func TestIntHistogramUnevenBucketWidths(t *testing.T) {
	// span=13, buckets=5: widths should be 3,3,3,2,2 (13 = 5*2+3).
	h := NewIntHistogram(5, 1, 13)
	if len(h.buckets) != 5 {
		t.Fatalf("expected 5 buckets, got %d", len(h.buckets))
	}
	wantWidths := []int64{3, 3, 3, 2, 2}
	for i, w := range wantWidths {
		if h.buckets[i].width != w {
			t.Errorf("bucket %d width = %d, want %d", i, h.buckets[i].width, w)
		}
	}
}
