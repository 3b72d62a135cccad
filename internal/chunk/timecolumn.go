// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package chunk

import (
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
)

// defaultAllocator is the Arrow memory allocator used throughout this
// package. Arrow arrays are reference-counted; shallow operations share the
// underlying buffers, deep operations reallocate through this allocator.
var defaultAllocator = memory.NewGoAllocator()

// TimeColumn is one Timeline's packed i64 values for a Chunk: N values, a
// cached sortedness flag, and a cached [min, max] range.
type TimeColumn struct {
	timeline Timeline
	values   *array.Int64
	sorted   bool
	hasRange bool
	min, max int64
}

// NewTimeColumn builds a TimeColumn from a slice of i64 time values.
// sortedHint, when non-nil, is trusted as-is; otherwise sortedness is
// computed by scanning the values (always true when len(values) < 2).
func NewTimeColumn(tl Timeline, values []int64, sortedHint *bool) TimeColumn {
	b := array.NewInt64Builder(defaultAllocator)
	defer b.Release()
	b.AppendValues(values, nil)
	arr := b.NewInt64Array()

	var sorted bool
	if sortedHint != nil {
		sorted = *sortedHint
	} else {
		sorted = len(values) < 2 || isSortedInt64(values)
	}

	tc := TimeColumn{timeline: tl, values: arr, sorted: sorted}
	tc.recomputeRange()
	return tc
}

func isSortedInt64(vs []int64) bool {
	for i := 1; i < len(vs); i++ {
		if vs[i] < vs[i-1] {
			return false
		}
	}
	return true
}

func (tc *TimeColumn) recomputeRange() {
	n := tc.values.Len()
	if n == 0 {
		tc.hasRange = false
		return
	}
	min, max := tc.values.Value(0), tc.values.Value(0)
	for i := 1; i < n; i++ {
		v := tc.values.Value(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	tc.min, tc.max = min, max
	tc.hasRange = true
}

// Timeline returns the Timeline this column is indexed by.
func (tc TimeColumn) Timeline() Timeline { return tc.timeline }

// Len returns the number of time values, N.
func (tc TimeColumn) Len() int { return tc.values.Len() }

// IsSorted reports whether consecutive values are non-decreasing.
func (tc TimeColumn) IsSorted() bool { return tc.sorted }

// Value returns the i64 time at row i.
func (tc TimeColumn) Value(i int) int64 { return tc.values.Value(i) }

// Values materializes the column as a plain []int64. Prefer Value(i) on hot
// paths to avoid the allocation.
func (tc TimeColumn) Values() []int64 {
	out := make([]int64, tc.Len())
	for i := range out {
		out[i] = tc.values.Value(i)
	}
	return out
}

// Range returns the cached [min, max] and whether it is defined (false for
// an empty column).
func (tc TimeColumn) Range() (min, max int64, ok bool) {
	return tc.min, tc.max, tc.hasRange
}

// Arrow exposes the underlying Arrow array, e.g. for transport encoders.
func (tc TimeColumn) Arrow() *array.Int64 { return tc.values }

// HeapSizeBytes estimates the column's buffer footprint.
func (tc TimeColumn) HeapSizeBytes() int64 {
	var total int64
	for _, buf := range tc.values.Data().Buffers() {
		if buf != nil {
			total += int64(buf.Len())
		}
	}
	return total
}

// Emptied yields a zero-row, sorted TimeColumn over the same Timeline.
func (tc TimeColumn) Emptied() TimeColumn {
	return NewTimeColumn(tc.timeline, nil, boolPtr(true))
}

// slicedShallow returns an O(1) view over rows [i, i+n): the result's
// Arrow array shares the same underlying buffer as tc via a zero-copy
// array.NewSlice, so the whole original allocation is kept alive for as
// long as the view exists and HeapSizeBytes() on the result reports the
// full original buffer size rather than just the n retained values.
// Sortedness is inherited for free when tc is already known sorted (a
// contiguous range of a sorted column is sorted too); otherwise it's
// recomputed by scanning the retained range, same as the deep path.
func (tc TimeColumn) slicedShallow(i, n int) TimeColumn {
	sub, _ := array.NewSlice(tc.values, int64(i), int64(i+n)).(*array.Int64)
	sorted := tc.sorted
	if !sorted {
		sorted = n < 2 || isSortedInt64(sub.Int64Values())
	}
	out := TimeColumn{timeline: tc.timeline, values: sub, sorted: sorted}
	out.recomputeRange()
	return out
}

// slicedDeep returns a real, independently-allocated copy of rows
// [i, i+n): the retained values are copied into a freshly-built Arrow
// array, so no reference to tc's original buffer survives and
// HeapSizeBytes() on the result is exact. Suitable for long-term storage
// where buffer compaction matters more than avoiding the copy.
func (tc TimeColumn) slicedDeep(i, n int) TimeColumn {
	vals := tc.values.Int64Values()[i : i+n]
	sorted := tc.sorted
	if !sorted {
		sorted = n < 2 || isSortedInt64(vals)
	}
	return NewTimeColumn(tc.timeline, vals, boolPtr(sorted))
}

// taken gathers rows by index, in the given order; sortedness is always
// recomputed since gathers can reorder arbitrarily.
func (tc TimeColumn) taken(indices []int) TimeColumn {
	vals := make([]int64, len(indices))
	for i, idx := range indices {
		vals[i] = tc.values.Value(idx)
	}
	return NewTimeColumn(tc.timeline, vals, nil)
}

func boolPtr(b bool) *bool { return &b }

// pendingTimeColumn accumulates time values for one Timeline during chunk
// assembly, tracking sortedness incrementally instead of rescanning.
type pendingTimeColumn struct {
	timeline Timeline
	values   []int64
	sorted   bool
}

func newPendingTimeColumn(tl Timeline) *pendingTimeColumn {
	return &pendingTimeColumn{timeline: tl, sorted: true}
}

func (p *pendingTimeColumn) push(v int64) {
	if len(p.values) > 0 && v < p.values[len(p.values)-1] {
		p.sorted = false
	}
	p.values = append(p.values, v)
}

func (p *pendingTimeColumn) finish() TimeColumn {
	return NewTimeColumn(p.timeline, p.values, boolPtr(p.sorted))
}

func (p *pendingTimeColumn) len() int { return len(p.values) }
