// Package lostsegment tracks the byte ranges of a file a destination
// handler has not yet received, so it can build NAK PDUs and
// recognize when a transfer is complete. Ranges are half-open
// [Start, End) intervals, kept sorted and coalesced so adjacent or
// overlapping gaps never fragment unnecessarily.
package lostsegment

import (
	"errors"
	"sort"
)

// ErrPartialOverlap is returned by Remove when the filled range only
// partially overlaps a tracked gap. CFDP file data segments are
// expected to align with outstanding gaps; a partial overlap signals
// a segment that double-delivers part of a range already filled,
// which this tracker treats as an error rather than silently
// widening or splitting the gap.
var ErrPartialOverlap = errors.New("lostsegment: segment partially overlaps a tracked range without fully covering it")

// Range is a half-open byte interval [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) overlaps(other Range) bool {
	return r.Start < other.End && other.Start < r.End
}

// Tracker maintains the set of byte ranges not yet received for one
// transaction's file.
type Tracker struct {
	ranges []Range
}

// NewTracker returns an empty Tracker. Seed with Add(0, knownSize) if
// the file size is known up front (Class 2, Metadata already
// received); otherwise let Add grow the tracked range as data arrives
// out of order ahead of the true end of file.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records [start, end) as not yet received, merging with any
// adjacent or overlapping tracked ranges.
func (t *Tracker) Add(start, end uint64) {
	if start >= end {
		return
	}
	t.ranges = append(t.ranges, Range{Start: start, End: end})
	t.normalize()
}

// Remove marks [start, end) as received. It reports true iff
// [start, end) was a subset of some tracked range, which it then
// clips or splits into up to two remainders; a fill disjoint from
// every tracked range is a no-op returning false. A fill that
// overlaps a tracked range but sticks out past either of its edges
// returns ErrPartialOverlap without modifying the tracker.
func (t *Tracker) Remove(start, end uint64) (bool, error) {
	if start >= end {
		return false, nil
	}
	fill := Range{Start: start, End: end}

	covered := false
	for _, r := range t.ranges {
		if !r.overlaps(fill) {
			continue
		}
		isSubset := fill.Start >= r.Start && fill.End <= r.End
		if !isSubset {
			// fill sticks out past r on one or both edges: it is not
			// contained in the range it overlaps.
			return false, ErrPartialOverlap
		}
		covered = true
	}
	if !covered {
		return false, nil
	}

	var next []Range
	for _, r := range t.ranges {
		if !r.overlaps(fill) {
			next = append(next, r)
			continue
		}
		if fill.Start > r.Start {
			next = append(next, Range{Start: r.Start, End: fill.Start})
		}
		if fill.End < r.End {
			next = append(next, Range{Start: fill.End, End: r.End})
		}
	}
	t.ranges = next
	t.normalize()
	return true, nil
}

// Ranges returns the currently tracked gaps, sorted and coalesced.
func (t *Tracker) Ranges() []Range {
	out := make([]Range, len(t.ranges))
	copy(out, t.ranges)
	return out
}

// IsComplete reports whether there are no remaining tracked gaps.
func (t *Tracker) IsComplete() bool {
	return len(t.ranges) == 0
}

func (t *Tracker) normalize() {
	if len(t.ranges) == 0 {
		return
	}
	sort.Slice(t.ranges, func(i, j int) bool { return t.ranges[i].Start < t.ranges[j].Start })

	merged := t.ranges[:1]
	for _, r := range t.ranges[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	t.ranges = merged
}
