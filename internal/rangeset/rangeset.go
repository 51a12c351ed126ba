// Package rangeset maintains sorted sets of non-overlapping byte
// ranges. The fix composer uses one per file to decide, in
// first-wins order, whether a candidate edit collides with an edit
// already accepted.
package rangeset

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Range is a single continuous interval [Start, End): Start included,
// End excluded.
type Range struct {
	Start int
	End   int
}

// Set holds sorted, non-overlapping ranges.
type Set struct {
	ranges []Range
}

// New creates an empty Set.
func New() *Set { return &Set{} }

// Add incorporates [start, end) into the set, merging any existing
// ranges it overlaps or abuts.
func (s *Set) Add(start, end int) {
	if start >= end {
		return
	}
	nr := Range{Start: start, End: end}
	ranges := s.ranges

	// First range that might merge: the first r with r.End >= start.
	i := sort.Search(len(ranges), func(k int) bool {
		return ranges[k].End >= nr.Start
	})
	// First range strictly after the new one.
	j := sort.Search(len(ranges), func(k int) bool {
		return ranges[k].Start > nr.End
	})

	if i < j {
		if ranges[i].Start < nr.Start {
			nr.Start = ranges[i].Start
		}
		if ranges[j-1].End > nr.End {
			nr.End = ranges[j-1].End
		}
	}
	s.ranges = slices.Replace(ranges, i, j, nr)
}

// Overlaps reports whether [start, end) intersects any range in the
// set. Abutting ranges do not overlap.
func (s *Set) Overlaps(start, end int) bool {
	if start >= end {
		return false
	}
	i := sort.Search(len(s.ranges), func(k int) bool {
		return s.ranges[k].End > start
	})
	return i < len(s.ranges) && s.ranges[i].Start < end
}

// Contains reports whether offset falls inside a range.
func (s *Set) Contains(offset int) bool {
	i := sort.Search(len(s.ranges), func(k int) bool {
		return s.ranges[k].End > offset
	})
	return i < len(s.ranges) && s.ranges[i].Start <= offset
}

// Ranges returns the ranges in ascending order. Callers must not
// mutate the result.
func (s *Set) Ranges() []Range { return s.ranges }

// Len returns the number of disjoint ranges.
func (s *Set) Len() int { return len(s.ranges) }

func (s *Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, r := range s.ranges {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "[%d,%d)", r.Start, r.End)
	}
	b.WriteByte('}')
	return b.String()
}
