package lostsegment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/lostsegment"
)

func TestTrackerAddCoalescesAdjacentAndOverlapping(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(10, 20)
	tr.Add(20, 30) // adjacent
	tr.Add(5, 8)   // disjoint, before
	tr.Add(25, 35) // overlaps [20,30)

	got := tr.Ranges()
	require.Equal(t, []lostsegment.Range{
		{Start: 5, End: 8},
		{Start: 10, End: 35},
	}, got)
}

func TestTrackerRangesSortedAndDisjointAfterCoalesce(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(50, 60)
	tr.Add(0, 10)
	tr.Add(20, 30)

	got := tr.Ranges()
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1].End, got[i].Start, "ranges must be strictly sorted and non-adjacent")
	}
}

func TestTrackerRemoveExactSubsetReturnsTrue(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(0, 100)

	removed, err := tr.Remove(10, 20)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, []lostsegment.Range{
		{Start: 0, End: 10},
		{Start: 20, End: 100},
	}, tr.Ranges())
}

func TestTrackerRemoveFullRangeClearsIt(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(0, 100)

	removed, err := tr.Remove(0, 100)
	require.NoError(t, err)
	require.True(t, removed)
	require.True(t, tr.IsComplete())
}

func TestTrackerRemoveDisjointIsNoOpReturningFalse(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(50, 60)

	removed, err := tr.Remove(0, 10)
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, []lostsegment.Range{{Start: 50, End: 60}}, tr.Ranges())
}

func TestTrackerRemovePartialOverlapErrors(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(10, 20)

	// sticks out on the left edge
	removed, err := tr.Remove(5, 15)
	require.ErrorIs(t, err, lostsegment.ErrPartialOverlap)
	require.False(t, removed)
	// tracker must be unmodified
	require.Equal(t, []lostsegment.Range{{Start: 10, End: 20}}, tr.Ranges())

	// sticks out on the right edge
	removed, err = tr.Remove(15, 25)
	require.ErrorIs(t, err, lostsegment.ErrPartialOverlap)
	require.False(t, removed)
	require.Equal(t, []lostsegment.Range{{Start: 10, End: 20}}, tr.Ranges())
}

func TestTrackerRemoveSplitsInteriorGap(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(0, 100)

	removed, err := tr.Remove(40, 60)
	require.NoError(t, err)
	require.True(t, removed)
	require.Equal(t, []lostsegment.Range{
		{Start: 0, End: 40},
		{Start: 60, End: 100},
	}, tr.Ranges())
}

func TestTrackerIsCompleteOnEmptyTracker(t *testing.T) {
	tr := lostsegment.NewTracker()
	require.True(t, tr.IsComplete())
	tr.Add(1, 2)
	require.False(t, tr.IsComplete())
}

func TestTrackerAddIgnoresEmptyOrInvertedRange(t *testing.T) {
	tr := lostsegment.NewTracker()
	tr.Add(10, 10)
	tr.Add(20, 15)
	require.True(t, tr.IsComplete())
}
