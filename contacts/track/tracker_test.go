package track_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/contacts"
	"github.com/iptsd-go/iptsd/contacts/track"
)

func frameAt(positions ...[2]float64) []contacts.Contact {
	frame := make([]contacts.Contact, len(positions))
	for i, p := range positions {
		frame[i].MeanX = p[0]
		frame[i].MeanY = p[1]
	}
	return frame
}

func indices(frame []contacts.Contact) []int {
	out := make([]int, len(frame))
	for i := range frame {
		out[i] = frame[i].TrackingIndex()
	}
	return out
}

func TestFirstFrameGetsFreshIndices(t *testing.T) {
	tr := track.NewTracker()

	frame := frameAt([2]float64{0.2, 0.2}, [2]float64{0.8, 0.8})
	tr.Track(frame)

	require.Equal(t, []int{0, 1}, indices(frame))
}

func TestIndicesFollowNearestNeighbor(t *testing.T) {
	tr := track.NewTracker()

	a := frameAt([2]float64{0.2, 0.2}, [2]float64{0.8, 0.8})
	tr.Track(a)

	b := frameAt([2]float64{0.25, 0.2}, [2]float64{0.75, 0.8})
	tr.Track(b)

	require.Equal(t, 0, b[0].TrackingIndex(), "contact near (0.25, 0.2) keeps index 0")
	require.Equal(t, 1, b[1].TrackingIndex(), "contact near (0.75, 0.8) keeps index 1")
}

func TestIdenticalFrameKeepsIndices(t *testing.T) {
	tr := track.NewTracker()

	a := frameAt([2]float64{0.1, 0.1}, [2]float64{0.5, 0.5}, [2]float64{0.9, 0.9})
	tr.Track(a)
	want := indices(a)

	b := frameAt([2]float64{0.1, 0.1}, [2]float64{0.5, 0.5}, [2]float64{0.9, 0.9})
	tr.Track(b)

	require.Equal(t, want, indices(b))
}

func TestIndicesPairwiseDistinct(t *testing.T) {
	tr := track.NewTracker()

	tr.Track(frameAt([2]float64{0.2, 0.2}, [2]float64{0.8, 0.8}))

	// More contacts than before: two matched, one fresh.
	b := frameAt([2]float64{0.21, 0.2}, [2]float64{0.79, 0.8}, [2]float64{0.5, 0.5})
	tr.Track(b)

	seen := make(map[int]bool)
	for _, idx := range indices(b) {
		require.False(t, seen[idx], "index %d assigned twice", idx)
		seen[idx] = true
	}
}

func TestLiftedContactFreesIndexLater(t *testing.T) {
	tr := track.NewTracker()

	tr.Track(frameAt([2]float64{0.2, 0.2}, [2]float64{0.8, 0.8}))

	// Contact 0 lifts; only contact 1 remains.
	b := frameAt([2]float64{0.8, 0.8})
	tr.Track(b)
	require.Equal(t, []int{1}, indices(b))

	// A new contact appears; the surviving contact keeps its index and
	// the new one gets a fresh index not used by the previous frame.
	c := frameAt([2]float64{0.79, 0.8}, [2]float64{0.3, 0.3})
	tr.Track(c)
	require.Equal(t, 1, c[0].TrackingIndex())
	require.Equal(t, 2, c[1].TrackingIndex())
}

func TestResetForgetsHistory(t *testing.T) {
	tr := track.NewTracker()

	tr.Track(frameAt([2]float64{0.2, 0.2}))
	tr.Reset()

	b := frameAt([2]float64{0.9, 0.9})
	tr.Track(b)
	require.Equal(t, []int{0}, indices(b))
}
