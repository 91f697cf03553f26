package stability_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/contacts"
	"github.com/iptsd-go/iptsd/contacts/stability"
)

func contact(index int, x, y float64) contacts.Contact {
	return contacts.Contact{Index: &index, MeanX: x, MeanY: y, Major: 0.1, Minor: 0.05}
}

func TestStabilizerPositionDeadBand(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		PositionThreshold: &stability.Threshold{Min: 0.01, Max: 0.5},
	})

	a := []contacts.Contact{contact(0, 0.5, 0.5)}
	s.Stabilize(a)

	// Moves less than the dead-band: position snaps back exactly.
	b := []contacts.Contact{contact(0, 0.505, 0.5)}
	s.Stabilize(b)

	require.Equal(t, 0.5, b[0].MeanX)
	require.Equal(t, 0.5, b[0].MeanY)
	require.True(t, *b[0].Stable)
}

func TestStabilizerPositionPassThrough(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		PositionThreshold: &stability.Threshold{Min: 0.01, Max: 0.5},
	})

	s.Stabilize([]contacts.Contact{contact(0, 0.5, 0.5)})

	b := []contacts.Contact{contact(0, 0.6, 0.5)}
	s.Stabilize(b)

	require.Equal(t, 0.6, b[0].MeanX)
	require.True(t, *b[0].Stable)
}

func TestStabilizerPositionTooFastIsUnstable(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		PositionThreshold: &stability.Threshold{Min: 0.01, Max: 0.2},
	})

	s.Stabilize([]contacts.Contact{contact(0, 0.1, 0.1)})

	b := []contacts.Contact{contact(0, 0.9, 0.9)}
	s.Stabilize(b)

	require.False(t, *b[0].Stable)
}

func TestStabilizerSizeDeadBand(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		SizeThreshold: &stability.Threshold{Min: 0.02, Max: 0.3},
	})

	a := []contacts.Contact{contact(0, 0.5, 0.5)}
	s.Stabilize(a)

	b := []contacts.Contact{contact(0, 0.5, 0.5)}
	b[0].Major = 0.11
	b[0].Minor = 0.04
	s.Stabilize(b)

	require.Equal(t, 0.1, b[0].Major)
	require.Equal(t, 0.05, b[0].Minor)
}

func TestStabilizerOrientationShortestArc(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		OrientationThreshold: &stability.Threshold{Min: 0.1, Max: 2.0},
	})

	a := []contacts.Contact{contact(0, 0.5, 0.5)}
	a[0].Orientation = 0.02
	s.Stabilize(a)

	// Just below pi is a tiny shortest-arc step from just above zero:
	// the orientation snaps back to the previous value.
	b := []contacts.Contact{contact(0, 0.5, 0.5)}
	b[0].Orientation = math.Pi - 0.02
	s.Stabilize(b)

	require.Equal(t, 0.02, b[0].Orientation)
}

func TestStabilizerRoundOrientationForcedToZero(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		OrientationThreshold: &stability.Threshold{Min: 0.1, Max: 2.0},
	})

	s.Stabilize([]contacts.Contact{contact(0, 0.5, 0.5)})

	b := []contacts.Contact{contact(0, 0.5, 0.5)}
	b[0].Major = 0.1
	b[0].Minor = 0.099 // aspect < 1.1
	b[0].Orientation = 1.0
	s.Stabilize(b)

	require.Equal(t, 0.0, b[0].Orientation)
}

func TestStabilizerUntrackedContactUntouched(t *testing.T) {
	s := stability.NewStabilizer(stability.StabilizerConfig{
		PositionThreshold: &stability.Threshold{Min: 0.01, Max: 0.5},
	})

	frame := []contacts.Contact{{MeanX: 0.5, MeanY: 0.5}}
	s.Stabilize(frame)

	require.Nil(t, frame[0].Stable)
}

func TestCheckerMarksFastMovementUnstable(t *testing.T) {
	c := stability.NewChecker(stability.CheckerConfig{
		TemporalWindow: 2,
		MovementLimits: &stability.Threshold{Min: 0.01, Max: 0.2},
	})

	a := []contacts.Contact{contact(0, 0.1, 0.1)}
	c.Check(a)
	require.True(t, *a[0].Stable, "first sighting has no history to contradict it")

	b := []contacts.Contact{contact(0, 0.8, 0.8)}
	c.Check(b)
	require.False(t, *b[0].Stable)
}

func TestCheckerTemporalWindowRequiresHistory(t *testing.T) {
	c := stability.NewChecker(stability.CheckerConfig{
		TemporalWindow:         3,
		CheckTemporalStability: true,
		MovementLimits:         &stability.Threshold{Min: 0.01, Max: 0.2},
	})

	a := []contacts.Contact{contact(0, 0.1, 0.1)}
	c.Check(a)
	require.False(t, *a[0].Stable, "contact missing from older frames is unstable")

	b := []contacts.Contact{contact(0, 0.11, 0.1)}
	c.Check(b)
	require.False(t, *b[0].Stable)

	d := []contacts.Contact{contact(0, 0.12, 0.1)}
	c.Check(d)
	require.True(t, *d[0].Stable, "present through the whole window now")
}

func TestCheckerDistanceToInvalid(t *testing.T) {
	thresh := 0.1
	c := stability.NewChecker(stability.CheckerConfig{
		TemporalWindow:    2,
		DistanceThreshold: &thresh,
	})

	invalid := false

	palm := contact(1, 0.52, 0.5)
	palm.Valid = &invalid

	near := contact(0, 0.5, 0.5)
	far := contact(2, 0.95, 0.95)

	frame := []contacts.Contact{near, palm, far}
	c.Check(frame)

	require.False(t, *frame[0].Stable, "contact touching an invalid contact is unstable")
	require.True(t, *frame[2].Stable)
}

func TestCheckerUntrackedContactIsStable(t *testing.T) {
	c := stability.NewChecker(stability.CheckerConfig{
		TemporalWindow: 2,
		MovementLimits: &stability.Threshold{Min: 0.01, Max: 0.2},
	})

	frame := []contacts.Contact{{MeanX: 0.5, MeanY: 0.5}}
	c.Check(frame)

	require.True(t, *frame[0].Stable)
}
