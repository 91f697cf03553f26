package stability

import (
	"math"

	"github.com/iptsd-go/iptsd/contacts"
)

// StabilizerConfig controls the per-contact smoothing. Each threshold's
// Min is a dead-band (changes below it are discarded) and Max an
// instability bound (changes above it mark the contact unstable). Nil
// disables the corresponding pass.
type StabilizerConfig struct {
	SizeThreshold        *Threshold
	PositionThreshold    *Threshold
	OrientationThreshold *Threshold
}

// Stabilizer smooths the contacts of each frame against the previous one.
type Stabilizer struct {
	config StabilizerConfig

	// The last frame.
	last []contacts.Contact
}

// NewStabilizer builds a Stabilizer with the given config.
func NewStabilizer(config StabilizerConfig) *Stabilizer {
	return &Stabilizer{config: config}
}

// Reset clears the stored copy of the last frame.
func (s *Stabilizer) Reset() {
	s.last = s.last[:0]
}

// Stabilize smooths all contacts of the frame in place, then stores a
// copy for the next call.
func (s *Stabilizer) Stabilize(frame []contacts.Contact) {
	for i := range frame {
		s.stabilizeContact(&frame[i])
	}

	s.last = append(s.last[:0], frame...)
}

func (s *Stabilizer) stabilizeContact(c *contacts.Contact) {
	// Contacts that can't be tracked can't be stabilized.
	if c.Index == nil {
		return
	}

	// Keep a verdict the Checker already reached; only initialize the
	// flag when the Stabilizer runs on its own.
	if c.Stable == nil {
		stable := true
		c.Stable = &stable
	}

	last := contacts.FindInFrame(*c.Index, s.last)
	if last == nil {
		return
	}

	if s.config.SizeThreshold != nil {
		s.stabilizeSize(c, last)
	}
	if s.config.PositionThreshold != nil {
		s.stabilizePosition(c, last)
	}
	if s.config.OrientationThreshold != nil {
		s.stabilizeOrientation(c, last)
	}
}

// stabilizeSize discards size changes below the dead-band and marks
// changes above the instability bound unstable; anything between passes
// through unmodified.
func (s *Stabilizer) stabilizeSize(current, last *contacts.Contact) {
	thresh := s.config.SizeThreshold

	if delta := math.Abs(current.Major - last.Major); delta < thresh.Min {
		current.Major = last.Major
	} else if delta > thresh.Max {
		*current.Stable = false
	}

	if delta := math.Abs(current.Minor - last.Minor); delta < thresh.Min {
		current.Minor = last.Minor
	} else if delta > thresh.Max {
		*current.Stable = false
	}
}

// stabilizePosition snaps slow movement back to the previous position and
// marks fast movement unstable.
func (s *Stabilizer) stabilizePosition(current, last *contacts.Contact) {
	thresh := s.config.PositionThreshold

	distance := math.Hypot(current.MeanX-last.MeanX, current.MeanY-last.MeanY)

	if distance < thresh.Min {
		current.MeanX = last.MeanX
		current.MeanY = last.MeanY
	} else if distance > thresh.Max {
		*current.Stable = false
	}
}

// stabilizeOrientation smooths the orientation with shortest-arc deltas.
// Near-circular contacts have no meaningful orientation; it is forced to
// zero below an aspect ratio of 1.1 to prevent flicker.
func (s *Stabilizer) stabilizeOrientation(current, last *contacts.Contact) {
	if current.Aspect() < 1.1 {
		current.Orientation = 0
		return
	}

	thresh := s.config.OrientationThreshold

	limit := math.Pi
	if current.Normalized {
		limit = 1
	}

	// The angle difference in both directions; pick the smaller one to
	// properly handle going from just above 0 to just below the limit.
	d1 := math.Abs(current.Orientation - last.Orientation)
	d2 := limit - d1
	delta := math.Min(d1, d2)

	if delta < thresh.Min {
		current.Orientation = last.Orientation
	} else if delta > thresh.Max {
		*current.Stable = false
	}
}
