// Package stability judges and smooths contacts over a sliding temporal
// window: the Checker marks contacts whose movement or size jumps too far
// between frames as unstable, and the Stabilizer dead-bands slow changes
// so resting fingers don't jitter.
package stability

import (
	"math"

	"github.com/iptsd-go/iptsd/contacts"
)

// Threshold is a pair of bounds: changes below Min are snapped away
// (dead-band), changes above Max mark the contact unstable. A nil
// *Threshold disables the corresponding check.
type Threshold struct {
	Min, Max float64
}

// CheckerConfig controls the stability checks.
type CheckerConfig struct {
	// TemporalWindow is how many frames a contact is compared across.
	// Values below 2 disable temporal checking.
	TemporalWindow int

	// CheckTemporalStability requires a contact to be present in every
	// frame of the window before it counts as stable.
	CheckTemporalStability bool

	// DistanceThreshold marks contacts unstable when their edge comes
	// within this distance of an invalid contact in the same frame. Nil
	// disables the check.
	DistanceThreshold *float64

	// SizeDifferenceThreshold marks contacts unstable when either axis
	// changes by more than this between frames. Nil disables the check.
	SizeDifferenceThreshold *float64

	// MovementLimits marks contacts unstable when they move faster than
	// Max between frames; movement below Min is dead-banded by the
	// Stabilizer. Nil disables the check.
	MovementLimits *Threshold
}

// Checker sets the stable flag on every contact of a frame.
type Checker struct {
	config CheckerConfig

	// The last n frames, n being TemporalWindow - 1, oldest first.
	frames [][]contacts.Contact
}

// NewChecker builds a Checker with the given config.
func NewChecker(config CheckerConfig) *Checker {
	depth := max(config.TemporalWindow, 2) - 1

	return &Checker{
		config: config,
		frames: make([][]contacts.Contact, depth),
	}
}

// Reset clears the stored copies of the last frames.
func (c *Checker) Reset() {
	for i := range c.frames {
		c.frames[i] = c.frames[i][:0]
	}
}

// Check sets the stable flag on every contact of the frame, in place, and
// pushes a copy of the frame into the temporal window (evicting the
// oldest).
func (c *Checker) Check(frame []contacts.Contact) {
	for i := range frame {
		stable := c.checkContact(&frame[i], frame)
		frame[i].Stable = &stable
	}

	// Reuse the evicted frame's backing array for the new copy.
	evicted := c.frames[0]
	copy(c.frames, c.frames[1:])
	c.frames[len(c.frames)-1] = append(evicted[:0], frame...)
}

func (c *Checker) checkContact(contact *contacts.Contact, frame []contacts.Contact) bool {
	if c.config.DistanceThreshold != nil && !c.checkDistance(contact, frame) {
		return false
	}

	// Contacts that can't be tracked are considered temporally stable.
	if contact.Index == nil {
		return true
	}

	if c.config.TemporalWindow < 2 {
		return true
	}

	index := *contact.Index
	current := contact

	// Walk the window backwards, comparing each frame's contact with the
	// same index against the next-newer one.
	for i := len(c.frames) - 1; i >= 0; i-- {
		last := contacts.FindInFrame(index, c.frames[i])

		if last == nil {
			return !c.config.CheckTemporalStability
		}

		if c.config.SizeDifferenceThreshold != nil && !c.checkSize(current, last) {
			return false
		}

		if c.config.MovementLimits != nil && !c.checkMovement(current, last) {
			return false
		}

		current = last
	}

	return true
}

// checkDistance reports whether the contact is far enough away from every
// invalid contact in the frame.
//
// All contacts are treated as perfect circles of radius major/2. That
// covers more area than necessary but keeps the check cheap.
func (c *Checker) checkDistance(contact *contacts.Contact, frame []contacts.Contact) bool {
	if contact.Index == nil {
		return true
	}

	thresh := *c.config.DistanceThreshold

	for i := range frame {
		other := &frame[i]

		if other.Index != nil && *other.Index == *contact.Index {
			continue
		}
		if other.IsValid() {
			continue
		}

		distance := math.Hypot(contact.MeanX-other.MeanX, contact.MeanY-other.MeanY)
		difference := distance - contact.Major/2 - other.Major/2

		if difference < thresh {
			return false
		}
	}

	return true
}

// checkSize reports whether the contact's size is changing slowly enough.
func (c *Checker) checkSize(current, last *contacts.Contact) bool {
	thresh := *c.config.SizeDifferenceThreshold

	return math.Abs(current.Major-last.Major) <= thresh &&
		math.Abs(current.Minor-last.Minor) <= thresh
}

// checkMovement reports whether the contact is moving slowly enough to be
// considered stable. The Min side is handled by the Stabilizer's
// dead-band, not here.
func (c *Checker) checkMovement(current, last *contacts.Contact) bool {
	limits := c.config.MovementLimits

	distance := math.Hypot(current.MeanX-last.MeanX, current.MeanY-last.MeanY)

	return distance <= limits.Max
}
