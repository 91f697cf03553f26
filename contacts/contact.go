// Package contacts holds the types shared by the contact-processing
// pipeline: detection, tracking, validation, and stabilization all operate
// on frames of Contact values.
package contacts

// Contact is an elliptical approximation of one finger's footprint on the
// heatmap.
type Contact struct {
	// MeanX, MeanY are the center position. Range [0, 1] when
	// normalized, [0, <input dimensions>] when not.
	MeanX, MeanY float64

	// Major and Minor are the diameters of the ellipse axes. Range
	// [0, 1] when normalized, [0, <hypot of input dimensions>] when not.
	Major, Minor float64

	// Orientation of the major axis. Range [0, 1) when normalized,
	// [0, pi) when not.
	Orientation float64

	// Normalized reports whether the stored values are normalized.
	Normalized bool

	// Index is a temporally stable index for tracking contacts over
	// multiple frames. Nil until the tracker has run.
	Index *int

	// Valid is nil until the validator has run.
	Valid *bool

	// Stable is nil until the stability checker has run.
	Stable *bool
}

// Aspect returns the major/minor aspect ratio.
func (c *Contact) Aspect() float64 {
	return c.Major / c.Minor
}

// TrackingIndex returns the contact's index, or -1 if it has none.
func (c *Contact) TrackingIndex() int {
	if c.Index == nil {
		return -1
	}
	return *c.Index
}

// IsValid returns the valid flag, treating an unset flag as valid.
func (c *Contact) IsValid() bool {
	return c.Valid == nil || *c.Valid
}

// IsStable returns the stable flag, treating an unset flag as stable.
func (c *Contact) IsStable() bool {
	return c.Stable == nil || *c.Stable
}

// FindInFrame returns the contact with the given tracking index, or nil if
// the frame has no such contact.
func FindInFrame(index int, frame []Contact) *Contact {
	for i := range frame {
		if frame[i].Index == nil || *frame[i].Index != index {
			continue
		}
		return &frame[i]
	}
	return nil
}
