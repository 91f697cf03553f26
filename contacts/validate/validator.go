// Package validate enforces per-contact size and aspect bounds, with
// optional temporal persistence of invalidity: a contact marked invalid
// once stays invalid until it is lifted.
package validate

import "github.com/iptsd-go/iptsd/contacts"

// Limits is a closed [Min, Max] interval. A nil *Limits disables the
// corresponding check.
type Limits struct {
	Min, Max float64
}

// Config controls the validity checks.
type Config struct {
	// TrackValidity carries invalidity forward: a contact that was
	// invalid in the previous frame stays invalid.
	TrackValidity bool

	// AspectLimits bounds major/minor. Nil disables the check.
	AspectLimits *Limits

	// SizeLimits bounds the major axis. Nil disables the check.
	SizeLimits *Limits
}

// Validator checks the validity of all contacts in a frame.
type Validator struct {
	config Config

	// The last frame.
	last []contacts.Contact
}

// NewValidator builds a Validator with the given config.
func NewValidator(config Config) *Validator {
	return &Validator{config: config}
}

// Reset clears the stored copy of the last frame.
func (v *Validator) Reset() {
	v.last = v.last[:0]
}

// Validate sets the valid flag on every contact of the frame, in place.
// Invalid contacts are still tracked and stabilized; the sink decides
// whether to suppress them.
func (v *Validator) Validate(frame []contacts.Contact) {
	for i := range frame {
		valid := v.checkContact(&frame[i])
		frame[i].Valid = &valid
	}

	v.last = append(v.last[:0], frame...)
}

func (v *Validator) checkContact(c *contacts.Contact) bool {
	// Contacts that can't be tracked pass through as valid.
	if c.Index == nil {
		return true
	}

	// Don't invalidate unstable contacts.
	if !c.IsStable() {
		return true
	}

	if v.config.TrackValidity && !v.checkTemporal(c) {
		return false
	}

	if v.config.SizeLimits != nil && !v.checkSize(c) {
		return false
	}

	if v.config.AspectLimits != nil && !v.checkAspect(c) {
		return false
	}

	return true
}

// checkTemporal reports whether the contact was valid in the last frame.
// Contacts that can't be tracked are considered temporally valid.
func (v *Validator) checkTemporal(c *contacts.Contact) bool {
	if c.Index == nil {
		return true
	}

	last := contacts.FindInFrame(*c.Index, v.last)
	if last == nil || last.Valid == nil {
		return true
	}

	return *last.Valid
}

func (v *Validator) checkSize(c *contacts.Contact) bool {
	return c.Major >= v.config.SizeLimits.Min && c.Major <= v.config.SizeLimits.Max
}

func (v *Validator) checkAspect(c *contacts.Contact) bool {
	aspect := c.Aspect()
	return aspect >= v.config.AspectLimits.Min && aspect <= v.config.AspectLimits.Max
}
