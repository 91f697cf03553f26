// Package daemon connects the decoded sample stream to the contact
// pipeline and the input sink: one Context owns the detector, tracker,
// validator, stability filters, DFT decoder, and rejection cones, and is
// driven synchronously by the parser's callbacks.
package daemon

import (
	"github.com/iptsd-go/iptsd/contacts/detect"
	"github.com/iptsd-go/iptsd/contacts/stability"
	"github.com/iptsd-go/iptsd/contacts/validate"
	"github.com/iptsd-go/iptsd/ipts/dft"
)

// TouchscreenConfig holds the touchscreen toggles.
type TouchscreenConfig struct {
	// Disable suppresses all touch input.
	Disable bool

	// DisableOnPalm suppresses all touch input while a palm is on the
	// screen.
	DisableOnPalm bool

	// DisableOnStylus suppresses all touch input while a stylus is in
	// proximity.
	DisableOnStylus bool
}

// StylusConfig holds the stylus toggles.
type StylusConfig struct {
	// Disable suppresses all stylus input.
	Disable bool

	// TipDistance marks touch contacts within this distance (cm) of the
	// stylus tip as palms. Zero disables the check.
	TipDistance float64
}

// ConeConfig holds the palm rejection cone parameters.
type ConeConfig struct {
	// Angle is the half-angle of the cone in degrees.
	Angle float64

	// Distance is the reach of the cone in cm.
	Distance float64
}

// Config aggregates everything the pipeline needs. It is plain data; the
// configuration loader translates the on-disk file into one of these.
type Config struct {
	// Width and Height are the physical display dimensions in cm.
	Width, Height float64

	// InvertX and InvertY mirror the emitted coordinates.
	InvertX, InvertY bool

	Touchscreen TouchscreenConfig
	Stylus      StylusConfig
	Cone        ConeConfig

	Detection  detect.Config
	Validation validate.Config
	Checker    stability.CheckerConfig
	Stabilizer stability.StabilizerConfig
	Dft        dft.Config
}
