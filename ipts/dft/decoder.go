// Package dft decodes antenna discrete-Fourier-transform measurement
// windows into sub-pixel active-stylus position, contact, button, and
// tilt state. Several window subtypes are only partially
// reverse-engineered; unknown ones are treated as no-ops.
package dft

import (
	"math"

	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/ipts/protocol"
)

// Config gates which rows and components are trusted enough to update
// stylus state. Field names mirror the `dft.*` configuration keys.
type Config struct {
	PositionMinAmp float64
	PositionMinMag float64
	ButtonMinMag   float64
	TiltMinMag     float64
	TiltDistance   float64
	FreqMinMag     float64
	PositionExp    float64
}

// DefaultConfig returns the thresholds iptsd ships with.
func DefaultConfig() Config {
	return Config{
		PositionMinAmp: 50,
		PositionMinMag: 6000,
		ButtonMinMag:   6000,
		TiltMinMag:     10000,
		TiltDistance:   0.05,
		FreqMinMag:     6000,
		PositionExp:    1.3,
	}
}

type stylusState struct {
	proximity bool
	contact   bool
	button    bool
	rubber    bool
	x, y      float64
	altitude  float64
	azimuth   float64
	timestamp uint16
	serial    uint32
}

// Decoder turns DftWindow samples into ipts.Stylus samples. It keeps one
// state machine per stylus, keyed by the window's group counter when
// present (falling back to a single shared key for controllers that never
// attach one — in practice exactly one DFT-tracked stylus is active at a
// time).
type Decoder struct {
	cfg    Config
	states map[uint32]*stylusState
}

// New builds a Decoder with the given thresholds.
func New(cfg Config) *Decoder {
	return &Decoder{cfg: cfg, states: make(map[uint32]*stylusState)}
}

func (d *Decoder) stateFor(w ipts.DftWindow) *stylusState {
	key := uint32(0)
	if w.Group != nil {
		key = *w.Group
	}

	s, ok := d.states[key]
	if !ok {
		s = &stylusState{}
		d.states[key] = s
	}
	return s
}

// Decode processes one window and returns the resulting stylus sample. ok
// is false when the window contributed nothing usable (e.g. a position
// window with every row below the magnitude gate and no prior fix to fall
// back on).
func (d *Decoder) Decode(w ipts.DftWindow) (sample ipts.Stylus, ok bool) {
	s := d.stateFor(w)

	switch w.Type {
	case protocol.DftPosition, protocol.DftPositionMPP2:
		x, haveX := d.axisPosition(w.X, float64(w.Width))
		y, haveY := d.axisPosition(w.Y, float64(w.Height))
		if !haveX || !haveY {
			if !s.proximity {
				return ipts.Stylus{}, false
			}
			// Stylus briefly dropped below the gate (edge of range):
			// hold the last known position instead of producing a gap.
		} else {
			s.x, s.y = x, y
		}

		s.proximity = true
		s.altitude, s.azimuth = d.tilt(w.X, w.Y)

	case protocol.DftButton:
		s.button = rowsCarrySignal(w.X, d.cfg.ButtonMinMag) || rowsCarrySignal(w.Y, d.cfg.ButtonMinMag)

	case protocol.DftBinaryMPP2:
		// This subtype is only partially reverse-engineered. Treated as
		// a contact-presence signal; never fatal if that's wrong.
		s.contact = rowsCarrySignal(w.X, d.cfg.PositionMinMag) || rowsCarrySignal(w.Y, d.cfg.PositionMinMag)

	case protocol.DftPressure:
		s.contact = rowsCarrySignal(w.X, d.cfg.PositionMinMag)

	default:
		return ipts.Stylus{}, false
	}

	return ipts.Stylus{
		Proximity: s.proximity,
		Contact:   s.contact,
		Button:    s.button,
		Rubber:    s.rubber,
		Timestamp: s.timestamp,
		X:         s.x,
		Y:         s.y,
		Altitude:  s.altitude,
		Azimuth:   s.azimuth,
		Serial:    s.serial,
	}, true
}

// axisPosition picks the strongest row (by magnitude, gated by
// PositionMinMag) and sub-sample refines the peak of its 9 complex
// components via parabolic interpolation, returning a position normalized
// to [0, 1].
func (d *Decoder) axisPosition(rows []protocol.DftRow, dimension float64) (float64, bool) {
	if len(rows) == 0 || dimension <= 0 {
		return 0, false
	}

	best := -1
	bestMag := d.cfg.PositionMinMag
	for i, row := range rows {
		mag := float64(row.Magnitude)
		if mag <= float64(d.cfg.FreqMinMag) {
			continue
		}
		if mag > bestMag {
			bestMag = mag
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}

	frac := subPixelPeak(rows[best], d.cfg.PositionMinAmp, d.cfg.PositionExp)
	return (float64(best) + frac) / dimension, true
}

// subPixelPeak finds the index of the strongest complex component within
// a row and refines it with parabolic interpolation of the neighboring
// components' amplitudes, each raised to PositionExp to sharpen the peak
// before fitting. Returns a fractional offset in [0, 1] to add to the
// row's own index.
func subPixelPeak(row protocol.DftRow, minAmp, exp float64) float64 {
	n := protocol.DftNumComponents

	amp := make([]float64, n)
	peak := 0
	peakAmp := -1.0
	for i := 0; i < n; i++ {
		re := float64(row.Real[i])
		im := float64(row.Imag[i])
		a := math.Hypot(re, im)
		if a < minAmp {
			a = 0
		}
		amp[i] = math.Pow(a, exp)
		if amp[i] > peakAmp {
			peakAmp = amp[i]
			peak = i
		}
	}

	if peakAmp <= 0 {
		return 0.5
	}

	left := amp[0]
	if peak > 0 {
		left = amp[peak-1]
	}
	right := amp[n-1]
	if peak < n-1 {
		right = amp[peak+1]
	}

	denom := left - 2*amp[peak] + right
	delta := 0.0
	if denom != 0 {
		delta = 0.5 * (left - right) / denom
		if delta < -0.5 {
			delta = -0.5
		}
		if delta > 0.5 {
			delta = 0.5
		}
	}

	return (float64(peak) + delta + 0.5) / float64(n)
}

// tilt derives an approximate altitude/azimuth from the phase difference
// between each axis's strongest row and the row before it (the row after
// it when the strongest row is the first): a pen leaning
// over the surface skews the measured phase gradient across adjacent
// antenna lines. Below TiltMinMag there isn't enough signal to trust the
// comparison, and the tilt is reported as upright (zero).
func (d *Decoder) tilt(xRows, yRows []protocol.DftRow) (altitude, azimuth float64) {
	dx, okX := phaseGradient(xRows, d.cfg.TiltMinMag)
	dy, okY := phaseGradient(yRows, d.cfg.TiltMinMag)
	if !okX && !okY {
		return 0, 0
	}

	azimuth = math.Atan2(dy, dx)

	magnitude := math.Hypot(dx, dy)
	altitude = math.Pi/2 - math.Min(magnitude*d.cfg.TiltDistance, math.Pi/2)

	return altitude, azimuth
}

// phaseGradient compares the phase of the strongest component in the peak
// row against the same component in the adjacent row.
func phaseGradient(rows []protocol.DftRow, minMag float64) (float64, bool) {
	if len(rows) < 2 {
		return 0, false
	}

	peak := 0
	peakMag := -1.0
	for i, row := range rows {
		mag := float64(row.Magnitude)
		if mag > peakMag {
			peakMag = mag
			peak = i
		}
	}
	if peakMag < minMag {
		return 0, false
	}

	neighbor := peak - 1
	if peak == 0 {
		neighbor = peak + 1
	}
	if neighbor < 0 || neighbor >= len(rows) {
		return 0, false
	}
	if float64(rows[neighbor].Magnitude) < minMag {
		return 0, false
	}

	componentPhase := func(row protocol.DftRow) float64 {
		best := 0
		bestAmp := -1.0
		for i := 0; i < protocol.DftNumComponents; i++ {
			a := math.Hypot(float64(row.Real[i]), float64(row.Imag[i]))
			if a > bestAmp {
				bestAmp = a
				best = i
			}
		}
		return math.Atan2(float64(row.Imag[best]), float64(row.Real[best]))
	}

	return componentPhase(rows[peak]) - componentPhase(rows[neighbor]), true
}

func rowsCarrySignal(rows []protocol.DftRow, minMag float64) bool {
	for _, row := range rows {
		if float64(row.Magnitude) >= minMag {
			return true
		}
	}
	return false
}
