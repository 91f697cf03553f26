// Package ipts ties the reader and protocol packages together into a
// recursive-descent frame parser that emits typed samples via the FrameSink
// interface.
package ipts

import "github.com/iptsd-go/iptsd/ipts/protocol"

// Stylus is a decoded, normalized stylus sample.
type Stylus struct {
	Proximity bool
	Contact   bool
	Button    bool
	Rubber    bool

	Timestamp uint16

	// X, Y are normalized to [0, 1].
	X, Y float64
	// Pressure is normalized to [0, 1].
	Pressure float64
	// Altitude and Azimuth are in radians.
	Altitude, Azimuth float64

	Serial uint32
}

// Touch is a view over one capacitive heatmap frame.
type Touch struct {
	Rows, Columns uint8
	Min, Max      uint8
	Heatmap       []uint8
}

// DftWindow is a decoded DFT measurement window.
type DftWindow struct {
	Group  *uint32
	Type   protocol.DftType
	Width  uint8
	Height uint8
	X, Y   []protocol.DftRow
}

// Button is a decoded touchpad button sample.
type Button struct {
	Active   bool
	Pressure float64
}

// Metadata is the decoded device metadata feature report.
type Metadata struct {
	Rows, Columns    uint8
	Width, Height    float64 // centimeters
	InvertX, InvertY bool
}

// FrameSink receives decoded samples from Parser.Parse. An explicit
// interface keeps the parser itself free of daemon-level state while every
// call site still gets compiler-checked method satisfaction.
type FrameSink interface {
	OnStylus(s Stylus)
	OnTouch(t Touch)
	OnDft(w DftWindow)
	OnButton(b Button)
	OnMetadata(m Metadata)
}
