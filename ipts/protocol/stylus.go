package protocol

const (
	StylusMaxX uint16 = 9600
	StylusMaxY uint16 = 7200

	StylusMaxPressureMPP10  uint16 = 1024
	StylusMaxPressureMPP151 uint16 = 4096
)

// StylusReport precedes one or more stylus samples. Wire size: 8 bytes.
type StylusReport struct {
	// Samples is the number of samples following this header.
	Samples  uint8
	Reserved [3]uint8
	// Serial is a per-stylus identifier. Not reliable across firmware
	// revisions when multiple styli are in use.
	Serial uint32
}

const StylusReportSize = 8

// StylusState bits, shared by both MPP sample layouts (8-bit base for
// MPP 1.0, 16-bit base for MPP 1.51 — only the low 4 bits are defined).
const (
	StylusStateProximity uint16 = 1 << 0
	StylusStateContact   uint16 = 1 << 1
	StylusStateButton    uint16 = 1 << 2
	StylusStateRubber    uint16 = 1 << 3
)

// StylusSampleMPP10 is the position/state of an MPP 1.0 stylus: 1024
// pressure levels, no orientation. Wire size: 12 bytes.
type StylusSampleMPP10 struct {
	Reserved1 [4]uint8
	State     uint8 // StylusState* bits
	X         uint16
	Y         uint16
	Pressure  uint16
	Reserved2 [1]uint8
}

const StylusSampleMPP10Size = 12

// StylusSampleMPP151 is the position/state of an MPP 1.51 (or later)
// stylus: 4096 pressure levels, tilt reported via altitude/azimuth. Wire
// size: 16 bytes.
type StylusSampleMPP151 struct {
	Timestamp uint16
	State     uint16 // StylusState* bits
	X         uint16
	Y         uint16
	Pressure  uint16
	// Altitude and Azimuth are in hundredths of a degree.
	Altitude uint16
	Azimuth  uint16
	Reserved [2]uint8
}

const StylusSampleMPP151Size = 16
