package protocol

// ButtonMaxPressure is the largest pressure value observed from
// touchpad-style controllers; adjust if one is found that disagrees.
const ButtonMaxPressure uint16 = 1024

// ButtonSample describes the state of the (touchpad) button. A Button
// report frame may chain several of these with no header; the number of
// samples is implied by the report's declared payload size.
// Wire size: 16 bytes.
type ButtonSample struct {
	Pressure  uint16
	Reserved1 [12]uint8
	Button    bool
	Reserved2 uint8
}

const ButtonSampleSize = 16
