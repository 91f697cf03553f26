package protocol

// FrameType is the type tag of a top-level HID frame. Wire size: 1 byte.
type FrameType uint8

const (
	// FrameHid means the frame contains further HID frames, chained
	// together.
	FrameHid FrameType = 0x00

	// FrameHeatmap means the frame contains a heatmap frame.
	FrameHeatmap FrameType = 0x01

	// FrameMetadata means the frame contains a metadata frame. Only
	// returned by a HID feature report, never seen in normal data.
	FrameMetadata FrameType = 0x02

	// FrameLegacy means the frame contains a legacy-format frame (older
	// device variant). This is a synthetic type used only to transport
	// legacy frames over the same HID-frame envelope.
	FrameLegacy FrameType = 0xEE

	// FrameReports means the frame contains a flat list of report
	// frames.
	FrameReports FrameType = 0xFF
)

func (t FrameType) String() string {
	switch t {
	case FrameHid:
		return "Hid"
	case FrameHeatmap:
		return "Heatmap"
	case FrameMetadata:
		return "Metadata"
	case FrameLegacy:
		return "Legacy"
	case FrameReports:
		return "Reports"
	default:
		return "Unknown"
	}
}

// HIDFrame is the top-level container in data received from the device.
// Wire size: 7 bytes, followed by Size-7 bytes of payload.
type HIDFrame struct {
	// Size is the size of the entire HID frame, header included.
	Size uint32
	// Reserved1 is unused.
	Reserved1 uint8
	// Type determines the structure of the payload.
	Type FrameType
	// Reserved2 is unused.
	Reserved2 uint8
}

const HIDFrameSize = 7

// LegacyHeader precedes a sequence of legacy group headers on older
// devices. Wire size: 4 bytes (u32 element count).
type LegacyHeader struct {
	Elements uint32
}

const LegacyHeaderSize = 4

// LegacyGroupType distinguishes the payload of a legacy group.
type LegacyGroupType uint8

const (
	LegacyGroupStylus LegacyGroupType = 0x01
	LegacyGroupTouch  LegacyGroupType = 0x02
)

// LegacyGroupHeader precedes each element inside a legacy frame. Wire size:
// 4 bytes (u8 type, u8 reserved, u16 size).
type LegacyGroupHeader struct {
	Type     LegacyGroupType
	Reserved uint8
	Size     uint16
}

const LegacyGroupHeaderSize = 4
