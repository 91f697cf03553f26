package protocol

// HeatmapFrame precedes raw heatmap bytes inside a Heatmap HID frame. Wire
// size: 9 bytes (5 reserved + u32 size).
type HeatmapFrame struct {
	Reserved [5]uint8
	Size     uint32
}

const HeatmapFrameSize = 9

// HeatmapDimensions describes the size of a heatmap and the range of values
// it can contain. Wire size: 8 bytes.
type HeatmapDimensions struct {
	Rows    uint8
	Columns uint8
	YMin    uint8
	YMax    uint8
	XMin    uint8
	XMax    uint8
	ZMin    uint8
	// ZMax is the highest value a pixel can assume. Some controllers
	// (incorrectly) report 0 here; callers substitute 255.
	ZMax uint8
}

const HeatmapDimensionsSize = 8
