package protocol

// ReportType is the type tag of a report frame. Wire size: 1 byte.
type ReportType uint8

const (
	ReportHeatmapTimestamp  ReportType = 0x00
	ReportHeatmapDimensions ReportType = 0x03
	ReportDftFrequencyNoise ReportType = 0x04

	ReportStylusMPP10 ReportType = 0x10

	ReportHeatmapData ReportType = 0x25

	ReportDftGeneral         ReportType = 0x57
	ReportDftJnrOutput       ReportType = 0x58
	ReportDftNoiseMetricsOut ReportType = 0x59
	ReportDftDataSelection   ReportType = 0x5A
	ReportDftMagnitude       ReportType = 0x5B
	ReportDftWindow          ReportType = 0x5C
	ReportDftMultipleRegion  ReportType = 0x5D
	ReportDftTouchedAntennas ReportType = 0x5E
	ReportDftMetadata        ReportType = 0x5F

	ReportStylusMPP151 ReportType = 0x60

	ReportDftDetection ReportType = 0x62
	ReportDftLift      ReportType = 0x63

	ReportButton ReportType = 0x90
)

// ReportFrame is the header of a flat report entry within a Reports HID
// frame. Wire size: 4 bytes, followed by Size bytes of payload.
type ReportFrame struct {
	Type  ReportType
	Flags uint8
	Size  uint16
}

const ReportFrameSize = 4
