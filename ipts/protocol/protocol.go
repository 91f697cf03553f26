// Package protocol describes the byte-exact wire layout of the IPTS frame
// taxonomy. All multi-byte integers on the wire are little-endian; sizes
// given here are the exact on-wire struct sizes.
package protocol

// Usage-page / usage constants used to identify touch-data feature and
// input reports from a HID report descriptor.
const (
	HIDReportUsagePageDigitizer = 0x000D
	HIDReportUsagePageVendor    = 0xFF00

	HIDReportUsageScanTime     = 0x56
	HIDReportUsageGestureData  = 0x61
	HIDReportUsageSetMode      = 0xC8
	HIDReportUsageMetadata     = 0x63
)

// ReportHeader is prefixed to all data received over HID, ahead of a single
// HID frame wrapping the payload. Wire size: 3 bytes.
type ReportHeader struct {
	ID        uint8
	Timestamp uint16
}

const ReportHeaderSize = 3
