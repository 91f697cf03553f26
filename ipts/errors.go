package ipts

import "github.com/iptsd-go/iptsd/ipts/reader"

// ErrTruncated means a typed read would have exceeded the buffer. It is
// raised from the reader and caught at the report-frame boundary: the
// current report is discarded and the rest of the HID frame proceeds.
var ErrTruncated = reader.ErrEndOfData
