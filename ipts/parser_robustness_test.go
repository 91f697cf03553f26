package ipts_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/ipts/protocol"
)

func f32le(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func legacyGroup(gtype uint8, payload []byte) []byte {
	out := []byte{gtype, 0}
	out = append(out, u16le(uint16(len(payload)))...)
	return append(out, payload...)
}

func TestParseLegacyFrameRoutesGroups(t *testing.T) {
	sample := stylusSampleMPP151(protocol.StylusStateProximity, 4800, 3600, 0, 0, 0)
	report := reportFrame(protocol.ReportStylusMPP151, stylusReportMPP151(1, sample))

	payload := u32le(2) // element count
	payload = append(payload, legacyGroup(uint8(protocol.LegacyGroupStylus), report)...)
	payload = append(payload, legacyGroup(0x7F, []byte{1, 2, 3})...) // unknown group, skipped by size

	data := append(reportHeader(0, 0), hidFrame(protocol.FrameLegacy, payload)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))

	require.Len(t, sink.stylus, 1)
}

func TestParseMetadataFrame(t *testing.T) {
	payload := u32le(44)                          // rows
	payload = append(payload, u32le(64)...)       // columns
	payload = append(payload, u32le(25930)...)    // width, mm*100
	payload = append(payload, u32le(17339)...)    // height, mm*100
	payload = append(payload, f32le(-1.0)...)     // xx, negative -> invert_x
	payload = append(payload, f32le(0)...)        // yx
	payload = append(payload, f32le(0)...)        // tx
	payload = append(payload, f32le(0)...)        // xy
	payload = append(payload, f32le(1.0)...)      // yy
	payload = append(payload, f32le(0)...)        // ty
	payload = append(payload, make([]byte, 64)...) // unknown block

	data := append(reportHeader(0, 0), hidFrame(protocol.FrameMetadata, payload)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))

	require.Len(t, sink.metadata, 1)
	got := sink.metadata[0]
	require.Equal(t, uint8(44), got.Rows)
	require.Equal(t, uint8(64), got.Columns)
	require.InDelta(t, 25.93, got.Width, 1e-9)
	require.InDelta(t, 17.339, got.Height, 1e-9)
	require.True(t, got.InvertX)
	require.False(t, got.InvertY)
}

func TestParseNestedHidFrames(t *testing.T) {
	sample := stylusSampleMPP151(protocol.StylusStateProximity, 1, 1, 0, 0, 0)
	report := reportFrame(protocol.ReportStylusMPP151, stylusReportMPP151(1, sample))
	inner := hidFrame(protocol.FrameReports, report)

	data := append(reportHeader(0, 0), hidFrame(protocol.FrameHid, inner)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))

	require.Len(t, sink.stylus, 1)
}

func TestParseUnknownReportTypeSkippedBySize(t *testing.T) {
	unknown := reportFrame(protocol.ReportDftMagnitude, []byte{1, 2, 3, 4, 5})
	sample := stylusSampleMPP151(protocol.StylusStateProximity, 1, 1, 0, 0, 0)
	known := reportFrame(protocol.ReportStylusMPP151, stylusReportMPP151(1, sample))

	payload := append(append([]byte{}, unknown...), known...)
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, payload)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))

	require.Len(t, sink.stylus, 1, "the report after the unknown one is still parsed")
}

func TestParseTruncatedReportStopsWithoutPanic(t *testing.T) {
	// A report frame declaring more payload than the buffer holds.
	report := []byte{uint8(protocol.ReportStylusMPP151), 0, 0xFF, 0x7F}
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, report)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))
	require.Empty(t, sink.stylus)
}

func TestParseArbitraryGarbageNeverPanics(t *testing.T) {
	// Deterministic pseudo-random garbage at assorted lengths.
	seed := uint32(0x12345678)
	next := func() byte {
		seed = seed*1664525 + 1013904223
		return byte(seed >> 24)
	}

	sink := &recordingSink{}
	p := ipts.NewParser()

	for size := 0; size < 256; size += 7 {
		data := make([]byte, size)
		for i := range data {
			data[i] = next()
		}
		require.NotPanics(t, func() {
			_ = p.Parse(data, sink)
		})
	}
}

func TestParseDftWindowAttachesMatchingGroup(t *testing.T) {
	meta := u32le(99) // group counter
	meta = append(meta, 5, 6)
	meta = append(meta, make([]byte, 10)...)
	metaReport := reportFrame(protocol.ReportDftMetadata, meta)

	window := u32le(0)                         // timestamp
	window = append(window, 1)                 // num rows
	window = append(window, 5)                 // seq num
	window = append(window, 0, 0, 0)           // reserved
	window = append(window, 6)                 // data type (matches meta)
	window = append(window, 0, 0)              // reserved
	window = append(window, make([]byte, 96)...) // one X row + one Y row
	windowReport := reportFrame(protocol.ReportDftWindow, window)

	payload := append(append([]byte{}, metaReport...), windowReport...)
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, payload)...)

	sink := &recordingSink{}
	require.NoError(t, ipts.NewParser().Parse(data, sink))

	require.Len(t, sink.dfts, 1)
	require.NotNil(t, sink.dfts[0].Group)
	require.Equal(t, uint32(99), *sink.dfts[0].Group)
}
