package ipts_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/ipts/protocol"
)

type recordingSink struct {
	stylus   []ipts.Stylus
	touches  []ipts.Touch
	dfts     []ipts.DftWindow
	buttons  []ipts.Button
	metadata []ipts.Metadata
}

func (s *recordingSink) OnStylus(v ipts.Stylus)     { s.stylus = append(s.stylus, v) }
func (s *recordingSink) OnTouch(v ipts.Touch)       { s.touches = append(s.touches, v) }
func (s *recordingSink) OnDft(v ipts.DftWindow)     { s.dfts = append(s.dfts, v) }
func (s *recordingSink) OnButton(v ipts.Button)     { s.buttons = append(s.buttons, v) }
func (s *recordingSink) OnMetadata(v ipts.Metadata) { s.metadata = append(s.metadata, v) }

func u16le(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

func u32le(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func reportHeader(id uint8, timestamp uint16) []byte {
	out := []byte{id}
	return append(out, u16le(timestamp)...)
}

func hidFrame(ftype protocol.FrameType, payload []byte) []byte {
	size := uint32(protocol.HIDFrameSize + len(payload))
	out := u32le(size)
	out = append(out, 0, uint8(ftype), 0)
	return append(out, payload...)
}

func reportFrame(rtype protocol.ReportType, payload []byte) []byte {
	out := []byte{uint8(rtype), 0}
	out = append(out, u16le(uint16(len(payload)))...)
	return append(out, payload...)
}

func stylusSampleMPP151(state, x, y, pressure, altitude, azimuth uint16) []byte {
	out := u16le(0) // timestamp
	out = append(out, u16le(state)...)
	out = append(out, u16le(x)...)
	out = append(out, u16le(y)...)
	out = append(out, u16le(pressure)...)
	out = append(out, u16le(altitude)...)
	out = append(out, u16le(azimuth)...)
	out = append(out, 0, 0) // reserved
	return out
}

func stylusReportMPP151(serial uint32, samples ...[]byte) []byte {
	out := []byte{uint8(len(samples)), 0, 0, 0}
	out = append(out, u32le(serial)...)
	for _, s := range samples {
		out = append(out, s...)
	}
	return out
}

func TestParseEmptyBuffer(t *testing.T) {
	data := reportHeader(0, 0)

	sink := &recordingSink{}
	p := ipts.NewParser()
	require.NoError(t, p.Parse(data, sink))

	require.Empty(t, sink.stylus)
	require.Empty(t, sink.touches)
	require.Empty(t, sink.dfts)
	require.Empty(t, sink.buttons)
	require.Empty(t, sink.metadata)
}

func TestParseSingleStylusSample(t *testing.T) {
	sample := stylusSampleMPP151(protocol.StylusStateProximity|protocol.StylusStateContact, 4800, 3600, 2048, 0, 0)
	report := reportFrame(protocol.ReportStylusMPP151, stylusReportMPP151(42, sample))
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, report)...)

	sink := &recordingSink{}
	p := ipts.NewParser()
	require.NoError(t, p.Parse(data, sink))

	require.Len(t, sink.stylus, 1)
	got := sink.stylus[0]
	require.True(t, got.Proximity)
	require.True(t, got.Contact)
	require.InDelta(t, 0.5, got.X, 1e-6)
	require.InDelta(t, 0.5, got.Y, 1e-6)
	require.InDelta(t, 0.5, got.Pressure, 1e-6)
	require.Equal(t, uint32(42), got.Serial)
}

func TestParseCoalescesBundledSamples(t *testing.T) {
	stale := stylusSampleMPP151(protocol.StylusStateProximity, 100, 100, 100, 0, 0)
	fresh := stylusSampleMPP151(protocol.StylusStateProximity|protocol.StylusStateContact, 9600, 7200, 4096, 0, 0)
	report := reportFrame(protocol.ReportStylusMPP151, stylusReportMPP151(7, stale, stale, fresh))
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, report)...)

	sink := &recordingSink{}
	p := ipts.NewParser()
	require.NoError(t, p.Parse(data, sink))

	require.Len(t, sink.stylus, 1, "only the last sample of the bundle is forwarded")
	got := sink.stylus[0]
	require.InDelta(t, 1.0, got.X, 1e-6)
	require.InDelta(t, 1.0, got.Y, 1e-6)
	require.InDelta(t, 1.0, got.Pressure, 1e-6)
}

func TestParseHeatmapContact(t *testing.T) {
	dims := []byte{3, 3, 0, 2, 0, 2, 0, 0} // rows=3 cols=3, zmin=0 zmax=0 -> substituted to 255
	dimReport := reportFrame(protocol.ReportHeatmapDimensions, dims)

	heatmap := []byte{
		0, 0, 0,
		0, 200, 0,
		0, 0, 0,
	}
	dataReport := reportFrame(protocol.ReportHeatmapData, heatmap)

	payload := append(append([]byte{}, dimReport...), dataReport...)
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, payload)...)

	sink := &recordingSink{}
	p := ipts.NewParser()
	require.NoError(t, p.Parse(data, sink))

	require.Len(t, sink.touches, 1)
	got := sink.touches[0]
	require.Equal(t, uint8(3), got.Rows)
	require.Equal(t, uint8(3), got.Columns)
	require.Equal(t, uint8(0), got.Min)
	require.Equal(t, uint8(255), got.Max, "zero zmax is substituted with 255")
	require.Equal(t, heatmap, got.Heatmap)
}

func TestParseReportsQuirkFourByteFrame(t *testing.T) {
	data := append(reportHeader(0, 0), hidFrame(protocol.FrameReports, []byte{1, 2, 3, 4})...)

	sink := &recordingSink{}
	p := ipts.NewParser()
	require.NoError(t, p.Parse(data, sink))

	require.Empty(t, sink.stylus)
	require.Empty(t, sink.touches)
}
