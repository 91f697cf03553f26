package ipts

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iptsd-go/iptsd/ipts/protocol"
	"github.com/iptsd-go/iptsd/ipts/reader"
)

// Parser is a recursive-descent decoder over the IPTS nested frame
// container format. It is stateless across calls except for two small
// caches the wire format itself requires: the most recently seen heatmap
// Dimensions (HeatmapData reports carry only raw bytes, not their own
// shape) and the most recently seen DftMetadata (attached to a DftWindow
// only when its sequence number and data type match).
type Parser struct {
	Log zerolog.Logger

	haveDim bool
	dim     protocol.HeatmapDimensions

	haveDftMeta bool
	dftMeta     protocol.DftMetadata

	reportsQuirkOnce sync.Once
}

// NewParser builds a Parser that logs through the package default logger.
func NewParser() *Parser {
	return &Parser{Log: log.Logger}
}

// Parse decodes one report: a fixed 3-byte header (report ID + u16
// timestamp) followed by a single top-level HID frame, and dispatches
// decoded samples to sink. It never returns an error for malformed input
// past the header: truncation and parse-ambiguity errors are caught at
// frame boundaries and only abort the current frame, not the stream.
func (p *Parser) Parse(data []byte, sink FrameSink) error {
	return p.ParseWithHeaderSize(data, protocol.ReportHeaderSize, sink)
}

// ParseWithHeaderSize is Parse with a caller-selected header size, used by
// replay tooling that works from capture files with a different header
// convention than modern hardware's 3-byte header.
func (p *Parser) ParseWithHeaderSize(data []byte, headerSize int, sink FrameSink) error {
	r := reader.New(data)
	if err := r.Skip(headerSize); err != nil {
		// A buffer shorter than its own header is truncated at the
		// outermost boundary: nothing to decode, no error.
		return nil
	}
	if r.Size() == 0 {
		return nil
	}
	p.parseHIDFrame(r, sink)
	return nil
}

// parseHIDFrame decodes one HID frame (header + payload) and dispatches on
// its type. Truncation errors are swallowed here: a malformed frame simply
// stops contributing further callbacks, per the parser-robustness property.
func (p *Parser) parseHIDFrame(r *reader.Reader, sink FrameSink) {
	size, err := r.ReadUint32()
	if err != nil {
		return
	}
	if _, err := r.ReadUint8(); err != nil { // reserved1
		return
	}
	ftype, err := r.ReadUint8()
	if err != nil {
		return
	}
	if _, err := r.ReadUint8(); err != nil { // reserved2
		return
	}

	if size < protocol.HIDFrameSize {
		return
	}
	payloadSize := int(size) - protocol.HIDFrameSize
	child, err := r.Sub(payloadSize)
	if err != nil {
		return
	}

	switch protocol.FrameType(ftype) {
	case protocol.FrameHid:
		for child.Size() > 0 {
			before := child.Size()
			p.parseHIDFrame(child, sink)
			if child.Size() == before {
				// Too few bytes left for a frame header.
				break
			}
		}
	case protocol.FrameHeatmap:
		p.parseHeatmapFrame(child, sink)
	case protocol.FrameMetadata:
		p.parseMetadataFrame(child, sink)
	case protocol.FrameLegacy:
		p.parseLegacyFrame(child, sink)
	case protocol.FrameReports:
		if child.Size() == 4 {
			p.reportsQuirkOnce.Do(func() {
				p.Log.Warn().Msg("ignoring known 4-byte Reports frame firmware quirk")
			})
			return
		}
		p.parseReportFrames(child, sink)
	default:
		// Unknown HID frame type: already consumed by declared size.
	}
}

func (p *Parser) parseHeatmapFrame(r *reader.Reader, sink FrameSink) {
	if err := r.Skip(5); err != nil { // reserved
		return
	}
	if _, err := r.ReadUint32(); err != nil { // size, redundant with the HID frame's own size
		return
	}

	p.emitTouch(r, sink)
}

func (p *Parser) parseMetadataFrame(r *reader.Reader, sink FrameSink) {
	rows, err := r.ReadUint32()
	if err != nil {
		return
	}
	cols, err := r.ReadUint32()
	if err != nil {
		return
	}
	widthMM, err := r.ReadUint32()
	if err != nil {
		return
	}
	heightMM, err := r.ReadUint32()
	if err != nil {
		return
	}

	xx, err := r.ReadFloat32()
	if err != nil {
		return
	}
	if _, err := r.ReadFloat32(); err != nil { // yx
		return
	}
	if _, err := r.ReadFloat32(); err != nil { // tx
		return
	}
	if _, err := r.ReadFloat32(); err != nil { // xy
		return
	}
	yy, err := r.ReadFloat32()
	if err != nil {
		return
	}
	if _, err := r.ReadFloat32(); err != nil { // ty
		return
	}

	// Unknown trailing block (64 bytes): skip, nothing in this
	// implementation interprets it yet.
	_ = r.Skip(protocol.MetadataUnknownSize)

	sink.OnMetadata(Metadata{
		Rows:    uint8(rows),
		Columns: uint8(cols),
		Width:   float64(widthMM) / 100.0 / 10.0, // mm*100 -> cm
		Height:  float64(heightMM) / 100.0 / 10.0,
		InvertX: xx < 0,
		InvertY: yy < 0,
	})
}

func (p *Parser) parseLegacyFrame(r *reader.Reader, sink FrameSink) {
	elements, err := r.ReadUint32()
	if err != nil {
		return
	}

	for i := uint32(0); i < elements; i++ {
		if r.Size() == 0 {
			return
		}

		gtype, err := r.ReadUint8()
		if err != nil {
			return
		}
		if _, err := r.ReadUint8(); err != nil { // reserved
			return
		}
		size, err := r.ReadUint16()
		if err != nil {
			return
		}

		group, err := r.Sub(int(size))
		if err != nil {
			return
		}

		switch protocol.LegacyGroupType(gtype) {
		case protocol.LegacyGroupStylus, protocol.LegacyGroupTouch:
			p.parseReportFrames(group, sink)
		default:
			// Unknown legacy group: already skipped by declared size.
		}
	}
}

func (p *Parser) parseReportFrames(r *reader.Reader, sink FrameSink) {
	for r.Size() > 0 {
		rtype, err := r.ReadUint8()
		if err != nil {
			return
		}
		if _, err := r.ReadUint8(); err != nil { // flags
			return
		}
		size, err := r.ReadUint16()
		if err != nil {
			return
		}

		payload, err := r.Sub(int(size))
		if err != nil {
			return
		}

		p.dispatchReport(protocol.ReportType(rtype), payload, sink)
	}
}

func (p *Parser) dispatchReport(rtype protocol.ReportType, r *reader.Reader, sink FrameSink) {
	switch rtype {
	case protocol.ReportHeatmapDimensions:
		p.parseHeatmapDimensions(r)
	case protocol.ReportHeatmapData:
		p.emitTouch(r, sink)
	case protocol.ReportStylusMPP10:
		p.parseStylusMPP10(r, sink)
	case protocol.ReportStylusMPP151:
		p.parseStylusMPP151(r, sink)
	case protocol.ReportDftMetadata:
		p.parseDftMetadata(r)
	case protocol.ReportDftWindow:
		p.parseDftWindow(r, sink)
	case protocol.ReportButton:
		p.parseButton(r, sink)
	default:
		// Unknown/unhandled report type: already consumed by declared
		// size in parseReportFrames.
	}
}

func (p *Parser) parseHeatmapDimensions(r *reader.Reader) {
	var d protocol.HeatmapDimensions
	var err error

	if d.Rows, err = r.ReadUint8(); err != nil {
		return
	}
	if d.Columns, err = r.ReadUint8(); err != nil {
		return
	}
	if d.YMin, err = r.ReadUint8(); err != nil {
		return
	}
	if d.YMax, err = r.ReadUint8(); err != nil {
		return
	}
	if d.XMin, err = r.ReadUint8(); err != nil {
		return
	}
	if d.XMax, err = r.ReadUint8(); err != nil {
		return
	}
	if d.ZMin, err = r.ReadUint8(); err != nil {
		return
	}
	if d.ZMax, err = r.ReadUint8(); err != nil {
		return
	}

	if d.ZMax == 0 {
		d.ZMax = 255
	}

	p.dim = d
	p.haveDim = true
}

func (p *Parser) emitTouch(r *reader.Reader, sink FrameSink) {
	if !p.haveDim {
		return
	}

	n := int(p.dim.Rows) * int(p.dim.Columns)
	data, err := r.Subspan(min(n, r.Size()))
	if err != nil {
		return
	}

	sink.OnTouch(Touch{
		Rows:    p.dim.Rows,
		Columns: p.dim.Columns,
		Min:     p.dim.ZMin,
		Max:     p.dim.ZMax,
		Heatmap: data,
	})
}

func (p *Parser) parseStylusMPP10(r *reader.Reader, sink FrameSink) {
	samples, err := r.ReadUint8()
	if err != nil {
		return
	}
	if err := r.Skip(3); err != nil {
		return
	}
	serial, err := r.ReadUint32()
	if err != nil {
		return
	}
	if samples == 0 {
		return
	}

	// Skip all but the last sample: the device bundles several samples
	// per ~5ms tick, forwarding all of them produces visible jitter.
	for i := uint8(0); i < samples-1; i++ {
		if err := r.Skip(protocol.StylusSampleMPP10Size); err != nil {
			return
		}
	}

	if err := r.Skip(4); err != nil { // reserved1
		return
	}
	state, err := r.ReadUint8()
	if err != nil {
		return
	}
	x, err := r.ReadUint16()
	if err != nil {
		return
	}
	y, err := r.ReadUint16()
	if err != nil {
		return
	}
	pressure, err := r.ReadUint16()
	if err != nil {
		return
	}
	if err := r.Skip(1); err != nil { // reserved2
		return
	}

	s := Stylus{
		Proximity: uint16(state)&protocol.StylusStateProximity != 0,
		Contact:   uint16(state)&protocol.StylusStateContact != 0,
		Button:    uint16(state)&protocol.StylusStateButton != 0,
		Rubber:    uint16(state)&protocol.StylusStateRubber != 0,
		X:         float64(x) / float64(protocol.StylusMaxX),
		Y:         float64(y) / float64(protocol.StylusMaxY),
		Pressure:  float64(pressure) / float64(protocol.StylusMaxPressureMPP10),
		Serial:    serial,
	}
	s = applyRubberQuirk(s)
	sink.OnStylus(s)
}

func (p *Parser) parseStylusMPP151(r *reader.Reader, sink FrameSink) {
	samples, err := r.ReadUint8()
	if err != nil {
		return
	}
	if err := r.Skip(3); err != nil {
		return
	}
	serial, err := r.ReadUint32()
	if err != nil {
		return
	}
	if samples == 0 {
		return
	}

	for i := uint8(0); i < samples-1; i++ {
		if err := r.Skip(protocol.StylusSampleMPP151Size); err != nil {
			return
		}
	}

	timestamp, err := r.ReadUint16()
	if err != nil {
		return
	}
	state, err := r.ReadUint16()
	if err != nil {
		return
	}
	x, err := r.ReadUint16()
	if err != nil {
		return
	}
	y, err := r.ReadUint16()
	if err != nil {
		return
	}
	pressure, err := r.ReadUint16()
	if err != nil {
		return
	}
	altitude, err := r.ReadUint16()
	if err != nil {
		return
	}
	azimuth, err := r.ReadUint16()
	if err != nil {
		return
	}
	if err := r.Skip(2); err != nil {
		return
	}

	const hundredthDegreeToRadian = math.Pi / 18000.0

	s := Stylus{
		Proximity: state&protocol.StylusStateProximity != 0,
		Contact:   state&protocol.StylusStateContact != 0,
		Button:    state&protocol.StylusStateButton != 0,
		Rubber:    state&protocol.StylusStateRubber != 0,
		Timestamp: timestamp,
		X:         float64(x) / float64(protocol.StylusMaxX),
		Y:         float64(y) / float64(protocol.StylusMaxY),
		Pressure:  float64(pressure) / float64(protocol.StylusMaxPressureMPP151),
		Altitude:  float64(altitude) * hundredthDegreeToRadian,
		Azimuth:   float64(azimuth) * hundredthDegreeToRadian,
		Serial:    serial,
	}
	s = applyRubberQuirk(s)
	sink.OnStylus(s)
}

// applyRubberQuirk reinterprets contact when the stylus reports eraser
// mode: firmware sets the raw contact bit unreliably in rubber mode, so
// contact is derived from pressure instead.
func applyRubberQuirk(s Stylus) Stylus {
	if s.Rubber {
		s.Contact = s.Pressure > 0
	}
	return s
}

func (p *Parser) parseDftMetadata(r *reader.Reader) {
	groupCounter, err := r.ReadUint32()
	if err != nil {
		return
	}
	seqNum, err := r.ReadUint8()
	if err != nil {
		return
	}
	dataType, err := r.ReadUint8()
	if err != nil {
		return
	}
	if err := r.Skip(10); err != nil {
		return
	}

	p.dftMeta = protocol.DftMetadata{
		GroupCounter: groupCounter,
		SeqNum:       seqNum,
		DataType:     protocol.DftType(dataType),
	}
	p.haveDftMeta = true
}

func (p *Parser) parseDftWindow(r *reader.Reader, sink FrameSink) {
	if err := r.Skip(4); err != nil { // timestamp, unused
		return
	}
	numRows, err := r.ReadUint8()
	if err != nil {
		return
	}
	seqNum, err := r.ReadUint8()
	if err != nil {
		return
	}
	if err := r.Skip(3); err != nil {
		return
	}
	dataType, err := r.ReadUint8()
	if err != nil {
		return
	}
	if err := r.Skip(2); err != nil {
		return
	}

	xRows, err := readDftRows(r, int(numRows))
	if err != nil {
		return
	}
	yRows, err := readDftRows(r, int(numRows))
	if err != nil {
		return
	}

	w := DftWindow{
		Type:   protocol.DftType(dataType),
		Width:  numRows,
		Height: numRows,
		X:      xRows,
		Y:      yRows,
	}

	if p.haveDftMeta && p.dftMeta.SeqNum == seqNum && p.dftMeta.DataType == protocol.DftType(dataType) {
		gc := p.dftMeta.GroupCounter
		w.Group = &gc
	}

	sink.OnDft(w)
}

func readDftRows(r *reader.Reader, n int) ([]protocol.DftRow, error) {
	rows := make([]protocol.DftRow, n)
	for i := 0; i < n; i++ {
		row, err := readDftRow(r)
		if err != nil {
			return nil, err
		}
		rows[i] = row
	}
	return rows, nil
}

func readDftRow(r *reader.Reader) (protocol.DftRow, error) {
	var row protocol.DftRow

	freq, err := r.ReadUint32()
	if err != nil {
		return row, err
	}
	mag, err := r.ReadUint32()
	if err != nil {
		return row, err
	}
	row.Frequency = freq
	row.Magnitude = mag

	for i := 0; i < protocol.DftNumComponents; i++ {
		v, err := r.ReadInt16()
		if err != nil {
			return row, err
		}
		row.Real[i] = v
	}
	for i := 0; i < protocol.DftNumComponents; i++ {
		v, err := r.ReadInt16()
		if err != nil {
			return row, err
		}
		row.Imag[i] = v
	}

	first, err := r.ReadInt8()
	if err != nil {
		return row, err
	}
	last, err := r.ReadInt8()
	if err != nil {
		return row, err
	}
	mid, err := r.ReadInt8()
	if err != nil {
		return row, err
	}
	zero, err := r.ReadInt8()
	if err != nil {
		return row, err
	}
	row.First, row.Last, row.Mid, row.Zero = first, last, mid, zero

	return row, nil
}

func (p *Parser) parseButton(r *reader.Reader, sink FrameSink) {
	var last Button
	seen := false

	for r.Size() >= protocol.ButtonSampleSize {
		pressure, err := r.ReadUint16()
		if err != nil {
			return
		}
		if err := r.Skip(12); err != nil {
			return
		}
		buttonByte, err := r.ReadUint8()
		if err != nil {
			return
		}
		if err := r.Skip(1); err != nil {
			return
		}

		last = Button{
			Active:   buttonByte != 0,
			Pressure: float64(pressure) / float64(protocol.ButtonMaxPressure),
		}
		seen = true
	}

	if seen {
		sink.OnButton(last)
	}
}
