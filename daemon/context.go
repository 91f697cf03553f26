package daemon

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/ipts/dft"
	"github.com/iptsd-go/iptsd/sink"
)

// buttonSink is the optional sink capability for touchpad-style button
// reports; sinks that don't implement it simply never see them.
type buttonSink interface {
	EmitButton(active bool, pressure float64)
}

// Context owns all per-device pipeline state and implements
// ipts.FrameSink: the parser's callbacks drive it synchronously from the
// ingest loop, and it emits the results to the configured input sink.
// Everything here is single-threaded; the rejection cones are written by
// the stylus path and read by the touch path within the same loop
// iteration, so no locking is needed.
type Context struct {
	Log zerolog.Logger

	cfg Config

	touch  *touchProcessor
	stylus *stylusProcessor
	dft    *dft.Decoder

	out sink.Sink

	// Pipeline counters, readable through Stats.
	frames     uint64
	contacts   int
	lastErrMsg string
}

// NewContext assembles a pipeline Context for one device.
func NewContext(cfg Config, out sink.Sink) *Context {
	c := &Context{
		Log: log.Logger,
		cfg: cfg,
		dft: dft.New(cfg.Dft),
		out: out,
	}

	// The processors share the context's config so metadata updates are
	// visible to both.
	c.touch = newTouchProcessor(&c.cfg)
	c.stylus = newStylusProcessor(&c.cfg)

	return c
}

// ProcessReport parses one raw device report and commits the resulting
// batch of events with a single Sync, per the sink contract.
func (c *Context) ProcessReport(p *ipts.Parser, data []byte) error {
	if err := p.Parse(data, c); err != nil {
		return err
	}

	c.frames++
	return c.out.Sync()
}

// OnStylus implements ipts.FrameSink for MPP stylus samples.
func (c *Context) OnStylus(s ipts.Stylus) {
	c.stylus.process(s, c.out)
}

// OnTouch implements ipts.FrameSink for heatmap frames.
func (c *Context) OnTouch(t ipts.Touch) {
	err := c.touch.process(t, c.stylus.cones(), c.stylus.anyInProximity(), c.out)
	if err != nil {
		// Per-frame errors are logged and the pipeline advances to the
		// next frame.
		c.lastErrMsg = err.Error()
		c.Log.Warn().Err(err).Msg("dropping touch frame")
		return
	}

	c.contacts = len(c.touch.frame)
}

// OnDft implements ipts.FrameSink for DFT stylus windows.
func (c *Context) OnDft(w ipts.DftWindow) {
	s, ok := c.dft.Decode(w)
	if !ok {
		return
	}

	c.stylus.process(s, c.out)
}

// OnButton implements ipts.FrameSink for touchpad button samples.
func (c *Context) OnButton(b ipts.Button) {
	if bs, ok := c.out.(buttonSink); ok {
		bs.EmitButton(b.Active, b.Pressure)
	}
}

// OnMetadata implements ipts.FrameSink. Device-reported dimensions and
// inversion flags override the static configuration.
func (c *Context) OnMetadata(m ipts.Metadata) {
	if m.Width > 0 {
		c.cfg.Width = m.Width
	}
	if m.Height > 0 {
		c.cfg.Height = m.Height
	}

	c.cfg.InvertX = m.InvertX
	c.cfg.InvertY = m.InvertY

	c.Log.Info().
		Uint8("rows", m.Rows).Uint8("columns", m.Columns).
		Float64("width", m.Width).Float64("height", m.Height).
		Bool("invert_x", m.InvertX).Bool("invert_y", m.InvertY).
		Msg("device metadata")
}

// Stats is a point-in-time snapshot of the pipeline counters.
type Stats struct {
	Frames       uint64 `json:"frames"`
	Contacts     int    `json:"contacts"`
	StylusActive bool   `json:"stylus_active"`
	LastError    string `json:"last_error,omitempty"`
}

// Stats returns a snapshot of the pipeline counters. It must be called
// from the ingest goroutine; the diagnostics server reads the published
// copy instead.
func (c *Context) Stats() Stats {
	return Stats{
		Frames:       c.frames,
		Contacts:     c.contacts,
		StylusActive: c.stylus.anyInProximity(),
		LastError:    c.lastErrMsg,
	}
}
