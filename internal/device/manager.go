// Package device manages the connection to the IPTS touch controller.
// It opens the device node, switches the controller into multitouch mode,
// runs the ingest loop that feeds the parser, and reconnects with a
// bounded retry budget when the transport fails.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iptsd-go/iptsd/daemon"
	"github.com/iptsd-go/iptsd/internal/config"
	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/sink"
)

// RawDevice is the narrow transport surface the manager drives. The
// hidraw and usbhid packages both satisfy it.
type RawDevice interface {
	Read(buf []byte) (int, error)
	GetFeatureReport(reportID uint8, buf []byte) (int, error)
	SetFeatureReport(reportID uint8, payload []byte) error
	SetMode(multitouch bool) error
	Close() error
}

// Opener opens the transport; injected so tests can run without
// hardware.
type Opener func() (RawDevice, error)

// SinkFactory builds the input sink once the device is known.
type SinkFactory func(values config.Values) (sink.Sink, error)

// State represents the current device state.
type State int

const (
	Disconnected State = iota
	Connected
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Transport error handling: the ingest loop retries a failing read up to
// maxReadErrors times with errorBackoff between attempts before giving
// up on the connection. Any successful read resets the counter.
const (
	maxReadErrors = 50
	errorBackoff  = 100 * time.Millisecond

	reconnectDelay = 2 * time.Second

	// Largest report any known IPTS controller produces.
	readBufferSize = 16 * 1024

	// Feature report carrying the Metadata HID frame.
	metadataReport = 0x06
)

// ErrRetryBudgetExhausted means the transport failed maxReadErrors times
// in a row; the process should exit non-zero.
var ErrRetryBudgetExhausted = errors.New("device: transport retry budget exhausted")

// Manager owns the device lifecycle and the ingest loop.
type Manager struct {
	Log zerolog.Logger

	mu    sync.Mutex
	state State

	open    Opener
	sinks   SinkFactory
	cfg     *config.Config
	vendor  uint16
	product uint16

	// Published once per frame for the diagnostics server.
	stats atomic.Value // daemon.Stats
}

// NewManager builds a Manager. vendor/product select the per-device
// config override block.
func NewManager(cfg *config.Config, vendor, product uint16, open Opener, sinks SinkFactory) *Manager {
	m := &Manager{
		Log:     log.Logger,
		state:   Disconnected,
		open:    open,
		sinks:   sinks,
		cfg:     cfg,
		vendor:  vendor,
		product: product,
	}
	m.stats.Store(daemon.Stats{})
	return m
}

// State returns the current device state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Stats returns the last published pipeline counters.
func (m *Manager) Stats() daemon.Stats {
	return m.stats.Load().(daemon.Stats)
}

// Run connects to the device and processes reports until ctx is
// cancelled. A lost connection is retried every reconnectDelay; only an
// exhausted retry budget or an unrecoverable setup error ends the loop
// with an error.
func (m *Manager) Run(ctx context.Context) error {
	for {
		err := m.session(ctx)

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrRetryBudgetExhausted) {
			return err
		}
		if err != nil {
			m.Log.Warn().Err(err).Msg("device session ended, reconnecting")
		}

		m.setState(Disconnected)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// session runs one full connection: open, mode switch, ingest loop,
// close.
func (m *Manager) session(ctx context.Context) error {
	dev, err := m.open()
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer dev.Close()

	m.setState(Connected)
	m.Log.Info().Msg("device connected")

	multitouch := true
	if err := dev.SetMode(true); err != nil {
		// Older firmware may refuse multitouch mode; fall back to
		// singletouch reporting rather than giving up.
		m.Log.Warn().Err(err).Msg("multitouch mode rejected, falling back to singletouch")
		multitouch = false
	}
	defer func() {
		if multitouch {
			_ = dev.SetMode(false)
		}
	}()

	values := m.cfg.ForDevice(m.vendor, m.product)
	pipelineCfg, err := values.Runtime()
	if err != nil {
		return err
	}

	out, err := m.sinks(values)
	if err != nil {
		return fmt.Errorf("create sink: %w", err)
	}
	if closer, ok := out.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	pctx := daemon.NewContext(pipelineCfg, out)
	parser := ipts.NewParser()

	m.fetchMetadata(dev, parser, pctx)

	m.setState(Active)

	return m.ingest(ctx, dev, parser, pctx)
}

// fetchMetadata asks the device for its metadata feature report and, if
// available, feeds the contained Metadata HID frame through the parser.
// An unavailable feature report is not an error; the static config
// applies instead.
func (m *Manager) fetchMetadata(dev RawDevice, parser *ipts.Parser, pctx *daemon.Context) {
	buf := make([]byte, 256)

	n, err := dev.GetFeatureReport(metadataReport, buf)
	if err != nil {
		m.Log.Debug().Err(err).Msg("device metadata feature report unavailable")
		return
	}

	// The feature payload starts directly with a HID frame; only the
	// 1-byte report ID precedes it.
	_ = parser.ParseWithHeaderSize(buf[:n], 1, pctx)
}

// ingest is the single-threaded cooperative loop that owns all pipeline
// state: read one report, drive the parser (which synchronously mutates
// detector/tracker/stylus state and emits to the sink), publish stats,
// check for cancellation, repeat.
func (m *Manager) ingest(ctx context.Context, dev RawDevice, parser *ipts.Parser, pctx *daemon.Context) error {
	buf := make([]byte, readBufferSize)
	consecutiveErrors := 0

	for {
		// Cancellation is only observed between reports: a frame is
		// either fully processed or not started.
		if ctx.Err() != nil {
			return nil
		}

		n, err := dev.Read(buf)
		if err != nil {
			consecutiveErrors++
			m.Log.Warn().Err(err).Int("consecutive", consecutiveErrors).Msg("device read failed")

			if consecutiveErrors >= maxReadErrors {
				return ErrRetryBudgetExhausted
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}
		consecutiveErrors = 0

		if n == 0 {
			continue
		}

		if err := pctx.ProcessReport(parser, buf[:n]); err != nil {
			// Sink errors are logged, the pipeline advances to the
			// next frame.
			m.Log.Warn().Err(err).Msg("frame processing failed")
		}

		m.stats.Store(pctx.Stats())
	}
}
