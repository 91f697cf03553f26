package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/internal/config"
	"github.com/iptsd-go/iptsd/internal/device"
	"github.com/iptsd-go/iptsd/sink"
)

// fakeDevice scripts the transport: each Read call pops the next entry,
// which is either a report or an error.
type fakeDevice struct {
	reads   []readResult
	pos     int
	modeSet []bool
	closed  bool
}

type readResult struct {
	data []byte
	err  error
}

var errShortRead = errors.New("fake: transport failure")

func (f *fakeDevice) Read(buf []byte) (int, error) {
	if f.pos >= len(f.reads) {
		// Out of scripted reads: fail every further read.
		return 0, errShortRead
	}

	r := f.reads[f.pos]
	f.pos++

	if r.err != nil {
		return 0, r.err
	}
	return copy(buf, r.data), nil
}

func (f *fakeDevice) GetFeatureReport(reportID uint8, buf []byte) (int, error) {
	return 0, errors.New("fake: no feature reports")
}

func (f *fakeDevice) SetFeatureReport(reportID uint8, payload []byte) error {
	return nil
}

func (f *fakeDevice) SetMode(multitouch bool) error {
	f.modeSet = append(f.modeSet, multitouch)
	return nil
}

func (f *fakeDevice) Close() error {
	f.closed = true
	return nil
}

// countingSink counts Sync calls so tests can see frames flowing.
type countingSink struct {
	syncs int
}

func (c *countingSink) EmitContact(index int, x, y, major, minor, orientation float64, stable bool) {
}
func (c *countingSink) EmitContactLift(index int) {}
func (c *countingSink) EmitStylus(proximity, contact, button, rubber bool, x, y, pressure, altitude, azimuth float64, timestamp uint16) {
}
func (c *countingSink) EmitStylusLift() {}
func (c *countingSink) Sync() error     { c.syncs++; return nil }

func emptyReport() []byte {
	return []byte{0, 0, 0}
}

func TestManagerExhaustsRetryBudget(t *testing.T) {
	dev := &fakeDevice{} // every read fails

	mgr := device.NewManager(config.Default(), 0, 0,
		func() (device.RawDevice, error) { return dev, nil },
		func(config.Values) (sink.Sink, error) { return &countingSink{}, nil },
	)

	done := make(chan error, 1)
	go func() {
		done <- mgr.Run(context.Background())
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, device.ErrRetryBudgetExhausted)
	case <-time.After(30 * time.Second):
		t.Fatal("manager did not give up within the retry budget")
	}

	require.True(t, dev.closed)
}

func TestManagerStopsOnContextCancel(t *testing.T) {
	reads := make([]readResult, 0, 1000)
	for i := 0; i < 1000; i++ {
		reads = append(reads, readResult{data: emptyReport()})
	}
	dev := &fakeDevice{reads: reads}

	mgr := device.NewManager(config.Default(), 0, 0,
		func() (device.RawDevice, error) { return dev, nil },
		func(config.Values) (sink.Sink, error) { return &countingSink{}, nil },
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- mgr.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "cancellation is a clean shutdown")
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not observe cancellation")
	}
}

func TestManagerSetsMultitouchModeOnConnect(t *testing.T) {
	dev := &fakeDevice{reads: []readResult{{data: emptyReport()}}}

	mgr := device.NewManager(config.Default(), 0, 0,
		func() (device.RawDevice, error) { return dev, nil },
		func(config.Values) (sink.Sink, error) { return &countingSink{}, nil },
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- mgr.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	require.NotEmpty(t, dev.modeSet)
	require.True(t, dev.modeSet[0], "multitouch mode is requested on connect")
}
