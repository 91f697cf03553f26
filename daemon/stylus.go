package daemon

import (
	"math"

	"github.com/iptsd-go/iptsd/daemon/cone"
	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/sink"
)

// stylusState is the per-serial stylus bookkeeping: each physical pen the
// controller reports gets its own rejection cone and proximity state.
type stylusState struct {
	serial uint32
	cone   *cone.Cone

	proximity bool
	timestamp uint16
}

// stylusProcessor converts decoded stylus samples into sink emissions and
// keeps the rejection cones the touch processor reads. It tracks multiple
// styli by serial and switches the active one when a sample arrives with
// a different serial.
type stylusProcessor struct {
	cfg *Config

	styli  []*stylusState
	active *stylusState
}

func newStylusProcessor(cfg *Config) *stylusProcessor {
	return &stylusProcessor{cfg: cfg}
}

// get returns the state for the given serial, creating it on first
// sight. A serial of 0 reuses the active stylus, since some samples omit
// the serial of the pen they belong to.
func (s *stylusProcessor) get(serial uint32) *stylusState {
	if serial == 0 && s.active != nil {
		return s.active
	}

	for _, st := range s.styli {
		if st.serial == serial {
			return st
		}
	}

	angle := math.Cos(s.cfg.Cone.Angle * math.Pi / 180)
	st := &stylusState{
		serial: serial,
		cone:   cone.New(angle, s.cfg.Cone.Distance),
	}
	s.styli = append(s.styli, st)

	return st
}

// cones returns the rejection cones of all known styli, for the touch
// processor to check against.
func (s *stylusProcessor) cones() []*cone.Cone {
	out := make([]*cone.Cone, len(s.styli))
	for i, st := range s.styli {
		out[i] = st.cone
	}
	return out
}

// anyInProximity reports whether any stylus is currently hovering or
// drawing.
func (s *stylusProcessor) anyInProximity() bool {
	for _, st := range s.styli {
		if st.proximity {
			return true
		}
	}
	return false
}

// process handles one decoded stylus sample: updates the pen's cone tip,
// inherits the previous timestamp when the payload omits one, and emits
// the pose (or a lift, on leaving proximity) to the sink.
func (s *stylusProcessor) process(data ipts.Stylus, out sink.Sink) {
	if s.cfg.Stylus.Disable {
		return
	}

	st := s.get(data.Serial)
	s.active = st

	if data.Proximity {
		// The cone lives in physical coordinates.
		st.cone.UpdatePosition(data.X*s.cfg.Width, data.Y*s.cfg.Height)
	}

	if data.Timestamp == 0 {
		data.Timestamp = st.timestamp
	} else {
		st.timestamp = data.Timestamp
	}

	wasProximity := st.proximity
	st.proximity = data.Proximity

	if !data.Proximity {
		if wasProximity {
			out.EmitStylusLift()
		}
		return
	}

	x, y := data.X, data.Y
	if s.cfg.InvertX {
		x = 1 - x
	}
	if s.cfg.InvertY {
		y = 1 - y
	}

	out.EmitStylus(data.Proximity, data.Contact, data.Button, data.Rubber,
		x, y, data.Pressure, data.Altitude, data.Azimuth, data.Timestamp)
}
