package daemon

import (
	"math"

	"github.com/iptsd-go/iptsd/contacts"
	"github.com/iptsd-go/iptsd/contacts/detect"
	"github.com/iptsd-go/iptsd/contacts/stability"
	"github.com/iptsd-go/iptsd/contacts/track"
	"github.com/iptsd-go/iptsd/contacts/validate"
	"github.com/iptsd-go/iptsd/daemon/cone"
	"github.com/iptsd-go/iptsd/ipts"
	"github.com/iptsd-go/iptsd/sink"
)

// touchProcessor runs the contact pipeline over each heatmap frame and
// emits the surviving contacts to the sink. It is the sole reader of the
// rejection cones the stylus processor writes.
type touchProcessor struct {
	cfg *Config

	detector   *detect.Detector
	tracker    *track.Tracker
	validator  *validate.Validator
	checker    *stability.Checker
	stabilizer *stability.Stabilizer

	heatmap *detect.Image
	frame   []contacts.Contact

	// Indices emitted to the sink in the previous frame, for lift
	// bookkeeping.
	emitted map[int]bool

	physDiag float64
}

func newTouchProcessor(cfg *Config) *touchProcessor {
	detection := cfg.Detection
	detection.Normalize = true

	return &touchProcessor{
		cfg:        cfg,
		detector:   detect.NewDetector(detection),
		tracker:    track.NewTracker(),
		validator:  validate.NewValidator(cfg.Validation),
		checker:    stability.NewChecker(cfg.Checker),
		stabilizer: stability.NewStabilizer(cfg.Stabilizer),
		emitted:    make(map[int]bool),
		physDiag:   math.Hypot(cfg.Width, cfg.Height),
	}
}

// process runs one heatmap frame through detection, tracking, validation,
// cone-based palm rejection, stability filtering, and emission.
func (t *touchProcessor) process(data ipts.Touch, cones []*cone.Cone, stylusActive bool, out sink.Sink) error {
	if t.cfg.Touchscreen.Disable {
		t.liftAll(out)
		return nil
	}

	t.loadHeatmap(data)

	frame, err := t.detector.Detect(t.heatmap, t.frame)
	t.frame = frame
	if err != nil {
		// A diverging overlap merge drops this frame's contacts but
		// preserves the tracker state for the next one.
		return err
	}

	t.tracker.Track(t.frame)
	t.validator.Validate(t.frame)
	t.rejectPalms(cones)
	t.checker.Check(t.frame)
	t.stabilizer.Stabilize(t.frame)

	suppressAll := t.cfg.Touchscreen.DisableOnStylus && stylusActive
	if t.cfg.Touchscreen.DisableOnPalm && t.hasPalm() {
		suppressAll = true
	}

	t.emit(out, suppressAll)
	return nil
}

// loadHeatmap converts the raw byte heatmap into a normalized grid where
// high values mean touch presence. Raw values are inverted intensities
// (high = no touch).
func (t *touchProcessor) loadHeatmap(data ipts.Touch) {
	rows, cols := int(data.Rows), int(data.Columns)

	if t.heatmap == nil {
		t.heatmap = detect.NewImage(rows, cols)
	} else {
		t.heatmap.Resize(rows, cols)
	}

	span := float64(data.Max) - float64(data.Min)
	if span <= 0 {
		span = 1
	}

	for i, v := range data.Heatmap {
		if i >= rows*cols {
			break
		}
		t.heatmap.Data()[i] = 1 - (float64(v)-float64(data.Min))/span
	}
}

// rejectPalms feeds invalid contacts (palms) into the nearest active
// cone's direction estimate, then marks any remaining contact that falls
// inside an active cone, or too close to the stylus tip, as invalid.
func (t *touchProcessor) rejectPalms(cones []*cone.Cone) {
	invalid := false

	// Update the cone directions from the palms the validator found.
	for i := range t.frame {
		if t.frame[i].IsValid() {
			continue
		}

		x, y := t.physical(&t.frame[i])
		updateNearestCone(cones, x, y)
	}

	// Check if any regular contacts fall into an active cone.
	for i := range t.frame {
		c := &t.frame[i]
		if !c.IsValid() {
			continue
		}

		x, y := t.physical(c)

		for _, cn := range cones {
			if cn.Check(x, y) {
				c.Valid = &invalid
				break
			}
		}

		if t.cfg.Stylus.TipDistance > 0 && c.IsValid() {
			for _, cn := range cones {
				if !cn.Active() {
					continue
				}
				tx, ty := cn.Tip()
				if math.Hypot(x-tx, y-ty) <= t.cfg.Stylus.TipDistance {
					c.Valid = &invalid
					break
				}
			}
		}
	}
}

// updateNearestCone finds the closest active cone to the palm and blends
// its direction toward the palm position.
func updateNearestCone(cones []*cone.Cone, x, y float64) {
	var nearest *cone.Cone
	best := math.Inf(1)

	for _, cn := range cones {
		if !cn.Alive() || !cn.Active() {
			continue
		}

		tx, ty := cn.Tip()
		if d := math.Hypot(tx-x, ty-y); d < best {
			best = d
			nearest = cn
		}
	}

	if nearest != nil {
		nearest.UpdateDirection(x, y)
	}
}

// physical converts a contact's normalized position to physical cm,
// matching the coordinate space the cones are updated in.
func (t *touchProcessor) physical(c *contacts.Contact) (float64, float64) {
	return c.MeanX * t.cfg.Width, c.MeanY * t.cfg.Height
}

func (t *touchProcessor) hasPalm() bool {
	for i := range t.frame {
		if !t.frame[i].IsValid() {
			return true
		}
	}
	return false
}

// emit sends the frame's surviving contacts to the sink and lifts every
// contact that was emitted in the previous frame but not in this one.
func (t *touchProcessor) emit(out sink.Sink, suppressAll bool) {
	current := make(map[int]bool, len(t.frame))

	for i := range t.frame {
		c := &t.frame[i]

		if suppressAll || c.Index == nil || !c.IsValid() {
			continue
		}

		index := *c.Index
		current[index] = true

		x, y := c.MeanX, c.MeanY
		if t.cfg.InvertX {
			x = 1 - x
		}
		if t.cfg.InvertY {
			y = 1 - y
		}

		out.EmitContact(index, x, y, c.Major, c.Minor, c.Orientation, c.IsStable())
	}

	for index := range t.emitted {
		if !current[index] {
			out.EmitContactLift(index)
		}
	}

	t.emitted = current
}

// liftAll lifts every previously emitted contact, used when the
// touchscreen is disabled mid-stream.
func (t *touchProcessor) liftAll(out sink.Sink) {
	for index := range t.emitted {
		out.EmitContactLift(index)
	}
	t.emitted = make(map[int]bool)
}
