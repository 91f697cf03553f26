//go:build linux

package uinput

import (
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Virtual coordinate space of the emitted devices; matches the logical
// coordinate range of the IPTS controllers.
const (
	maxX        = 9600
	maxY        = 7200
	maxPressure = 4096
	diagonal    = 12000

	maxContacts = 10
)

// Config describes the physical device behind the virtual ones.
type Config struct {
	Vendor  uint16
	Product uint16

	// Width and Height are the physical display dimensions in cm.
	Width, Height float64

	// InvertX and InvertY flip the reported orientation convention when
	// exactly one axis is mirrored.
	InvertX, InvertY bool

	// Multitouch disables the single-contact fallback path when set.
	Multitouch bool
}

// Sink drives one multitouch touchscreen uinput device and one stylus
// uinput device, implementing sink.Sink for the daemon pipeline.
type Sink struct {
	Log zerolog.Logger

	cfg Config

	touch  *device
	stylus *device

	// Slot of each active contact index, for single-touch fallback and
	// slot reuse.
	slots map[int]int

	err error
}

// res converts a virtual axis range over a physical dimension in cm to
// the units/mm resolution the kernel expects.
func res(virt int32, phys float64) int32 {
	return int32(math.Round(float64(virt) / (phys * 10)))
}

// New creates the touchscreen and stylus devices.
func New(cfg Config) (*Sink, error) {
	s := &Sink{
		Log:   log.Logger,
		cfg:   cfg,
		slots: make(map[int]int),
	}

	if err := s.createTouch(); err != nil {
		return nil, err
	}
	if err := s.createStylus(); err != nil {
		s.touch.close()
		return nil, err
	}

	return s, nil
}

func (s *Sink) createTouch() error {
	dev, err := openDevice("IPTS Touch", s.cfg.Vendor, s.cfg.Product)
	if err != nil {
		return err
	}

	resX := res(maxX, s.cfg.Width)
	resY := res(maxY, s.cfg.Height)
	resD := res(diagonal, math.Hypot(s.cfg.Width, s.cfg.Height))

	steps := []func() error{
		func() error { return dev.setEvbit(evAbs) },
		func() error { return dev.setEvbit(evKey) },
		func() error { return dev.setKeybit(btnTouch) },
		func() error { return dev.setKeybit(btnLeft) },
		func() error { return dev.setPropbit(inputPropDirect) },
		func() error { return dev.setAbsbit(absMtSlot) },
		func() error { return dev.setAbsbit(absMtTrackingID) },
		func() error { return dev.setAbsbit(absMtPositionX) },
		func() error { return dev.setAbsbit(absMtPositionY) },
		func() error { return dev.setAbsbit(absMtToolType) },
		func() error { return dev.setAbsbit(absMtOrientation) },
		func() error { return dev.setAbsbit(absMtTouchMajor) },
		func() error { return dev.setAbsbit(absMtTouchMinor) },
		func() error { return dev.setAbsbit(absX) },
		func() error { return dev.setAbsbit(absY) },
		func() error { return dev.setAbsinfo(absMtSlot, 0, maxContacts, 0) },
		func() error { return dev.setAbsinfo(absMtTrackingID, 0, maxContacts, 0) },
		func() error { return dev.setAbsinfo(absMtPositionX, 0, maxX, resX) },
		func() error { return dev.setAbsinfo(absMtPositionY, 0, maxY, resY) },
		func() error { return dev.setAbsinfo(absMtOrientation, 0, 180, 0) },
		func() error { return dev.setAbsinfo(absMtTouchMajor, 0, diagonal, resD) },
		func() error { return dev.setAbsinfo(absMtTouchMinor, 0, diagonal, resD) },
		func() error { return dev.setAbsinfo(absX, 0, maxX, resX) },
		func() error { return dev.setAbsinfo(absY, 0, maxY, resY) },
		func() error { return dev.create() },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			dev.close()
			return err
		}
	}

	s.touch = dev
	return nil
}

func (s *Sink) createStylus() error {
	dev, err := openDevice("IPTS Stylus", s.cfg.Vendor, s.cfg.Product)
	if err != nil {
		return err
	}

	resX := res(maxX, s.cfg.Width)
	resY := res(maxY, s.cfg.Height)

	// Tilt resolution is expected in units/radian.
	resTilt := int32(math.Round(18000 / math.Pi))

	steps := []func() error{
		func() error { return dev.setEvbit(evKey) },
		func() error { return dev.setEvbit(evAbs) },
		func() error { return dev.setKeybit(btnTouch) },
		func() error { return dev.setKeybit(btnToolPen) },
		func() error { return dev.setKeybit(btnToolRubber) },
		func() error { return dev.setKeybit(btnStylus) },
		func() error { return dev.setPropbit(inputPropDirect) },
		func() error { return dev.setPropbit(inputPropPointer) },
		func() error { return dev.setAbsbit(absX) },
		func() error { return dev.setAbsbit(absY) },
		func() error { return dev.setAbsbit(absPressure) },
		func() error { return dev.setAbsbit(absTiltX) },
		func() error { return dev.setAbsbit(absTiltY) },
		func() error { return dev.setAbsbit(absMisc) },
		func() error { return dev.setAbsinfo(absX, 0, maxX, resX) },
		func() error { return dev.setAbsinfo(absY, 0, maxY, resY) },
		func() error { return dev.setAbsinfo(absPressure, 0, maxPressure, 0) },
		func() error { return dev.setAbsinfo(absTiltX, -9000, 9000, resTilt) },
		func() error { return dev.setAbsinfo(absTiltY, -9000, 9000, resTilt) },
		func() error { return dev.setAbsinfo(absMisc, 0, 65535, 0) },
		func() error { return dev.create() },
	}

	for _, step := range steps {
		if err := step(); err != nil {
			dev.close()
			return err
		}
	}

	s.stylus = dev
	return nil
}

// SupportsMultitouch reports whether the sink emits full multitouch
// state (Config.Multitouch). The setting is fixed when the sink is
// created; the lifecycle manager does not read or change it when the
// mode-switch feature report fails.
func (s *Sink) SupportsMultitouch() bool {
	return s.cfg.Multitouch
}

// note records the first emission error of a batch; Sync surfaces it.
func (s *Sink) note(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

// EmitContact implements sink.Sink.
func (s *Sink) EmitContact(index int, x, y, major, minor, orientation float64, stable bool) {
	slot, ok := s.slots[index]
	if !ok {
		slot = s.freeSlot()
		s.slots[index] = slot
	}

	// Orientation arrives normalized to [0, 1) like the other contact
	// fields. The kernel wants degrees; when exactly one axis is mirrored
	// the rotation direction flips.
	angle := orientation * 180
	if s.cfg.InvertX != s.cfg.InvertY {
		angle = 180 - angle
	}

	s.note(s.touch.emit(evAbs, absMtSlot, int32(slot)))
	s.note(s.touch.emit(evAbs, absMtTrackingID, int32(index)))
	s.note(s.touch.emit(evAbs, absMtToolType, mtToolFinger))
	s.note(s.touch.emit(evAbs, absMtPositionX, int32(math.Round(x*maxX))))
	s.note(s.touch.emit(evAbs, absMtPositionY, int32(math.Round(y*maxY))))
	s.note(s.touch.emit(evAbs, absMtOrientation, int32(math.Round(angle))))
	s.note(s.touch.emit(evAbs, absMtTouchMajor, int32(math.Round(major*diagonal))))
	s.note(s.touch.emit(evAbs, absMtTouchMinor, int32(math.Round(minor*diagonal))))

	// Single-touch emulation follows the first active contact.
	if slot == 0 || !s.cfg.Multitouch {
		s.note(s.touch.emit(evKey, btnTouch, 1))
		s.note(s.touch.emit(evAbs, absX, int32(math.Round(x*maxX))))
		s.note(s.touch.emit(evAbs, absY, int32(math.Round(y*maxY))))
	}
}

// EmitContactLift implements sink.Sink.
func (s *Sink) EmitContactLift(index int) {
	slot, ok := s.slots[index]
	if !ok {
		return
	}
	delete(s.slots, index)

	s.note(s.touch.emit(evAbs, absMtSlot, int32(slot)))
	s.note(s.touch.emit(evAbs, absMtTrackingID, -1))

	if len(s.slots) == 0 {
		s.note(s.touch.emit(evKey, btnTouch, 0))
	}
}

func (s *Sink) freeSlot() int {
	for slot := 0; slot < maxContacts; slot++ {
		used := false
		for _, v := range s.slots {
			if v == slot {
				used = true
				break
			}
		}
		if !used {
			return slot
		}
	}
	return maxContacts - 1
}

// tilt converts altitude/azimuth in radians to the kernel's
// ABS_TILT_X/ABS_TILT_Y hundredths-of-a-degree convention.
func tilt(altitude, azimuth float64) (int32, int32) {
	if altitude <= 0 {
		return 0, 0
	}

	sinAlt, cosAlt := math.Sincos(altitude)
	sinAzm, cosAzm := math.Sincos(azimuth)

	atanX := math.Atan2(cosAlt, sinAlt*cosAzm)
	atanY := math.Atan2(cosAlt, sinAlt*sinAzm)

	tx := 9000 - int32(math.Round(atanX*4500/(math.Pi/4)))
	ty := int32(math.Round(atanY*4500/(math.Pi/4))) - 9000

	return tx, ty
}

// EmitStylus implements sink.Sink.
func (s *Sink) EmitStylus(proximity, contact, button, rubber bool, x, y, pressure, altitude, azimuth float64, timestamp uint16) {
	btnPen := proximity && !rubber
	btnRubber := proximity && rubber

	tx, ty := tilt(altitude, azimuth)

	s.note(s.stylus.emit(evKey, btnTouch, b2i(contact)))
	s.note(s.stylus.emit(evKey, btnToolPen, b2i(btnPen)))
	s.note(s.stylus.emit(evKey, btnToolRubber, b2i(btnRubber)))
	s.note(s.stylus.emit(evKey, btnStylus, b2i(button)))

	s.note(s.stylus.emit(evAbs, absX, int32(math.Round(x*maxX))))
	s.note(s.stylus.emit(evAbs, absY, int32(math.Round(y*maxY))))
	s.note(s.stylus.emit(evAbs, absPressure, int32(math.Round(pressure*maxPressure))))
	s.note(s.stylus.emit(evAbs, absMisc, int32(timestamp)))

	s.note(s.stylus.emit(evAbs, absTiltX, tx))
	s.note(s.stylus.emit(evAbs, absTiltY, ty))

	s.note(s.stylus.emit(evSyn, synReport, 0))
}

// EmitStylusLift implements sink.Sink.
func (s *Sink) EmitStylusLift() {
	s.note(s.stylus.emit(evKey, btnTouch, 0))
	s.note(s.stylus.emit(evKey, btnToolPen, 0))
	s.note(s.stylus.emit(evKey, btnToolRubber, 0))
	s.note(s.stylus.emit(evKey, btnStylus, 0))
	s.note(s.stylus.emit(evSyn, synReport, 0))
}

// EmitButton forwards touchpad-style button reports as a left click on
// the touch device.
func (s *Sink) EmitButton(active bool, pressure float64) {
	s.note(s.touch.emit(evKey, btnLeft, b2i(active)))
}

// Sync implements sink.Sink: commits the touch batch and surfaces the
// first emission error since the last call.
func (s *Sink) Sync() error {
	s.note(s.touch.emit(evSyn, synReport, 0))

	err := s.err
	s.err = nil
	return err
}

// Close destroys both virtual devices.
func (s *Sink) Close() error {
	err := s.touch.close()
	if cerr := s.stylus.close(); err == nil {
		err = cerr
	}
	return err
}

func b2i(v bool) int32 {
	if v {
		return 1
	}
	return 0
}
