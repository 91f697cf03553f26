//go:build linux

// Package uinput implements sink.Sink on top of Linux virtual input
// devices: one multitouch touchscreen device and one stylus device,
// created through /dev/uinput and driven with input_event writes.
package uinput

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// input-event and uinput constants (linux/input-event-codes.h,
// linux/input.h, linux/uinput.h).
const (
	evSyn = 0x00
	evKey = 0x01
	evAbs = 0x03

	synReport = 0

	btnTouch      = 0x14a
	btnToolPen    = 0x140
	btnToolRubber = 0x141
	btnStylus     = 0x14b
	btnLeft       = 0x110

	absX        = 0x00
	absY        = 0x01
	absPressure = 0x18
	absTiltX    = 0x1a
	absTiltY    = 0x1b
	absMisc     = 0x28

	absMtSlot        = 0x2f
	absMtTouchMajor  = 0x30
	absMtTouchMinor  = 0x31
	absMtOrientation = 0x34
	absMtPositionX   = 0x35
	absMtPositionY   = 0x36
	absMtToolType    = 0x37
	absMtTrackingID  = 0x39

	mtToolFinger = 0

	inputPropPointer = 0x00
	inputPropDirect  = 0x01

	busVirtual = 0x06
)

// uinput ioctls.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502

	uiDevSetup = 0x405c5503
	uiAbsSetup = 0x401c5504

	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiSetAbsbit  = 0x40045567
	uiSetPropbit = 0x4004556e
)

// inputID mirrors struct input_id.
type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	ID           inputID
	Name         [80]byte
	FFEffectsMax uint32
}

// absInfo mirrors struct input_absinfo.
type absInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// uinputAbsSetup mirrors struct uinput_abs_setup.
type uinputAbsSetup struct {
	Code    uint16
	_       uint16
	AbsInfo absInfo
}

// inputEvent mirrors struct input_event on 64-bit platforms.
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

// device is one open uinput file descriptor, configured then created.
type device struct {
	fd int

	name    string
	vendor  uint16
	product uint16
	version uint16
}

func openDevice(name string, vendor, product uint16) (*device, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/uinput: %w", err)
	}

	return &device{fd: fd, name: name, vendor: vendor, product: product}, nil
}

func (d *device) ioctl(req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *device) setEvbit(ev int32) error {
	return d.ioctl(uiSetEvbit, uintptr(ev))
}

func (d *device) setKeybit(key int32) error {
	return d.ioctl(uiSetKeybit, uintptr(key))
}

func (d *device) setAbsbit(code int32) error {
	return d.ioctl(uiSetAbsbit, uintptr(code))
}

func (d *device) setPropbit(prop int32) error {
	return d.ioctl(uiSetPropbit, uintptr(prop))
}

func (d *device) setAbsinfo(code uint16, min, max, res int32) error {
	abs := uinputAbsSetup{Code: code}
	abs.AbsInfo.Minimum = min
	abs.AbsInfo.Maximum = max
	abs.AbsInfo.Resolution = res

	return d.ioctl(uiAbsSetup, uintptr(unsafe.Pointer(&abs)))
}

// create finalizes the configuration and registers the virtual device
// with the kernel.
func (d *device) create() error {
	setup := uinputSetup{
		ID: inputID{
			Bustype: busVirtual,
			Vendor:  d.vendor,
			Product: d.product,
			Version: d.version,
		},
	}
	copy(setup.Name[:len(setup.Name)-1], d.name)

	if err := d.ioctl(uiDevSetup, uintptr(unsafe.Pointer(&setup))); err != nil {
		return fmt.Errorf("UI_DEV_SETUP %s: %w", d.name, err)
	}
	if err := d.ioctl(uiDevCreate, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE %s: %w", d.name, err)
	}

	return nil
}

// emit writes one input event.
func (d *device) emit(typ, code uint16, value int32) error {
	ie := inputEvent{Type: typ, Code: code, Value: value}

	buf := (*[unsafe.Sizeof(ie)]byte)(unsafe.Pointer(&ie))[:]
	if _, err := unix.Write(d.fd, buf); err != nil {
		return fmt.Errorf("write input event to %s: %w", d.name, err)
	}

	return nil
}

func (d *device) close() error {
	_ = d.ioctl(uiDevDestroy, 0)
	return unix.Close(d.fd)
}
