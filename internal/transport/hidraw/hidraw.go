//go:build linux

// Package hidraw implements the production IPTS transport: a Linux
// /dev/hidrawN device node. Input reports arrive through blocking reads;
// feature reports go through the HIDIOCGFEATURE/HIDIOCSFEATURE ioctls.
package hidraw

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl direction/encoding constants (asm-generic/ioctl.h).
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNrBits   = 8
	iocTypeBits = 8
	iocSizeBits = 14

	iocNrShift   = 0
	iocTypeShift = iocNrShift + iocNrBits
	iocSizeShift = iocTypeShift + iocTypeBits
	iocDirShift  = iocSizeShift + iocSizeBits
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | size<<iocSizeShift | typ<<iocTypeShift | nr<<iocNrShift
}

// hidraw ioctls (linux/hidraw.h). The feature ioctls encode the buffer
// length into the request number.
func hidiocGRawInfo() uintptr {
	return ioc(iocRead, 'H', 0x03, unsafe.Sizeof(devInfo{}))
}

func hidiocSFeature(n int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x06, uintptr(n))
}

func hidiocGFeature(n int) uintptr {
	return ioc(iocRead|iocWrite, 'H', 0x07, uintptr(n))
}

// devInfo mirrors struct hidraw_devinfo.
type devInfo struct {
	Bustype uint32
	Vendor  int16
	Product int16
}

// Device is an open hidraw node.
type Device struct {
	fd   int
	path string
	info devInfo

	// Feature report ID carrying the 1-byte set-mode payload.
	setModeReport uint8
}

// Open opens the hidraw node at path and reads its device info.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := &Device{fd: fd, path: path, setModeReport: 0x05}

	if err := d.ioctl(hidiocGRawInfo(), unsafe.Pointer(&d.info)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("read device info from %s: %w", path, err)
	}

	return d, nil
}

func (d *Device) ioctl(req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Vendor returns the device's vendor ID.
func (d *Device) Vendor() uint16 { return uint16(d.info.Vendor) }

// Product returns the device's product ID.
func (d *Device) Product() uint16 { return uint16(d.info.Product) }

// Read blocks for the next input report and copies it into buf.
func (d *Device) Read(buf []byte) (int, error) {
	n, err := unix.Read(d.fd, buf)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", d.path, err)
	}
	return n, nil
}

// GetFeatureReport fetches the feature report with the given ID. buf[0]
// is overwritten with the report ID; the payload follows.
func (d *Device) GetFeatureReport(reportID uint8, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("hidraw: empty feature buffer")
	}

	buf[0] = reportID
	if err := d.ioctl(hidiocGFeature(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return 0, fmt.Errorf("get feature report %#x from %s: %w", reportID, d.path, err)
	}

	return len(buf), nil
}

// SetFeatureReport writes a feature report: the report ID followed by the
// payload.
func (d *Device) SetFeatureReport(reportID uint8, payload []byte) error {
	buf := make([]byte, 1+len(payload))
	buf[0] = reportID
	copy(buf[1:], payload)

	if err := d.ioctl(hidiocSFeature(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return fmt.Errorf("set feature report %#x on %s: %w", reportID, d.path, err)
	}

	return nil
}

// SetMode writes the single-byte set-mode feature report (0 =
// singletouch, 1 = multitouch).
func (d *Device) SetMode(multitouch bool) error {
	var v byte
	if multitouch {
		v = 1
	}
	return d.SetFeatureReport(d.setModeReport, []byte{v})
}

// Close releases the file descriptor.
func (d *Device) Close() error {
	return unix.Close(d.fd)
}
