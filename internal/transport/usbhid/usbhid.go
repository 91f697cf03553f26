// Package usbhid implements the USB HID class-request transport for IPTS
// controllers that enumerate as composite USB HID devices rather than
// I2C/SPI (the common case for some docking and external-touchscreen
// configurations). It reads input reports via bulk/interrupt transfers and
// issues Get/Set Feature Report class requests through libusb control
// transfers, mirroring the narrow controlTransfer-wrapper idiom of the
// Android-Accessory transport this package was adapted from.
package usbhid

import (
	"fmt"
	"time"

	"github.com/google/gousb"
)

// HID class-specific request codes (USB HID 1.11 §7.2).
const (
	reqGetReport = 0x01
	reqSetReport = 0x09

	reportTypeInput   = 0x01
	reportTypeOutput  = 0x02
	reportTypeFeature = 0x03

	// bmRequestType for class requests targeting an interface.
	bmRequestTypeOut = 0x21 // host-to-device | class | interface
	bmRequestTypeIn  = 0xA1 // device-to-host | class | interface

	usbTimeout = 1000 * time.Millisecond
)

// Device wraps a libusb handle to a USB-attached IPTS touch controller.
type Device struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	iface *gousb.Interface
	done  func()
	in    *gousb.InEndpoint

	vendor, product uint16
}

// Open finds and opens the IPTS controller with the given vendor/product ID.
func Open(vendor, product uint16) (*Device, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(vendor), gousb.ID(product))
	if err != nil || dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("open IPTS USB device %04x:%04x: %w", vendor, product, err)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("set auto detach: %w", err)
	}

	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim config: %w", err)
	}

	iface, done, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}

	var inEP *gousb.InEndpoint
	for _, ep := range iface.Setting.Endpoints {
		if ep.Direction == gousb.EndpointDirectionIn {
			in, err := iface.InEndpoint(ep.Number)
			if err == nil {
				inEP = in
				break
			}
		}
	}

	return &Device{
		ctx: ctx, dev: dev, iface: iface, done: done, in: inEP,
		vendor: vendor, product: product,
	}, nil
}

// Read blocks for the next input report and copies it into buf, returning
// the number of bytes written.
func (d *Device) Read(buf []byte) (int, error) {
	if d.in == nil {
		return 0, fmt.Errorf("usbhid: no input endpoint claimed")
	}
	return d.in.Read(buf)
}

// GetFeatureReport issues a class GET_REPORT request for the feature report
// with the given report ID, writing up to len(buf) bytes into buf.
func (d *Device) GetFeatureReport(reportID uint8, buf []byte) (int, error) {
	wValue := uint16(reportTypeFeature)<<8 | uint16(reportID)
	return d.dev.Control(bmRequestTypeIn, reqGetReport, wValue, uint16(d.iface.Setting.Number), buf)
}

// SetFeatureReport issues a class SET_REPORT request for the feature report
// with the given report ID.
func (d *Device) SetFeatureReport(reportID uint8, payload []byte) error {
	wValue := uint16(reportTypeFeature)<<8 | uint16(reportID)
	_, err := d.dev.Control(bmRequestTypeOut, reqSetReport, wValue, uint16(d.iface.Setting.Number), payload)
	if err != nil {
		return fmt.Errorf("usbhid: set feature report %d: %w", reportID, err)
	}
	return nil
}

// SetMode writes the single-byte set-mode feature report (0 = singletouch,
// 1 = multitouch).
func (d *Device) SetMode(multitouch bool) error {
	var v byte
	if multitouch {
		v = 1
	}
	return d.SetFeatureReport(0, []byte{v})
}

// Close releases USB resources.
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
	}
	d.dev.Close()
	return d.ctx.Close()
}
