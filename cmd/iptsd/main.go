//go:build linux

// iptsd — userspace daemon for Intel Precise Touch & Stylus touchscreens.
//
// Reads the raw report stream from the touch controller's hidraw node,
// decodes it into touch contacts and stylus poses, and forwards them to
// virtual input devices via uinput.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iptsd-go/iptsd/internal/config"
	"github.com/iptsd-go/iptsd/internal/device"
	"github.com/iptsd-go/iptsd/internal/server"
	"github.com/iptsd-go/iptsd/internal/service"
	"github.com/iptsd-go/iptsd/internal/transport/hidraw"
	"github.com/iptsd-go/iptsd/internal/transport/usbhid"
	"github.com/iptsd-go/iptsd/sink"
	"github.com/iptsd-go/iptsd/sink/uinput"
)

var version = "dev"

func main() {
	var (
		devicePath  = flag.String("device", "", "path to the IPTS hidraw node (e.g. /dev/hidraw0)")
		usbID       = flag.String("usb", "", "open a USB-attached controller by vendor:product (hex) instead of a hidraw node")
		configPath  = flag.String("config", config.DefaultPath(), "path to the configuration file")
		listenAddr  = flag.String("listen", "127.0.0.1:0", "diagnostics server address, empty to disable")
		verbose     = flag.Bool("verbose", false, "enable debug logging")
		installUnit = flag.Bool("install-service", false, "install and enable the systemd unit, then exit")
		removeUnit  = flag.Bool("uninstall-service", false, "disable and remove the systemd unit, then exit")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *installUnit {
		if err := service.Enable(); err != nil {
			log.Fatal().Err(err).Msg("install service")
		}
		log.Info().Msg("systemd unit installed and enabled")
		return
	}
	if *removeUnit {
		if err := service.Disable(); err != nil {
			log.Fatal().Err(err).Msg("uninstall service")
		}
		log.Info().Msg("systemd unit removed")
		return
	}

	if *devicePath == "" && *usbID == "" {
		log.Fatal().Msg("no device given, use --device /dev/hidrawN or --usb vendor:product")
	}

	// Configuration errors refuse startup; running with half-applied
	// settings produces subtly broken input instead of a clear failure.
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	var (
		vendor, product uint16
		opener          device.Opener
	)

	if *usbID != "" {
		var v, p uint16
		if _, err := fmt.Sscanf(*usbID, "%x:%x", &v, &p); err != nil {
			log.Fatal().Str("usb", *usbID).Msg("invalid --usb value, expected vendor:product in hex")
		}
		vendor, product = v, p

		opener = func() (device.RawDevice, error) {
			return usbhid.Open(vendor, product)
		}
	} else {
		// Probe the node once up front for its vendor/product ID, so
		// the per-device config override can be selected before the
		// manager's reconnect loop starts.
		probe, err := hidraw.Open(*devicePath)
		if err != nil {
			log.Fatal().Err(err).Str("device", *devicePath).Msg("open device")
		}
		vendor, product = probe.Vendor(), probe.Product()
		probe.Close()

		opener = func() (device.RawDevice, error) {
			return hidraw.Open(*devicePath)
		}
	}

	log.Info().
		Str("device", *devicePath+*usbID).
		Str("id", fmt.Sprintf("%04x:%04x", vendor, product)).
		Str("version", version).
		Msg("starting iptsd")

	sinks := func(values config.Values) (sink.Sink, error) {
		return uinput.New(uinput.Config{
			Vendor:     vendor,
			Product:    product,
			Width:      values.Width,
			Height:     values.Height,
			InvertX:    values.InvertX,
			InvertY:    values.InvertY,
			Multitouch: true,
		})
	}

	mgr := device.NewManager(cfg, vendor, product, opener, sinks)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *listenAddr != "" {
		srv := server.New(mgr, cfg, version)
		if _, err := srv.Start(*listenAddr); err != nil {
			log.Warn().Err(err).Msg("diagnostics server failed to start")
		} else {
			defer srv.Stop()
		}
	}

	// The manager blocks until the context is cancelled or the transport
	// retry budget is exhausted.
	if err := mgr.Run(ctx); err != nil {
		if errors.Is(err, device.ErrRetryBudgetExhausted) {
			log.Error().Err(err).Msg("giving up on device")
			os.Exit(1)
		}
		log.Fatal().Err(err).Msg("device manager failed")
	}

	log.Info().Msg("shutting down")
}
