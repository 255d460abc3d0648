package runtimeinit

import (
	"fmt"
	"log"

	"screen-qr-scan/src/clipboard"
	"screen-qr-scan/src/config"
	"screen-qr-scan/src/notification"
	"screen-qr-scan/src/screenshot"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// ShowBlockingDeviceError pops a dialog when the screen cannot be opened.
	ShowBlockingDeviceError bool
	// OpenDevice defaults to the primary display.
	OpenDevice func() (screenshot.Device, error)
	// InitClipboard defaults to clipboard.Init.
	InitClipboard func() error
}

type Runtime struct {
	Config *config.Config
	Device screenshot.Device
}

// Bootstrap loads configuration, sets up logging and opens the capture device.
// A missing clipboard only disables copying.
func Bootstrap(opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	openDevice := opts.OpenDevice
	if openDevice == nil {
		openDevice = func() (screenshot.Device, error) { return screenshot.NewScreenDevice() }
	}
	dev, err := openDevice()
	if err != nil {
		if opts.ShowBlockingDeviceError {
			notification.ShowBlockingError("Screen capture unavailable", fmt.Sprintf("Could not open the display: %v", err))
		}
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	log.Printf("Capture device bounds: %v", dev.Bounds())

	if cfg.CopyToClipboard {
		initClipboard := opts.InitClipboard
		if initClipboard == nil {
			initClipboard = clipboard.Init
		}
		if err := initClipboard(); err != nil {
			log.Printf("Clipboard unavailable, copying disabled: %v", err)
			cfg.CopyToClipboard = false
		}
	}

	return &Runtime{Config: cfg, Device: dev}, nil
}
