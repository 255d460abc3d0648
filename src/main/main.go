package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"screen-qr-scan/src/config"
	"screen-qr-scan/src/decode"
	"screen-qr-scan/src/eventloop"
	"screen-qr-scan/src/hotkey"
	"screen-qr-scan/src/input"
	"screen-qr-scan/src/logutil"
	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/runtimeinit"
	"screen-qr-scan/src/session"
	"screen-qr-scan/src/singleinstance"
	"screen-qr-scan/src/tray"
	"screen-qr-scan/src/worker"
)

type mainOptions struct {
	runOnce bool
	stdout  bool
	mode    string
	timeout time.Duration
}

func main() {
	// Ensure DPI awareness before querying any screen metrics.
	enableDPIAwareness()

	// The tray message loop must stay on the main OS thread.
	runtime.LockOSThread()

	if err := runWithArgs(normalizeLegacyArgs(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"screen-qr-scan"}
	}
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "screen-qr-scan",
		Short:         "Scan QR codes from a dragged screen region",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.runOnce {
				return runOnce(*opts)
			}
			return runResident(*opts)
		},
	}

	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Scan one selection, deliver the payload and exit")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "With --run-once, print the payload instead of copying or opening it")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "Scan mode override: oneshot or continuous")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "With --run-once, give up after this long (0 waits forever)")

	return cmd
}

// normalizeLegacyArgs maps Go-style -run-once to the GNU form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "stdout", "mode", "timeout"} {
			switch {
			case arg == "-"+name:
				normalized[i] = "--" + name
			case strings.HasPrefix(arg, "-"+name+"="):
				normalized[i] = "-" + arg
			}
		}
	}

	return normalized
}

// pipeline is one running loop with its worker and input lane.
type pipeline struct {
	loop   *eventloop.Loop
	worker *worker.Worker
	errCh  chan error
}

func startPipeline(ctx context.Context, rt *runtimeinit.Runtime, target eventloop.Target, armed bool) (*pipeline, error) {
	cfg := rt.Config

	debugDir := ""
	if cfg.DebugSaveImages {
		debugDir = cfg.DebugImageDir
	}
	w := worker.Start(ctx, rt.Device, worker.Options{Timeout: cfg.CaptureTimeout, DebugDir: debugDir})

	loop := eventloop.New(eventloop.Options{
		Capturer:   w,
		Decoder:    decode.New(decode.Options{TryHarder: cfg.DecodeTryHarder}),
		Target:     target,
		Continuous: cfg.Continuous(),
		Armed:      armed,
	})

	var matcher *hotkey.Matcher
	if cfg.Hotkey != "" {
		m, err := hotkey.NewMatcher(cfg.Hotkey)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("invalid HOTKEY: %w", err)
		}
		matcher = m
	}
	input.Listen(ctx, matcher, input.Sink{OnPointer: loop.Post, OnHotkey: loop.Toggle})

	p := &pipeline{loop: loop, worker: w, errCh: make(chan error, 1)}
	go func() { p.errCh <- loop.Run(ctx) }()
	return p, nil
}

// targetsFor builds the delivery chain for a resident or run-once session.
func targetsFor(cfg *config.Config, toStdout bool, stdout io.Writer) session.Targets {
	if toStdout {
		return session.Targets{session.StdoutTarget{Writer: stdout}}
	}
	var targets session.Targets
	if cfg.CopyToClipboard {
		targets = append(targets, session.ClipboardTarget{})
	}
	if cfg.OpenPayloads {
		targets = append(targets, session.BrowserTarget{Schemes: cfg.OpenSchemes})
	}
	return targets
}

func portRange(cfg *config.Config) singleinstance.PortRange {
	return singleinstance.PortRange{Start: cfg.ResidentPortStart, End: cfg.ResidentPortEnd}
}

// watchedScanner reads outcomes from a private watch so a delegated session
// and the tray never steal each other's results.
type watchedScanner struct {
	*eventloop.Loop
	outcomes <-chan messages.Outcome
}

func (w watchedScanner) Outcomes() <-chan messages.Outcome { return w.outcomes }

// delegatedScan runs one session on the resident loop for a run-once client.
// The loop target has already delivered the payload by the time it is returned.
func delegatedScan(loop *eventloop.Loop) singleinstance.Handler {
	return func(ctx context.Context, req singleinstance.Request) (string, error) {
		if req.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, req.Timeout)
			defer cancel()
		}
		outcomes, stop := loop.Watch()
		defer stop()
		res, err := session.Execute(ctx, session.Options{Scanner: watchedScanner{Loop: loop, outcomes: outcomes}})
		return res.Payload, err
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runResident(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:             config.LoadOptions{ScanModeOverride: opts.mode},
		SetupLogging:            logutil.Setup,
		ShowBlockingDeviceError: true,
	})
	if err != nil {
		return err
	}
	cfg := rt.Config

	log.Printf("Screen QR Scan initialized")
	log.Printf("Hotkey: %s", cfg.Hotkey)
	log.Printf("Scan mode: %s, capture timeout: %v", cfg.ScanMode, cfg.CaptureTimeout)

	ctx, cancel := signalContext()
	defer cancel()

	srv := singleinstance.NewServer(portRange(cfg))
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("a resident is already running on port %d", cfg.ResidentPortStart)
	}
	defer srv.Close()

	p, err := startPipeline(ctx, rt, targetsFor(cfg, false, os.Stdout), cfg.ArmOnStart)
	if err != nil {
		return err
	}
	defer p.worker.Close()
	go singleinstance.Serve(ctx, srv, delegatedScan(p.loop))

	tray.Run(ctx, tray.Config{
		Hotkey:       cfg.Hotkey,
		Source:       p.loop,
		Controller:   p.loop,
		PollInterval: cfg.PollInterval,
		OnExit:       cancel,
	})

	if err := <-p.errCh; err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("event loop stopped: %v", err)
	}
	log.Printf("Screen QR Scan exiting")
	return nil
}

func runOnce(opts mainOptions) error {
	// Load early so the port range is known before delegation.
	cfg, err := config.LoadWithOptions(config.LoadOptions{ScanModeOverride: opts.mode})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	delegated, err := delegateRunOnce(singleinstance.NewClient(portRange(cfg)), opts, os.Stdout)
	if delegated {
		if err != nil {
			log.Printf("Delegated scan failed: %v", err)
		}
		return err
	}
	if err != nil {
		log.Printf("Delegation error: %v; falling back to standalone", err)
	}
	log.Printf("No resident detected, running standalone")
	return runStandalone(opts)
}

// delegateRunOnce asks a resident to scan. With --stdout the payload is
// printed here; otherwise the resident has already delivered it.
func delegateRunOnce(client singleinstance.Client, opts mainOptions, stdout io.Writer) (bool, error) {
	ctx, cancel := signalContext()
	defer cancel()
	if opts.timeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, opts.timeout)
		defer tcancel()
	}
	delegated, payload, err := client.TryScan(ctx, opts.timeout)
	if !delegated {
		return false, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, session.ErrTimeout
	}
	if err != nil {
		return true, err
	}
	log.Printf("Delegated to resident")
	if opts.stdout {
		_, err = fmt.Fprint(stdout, payload)
	}
	return true, err
}

func runStandalone(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions:  config.LoadOptions{ScanModeOverride: opts.mode},
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	// One gesture only, regardless of the configured mode.
	rt.Config.ScanMode = config.ScanModeOneShot

	ctx, cancel := signalContext()
	defer cancel()

	p, err := startPipeline(ctx, rt, nil, false)
	if err != nil {
		return err
	}
	defer p.worker.Close()

	waitCtx := ctx
	if opts.timeout > 0 {
		var waitCancel context.CancelFunc
		waitCtx, waitCancel = context.WithTimeout(ctx, opts.timeout)
		defer waitCancel()
	}

	log.Printf("Running scan once (--run-once mode), drag a rectangle around a QR code")
	res, err := session.Execute(waitCtx, session.Options{
		Scanner: p.loop,
		Target:  targetsFor(rt.Config, opts.stdout, os.Stdout),
	})
	if err != nil {
		log.Printf("Run-once scan failed: %v", err)
		return err
	}
	log.Printf("Run-once scan completed (%d chars)", len(res.Payload))
	return nil
}
