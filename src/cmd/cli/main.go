package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screen-qr-scan/src/config"
	"screen-qr-scan/src/decode"
	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/opener"
	"screen-qr-scan/src/screenshot"
)

const (
	maxFileSizeMB = 10
	maxFileSize   = maxFileSizeMB * 1024 * 1024
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// errNotFound exits non-zero without an extra message when the image holds no symbol.
var errNotFound = errors.New("no QR code found")

type cliOptions struct {
	filePath   string
	jsonOutput bool
	open       bool
	verbose    bool
}

type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(normalizeLegacyArgs(os.Args), streams{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func runWithArgs(args []string, s streams) error {
	if len(args) == 0 {
		args = []string{"qr-tool"}
	}

	opts := &cliOptions{}
	cmd := newRootCmd(opts, s)
	cmd.SetArgs(args[1:])
	cmd.SetOut(s.stdout)
	cmd.SetErr(s.stderr)
	return cmd.Execute()
}

func newRootCmd(opts *cliOptions, s streams) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "qr-tool",
		Short:         "Decode a QR code from a PNG image",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts, s)
		},
	}

	cmd.Flags().StringVar(&opts.filePath, "file", "", "Path to PNG file (use '-' for stdin)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output results as JSON")
	cmd.Flags().BoolVar(&opts.open, "open", false, "Open the payload in the browser when it is a URL")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runWithOptions(opts cliOptions, s streams) error {
	// Configure logging BEFORE any other operations.
	if !opts.verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetOutput(s.stderr)
		fmt.Fprintf(s.stderr, "[verbose] Starting QR tool\n")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.verbose {
		fmt.Fprintf(s.stderr, "[verbose] Config loaded: TryHarder=%v Schemes=%s\n", cfg.DecodeTryHarder, strings.Join(cfg.OpenSchemes, ","))
	}

	data, err := readInput(opts.filePath, s.stdin, opts.verbose, s.stderr)
	if err != nil {
		return err
	}
	if err := validatePNG(data); err != nil {
		return err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode PNG: %w", err)
	}

	start := time.Now()
	outcome := decode.New(decode.Options{TryHarder: cfg.DecodeTryHarder}).Decode(screenshot.FromImage(img))
	elapsed := time.Since(start)
	if opts.verbose {
		fmt.Fprintf(s.stderr, "[verbose] Decode finished in %v: %s\n", elapsed, outcome.Type())
	}

	if err := outputResult(s.stdout, outcome, opts.filePath, elapsed, opts.jsonOutput); err != nil {
		return err
	}

	switch o := outcome.(type) {
	case messages.PayloadFound:
		if opts.open && opener.Openable(o.Payload, cfg.OpenSchemes) {
			if err := opener.Open(o.Payload); err != nil {
				return fmt.Errorf("failed to open payload: %w", err)
			}
		}
		return nil
	case messages.NotFound:
		return errNotFound
	default:
		return errors.New(messages.Describe(outcome))
	}
}

func readInput(filePath string, stdin io.Reader, verbose bool, stderr io.Writer) ([]byte, error) {
	var data []byte
	var err error

	if filePath == "-" {
		if verbose {
			fmt.Fprintf(stderr, "[verbose] Reading image from stdin\n")
		}
		data, err = io.ReadAll(io.LimitReader(stdin, maxFileSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
	} else {
		if verbose {
			fmt.Fprintf(stderr, "[verbose] Reading image from file: %s\n", filePath)
		}
		data, err = os.ReadFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
		}
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("input file exceeds maximum size of %d MB", maxFileSizeMB)
	}
	if verbose {
		fmt.Fprintf(stderr, "[verbose] Read %d bytes\n", len(data))
	}
	return data, nil
}

func validatePNG(data []byte) error {
	if len(data) < len(pngMagic) || !bytes.Equal(data[:len(pngMagic)], pngMagic) {
		return fmt.Errorf("input is not a valid PNG file (invalid magic number)")
	}
	return nil
}

func normalizeLegacyArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	normalized := make([]string, len(args))
	copy(normalized, args)

	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"file", "json", "open", "verbose"} {
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

type QRResult struct {
	Payload   string  `json:"payload"`
	Found     bool    `json:"found"`
	Source    string  `json:"source"`
	Timestamp string  `json:"timestamp"`
	Duration  float64 `json:"duration_seconds"`
	Error     string  `json:"error,omitempty"`
}

func outputResult(w io.Writer, outcome messages.Outcome, sourcePath string, elapsed time.Duration, jsonOutput bool) error {
	found, ok := outcome.(messages.PayloadFound)
	if !jsonOutput {
		if ok {
			fmt.Fprint(w, found.Payload)
		}
		return nil
	}

	result := QRResult{
		Found:     ok,
		Source:    sourcePath,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Duration:  elapsed.Seconds(),
	}
	if ok {
		result.Payload = found.Payload
	} else {
		result.Error = messages.Describe(outcome)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}
