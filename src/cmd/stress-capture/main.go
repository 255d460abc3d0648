package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"screen-qr-scan/src/screenshot"
	"screen-qr-scan/src/worker"
)

type stressOptions struct {
	n       int
	size    int
	timeout time.Duration
}

type stats struct {
	ok      int
	busy    int
	failed  int
	slowest time.Duration
	elapsed time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-capture",
		Short:         "Stress the capture worker with back-to-back region reads",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := screenshot.NewScreenDevice()
			if err != nil {
				return err
			}
			st := runWithDevice(context.Background(), dev, *opts)
			report(os.Stdout, opts.n, st)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of captures to request")
	cmd.Flags().IntVar(&opts.size, "size", 200, "edge length of the square region in pixels")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Second, "per-capture device timeout")

	return cmd
}

// runWithDevice submits captures as fast as the worker accepts them. A
// refused submit counts as busy and is retried after the pending result.
func runWithDevice(ctx context.Context, dev screenshot.Device, opts stressOptions) stats {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := worker.Start(ctx, dev, worker.Options{Timeout: opts.timeout})
	defer w.Close()

	var st stats
	start := time.Now()
	for i := 1; i <= opts.n; i++ {
		req := worker.Request{ID: uint64(i), Region: screenshot.Region{Width: opts.size, Height: opts.size}}
		issued := time.Now()
		for !w.Submit(req) {
			st.busy++
			time.Sleep(time.Millisecond)
		}
		res := <-w.Results()
		if d := time.Since(issued); d > st.slowest {
			st.slowest = d
		}
		if res.Err != nil {
			st.failed++
			continue
		}
		st.ok++
		res.Buffer.Release()
	}
	st.elapsed = time.Since(start)
	return st
}

func report(out io.Writer, n int, st stats) {
	fmt.Fprintf(out, "requested=%d ok=%d busy=%d err=%d slowest=%s elapsed=%s\n",
		n, st.ok, st.busy, st.failed, st.slowest, st.elapsed)
}
