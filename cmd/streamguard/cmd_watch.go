package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/pkg/detectors"
	"github.com/hed1ad/streamguard/pkg/detectors/zscore"
	sgio "github.com/hed1ad/streamguard/pkg/io"
	"github.com/hed1ad/streamguard/pkg/io/pcap"
)

type watchOptions struct {
	sourceOptions
	iface  string
	output string
}

func newWatchCommand(a *app) *cobra.Command {
	o := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch [file]",
		Short: "Monitor a stream and report anomalies as they arrive",
		Long: `Monitor a stream sample by sample and print each anomaly as soon as it is
evaluated. Input is a CSV column, a packet capture, or live traffic on an
interface (--iface, in binaries built with -tags pcap).

With no file, or when file is "-", CSV is read from standard input, so the
output of another program can be piped in. Watching stops at the end of
input or on SIGINT/SIGTERM.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runWatch(ctx, cmd, o, path)
		},
	}

	addSourceFlags(cmd, &o.sourceOptions)
	cmd.Flags().StringVar(&o.iface, "iface", "", "Capture live traffic on this network interface instead of reading a file")
	cmd.Flags().StringVarP(&o.output, "output", "o", "text", "Output format: text or json (one object per line)")
	addDetectorFlags(cmd)

	return cmd
}

func (a *app) runWatch(ctx context.Context, cmd *cobra.Command, o *watchOptions, path string) error {
	if o.output != "text" && o.output != "json" {
		return fmt.Errorf("unsupported output %q: must be text or json", o.output)
	}

	var (
		reader sgio.Reader
		err    error
	)
	if o.iface != "" {
		var sig pcap.Signal
		if sig, err = pcap.ParseSignal(o.signal); err != nil {
			return err
		}
		reader, err = openLive(o.iface, sig)
		path = o.iface
	} else {
		reader, err = openReader(cmd.InOrStdin(), path, &o.sourceOptions)
	}
	if err != nil {
		return err
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	samples, err := reader.Stream(ctx)
	if err != nil {
		return fmt.Errorf("streaming %s: %w", path, err)
	}

	d := zscore.New(zscore.WithConfig(a.cfg.Detector), zscore.WithLogger(a.logger))
	scores := make(chan detectors.Score, 64)
	errc := make(chan error, 1)
	go func() {
		errc <- d.DetectStream(ctx, samples, scores)
		close(scores)
	}()

	a.logger.Info("watching stream", zap.String("source", path))

	emit := textEmitter(cmd.OutOrStdout())
	if o.output == "json" {
		emit = jsonEmitter(cmd.OutOrStdout())
	}

	evaluated, anomalies := 0, 0
	var emitErr error
	for s := range scores {
		evaluated++
		if !s.IsAnomaly || emitErr != nil {
			continue
		}
		anomalies++
		if emitErr = emit(sgio.FromScore(s)); emitErr != nil {
			cancel()
		}
	}
	detectErr := <-errc

	a.logger.Info("watch finished",
		zap.String("source", path),
		zap.Int("evaluated", evaluated),
		zap.Int("anomalies", anomalies),
	)

	if emitErr != nil {
		return fmt.Errorf("writing output: %w", emitErr)
	}

	// These results mean the sample channel was closed, so the source has
	// finished and its error explains why.
	inputClosed := detectErr == nil ||
		errors.Is(detectErr, detectors.ErrShortStream) ||
		errors.Is(detectErr, detectors.ErrEmptyInput)
	if inputClosed {
		if rerr := reader.Err(); rerr != nil {
			if errors.Is(rerr, context.Canceled) {
				return nil
			}
			return fmt.Errorf("reading %s: %w", path, rerr)
		}
	}

	if errors.Is(detectErr, context.Canceled) {
		return nil
	}
	if detectErr != nil {
		return fmt.Errorf("detecting anomalies in %s: %w", path, detectErr)
	}
	return nil
}

func textEmitter(w io.Writer) func(sgio.Result) error {
	return func(r sgio.Result) error {
		_, err := fmt.Fprintf(w, "anomaly index=%d value=%.4f z_score=%.2f\n", r.Index, r.Value, r.ZScore)
		return err
	}
}

func jsonEmitter(w io.Writer) func(sgio.Result) error {
	enc := json.NewEncoder(w)
	return func(r sgio.Result) error {
		return enc.Encode(r)
	}
}
