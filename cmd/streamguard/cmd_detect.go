package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/pkg/detectors/zscore"
	sgio "github.com/hed1ad/streamguard/pkg/io"
	"github.com/hed1ad/streamguard/pkg/io/csv"
	"github.com/hed1ad/streamguard/pkg/io/pcap"
	"github.com/hed1ad/streamguard/pkg/io/plot"
)

// sourceOptions select and configure the stream source.
type sourceOptions struct {
	format     string
	column     int
	columnName string
	header     bool
	signal     string
}

func addSourceFlags(cmd *cobra.Command, o *sourceOptions) {
	cmd.Flags().StringVar(&o.format, "format", "", "Input format: csv or pcap (default from file extension)")
	cmd.Flags().IntVar(&o.column, "column", 0, "Zero-based CSV column holding the values")
	cmd.Flags().StringVar(&o.columnName, "column-name", "", "CSV header name of the column holding the values")
	cmd.Flags().BoolVar(&o.header, "header", true, "CSV input starts with a header row")
	cmd.Flags().StringVar(&o.signal, "signal", pcap.PacketSize.String(), "Per-packet signal for pcap input: packet_size, inter_arrival_time, payload_size")
}

type detectOptions struct {
	sourceOptions
	output   string
	plotPath string
}

func newDetectCommand(a *app) *cobra.Command {
	o := &detectOptions{}

	cmd := &cobra.Command{
		Use:   "detect [file]",
		Short: "Detect anomalies in a numeric stream",
		Long: `Detect anomalies in a stream read from a CSV column or a packet capture.

With no file, or when file is "-", CSV is read from standard input.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return a.runDetect(cmd, o, path)
		},
	}

	addSourceFlags(cmd, &o.sourceOptions)
	cmd.Flags().StringVarP(&o.output, "output", "o", "table", "Output format: table, json or csv")
	cmd.Flags().StringVar(&o.plotPath, "plot", "", "Write a chart of the stream and anomalies to this file (.png, .svg)")
	addDetectorFlags(cmd)

	return cmd
}

func (a *app) runDetect(cmd *cobra.Command, o *detectOptions, path string) error {
	switch o.output {
	case "table", "json", "csv":
	default:
		return fmt.Errorf("unsupported output %q: must be table, json or csv", o.output)
	}

	stream, err := readStream(cmd.InOrStdin(), path, &o.sourceOptions)
	if err != nil {
		return err
	}

	d := zscore.New(zscore.WithConfig(a.cfg.Detector), zscore.WithLogger(a.logger))
	scores, err := d.Scores(stream)
	if err != nil {
		return fmt.Errorf("detecting anomalies in %s: %w", path, err)
	}
	results := sgio.Anomalies(scores)

	a.logger.Info("detection complete",
		zap.String("source", path),
		zap.Int("samples", len(stream)),
		zap.Int("evaluated", len(scores)),
		zap.Int("anomalies", len(results)),
	)

	if o.plotPath != "" {
		if err := plot.Save(o.plotPath, stream, sgio.Indices(results)); err != nil {
			return fmt.Errorf("writing plot: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	switch o.output {
	case "json":
		return printJSON(out, results)
	case "csv":
		w := csv.NewWriter(out)
		if err := w.WriteAll(results); err != nil {
			return err
		}
		return w.Close()
	default:
		return printTable(out, results)
	}
}

// openReader opens the source at path, or stdin when path is "-".
func openReader(stdin io.Reader, path string, o *sourceOptions) (sgio.Reader, error) {
	format := o.format
	if format == "" {
		format = "csv"
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".pcap" || ext == ".cap" {
			format = "pcap"
		}
	}

	var (
		reader sgio.Reader
		err    error
	)
	switch format {
	case "csv":
		opts := []csv.Option{csv.WithHeader(o.header), csv.WithColumn(o.column)}
		if o.columnName != "" {
			opts = append(opts, csv.WithColumnName(o.columnName))
		}
		if path == "-" {
			reader, err = csv.NewStreamReader(stdin, opts...)
		} else {
			reader, err = csv.NewReader(path, opts...)
		}
	case "pcap":
		var signal pcap.Signal
		if signal, err = pcap.ParseSignal(o.signal); err != nil {
			return nil, err
		}
		if path == "-" {
			reader, err = pcap.NewStreamReader(stdin, pcap.WithSignal(signal))
		} else {
			reader, err = pcap.NewFileReader(path, pcap.WithSignal(signal))
		}
	default:
		return nil, fmt.Errorf("unsupported format %q: must be csv or pcap", format)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return reader, nil
}

// readStream loads a whole stream from path, or from stdin when path is "-".
func readStream(stdin io.Reader, path string, o *sourceOptions) ([]float64, error) {
	reader, err := openReader(stdin, path, o)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	stream, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return stream, nil
}

func printJSON(w io.Writer, results []sgio.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Anomalies []int         `json:"anomalies"`
		Results   []sgio.Result `json:"results"`
	}{sgio.Indices(results), results})
}

func printTable(w io.Writer, results []sgio.Result) error {
	fmt.Fprintf(w, "Anomalies detected at indices: %v\n", sgio.Indices(results))
	if len(results) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nINDEX\tVALUE\tZ-SCORE")
	for _, r := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%.2f\n", r.Index, r.Value, r.ZScore)
	}
	return tw.Flush()
}
