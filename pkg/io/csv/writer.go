package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	sgio "github.com/hed1ad/streamguard/pkg/io"
)

var _ sgio.Writer = (*Writer)(nil)

// Writer writes results as CSV rows with an index,value,z_score,is_anomaly header.
type Writer struct {
	w           *csv.Writer
	closer      io.Closer
	wroteHeader bool
}

// NewWriter creates a CSV result writer. If dst is an io.Closer it is closed by Close.
func NewWriter(dst io.Writer) *Writer {
	w := &Writer{w: csv.NewWriter(dst)}
	if c, ok := dst.(io.Closer); ok {
		w.closer = c
	}
	return w
}

// Write outputs a single result.
func (w *Writer) Write(result sgio.Result) error {
	if !w.wroteHeader {
		if err := w.w.Write([]string{"index", "value", "z_score", "is_anomaly"}); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	return w.w.Write([]string{
		strconv.Itoa(result.Index),
		strconv.FormatFloat(result.Value, 'g', -1, 64),
		strconv.FormatFloat(result.ZScore, 'f', 4, 64),
		strconv.FormatBool(result.IsAnomaly),
	})
}

// WriteAll outputs multiple results.
func (w *Writer) WriteAll(results []sgio.Result) error {
	for _, r := range results {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	w.w.Flush()
	return w.w.Error()
}

// WriteValues writes a stream as a single "value" column.
func WriteValues(dst io.Writer, stream []float64) error {
	w := csv.NewWriter(dst)
	if err := w.Write([]string{"value"}); err != nil {
		return err
	}
	for _, v := range stream {
		if err := w.Write([]string{strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Close flushes buffered rows and releases resources.
func (w *Writer) Close() error {
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
