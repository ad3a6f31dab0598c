// Package csv provides CSV reading of a numeric column and CSV output of results.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hed1ad/streamguard/pkg/detectors"
	sgio "github.com/hed1ad/streamguard/pkg/io"
)

var _ sgio.Reader = (*Reader)(nil)

// ErrColumnNotFound is returned when the selected column is absent from the header.
var ErrColumnNotFound = errors.New("column not found")

// Reader reads one numeric column of a CSV source.
type Reader struct {
	closer    io.Closer
	reader    *csv.Reader
	hasHeader bool
	headers   []string

	column     int
	columnName string

	err error
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithHeader indicates the CSV has a header row.
func WithHeader(has bool) Option {
	return func(r *Reader) {
		r.hasHeader = has
	}
}

// WithColumn selects the column by zero-based index.
func WithColumn(i int) Option {
	return func(r *Reader) {
		r.column = i
		r.columnName = ""
	}
}

// WithColumnName selects the column by header name. It implies WithHeader(true).
func WithColumnName(name string) Option {
	return func(r *Reader) {
		r.columnName = name
		r.hasHeader = true
	}
}

// NewReader creates a new CSV reader over a file.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// NewStreamReader creates a CSV reader over an arbitrary source, such as stdin.
// The caller keeps ownership of src.
func NewStreamReader(src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(src, nil, opts...)
}

func newReader(src io.Reader, closer io.Closer, opts ...Option) (*Reader, error) {
	r := &Reader{
		closer:    closer,
		reader:    csv.NewReader(src),
		hasHeader: true,
	}
	r.reader.FieldsPerRecord = -1
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	// Read header if present
	if r.hasHeader {
		headers, err := r.reader.Read()
		if err == io.EOF {
			return nil, detectors.ErrEmptyInput
		}
		if err != nil {
			return nil, err
		}
		r.headers = headers
	}

	if r.columnName != "" {
		r.column = -1
		for i, h := range r.headers {
			if strings.EqualFold(strings.TrimSpace(h), r.columnName) {
				r.column = i
				break
			}
		}
		if r.column < 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, r.columnName)
		}
	}

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Read returns the selected column as a stream. A cell that is not a number
// fails the whole read.
func (r *Reader) Read() ([]float64, error) {
	var data []float64

	for {
		v, err := r.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		data = append(data, v)
	}

	if len(data) == 0 {
		return nil, detectors.ErrEmptyInput
	}
	return data, nil
}

// Stream returns a channel of values for real-time processing. The channel is
// closed at end of input, on cancellation, or at the first malformed row; Err
// reports which once the channel is drained.
func (r *Reader) Stream(ctx context.Context) (<-chan float64, error) {
	out := make(chan float64, 100)

	go func() {
		defer close(out)
		for {
			if err := ctx.Err(); err != nil {
				r.err = err
				return
			}

			v, err := r.next()
			if err == io.EOF {
				return
			}
			if err != nil {
				r.err = err
				return
			}

			select {
			case out <- v:
			case <-ctx.Done():
				r.err = ctx.Err()
				return
			}
		}
	}()

	return out, nil
}

// Err returns the error that ended Stream, or nil at a clean end of input.
// It is only meaningful after the stream channel has been closed.
func (r *Reader) Err() error {
	return r.err
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) next() (float64, error) {
	for {
		record, err := r.reader.Read()
		if err != nil {
			return 0, err
		}
		// Blank lines are skipped by encoding/csv; a lone empty field is too.
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}

		line, _ := r.reader.FieldPos(0)
		return parseCell(record, r.column, line)
	}
}

// parseCell converts the selected field of a record to a float.
func parseCell(record []string, column, line int) (float64, error) {
	if column < 0 || column >= len(record) {
		return 0, fmt.Errorf("line %d: %w: has %d columns, want column %d", line, detectors.ErrInvalidType, len(record), column)
	}

	cell := strings.TrimSpace(record[column])
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %w: %q", line, detectors.ErrInvalidType, cell)
	}
	if detectors.CheckFinite([]float64{f}) != nil {
		return 0, fmt.Errorf("line %d: %w: %q", line, detectors.ErrInvalidType, cell)
	}
	return f, nil
}
