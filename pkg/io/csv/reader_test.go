package csv

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/streamguard/pkg/detectors"
	sgio "github.com/hed1ad/streamguard/pkg/io"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    []Option
		want    []float64
		wantErr error
	}{
		{
			name:  "header and single column",
			input: "value\n1\n2.5\n-3\n",
			want:  []float64{1, 2.5, -3},
		},
		{
			name:  "no header",
			input: "1\n2\n3\n",
			opts:  []Option{WithHeader(false)},
			want:  []float64{1, 2, 3},
		},
		{
			name:  "column by index",
			input: "ts,value\n0,10\n1,11\n",
			opts:  []Option{WithColumn(1)},
			want:  []float64{10, 11},
		},
		{
			name:  "column by name",
			input: "ts, Value\n0, 10\n1, 11\n",
			opts:  []Option{WithColumnName("value")},
			want:  []float64{10, 11},
		},
		{
			name:  "blank lines ignored",
			input: "value\n1\n\n2\n",
			want:  []float64{1, 2},
		},
		{
			name:    "non-numeric cell",
			input:   "value\n1\nabc\n3\n",
			wantErr: detectors.ErrInvalidType,
		},
		{
			name:    "nan cell",
			input:   "value\n1\nNaN\n",
			wantErr: detectors.ErrInvalidType,
		},
		{
			name:    "missing column",
			input:   "a,b\n1\n",
			opts:    []Option{WithColumn(1)},
			wantErr: detectors.ErrInvalidType,
		},
		{
			name:    "header only",
			input:   "value\n",
			wantErr: detectors.ErrEmptyInput,
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: detectors.ErrEmptyInput,
		},
		{
			name:    "unknown column name",
			input:   "a,b\n1,2\n",
			opts:    []Option{WithColumnName("c")},
			wantErr: ErrColumnNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewStreamReader(strings.NewReader(tt.input), tt.opts...)
			if err != nil {
				require.NotNil(t, tt.wantErr, "unexpected error: %v", err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			defer r.Close()

			got, err := r.Read()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadErrorNamesLine(t *testing.T) {
	r, err := NewStreamReader(strings.NewReader("value\n1\n2\noops\n"))
	require.NoError(t, err)

	_, err = r.Read()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4")
}

func TestNewReaderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stream.csv")
	require.NoError(t, os.WriteFile(path, []byte("ts,value\n0,1.5\n1,2.5\n"), 0o644))

	r, err := NewReader(path, WithColumnName("value"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ts", "value"}, r.Headers())

	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5}, got)
	assert.NoError(t, r.Close())

	_, err = NewReader(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestStream(t *testing.T) {
	r, err := NewStreamReader(strings.NewReader("value\n1\n2\n3\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Stream(ctx)
	require.NoError(t, err)

	var got []float64
	for v := range ch {
		got = append(got, v)
	}
	assert.Equal(t, []float64{1, 2, 3}, got)
	assert.NoError(t, r.Err())
}

func TestStreamMalformedRow(t *testing.T) {
	var b strings.Builder
	b.WriteString("value\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%d\n", i%3)
	}
	b.WriteString("oops\n")
	for i := 0; i < 20; i++ {
		b.WriteString("1\n")
	}

	r, err := NewStreamReader(strings.NewReader(b.String()))
	require.NoError(t, err)

	ch, err := r.Stream(context.Background())
	require.NoError(t, err)

	n := 0
	for range ch {
		n++
	}
	assert.Equal(t, 60, n)

	err = r.Err()
	require.ErrorIs(t, err, detectors.ErrInvalidType)
	assert.Contains(t, err.Error(), "line 62")
	assert.Contains(t, err.Error(), "oops")
}

func TestStreamCancel(t *testing.T) {
	r, err := NewStreamReader(strings.NewReader("value\n1\n2\n3\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch, err := r.Stream(ctx)
	require.NoError(t, err)
	for range ch {
	}
	assert.ErrorIs(t, r.Err(), context.Canceled)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	err := w.WriteAll([]sgio.Result{
		{Index: 60, Value: 1000, ZScore: 2837.7271, IsAnomaly: true},
		{Index: 75, Value: -3.5, ZScore: -4.25, IsAnomaly: true},
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, "index,value,z_score,is_anomaly\n60,1000,2837.7271,true\n75,-3.5,-4.2500,true\n", buf.String())
}

func TestWriteValuesRoundTrip(t *testing.T) {
	stream := []float64{0.1, -2, 3.75, 1e6}

	var buf bytes.Buffer
	require.NoError(t, WriteValues(&buf, stream))

	r, err := NewStreamReader(&buf)
	require.NoError(t, err)
	got, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, stream, got)
}
