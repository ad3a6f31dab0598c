package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/streamguard/pkg/detectors"
	sgio "github.com/hed1ad/streamguard/pkg/io"
	"github.com/hed1ad/streamguard/pkg/io/csv"
	"github.com/hed1ad/streamguard/pkg/synth"
)

// csvInput renders stream as the single-column CSV that simulate writes.
func csvInput(t *testing.T, stream []float64) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, csv.WriteValues(&buf, stream))
	return buf.String()
}

func TestWatchStdin(t *testing.T) {
	out, err := run(t, csvInput(t, spikeStream()), "watch")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.True(t, strings.HasPrefix(lines[0], "anomaly index=60 value=1000.0000 z_score="), lines[0])
}

func TestWatchJSON(t *testing.T) {
	out, err := run(t, csvInput(t, spikeStream()), "watch", "-o", "json")
	require.NoError(t, err)

	var got sgio.Result
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 60, got.Index)
	assert.Equal(t, 1000.0, got.Value)
	assert.True(t, got.IsAnomaly)
}

func TestWatchMatchesDetect(t *testing.T) {
	stream, _ := synth.New(synth.WithSeed(3)).GenerateWithTruth(600)
	path := writeStream(t, stream)

	out, err := run(t, "", "detect", path, "-o", "json")
	require.NoError(t, err)
	var batch struct {
		Anomalies []int `json:"anomalies"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &batch))

	out, err = run(t, "", "watch", path, "-o", "json")
	require.NoError(t, err)
	watched := []int{}
	dec := json.NewDecoder(strings.NewReader(out))
	for dec.More() {
		var r sgio.Result
		require.NoError(t, dec.Decode(&r))
		watched = append(watched, r.Index)
	}

	assert.Equal(t, batch.Anomalies, watched)
}

func TestWatchMalformedRow(t *testing.T) {
	var b strings.Builder
	b.WriteString("value\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "%g\n", 0.01*float64(i%2*2-1))
	}
	b.WriteString("oops\n")
	for i := 0; i < 20; i++ {
		b.WriteString("0.01\n")
	}

	_, err := run(t, b.String(), "watch")
	require.Error(t, err)
	assert.ErrorIs(t, err, detectors.ErrInvalidType)
	assert.Contains(t, err.Error(), "line 62")
}

func TestWatchErrors(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		wantErr string
	}{
		{name: "short stream", stdin: "value\n1\n2\n3\n", args: []string{"watch"}, wantErr: "shorter"},
		{name: "flat window", stdin: "value\n5\n5\n5\n9\n", args: []string{"watch", "--window-size", "3"}, wantErr: "dispersion"},
		{name: "bad output", stdin: "value\n1\n", args: []string{"watch", "-o", "table"}, wantErr: "unsupported output"},
		{name: "bad signal", args: []string{"watch", "--iface", "eth0", "--signal", "jitter"}, wantErr: "jitter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
