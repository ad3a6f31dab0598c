package zscore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

func TestSeed(t *testing.T) {
	tests := []struct {
		name     string
		window   []float64
		wantMean float64
		wantDisp float64
		wantErr  error
	}{
		{name: "empty", window: nil, wantErr: detectors.ErrEmptyInput},
		{name: "single sample", window: []float64{4}, wantMean: 4, wantErr: detectors.ErrDegenerateInitialWindow},
		{name: "constant", window: []float64{5, 5, 5, 5}, wantMean: 5, wantErr: detectors.ErrDegenerateInitialWindow},
		{name: "population deviation", window: []float64{2, 4, 4, 4, 5, 5, 7, 9}, wantMean: 5, wantDisp: 2},
		{name: "two points", window: []float64{1, 3}, wantMean: 2, wantDisp: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Seed(tt.window)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.InDelta(t, tt.wantMean, s.Mean, 1e-12)
			assert.InDelta(t, tt.wantDisp, s.Dispersion, 1e-12)
		})
	}
}

func TestStep(t *testing.T) {
	s := RunningStats{Mean: 2, Dispersion: 1}

	z, ok := s.Step(10, 0.1)
	require.True(t, ok)
	assert.Equal(t, 8.0, z)
	assert.InDelta(t, 2.8, s.Mean, 1e-12)
	// 0.9*1 + 0.1*|10 - 2.8|; the pre-update mean would give 1.7.
	assert.InDelta(t, 1.62, s.Dispersion, 1e-12)
}

func TestStepZeroDispersion(t *testing.T) {
	const c = 7.5
	s := RunningStats{Mean: c, Dispersion: 0}

	for _, x := range []float64{c, c, 100, -100, c} {
		z, ok := s.Step(x, 0.1)
		assert.False(t, ok)
		assert.Zero(t, z)
		assert.Equal(t, RunningStats{Mean: c, Dispersion: 0}, s)
	}
}

func TestZScore(t *testing.T) {
	s := RunningStats{Mean: 100, Dispersion: 10}

	z, ok := s.ZScore(70)
	require.True(t, ok)
	assert.Equal(t, -3.0, z)

	_, ok = RunningStats{Mean: 1}.ZScore(1)
	assert.False(t, ok)
}
