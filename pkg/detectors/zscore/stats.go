package zscore

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// RunningStats is the detector's current belief about the signal's level and spread.
type RunningStats struct {
	Mean       float64
	Dispersion float64
}

// Seed computes the population mean and standard deviation of the seed window.
func Seed(window []float64) (RunningStats, error) {
	if len(window) == 0 {
		return RunningStats{}, detectors.ErrEmptyInput
	}

	// A single sample has no spread.
	if len(window) == 1 {
		return RunningStats{Mean: window[0]}, detectors.ErrDegenerateInitialWindow
	}

	mean, std := stat.PopMeanStdDev(window, nil)
	s := RunningStats{Mean: mean, Dispersion: std}
	if std == 0 {
		return s, detectors.ErrDegenerateInitialWindow
	}
	return s, nil
}

// ZScore returns the normalized deviation of x, or false when the dispersion is zero.
func (s RunningStats) ZScore(x float64) (float64, bool) {
	if s.Dispersion == 0 {
		return 0, false
	}
	return (x - s.Mean) / s.Dispersion, true
}

// Step evaluates x against the current statistics and then folds it in.
// When the dispersion is zero nothing is evaluated and the statistics are left untouched.
//
// The dispersion update measures |x - mean| against the mean that was just
// updated, not the previous one. Detected sets depend on this ordering.
func (s *RunningStats) Step(x, decay float64) (float64, bool) {
	z, ok := s.ZScore(x)
	if !ok {
		return 0, false
	}

	retain := 1 - decay
	s.Mean = retain*s.Mean + decay*x
	s.Dispersion = retain*s.Dispersion + decay*math.Abs(x-s.Mean)

	return z, true
}
