// Package detectors provides online anomaly detection for univariate numeric streams.
package detectors

import (
	"context"
	"fmt"
	"math"
)

// Detector is the common interface for single-pass stream detectors.
type Detector interface {
	// Detect consumes the stream once and returns the indices judged anomalous,
	// in ascending order.
	Detect(stream []float64) ([]int, error)
}

// StreamDetector extends Detector with streaming capabilities.
type StreamDetector interface {
	Detector

	// DetectStream processes samples from a channel and outputs one score per
	// evaluated sample.
	DetectStream(ctx context.Context, input <-chan float64, output chan<- Score) error
}

// Score represents the evaluation of a single sample.
type Score struct {
	// Index is the position of the sample in the stream.
	Index int `json:"index"`
	// Value is the sample itself.
	Value float64 `json:"value"`
	// ZScore is the normalized deviation from the running statistics.
	ZScore float64 `json:"z_score"`
	// IsAnomaly indicates |ZScore| exceeded the threshold.
	IsAnomaly bool `json:"is_anomaly"`
	// Skipped is set when the dispersion was zero and the sample was not evaluated.
	Skipped bool `json:"skipped,omitempty"`
	// Mean and Dispersion are the running statistics the sample was judged against.
	Mean       float64 `json:"mean"`
	Dispersion float64 `json:"dispersion"`
}

// Config holds common configuration for detectors.
type Config struct {
	// WindowSize is the number of leading samples used to seed the statistics.
	WindowSize int `mapstructure:"window_size" json:"window_size"`
	// Threshold is the normalized-deviation cutoff.
	Threshold float64 `mapstructure:"threshold" json:"threshold"`
	// Decay is the weight given to a new sample when the statistics are updated.
	Decay float64 `mapstructure:"decay" json:"decay"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize: 50,
		Threshold:  3,
		Decay:      0.1,
	}
}

// Validate checks that the configuration can drive a detection run.
func (c Config) Validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("%w: window size %d must be at least 1", ErrInvalidConfig, c.WindowSize)
	}
	if math.IsNaN(c.Threshold) || c.Threshold < 0 {
		return fmt.Errorf("%w: threshold %v must be non-negative", ErrInvalidConfig, c.Threshold)
	}
	if math.IsNaN(c.Decay) || c.Decay <= 0 || c.Decay > 1 {
		return fmt.Errorf("%w: decay %v must be in (0, 1]", ErrInvalidConfig, c.Decay)
	}
	return nil
}
