// Package zscore implements an adaptive z-score detector for univariate streams.
//
// Running statistics are seeded from the first WindowSize samples and then
// updated by exponential smoothing as each later sample is evaluated, so the
// stream is consumed once without keeping its history.
package zscore

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// Compile-time interface guard.
var _ detectors.StreamDetector = (*Detector)(nil)

// Detector flags samples whose normalized deviation exceeds a threshold.
// It holds only configuration; each run keeps its own statistics, so a
// Detector is safe for concurrent use.
type Detector struct {
	cfg    detectors.Config
	logger *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithWindowSize sets the number of samples used to seed the statistics.
func WithWindowSize(n int) Option {
	return func(d *Detector) {
		d.cfg.WindowSize = n
	}
}

// WithThreshold sets the normalized-deviation cutoff.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		d.cfg.Threshold = t
	}
}

// WithDecay sets the weight of a new sample in the smoothing updates.
func WithDecay(decay float64) Option {
	return func(d *Detector) {
		d.cfg.Decay = decay
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg detectors.Config) Option {
	return func(d *Detector) {
		d.cfg = cfg
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// New creates a new Detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		cfg:    detectors.DefaultConfig(),
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Detect runs a detector built from opts over stream.
func Detect(stream []float64, opts ...Option) ([]int, error) {
	return New(opts...).Detect(stream)
}

// Config returns the detector configuration.
func (d *Detector) Config() detectors.Config {
	return d.cfg
}

// Detect returns the indices in [WindowSize, len(stream)) whose normalized
// deviation exceeded the threshold when they were evaluated.
func (d *Detector) Detect(stream []float64) ([]int, error) {
	var anomalies []int
	err := d.run(stream, func(s detectors.Score) {
		if s.IsAnomaly {
			anomalies = append(anomalies, s.Index)
		}
	})
	if err != nil {
		return nil, err
	}
	if anomalies == nil {
		anomalies = []int{}
	}
	return anomalies, nil
}

// DetectValues converts loosely typed values and detects over them.
func (d *Detector) DetectValues(values []any) ([]int, error) {
	stream, err := detectors.Float64s(values)
	if err != nil {
		return nil, err
	}
	return d.Detect(stream)
}

// Scores returns one Score per sample after the seed window, including
// samples skipped because the dispersion was zero.
func (d *Detector) Scores(stream []float64) ([]detectors.Score, error) {
	var scores []detectors.Score
	err := d.run(stream, func(s detectors.Score) {
		scores = append(scores, s)
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

// validate fails fast before any sample is evaluated.
func (d *Detector) validate(stream []float64) error {
	if len(stream) == 0 {
		return detectors.ErrEmptyInput
	}
	if err := detectors.CheckFinite(stream); err != nil {
		return err
	}
	if err := d.cfg.Validate(); err != nil {
		return err
	}
	if d.cfg.WindowSize > len(stream) {
		return fmt.Errorf("%w: %d samples, window size %d", detectors.ErrShortStream, len(stream), d.cfg.WindowSize)
	}
	return nil
}

func (d *Detector) run(stream []float64, visit func(detectors.Score)) error {
	if err := d.validate(stream); err != nil {
		return err
	}

	stats, err := d.seed(stream[:d.cfg.WindowSize])
	if err != nil {
		return err
	}

	for i := d.cfg.WindowSize; i < len(stream); i++ {
		visit(d.evaluate(&stats, i, stream[i]))
	}
	return nil
}

func (d *Detector) seed(window []float64) (RunningStats, error) {
	stats, err := Seed(window)
	if err != nil {
		return stats, err
	}
	d.logger.Debug("seeded running statistics",
		zap.Int("window_size", len(window)),
		zap.Float64("mean", stats.Mean),
		zap.Float64("dispersion", stats.Dispersion),
	)
	return stats, nil
}

func (d *Detector) evaluate(stats *RunningStats, index int, x float64) detectors.Score {
	score := detectors.Score{
		Index:      index,
		Value:      x,
		Mean:       stats.Mean,
		Dispersion: stats.Dispersion,
	}

	z, ok := stats.Step(x, d.cfg.Decay)
	if !ok {
		score.Skipped = true
		return score
	}

	score.ZScore = z
	score.IsAnomaly = math.Abs(z) > d.cfg.Threshold
	if score.IsAnomaly {
		d.logger.Debug("anomaly",
			zap.Int("index", index),
			zap.Float64("value", x),
			zap.Float64("z_score", z),
		)
	}
	return score
}

// DetectStream processes samples from a channel. The first WindowSize samples
// seed the statistics; every later sample produces one Score on output.
// It returns nil when input is closed and ctx.Err() when ctx is cancelled.
func (d *Detector) DetectStream(ctx context.Context, input <-chan float64, output chan<- detectors.Score) error {
	if err := d.cfg.Validate(); err != nil {
		return err
	}

	window := make([]float64, 0, d.cfg.WindowSize)
	var stats RunningStats
	index := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case x, ok := <-input:
			if !ok {
				if len(window) < d.cfg.WindowSize {
					if index == 0 {
						return detectors.ErrEmptyInput
					}
					return fmt.Errorf("%w: %d samples, window size %d", detectors.ErrShortStream, index, d.cfg.WindowSize)
				}
				return nil
			}

			if math.IsNaN(x) || math.IsInf(x, 0) {
				return &detectors.InvalidValueError{Index: index, Value: x}
			}

			if len(window) < d.cfg.WindowSize {
				window = append(window, x)
				index++
				if len(window) == d.cfg.WindowSize {
					var err error
					if stats, err = d.seed(window); err != nil {
						return err
					}
				}
				continue
			}

			score := d.evaluate(&stats, index, x)
			index++

			select {
			case output <- score:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
