// Package synth generates synthetic numeric streams with injected spikes.
package synth

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// Generator produces a seasonal signal with Gaussian noise and random spikes.
type Generator struct {
	amplitude float64
	frequency float64
	noise     float64

	spikes     int
	spikeMean  float64
	spikeSigma float64

	seed uint64
}

// Option configures a Generator.
type Option func(*Generator)

// WithAmplitude sets the amplitude of the seasonal component.
func WithAmplitude(a float64) Option {
	return func(g *Generator) {
		g.amplitude = a
	}
}

// WithFrequency sets the angular frequency of the seasonal component, per sample.
func WithFrequency(f float64) Option {
	return func(g *Generator) {
		g.frequency = f
	}
}

// WithNoise sets the standard deviation of the additive noise.
func WithNoise(sigma float64) Option {
	return func(g *Generator) {
		g.noise = sigma
	}
}

// WithSpikes sets how many spikes are injected and the distribution of their
// height. A negative count injects none.
func WithSpikes(count int, mean, sigma float64) Option {
	return func(g *Generator) {
		g.spikes = count
		g.spikeMean = mean
		g.spikeSigma = sigma
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// New creates a Generator with the given options.
func New(opts ...Option) *Generator {
	g := &Generator{
		amplitude:  10,
		frequency:  0.1,
		noise:      2,
		spikes:     10,
		spikeMean:  50,
		spikeSigma: 10,
		seed:       42,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns a stream of n samples.
func (g *Generator) Generate(n int) []float64 {
	stream, _ := g.GenerateWithTruth(n)
	return stream
}

// GenerateWithTruth returns a stream of n samples and the sorted, distinct
// indices that received a spike.
func (g *Generator) GenerateWithTruth(n int) ([]float64, []int) {
	if n <= 0 {
		return []float64{}, nil
	}

	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))

	stream := make([]float64, n)
	noise := distuv.Normal{Mu: 0, Sigma: g.noise, Src: rng}
	for t := range stream {
		stream[t] = math.Sin(g.frequency*float64(t)) * g.amplitude
		if g.noise > 0 {
			stream[t] += noise.Rand()
		}
	}

	// Indices are drawn with replacement, so one sample can take several spikes.
	spike := distuv.Normal{Mu: g.spikeMean, Sigma: g.spikeSigma, Src: rng}
	spikes := max(g.spikes, 0)
	seen := make(map[int]struct{}, spikes)
	for range spikes {
		idx := rng.IntN(n)
		if g.spikeSigma > 0 {
			stream[idx] += spike.Rand()
		} else {
			stream[idx] += g.spikeMean
		}
		seen[idx] = struct{}{}
	}

	truth := make([]int, 0, len(seen))
	for idx := range seen {
		truth = append(truth, idx)
	}
	sort.Ints(truth)

	return stream, truth
}

// Generate returns n samples from a Generator built with opts.
func Generate(n int, opts ...Option) []float64 {
	return New(opts...).Generate(n)
}
