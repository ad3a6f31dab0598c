// Package io provides input/output utilities for stream ingestion and result output.
package io

import (
	"context"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// Reader is the interface for reading a univariate stream from various sources.
type Reader interface {
	// Read returns the complete stream.
	Read() ([]float64, error)

	// Stream returns a channel of samples for real-time processing.
	Stream(ctx context.Context) (<-chan float64, error)

	// Err returns the error that closed the Stream channel early, or nil when
	// the source ended normally.
	Err() error

	// Close releases resources.
	Close() error
}

// Writer is the interface for writing detection results.
type Writer interface {
	// Write outputs a single result.
	Write(result Result) error

	// WriteAll outputs multiple results.
	WriteAll(results []Result) error

	// Close flushes and releases resources.
	Close() error
}

// Result represents a flagged sample.
type Result struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	ZScore    float64 `json:"z_score"`
	IsAnomaly bool    `json:"is_anomaly"`
}

// Anomalies keeps the anomalous scores as results.
func Anomalies(scores []detectors.Score) []Result {
	results := make([]Result, 0)
	for _, s := range scores {
		if s.IsAnomaly {
			results = append(results, FromScore(s))
		}
	}
	return results
}

// FromScore converts a detector score into a result.
func FromScore(s detectors.Score) Result {
	return Result{
		Index:     s.Index,
		Value:     s.Value,
		ZScore:    s.ZScore,
		IsAnomaly: s.IsAnomaly,
	}
}

// Indices returns the stream index of each result.
func Indices(results []Result) []int {
	indices := make([]int, len(results))
	for i, r := range results {
		indices[i] = r.Index
	}
	return indices
}
