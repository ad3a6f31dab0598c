// Package cache stores detection reports for later retrieval.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hed1ad/streamguard/pkg/detectors"
)

// ErrInvalidID is returned for an empty report id.
var ErrInvalidID = errors.New("report id is required")

// Report is the outcome of one detection run.
type Report struct {
	ID        string           `json:"id"`
	Config    detectors.Config `json:"config"`
	Values    []float64        `json:"values"`
	Anomalies []int            `json:"anomalies"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store persists reports by id.
type Store interface {
	// Save stores the report under its ID, replacing any previous one.
	Save(ctx context.Context, r Report) error
	// Get returns the report, or nil and no error when it does not exist.
	Get(ctx context.Context, id string) (*Report, error)
	Close() error
}

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	reports map[string]Report
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{reports: make(map[string]Report)}
}

func (m *Memory) Save(_ context.Context, r Report) error {
	if r.ID == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = r
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Memory) Close() error {
	return nil
}
