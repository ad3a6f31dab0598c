package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/internal/cache"
	"github.com/hed1ad/streamguard/pkg/detectors"
	"github.com/hed1ad/streamguard/pkg/detectors/zscore"
	"github.com/hed1ad/streamguard/pkg/io/plot"
)

type detectRequest struct {
	ID         string   `json:"id,omitempty"`
	Values     []any    `json:"values"`
	WindowSize *int     `json:"window_size,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Decay      *float64 `json:"decay,omitempty"`
}

type detectResponse struct {
	ID        string           `json:"id,omitempty"`
	Config    detectors.Config `json:"config"`
	Anomalies []int            `json:"anomalies"`
	Evaluated int              `json:"evaluated"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	var req detectRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON format"})
		return
	}

	cfg := s.defaults
	if req.WindowSize != nil {
		cfg.WindowSize = *req.WindowSize
	}
	if req.Threshold != nil {
		cfg.Threshold = *req.Threshold
	}
	if req.Decay != nil {
		cfg.Decay = *req.Decay
	}

	stream, err := detectors.Float64s(req.Values)
	if err == nil {
		var anomalies []int
		anomalies, err = zscore.New(zscore.WithConfig(cfg), zscore.WithLogger(s.logger)).Detect(stream)
		if err == nil {
			s.respondDetect(w, r, req.ID, cfg, stream, anomalies)
			return
		}
	}

	status, reason := classify(err)
	s.metrics.detectionErrorsTotal.WithLabelValues(reason).Inc()
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) respondDetect(w http.ResponseWriter, r *http.Request, id string, cfg detectors.Config, stream []float64, anomalies []int) {
	evaluated := len(stream) - cfg.WindowSize
	s.metrics.samplesEvaluatedTotal.Add(float64(evaluated))
	s.metrics.anomaliesDetectedTotal.Add(float64(len(anomalies)))

	if len(anomalies) > 0 {
		s.logger.Info("anomalies detected",
			zap.String("id", id),
			zap.Int("samples", len(stream)),
			zap.Ints("indices", anomalies),
		)
	}

	if id != "" {
		report := cache.Report{
			ID:        id,
			Config:    cfg,
			Values:    stream,
			Anomalies: anomalies,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.Save(r.Context(), report); err != nil {
			s.logger.Error("failed to save report", zap.String("id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to save report"})
			return
		}
	}

	writeJSON(w, http.StatusOK, detectResponse{
		ID:        id,
		Config:    cfg,
		Anomalies: anomalies,
		Evaluated: evaluated,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	report, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := plot.Render(&buf, report.Values, report.Anomalies); err != nil {
		s.logger.Error("failed to render plot", zap.String("id", report.ID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to render plot"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*cache.Report, bool) {
	id := mux.Vars(r)["id"]

	report, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.logger.Error("failed to get report", zap.String("id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to get report"})
		return nil, false
	}
	if report == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "report not found"})
		return nil, false
	}
	return report, true
}

// classify maps a validation error to an HTTP status and a metric label.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, detectors.ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, detectors.ErrEmptyInput):
		return http.StatusUnprocessableEntity, "empty_input"
	case errors.Is(err, detectors.ErrInvalidType):
		return http.StatusUnprocessableEntity, "invalid_type"
	case errors.Is(err, detectors.ErrDegenerateInitialWindow):
		return http.StatusUnprocessableEntity, "degenerate_window"
	case errors.Is(err, detectors.ErrShortStream):
		return http.StatusUnprocessableEntity, "short_stream"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
