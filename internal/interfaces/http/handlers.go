package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/pulsefeed/trendwatch/internal/detect"
	"github.com/pulsefeed/trendwatch/internal/ingest"
)

type errorResponse struct {
	Error      string `json:"error"`
	Phase      string `json:"phase,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	RetryAfter int    `json:"retry_after_seconds,omitempty"`
}

type detectRequest struct {
	WindowHours int          `json:"window_hours"`
	Caps        *ingest.Caps `json:"caps"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if !s.auth.authorize(r) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	if !s.limiter.Allow(clientKey(r)) {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{
			Error:      "rate limit exceeded",
			RetryAfter: s.limiter.RetryAfterSeconds(),
		})
		return
	}

	opts := detect.Options{
		WindowHours: s.detCfg.WindowHours,
		Caps:        s.detCfg.Caps,
		Budget:      s.detCfg.Budget,
	}
	if r.Body != nil && r.ContentLength != 0 {
		var req detectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
		if req.WindowHours > 0 {
			opts.WindowHours = req.WindowHours
		}
		if req.Caps != nil {
			opts.Caps = *req.Caps
		}
	}

	stats, err := s.runner.Run(r.Context(), opts)
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		var pe *detect.PhaseError
		if errors.As(err, &pe) {
			resp.Phase = pe.Phase
		}
		if stats != nil {
			resp.DurationMs = stats.DurationMs
		}
		writeJSON(w, http.StatusInternalServerError, resp)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	status := http.StatusOK

	if s.dbh != nil {
		if err := s.dbh.Ping(r.Context()); err != nil {
			body["status"] = "unhealthy"
			body["database"] = map[string]interface{}{"status": "down", "error": err.Error()}
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = map[string]interface{}{"status": "up", "pool": s.dbh.Stats()}
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
