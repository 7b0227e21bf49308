// Package api exposes the presentation boundary over HTTP: status and
// ledger reads, threshold and flag updates, and control operations. It
// holds no state of its own beyond an optional response cache.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"empulse-control/internal/control"
	"empulse-control/internal/memo"
	"empulse-control/internal/safety"
	"empulse-control/internal/waveform"
)

const (
	defaultSummaryWindow = 24 * time.Hour
	defaultAlertCount    = 10
)

type Handler struct {
	Orchestrator *control.Orchestrator
	Thresholds   *safety.ThresholdStore
	History      *safety.History
	Cache        *memo.Cache
	Logger       *slog.Logger
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type flagsRequest struct {
	SafetyEnabled       *bool `json:"safety_enabled"`
	AutoShutdownEnabled *bool `json:"auto_shutdown_enabled"`
}

type initializeRequest struct {
	History []float64 `json:"history"`
}

type inputRequest struct {
	Samples []float64 `json:"samples"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Get("/status", h.handleStatus)
	r.Route("/safety", func(r chi.Router) {
		r.Post("/check", h.handleSafetyCheck)
		r.Get("/summary", h.handleSummary)
		r.Get("/alerts", h.handleAlerts)
		r.Get("/thresholds", h.handleThresholdsGet)
		r.Put("/thresholds", h.handleThresholdsUpdate)
		r.Put("/flags", h.handleFlags)
	})
	r.Route("/control", func(r chi.Router) {
		r.Post("/initialize", h.handleInitialize)
		r.Post("/start", h.handleStart)
		r.Post("/stop", h.handleStop)
		r.Post("/emergency-stop", h.handleEmergencyStop)
		r.Post("/reset", h.handleReset)
		r.Put("/parameters", h.handleParameters)
		r.Post("/input", h.handleInput)
	})
	r.Get("/cache/stats", h.handleCacheStats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleSafetyCheck(w http.ResponseWriter, r *http.Request) {
	result, err := h.Orchestrator.PerformSafetyCheck()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "sensor_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	window := defaultSummaryWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_window", "window must be a positive duration like 1h or 30m")
			return
		}
		window = parsed
	}

	cacheKey := "summary:" + window.String()
	if h.Cache != nil {
		if cached, ok := h.Cache.Get(cacheKey); ok {
			writeJSON(w, http.StatusOK, cached.(safety.Summary))
			return
		}
	}
	summary := h.History.Summary(window)
	if h.Cache != nil {
		h.Cache.Set(cacheKey, summary)
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	count := defaultAlertCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_count", "count must be a positive integer")
			return
		}
		count = parsed
	}
	alerts := h.History.RecentAlerts(count)
	if alerts == nil {
		alerts = []safety.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *Handler) handleThresholdsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Thresholds.Snapshot())
}

func (h *Handler) handleThresholdsUpdate(w http.ResponseWriter, r *http.Request) {
	var patch safety.ThresholdPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed threshold patch")
		return
	}
	updated, err := h.Thresholds.Merge(patch)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_thresholds", err.Error())
		return
	}
	h.Logger.Info("thresholds updated")
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleFlags(w http.ResponseWriter, r *http.Request) {
	var req flagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed flags request")
		return
	}
	if req.SafetyEnabled != nil {
		h.Orchestrator.SetSafetyEnabled(*req.SafetyEnabled)
	}
	if req.AutoShutdownEnabled != nil {
		h.Orchestrator.SetAutoShutdown(*req.AutoShutdownEnabled)
	}
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed initialize request")
		return
	}
	if err := h.Orchestrator.Initialize(req.History); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "initialize_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.Orchestrator.Start(); err != nil {
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	h.Orchestrator.Stop()
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	h.Orchestrator.EmergencyShutdown()
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.Orchestrator.Reset(); err != nil {
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.Orchestrator.Status())
}

func (h *Handler) handleParameters(w http.ResponseWriter, r *http.Request) {
	var patch waveform.TargetSpec
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed parameters")
		return
	}
	h.Orchestrator.SetParameters(patch)
	writeJSON(w, http.StatusOK, h.Orchestrator.Parameters())
}

func (h *Handler) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed input request")
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "empty_samples", "samples must not be empty")
		return
	}
	h.Orchestrator.Submit(req.Samples)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "queue_depth": h.Orchestrator.Status().QueueDepth})
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if h.Cache == nil {
		writeError(w, http.StatusNotFound, "cache_disabled", "no response cache configured")
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Stats())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Ok: false, Code: code, Message: message})
}
