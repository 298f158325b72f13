package apihttp

import (
	"net/http"

	"messhall-cloud/internal/analytics"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/predict"
)

// StatusHandler serves the facility status snapshot.
type StatusHandler struct {
	engine *ops.Engine
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(engine *ops.Engine) *StatusHandler {
	return &StatusHandler{engine: engine}
}

// ServeHTTP handles GET /api/v1/system/status.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.SystemStatus())
}

// QueueHandler serves the current queue snapshot with its wait prediction.
type QueueHandler struct {
	engine    *ops.Engine
	predictor *predict.Predictor
}

// NewQueueHandler constructs a QueueHandler.
func NewQueueHandler(engine *ops.Engine, predictor *predict.Predictor) *QueueHandler {
	return &QueueHandler{engine: engine, predictor: predictor}
}

// ServeHTTP handles GET /api/v1/system/queue.
func (h *QueueHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.engine == nil || h.predictor == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	snap := h.engine.Snapshot()
	wait := h.predictor.PredictWait(snap.QueueCount, snap.ActiveShock != nil)
	respondJSON(w, http.StatusOK, map[string]any{
		"queue":      h.engine.QueueUpdate(),
		"prediction": wait,
	})
}

// AnalyticsHandler serves the derived analytics views over the sample
// buffer and the audit/sustainability logs. One handler per view keeps the
// mux wiring flat.
type AnalyticsHandler struct {
	store *analytics.Store
	view  string
}

// Analytics view names routed by main.
const (
	ViewDailySummary   = "daily-summary"
	ViewAudit          = "audit"
	ViewAuditStats     = "audit-stats"
	ViewHeatmap        = "heatmap"
	ViewTemporalFlow   = "temporal-flow"
	ViewSustainability = "sustainability"
	ViewOverviewKPIs   = "overview-kpis"
)

// NewAnalyticsHandler constructs an AnalyticsHandler for one view.
func NewAnalyticsHandler(store *analytics.Store, view string) *AnalyticsHandler {
	return &AnalyticsHandler{store: store, view: view}
}

// ServeHTTP handles GET /api/v1/analytics/<view>.
func (h *AnalyticsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.store == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	switch h.view {
	case ViewDailySummary:
		limit := intQuery(r, "limit", 50, 200)
		respondJSON(w, http.StatusOK, map[string]any{
			"entries": h.store.DailySummary(limit),
		})
	case ViewAudit:
		filter := analytics.AuditFilter{
			EventType: r.URL.Query().Get("eventType"),
			RiskLevel: r.URL.Query().Get("riskLevel"),
		}
		limit := intQuery(r, "limit", 100, 500)
		offset := intQuery(r, "offset", 0, 0)
		respondJSON(w, http.StatusOK, map[string]any{
			"entries": h.store.AuditLog(filter, limit, offset),
		})
	case ViewAuditStats:
		respondJSON(w, http.StatusOK, h.store.AuditStats())
	case ViewHeatmap:
		days := intQuery(r, "days", 7, 7)
		respondJSON(w, http.StatusOK, map[string]any{
			"cells": h.store.Heatmap(days),
		})
	case ViewTemporalFlow:
		days := intQuery(r, "days", 7, 7)
		respondJSON(w, http.StatusOK, map[string]any{
			"rows": h.store.TemporalFlow(days),
		})
	case ViewSustainability:
		limit := intQuery(r, "limit", 50, 500)
		respondJSON(w, http.StatusOK, map[string]any{
			"samples": h.store.SustainabilityLog(limit),
		})
	case ViewOverviewKPIs:
		respondJSON(w, http.StatusOK, h.store.OverviewKPIs())
	default:
		http.NotFound(w, r)
	}
}
