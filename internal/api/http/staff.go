package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/observability/metrics"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/store"
)

const persistTimeout = 3 * time.Second

// StaffHandler serves the operator command surface: incident control, the
// entry gate flag, and manual alerts. Persistence is fire-and-forget; a
// failed write degrades the response but the in-memory effect stands.
type StaffHandler struct {
	engine   *ops.Engine
	bus      *eventbus.Bus
	operator store.Operator
	logger   *log.Logger
}

// NewStaffHandler constructs a StaffHandler. A nil operator falls back to
// the no-op store.
func NewStaffHandler(engine *ops.Engine, bus *eventbus.Bus, operator store.Operator, logger *log.Logger) *StaffHandler {
	if operator == nil {
		operator = store.Noop{}
	}
	return &StaffHandler{engine: engine, bus: bus, operator: operator, logger: logger}
}

// TriggerShock handles POST /api/v1/staff/shock.
func (h *StaffHandler) TriggerShock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	shock := h.engine.StartShock(r.Context(), ops.ShockTypeByID(req.Type))
	if shock == nil {
		metrics.ObserveCommand("trigger_shock", "conflict")
		respondError(w, http.StatusConflict, "an incident is already active")
		return
	}
	metrics.ObserveCommand("trigger_shock", "ok")
	respondJSON(w, http.StatusOK, map[string]any{"shock": shock})
}

// ResolveShock handles POST /api/v1/staff/shock/resolve.
func (h *StaffHandler) ResolveShock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resolved := h.engine.ResolveShock(r.Context())
	if resolved == nil {
		metrics.ObserveCommand("resolve_shock", "conflict")
		respondError(w, http.StatusConflict, "no active incident")
		return
	}
	metrics.ObserveCommand("resolve_shock", "ok")
	respondJSON(w, http.StatusOK, map[string]any{"resolved": resolved})
}

// ShockStatus handles GET /api/v1/staff/shock.
func (h *StaffHandler) ShockStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := h.engine.Snapshot()
	respondJSON(w, http.StatusOK, map[string]any{
		"active": snap.ActiveShock != nil,
		"shock":  snap.ActiveShock,
		"types":  ops.ShockTypes,
	})
}

// SetEntry handles POST /api/v1/staff/entry.
func (h *StaffHandler) SetEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Enabled == nil {
		http.Error(w, "enabled flag is required", http.StatusBadRequest)
		return
	}

	h.engine.SetEntryEnabled(r.Context(), *req.Enabled)

	persisted := true
	if err := h.saveEntry(*req.Enabled); err != nil {
		persisted = false
		metrics.ObservePersistenceError("save_entry_enabled")
		if h.logger != nil {
			h.logger.Printf("staff: persist entry flag error: %v", err)
		}
	}
	metrics.ObserveCommand("set_entry", "ok")
	respondJSON(w, http.StatusOK, map[string]any{
		"entryEnabled": *req.Enabled,
		"persisted":    persisted,
	})
}

// RaiseAlert handles POST /api/v1/staff/alerts.
func (h *StaffHandler) RaiseAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Title    string `json:"title"`
		Message  string `json:"message"`
		Severity string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Title == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}
	switch req.Severity {
	case "info", "warning", "critical":
	case "":
		req.Severity = "info"
	default:
		http.Error(w, "severity must be info, warning or critical", http.StatusBadRequest)
		return
	}

	alert := ops.Alert{
		Type:      "manual",
		Title:     req.Title,
		Message:   req.Message,
		Severity:  req.Severity,
		Timestamp: time.Now(),
	}
	if err := h.bus.Publish(r.Context(), alert); err != nil {
		http.Error(w, "publish alert error", http.StatusInternalServerError)
		return
	}

	persisted := true
	if err := h.insertAlert(alert); err != nil {
		persisted = false
		metrics.ObservePersistenceError("insert_alert")
		if h.logger != nil {
			h.logger.Printf("staff: persist alert error: %v", err)
		}
	}
	metrics.ObserveCommand("raise_alert", "ok")
	respondJSON(w, http.StatusOK, map[string]any{
		"alert":     alert,
		"persisted": persisted,
	})
}

// ListAlerts handles GET /api/v1/staff/alerts.
func (h *StaffHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := intQuery(r, "limit", 50, 200)
	ctx, cancel := context.WithTimeout(r.Context(), persistTimeout)
	defer cancel()
	alerts, err := h.operator.ListAlerts(ctx, limit)
	if err != nil {
		metrics.ObservePersistenceError("list_alerts")
		http.Error(w, "list alerts error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (h *StaffHandler) saveEntry(enabled bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return h.operator.SaveEntryEnabled(ctx, enabled)
}

func (h *StaffHandler) insertAlert(alert ops.Alert) error {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	return h.operator.InsertAlert(ctx, store.AlertRecord{
		Type:      alert.Type,
		Title:     alert.Title,
		Message:   alert.Message,
		Severity:  alert.Severity,
		CreatedAt: alert.Timestamp,
	})
}
