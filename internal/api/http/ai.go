package apihttp

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/predict"
)

// AIHandler serves the on-demand prediction endpoints. Each call is
// computed fresh from the engine snapshot, independent of the periodic
// broadcast ticks.
type AIHandler struct {
	engine    *ops.Engine
	predictor *predict.Predictor
}

// NewAIHandler constructs an AIHandler.
func NewAIHandler(engine *ops.Engine, predictor *predict.Predictor) *AIHandler {
	return &AIHandler{engine: engine, predictor: predictor}
}

// PredictWait handles POST /api/v1/ai/predict-wait. The queue count is
// taken from the request when given, otherwise from the live snapshot.
func (h *AIHandler) PredictWait(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		QueueCount *int `json:"queueCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	snap := h.engine.Snapshot()
	queueCount := snap.QueueCount
	if req.QueueCount != nil {
		if *req.QueueCount < 0 {
			http.Error(w, "queueCount must be non-negative", http.StatusBadRequest)
			return
		}
		queueCount = *req.QueueCount
	}

	wait := h.predictor.PredictWait(queueCount, snap.ActiveShock != nil)
	arrival := h.predictor.BestTimeToArrive(queueCount)
	respondJSON(w, http.StatusOK, map[string]any{
		"prediction":       wait,
		"bestTimeToArrive": arrival,
	})
}

// ForecastDemand handles POST /api/v1/ai/forecast-demand.
func (h *AIHandler) ForecastDemand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Scenario     string `json:"scenario"`
		HorizonHours int    `json:"horizonHours"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, h.predictor.ForecastDemand(req.Scenario, req.HorizonHours))
}

// DetectQueue handles POST /api/v1/ai/detect-queue.
func (h *AIHandler) DetectQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		ZoneID string `json:"zoneId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, h.predictor.DetectQueue(req.ZoneID))
}
