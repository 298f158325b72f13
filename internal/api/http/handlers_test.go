package apihttp_test

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"messhall-cloud/internal/analytics"
	apihttp "messhall-cloud/internal/api/http"
	"messhall-cloud/internal/auth"
	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/predict"
	"messhall-cloud/internal/simconfig"
)

type fixture struct {
	bus       *eventbus.Bus
	engine    *ops.Engine
	predictor *predict.Predictor
	store     *analytics.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	bus := eventbus.New(nil)
	cfg := simconfig.Default()
	engine, err := ops.NewEngine(bus, cfg, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	store := analytics.NewStore()
	store.Attach(bus)
	return fixture{
		bus:       bus,
		engine:    engine,
		predictor: predict.New(cfg, rand.New(rand.NewSource(1))),
		store:     store,
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestStatusHandler(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewStatusHandler(f.engine)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code: %d", w.Code)
	}
	var status ops.SystemStatus
	decodeBody(t, w, &status)
	if status.Status != "online" || status.Source != "Main Hall Mess" {
		t.Fatalf("status body: %+v", status)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/system/status", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method check: %d", w.Code)
	}
}

func TestQueueHandlerCombinesSnapshotAndPrediction(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewQueueHandler(f.engine, f.predictor)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/system/queue", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code: %d", w.Code)
	}
	var body struct {
		Queue      ops.QueueUpdate        `json:"queue"`
		Prediction predict.WaitPrediction `json:"prediction"`
	}
	decodeBody(t, w, &body)
	if body.Queue.QueueCount != simconfig.Default().InitialQueue {
		t.Fatalf("queue count: %d", body.Queue.QueueCount)
	}
	if body.Prediction.QueueCount != body.Queue.QueueCount {
		t.Fatalf("prediction queue mismatch: %d vs %d", body.Prediction.QueueCount, body.Queue.QueueCount)
	}
}

func TestAnalyticsHandlerHeatmapBaseline(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewAnalyticsHandler(f.store, apihttp.ViewHeatmap)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/heatmap?days=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status code: %d", w.Code)
	}
	var body struct {
		Cells []analytics.HeatmapCell `json:"cells"`
	}
	decodeBody(t, w, &body)
	if len(body.Cells) != 2*24 {
		t.Fatalf("cell count: %d", len(body.Cells))
	}
	for _, cell := range body.Cells {
		if !cell.Baseline {
			t.Fatalf("expected baseline-only cells: %+v", cell)
		}
	}
}

func TestAnalyticsHandlerUnknownView(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewAnalyticsHandler(f.store, "no-such-view")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/no-such-view", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status code: %d", w.Code)
	}
}

func TestStaffShockLifecycle(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewStaffHandler(f.engine, f.bus, nil, nil)

	w := httptest.NewRecorder()
	handler.TriggerShock(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/shock",
		strings.NewReader(`{"type":"power"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("trigger: %d %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	handler.TriggerShock(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/shock",
		strings.NewReader(`{"type":"gas"}`)))
	if w.Code != http.StatusConflict {
		t.Fatalf("second trigger: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ShockStatus(w, httptest.NewRequest(http.MethodGet, "/api/v1/staff/shock", nil))
	var status struct {
		Active bool            `json:"active"`
		Shock  *ops.ShockEvent `json:"shock"`
	}
	decodeBody(t, w, &status)
	if !status.Active || status.Shock == nil || status.Shock.ID != "power" {
		t.Fatalf("status: %+v", status)
	}

	w = httptest.NewRecorder()
	handler.ResolveShock(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/shock/resolve", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("resolve: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ResolveShock(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/shock/resolve", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("second resolve: %d", w.Code)
	}
}

func TestStaffSetEntryRequiresFlag(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewStaffHandler(f.engine, f.bus, nil, nil)

	w := httptest.NewRecorder()
	handler.SetEntry(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/entry",
		strings.NewReader(`{}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing flag: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.SetEntry(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/entry",
		strings.NewReader(`{"enabled":false}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("set entry: %d", w.Code)
	}
	if f.engine.Snapshot().EntryEnabled {
		t.Fatal("entry flag not applied")
	}
	var body struct {
		Persisted bool `json:"persisted"`
	}
	decodeBody(t, w, &body)
	if !body.Persisted {
		t.Fatal("noop persistence should report success")
	}
}

func TestStaffRaiseAlertValidatesAndPublishes(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewStaffHandler(f.engine, f.bus, nil, nil)

	w := httptest.NewRecorder()
	handler.RaiseAlert(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/alerts",
		strings.NewReader(`{"message":"no title"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing title: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.RaiseAlert(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/alerts",
		strings.NewReader(`{"title":"Spill","severity":"catastrophic"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad severity: %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.RaiseAlert(w, httptest.NewRequest(http.MethodPost, "/api/v1/staff/alerts",
		strings.NewReader(`{"title":"Spill in zone B","message":"cleanup","severity":"warning"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("raise: %d %s", w.Code, w.Body.String())
	}

	// The published alert lands in the daily summary via the store.
	summary := f.store.DailySummary(0)
	if len(summary) != 1 || summary[0].Severity != "warning" {
		t.Fatalf("summary: %+v", summary)
	}
}

func TestAIPredictWaitUsesRequestedQueue(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewAIHandler(f.engine, f.predictor)

	w := httptest.NewRecorder()
	handler.PredictWait(w, httptest.NewRequest(http.MethodPost, "/api/v1/ai/predict-wait",
		strings.NewReader(`{"queueCount":40}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("predict: %d", w.Code)
	}
	var body struct {
		Prediction predict.WaitPrediction `json:"prediction"`
	}
	decodeBody(t, w, &body)
	if body.Prediction.WaitMinutes != 3 {
		t.Fatalf("wait for 40@12: got %d want 3", body.Prediction.WaitMinutes)
	}

	w = httptest.NewRecorder()
	handler.PredictWait(w, httptest.NewRequest(http.MethodPost, "/api/v1/ai/predict-wait",
		strings.NewReader(`{"queueCount":-5}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative queue: %d", w.Code)
	}
}

func TestAIForecastDemand(t *testing.T) {
	f := newFixture(t)
	handler := apihttp.NewAIHandler(f.engine, f.predictor)

	w := httptest.NewRecorder()
	handler.ForecastDemand(w, httptest.NewRequest(http.MethodPost, "/api/v1/ai/forecast-demand",
		strings.NewReader(`{"scenario":"exam","horizonHours":6}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("forecast: %d", w.Code)
	}
	var fc predict.Forecast
	decodeBody(t, w, &fc)
	if fc.Scenario != "exam" || len(fc.Points) != 6 {
		t.Fatalf("forecast body: scenario=%q points=%d", fc.Scenario, len(fc.Points))
	}
}

func TestLoginHandlerIssuesVerifiableToken(t *testing.T) {
	secret := []byte("test-secret")
	handler := apihttp.NewLoginHandler(secret)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"userId":"stu-9","role":"staff","name":"OP-02"}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("login: %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Token string `json:"token"`
		Role  string `json:"role"`
	}
	decodeBody(t, w, &body)
	if body.Role != "staff" {
		t.Fatalf("role echo: %q", body.Role)
	}
	claims, err := auth.ParseJWT(body.Token, secret)
	if err != nil {
		t.Fatalf("parse issued token: %v", err)
	}
	if claims.Subject != "stu-9" || claims.Role != "staff" {
		t.Fatalf("claims: %+v", claims)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"role":"staff"}`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing userId: %d", w.Code)
	}
}

func TestExportHandlersProduceDownloads(t *testing.T) {
	f := newFixture(t)

	for _, tc := range []struct {
		format      string
		contentType string
	}{
		{apihttp.FormatXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{apihttp.FormatPDF, "application/pdf"},
	} {
		handler := apihttp.NewExportHandler(f.store, tc.format)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/exports/report."+tc.format, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", tc.format, w.Code)
		}
		if got := w.Header().Get("Content-Type"); got != tc.contentType {
			t.Fatalf("%s: content type %q", tc.format, got)
		}
		if w.Body.Len() == 0 {
			t.Fatalf("%s: empty payload", tc.format)
		}
	}
}
