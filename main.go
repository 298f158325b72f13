package main

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"math/rand"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"messhall-cloud/internal/analytics"
	apihttp "messhall-cloud/internal/api/http"
	"messhall-cloud/internal/auth"
	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/gateway"
	"messhall-cloud/internal/observability/metrics"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/predict"
	"messhall-cloud/internal/simconfig"
	"messhall-cloud/internal/store"
	storepostgres "messhall-cloud/internal/store/postgres"
	"messhall-cloud/internal/sustain"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	simCfg, err := simconfig.Load(cfg.SimConfigPath)
	if err != nil {
		logger.Fatalf("sim config error: %v", err)
	}

	metrics.Init()

	seed := simCfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	seeder := rand.New(rand.NewSource(seed))

	bus := eventbus.New(logger)
	engine, err := ops.NewEngine(bus, simCfg, logger)
	if err != nil {
		logger.Fatalf("engine error: %v", err)
	}
	predictor := predict.New(simCfg, rand.New(rand.NewSource(seeder.Int63())))
	simulator := sustain.NewSimulator(rand.New(rand.NewSource(seeder.Int63())))

	statsStore := analytics.NewStore()
	statsStore.Attach(bus)

	operator := buildOperator(cfg, logger)

	ctx := context.Background()
	if enabled, err := operator.LoadEntryEnabled(ctx); err != nil {
		metrics.ObservePersistenceError("load_entry_enabled")
		logger.Printf("load entry flag error: %v", err)
	} else if !enabled {
		engine.SetEntryEnabled(ctx, false)
	}

	driver, err := ops.NewDriver(engine, bus, predictor, simulator, simCfg, rand.New(rand.NewSource(seeder.Int63())), logger)
	if err != nil {
		logger.Fatalf("driver error: %v", err)
	}
	driver.Start(ctx)

	hub, err := gateway.NewHub(bus, engine, predictor, logger)
	if err != nil {
		logger.Fatalf("gateway error: %v", err)
	}
	alertBroker := gateway.NewAlertBroker(bus)

	staffHandler := apihttp.NewStaffHandler(engine, bus, operator, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/auth/login", apihttp.NewLoginHandler([]byte(cfg.JWTSecret)))
	mux.Handle("/api/v1/system/status", apihttp.NewStatusHandler(engine))
	mux.Handle("/api/v1/system/queue", apihttp.NewQueueHandler(engine, predictor))
	mux.Handle("/api/v1/analytics/daily-summary", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewDailySummary))
	mux.Handle("/api/v1/analytics/audit", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewAudit))
	mux.Handle("/api/v1/analytics/audit/stats", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewAuditStats))
	mux.Handle("/api/v1/analytics/heatmap", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewHeatmap))
	mux.Handle("/api/v1/analytics/temporal-flow", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewTemporalFlow))
	mux.Handle("/api/v1/analytics/sustainability", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewSustainability))
	mux.Handle("/api/v1/analytics/overview-kpis", apihttp.NewAnalyticsHandler(statsStore, apihttp.ViewOverviewKPIs))
	mux.HandleFunc("/api/v1/ai/predict-wait", apihttp.NewAIHandler(engine, predictor).PredictWait)
	mux.HandleFunc("/api/v1/ai/forecast-demand", apihttp.NewAIHandler(engine, predictor).ForecastDemand)
	mux.HandleFunc("/api/v1/ai/detect-queue", apihttp.NewAIHandler(engine, predictor).DetectQueue)
	mux.HandleFunc("/api/v1/staff/shock", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			staffHandler.ShockStatus(w, r)
			return
		}
		staffHandler.TriggerShock(w, r)
	})
	mux.HandleFunc("/api/v1/staff/shock/resolve", staffHandler.ResolveShock)
	mux.HandleFunc("/api/v1/staff/entry", staffHandler.SetEntry)
	mux.HandleFunc("/api/v1/staff/alerts", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			staffHandler.ListAlerts(w, r)
			return
		}
		staffHandler.RaiseAlert(w, r)
	})
	mux.Handle("/api/v1/exports/report.xlsx", apihttp.NewExportHandler(statsStore, apihttp.FormatXLSX))
	mux.Handle("/api/v1/exports/report.pdf", apihttp.NewExportHandler(statsStore, apihttp.FormatPDF))
	mux.Handle("/api/v1/alerts/stream", gateway.NewAlertStreamHandler(alertBroker))
	mux.Handle("/ws", hub)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics", "/api/v1/auth/login"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	HTTPAddr      string
	DatabaseURL   string
	SimConfigPath string
	JWTSecret     string
}

func loadConfig() config {
	cfg := config{
		HTTPAddr:      getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:   getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		SimConfigPath: getenvDefault("SIM_CONFIG", ""),
		JWTSecret:     getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

// buildOperator connects the postgres operator store when DATABASE_URL is
// set; without it the service runs fully in memory.
func buildOperator(cfg config, logger *log.Logger) store.Operator {
	if cfg.DatabaseURL == "" {
		logger.Printf("no DATABASE_URL, operator state is in-memory only")
		return store.Noop{}
	}
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}
	operator, err := storepostgres.NewOperatorStore(db)
	if err != nil {
		logger.Fatalf("operator store error: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := operator.EnsureSchema(ctx); err != nil {
		logger.Fatalf("operator schema error: %v", err)
	}
	return operator
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

// statusWriter records the response code for access logs. Hijack and Flush
// pass through so the websocket upgrade and the SSE stream keep working
// behind the wrapper.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}
