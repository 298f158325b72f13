package ops

import (
	"context"
	"math/rand"
	"testing"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/predict"
	"messhall-cloud/internal/simconfig"
	"messhall-cloud/internal/sustain"
)

func newTestDriver(t *testing.T, cfg simconfig.Config, seed int64) (*Driver, *Engine, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(nil)
	engine, err := NewEngine(bus, cfg, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	rng := rand.New(rand.NewSource(seed))
	predictor := predict.New(cfg, rand.New(rand.NewSource(seed)))
	sim := sustain.NewSimulator(rand.New(rand.NewSource(seed)))
	driver, err := NewDriver(engine, bus, predictor, sim, cfg, rng, nil)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	return driver, engine, bus
}

func TestNewDriverRejectsMissingDeps(t *testing.T) {
	if _, err := NewDriver(nil, nil, nil, nil, simconfig.Default(), nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestRandomDeltaStaysInSkewRanges(t *testing.T) {
	driver, _, _ := newTestDriver(t, simconfig.Default(), 7)
	for i := 0; i < 1000; i++ {
		delta := driver.randomDelta()
		switch {
		case delta >= -7 && delta <= -4: // batch serve
		case delta == -2:
		case delta == 2:
		case delta >= 3 && delta <= 8: // arrival surge
		default:
			t.Fatalf("delta %d outside the skew ranges", delta)
		}
	}
}

func TestQueueTickMovesQueueAndPublishes(t *testing.T) {
	cfg := simconfig.Default()
	cfg.IncidentChance = 0
	cfg.FairnessChance = 0
	driver, _, bus := newTestDriver(t, cfg, 42)

	var updates int
	countKind(bus, KindQueueUpdate, &updates)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		driver.QueueTick(ctx)
	}
	if updates != 10 {
		t.Fatalf("expected 10 QUEUE_UPDATE, got %d", updates)
	}
}

func TestQueueTickCanTriggerIncident(t *testing.T) {
	cfg := simconfig.Default()
	cfg.IncidentChance = 1
	cfg.FairnessChance = 0
	driver, engine, bus := newTestDriver(t, cfg, 42)

	var shocks int
	countKind(bus, KindShockEvent, &shocks)

	ctx := context.Background()
	driver.QueueTick(ctx)
	driver.QueueTick(ctx) // incident already active, no second shock

	if shocks != 1 {
		t.Fatalf("expected 1 SHOCK_EVENT, got %d", shocks)
	}
	if engine.Snapshot().ActiveShock == nil {
		t.Fatal("no active incident after a certain trigger")
	}
}

func TestIncidentCheckTickIsSecondFiringPoint(t *testing.T) {
	cfg := simconfig.Default()
	cfg.IncidentChance = 1
	driver, engine, _ := newTestDriver(t, cfg, 42)

	driver.IncidentCheckTick(context.Background())
	if engine.Snapshot().ActiveShock == nil {
		t.Fatal("incident check did not trigger")
	}
}

func TestFairnessViolationPublishesPairedAuditEvent(t *testing.T) {
	cfg := simconfig.Default()
	cfg.IncidentChance = 0
	cfg.FairnessChance = 1
	driver, _, bus := newTestDriver(t, cfg, 42)

	var violations []FairnessViolation
	var audits []AuditEvent
	bus.Subscribe(KindFairnessViolation, func(_ context.Context, event eventbus.Event) error {
		violations = append(violations, event.(FairnessViolation))
		return nil
	})
	bus.Subscribe(KindAuditEvent, func(_ context.Context, event eventbus.Event) error {
		audits = append(audits, event.(AuditEvent))
		return nil
	})

	driver.QueueTick(context.Background())

	if len(violations) != 1 || len(audits) != 1 {
		t.Fatalf("expected paired events, got %d violations and %d audits", len(violations), len(audits))
	}
	if violations[0].UserID != audits[0].UserID {
		t.Fatalf("pair user mismatch: %q vs %q", violations[0].UserID, audits[0].UserID)
	}
	if violations[0].EventType != audits[0].EventType {
		t.Fatalf("pair type mismatch: %q vs %q", violations[0].EventType, audits[0].EventType)
	}
	if audits[0].Action == "" || audits[0].RiskLevel == "" {
		t.Fatalf("audit event missing enforcement fields: %+v", audits[0])
	}
}

func TestPredictionTickPublishesWaitPrediction(t *testing.T) {
	cfg := simconfig.Default()
	driver, engine, bus := newTestDriver(t, cfg, 42)

	var preds []WaitPrediction
	bus.Subscribe(KindWaitPrediction, func(_ context.Context, event eventbus.Event) error {
		preds = append(preds, event.(WaitPrediction))
		return nil
	})

	ctx := context.Background()
	driver.PredictionTick(ctx)
	engine.StartShock(ctx, ShockTypes[0])
	driver.PredictionTick(ctx)

	if len(preds) != 2 {
		t.Fatalf("expected 2 WAIT_PREDICTION, got %d", len(preds))
	}
	if preds[0].ShockActive {
		t.Fatal("first prediction flagged an incident")
	}
	if !preds[1].ShockActive {
		t.Fatal("second prediction missed the active incident")
	}
	if preds[1].Confidence > 0.82 {
		t.Fatalf("confidence above incident ceiling: %v", preds[1].Confidence)
	}
	if preds[0].QueueCount != cfg.InitialQueue {
		t.Fatalf("prediction queue mismatch: got %d want %d", preds[0].QueueCount, cfg.InitialQueue)
	}
}

func TestSustainabilityTickPublishesSample(t *testing.T) {
	driver, _, bus := newTestDriver(t, simconfig.Default(), 42)

	var samples int
	countKind(bus, KindSustainability, &samples)

	driver.SustainabilityTick(context.Background())
	if samples != 1 {
		t.Fatalf("expected 1 SUSTAINABILITY_UPDATE, got %d", samples)
	}
}
