package ops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/observability/metrics"
	"messhall-cloud/internal/predict"
	"messhall-cloud/internal/simconfig"
	"messhall-cloud/internal/sustain"
)

var fairnessKinds = []struct {
	eventType string
	action    string
	riskLevel string
}{
	{"re_entry_violation", "Access Blocked / Turnstile Locked", "red"},
	{"priority_override", "Access Blocked / Turnstile Locked", "red"},
	{"staff_override", "Manual Approval by OP-02", "amber"},
}

// Driver advances the simulation on four independent cadences: queue
// movement, prediction refresh, an incident-check safety net, and
// sustainability sampling. Ticks interleave arbitrarily and a fault in one
// tick never stops the next.
type Driver struct {
	engine    *Engine
	bus       *eventbus.Bus
	predictor *predict.Predictor
	sim       *sustain.Simulator
	cfg       simconfig.Config
	logger    *log.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDriver constructs a Driver. A nil rng gets a time-based seed; tests
// inject a fixed one.
func NewDriver(engine *Engine, bus *eventbus.Bus, predictor *predict.Predictor, sim *sustain.Simulator, cfg simconfig.Config, rng *rand.Rand, logger *log.Logger) (*Driver, error) {
	if engine == nil || bus == nil || predictor == nil || sim == nil {
		return nil, errors.New("ops: driver dependencies missing")
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Driver{
		engine:    engine,
		bus:       bus,
		predictor: predictor,
		sim:       sim,
		cfg:       cfg,
		logger:    logger,
		rng:       rng,
	}, nil
}

// Start launches the tick loops and publishes the initial system status.
// The loops stop when ctx is cancelled.
func (d *Driver) Start(ctx context.Context) {
	d.publish(ctx, d.engine.SystemStatus())

	go d.loop(ctx, "queue", d.cfg.QueueTick, d.QueueTick)
	go d.loop(ctx, "prediction", d.cfg.PredictionTick, d.PredictionTick)
	go d.loop(ctx, "incident_check", d.cfg.IncidentCheckTick, d.IncidentCheckTick)
	go d.loop(ctx, "sustainability", d.cfg.SustainabilityTick, d.SustainabilityTick)
}

func (d *Driver) loop(ctx context.Context, name string, cadence time.Duration, tick func(context.Context)) {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			tick(ctx)
			metrics.ObserveTick(name, time.Since(start))
		}
	}
}

// QueueTick draws a skewed delta, applies it, then independently rolls the
// incident and fairness chances.
func (d *Driver) QueueTick(ctx context.Context) {
	d.engine.ApplyDelta(ctx, d.randomDelta())
	d.maybeTriggerShock(ctx)
	d.maybeFairnessViolation(ctx)
}

// PredictionTick publishes a fresh wait prediction from a state snapshot.
func (d *Driver) PredictionTick(ctx context.Context) {
	snap := d.engine.Snapshot()
	shockActive := snap.ActiveShock != nil
	pred := d.predictor.PredictWait(snap.QueueCount, shockActive)
	best := d.predictor.BestTimeToArrive(snap.QueueCount)
	d.publish(ctx, WaitPrediction{
		WaitMinutes: pred.WaitMinutes,
		Confidence:  pred.Confidence,
		QueueCount:  snap.QueueCount,
		BestTimeToArrive: ArrivalSuggestion{
			ArriveInMinutes:      best.ArriveInMinutes,
			EstimatedSaveMinutes: best.EstimatedSaveMinutes,
			SuggestedTime:        best.SuggestedTime,
		},
		ShockActive: shockActive,
		Timestamp:   snap.At,
	})
}

// IncidentCheckTick is the longer-period safety net: one incident policy,
// two firing points (here and QueueTick).
func (d *Driver) IncidentCheckTick(ctx context.Context) {
	d.maybeTriggerShock(ctx)
}

// SustainabilityTick synthesizes and publishes one waste/throughput sample.
func (d *Driver) SustainabilityTick(ctx context.Context) {
	snap := d.engine.Snapshot()
	sample := d.sim.Sample(snap.At, snap.QueueCount, string(snap.Congestion))
	d.publish(ctx, SustainabilityUpdate{Sample: sample})
}

// randomDelta draws from the configured skew: a batch-serve chunk, a small
// serve, a small arrival, or an arrival surge.
func (d *Driver) randomDelta() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	r := d.rng.Float64()
	skew := d.cfg.DeltaSkew
	switch {
	case r < skew.BatchServe:
		return -4 - d.rng.Intn(4)
	case r < skew.SmallServe:
		return -2
	case r < skew.SmallArrive:
		return 2
	default:
		return 3 + d.rng.Intn(6)
	}
}

func (d *Driver) maybeTriggerShock(ctx context.Context) {
	if d.engine.Snapshot().ActiveShock != nil {
		return
	}
	d.mu.Lock()
	roll := d.rng.Float64()
	pick := d.rng.Intn(len(ShockTypes))
	d.mu.Unlock()
	if roll > d.cfg.IncidentChance {
		return
	}
	d.engine.StartShock(ctx, ShockTypes[pick])
}

func (d *Driver) maybeFairnessViolation(ctx context.Context) {
	d.mu.Lock()
	roll := d.rng.Float64()
	pick := d.rng.Intn(len(fairnessKinds))
	user := fmt.Sprintf("USR-****-%d", 1000+d.rng.Intn(9000))
	d.mu.Unlock()
	if roll > d.cfg.FairnessChance {
		return
	}
	kind := fairnessKinds[pick]
	now := time.Now()
	d.publish(ctx, FairnessViolation{
		EventType: kind.eventType,
		UserID:    user,
		Timestamp: now,
	})
	d.publish(ctx, AuditEvent{
		EventType: kind.eventType,
		UserID:    user,
		Action:    kind.action,
		RiskLevel: kind.riskLevel,
		Timestamp: now,
	})
}

func (d *Driver) publish(ctx context.Context, event eventbus.Event) {
	if err := d.bus.Publish(ctx, event); err != nil && d.logger != nil {
		d.logger.Printf("ops: driver publish %s error: %v", event.EventKind(), err)
	}
}
