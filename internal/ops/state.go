package ops

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/simconfig"
)

// Congestion is the coarse tier derived from queue depth.
type Congestion string

const (
	CongestionLow    Congestion = "low"
	CongestionMedium Congestion = "medium"
	CongestionHigh   Congestion = "high"
)

// ShockType is a known incident kind.
type ShockType struct {
	ID    string
	Label string
}

// ShockTypes lists the incident kinds the facility recognizes. Unknown ids
// fall back to the first entry.
var ShockTypes = []ShockType{
	{ID: "gas", Label: "Gas Delay"},
	{ID: "power", Label: "Power Issue"},
	{ID: "staff", Label: "Staff Shortage"},
	{ID: "service", Label: "Service Delay"},
}

// ShockTypeByID resolves an incident kind, defaulting on unknown input.
func ShockTypeByID(id string) ShockType {
	for _, t := range ShockTypes {
		if t.ID == id || t.Label == id {
			return t
		}
	}
	return ShockTypes[0]
}

// Snapshot is an immutable point-in-time copy of the operational state.
type Snapshot struct {
	QueueCount      int
	Congestion      Congestion
	ProcessRate     int
	CapacityPercent int
	EntryEnabled    bool
	ActiveShock     *ShockEvent
	At              time.Time
}

// Engine owns the canonical operational state. Every mutation is serialized
// through its mutex and publishes exactly one primary event; congestion is
// always recomputed from queue depth, never set independently.
type Engine struct {
	mu sync.Mutex

	bus    *eventbus.Bus
	cfg    simconfig.Config
	logger *log.Logger
	now    func() time.Time

	queueCount   int
	congestion   Congestion
	activeShock  *ShockEvent
	entryEnabled bool
}

// NewEngine constructs an Engine seeded from cfg.
func NewEngine(bus *eventbus.Bus, cfg simconfig.Config, logger *log.Logger) (*Engine, error) {
	if bus == nil {
		return nil, errors.New("ops: nil bus")
	}
	e := &Engine{
		bus:          bus,
		cfg:          cfg,
		logger:       logger,
		now:          time.Now,
		queueCount:   clampInt(cfg.InitialQueue, 0, cfg.MaxQueue),
		entryEnabled: true,
	}
	e.congestion = e.tierFor(e.queueCount)
	return e, nil
}

// ApplyDelta moves the queue by delta, clamped to [0, maxQueue], and
// publishes a QUEUE_UPDATE. Movement is suppressed while an incident is
// active or entry is disabled; those calls are silent no-ops.
func (e *Engine) ApplyDelta(ctx context.Context, delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeShock != nil || !e.entryEnabled {
		return
	}
	e.queueCount = clampInt(e.queueCount+delta, 0, e.cfg.MaxQueue)
	e.congestion = e.tierFor(e.queueCount)
	e.publish(ctx, e.queueUpdateLocked())
}

// StartShock activates an incident of the given type and publishes
// SHOCK_EVENT plus a critical ALERT. If an incident is already active the
// call is ignored and nil is returned; concurrent triggers are an expected
// race, not a fault.
func (e *Engine) StartShock(ctx context.Context, t ShockType) *ShockEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeShock != nil {
		return nil
	}
	shock := &ShockEvent{
		Type:      t.Label,
		ID:        t.ID,
		Message:   fmt.Sprintf("%s has been detected. Please remain in your current location until further notice.", t.Label),
		StartedAt: e.now(),
	}
	e.activeShock = shock
	e.publish(ctx, *shock)
	e.publish(ctx, Alert{
		Type:      "shock",
		Severity:  "critical",
		Title:     t.Label,
		Message:   shock.Message,
		Timestamp: e.now(),
	})
	return shock
}

// ResolveShock clears the active incident and publishes SHOCK_RESOLVED.
// A no-op returning nil when none is active.
func (e *Engine) ResolveShock(ctx context.Context) *ShockEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeShock == nil {
		return nil
	}
	previous := *e.activeShock
	e.activeShock = nil
	e.publish(ctx, ShockResolved{Previous: previous})
	return &previous
}

// SetEntryEnabled updates the operator entry flag and publishes
// STATE_CHANGED. Queue depth is untouched.
func (e *Engine) SetEntryEnabled(ctx context.Context, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entryEnabled = enabled
	e.publish(ctx, StateChanged{EntryEnabled: enabled, Timestamp: e.now()})
}

// Snapshot returns a consistent copy of the current state. The active shock
// is copied, never aliased.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		QueueCount:      e.queueCount,
		Congestion:      e.congestion,
		ProcessRate:     e.cfg.ProcessRate,
		CapacityPercent: e.capacityPercentLocked(),
		EntryEnabled:    e.entryEnabled,
		At:              e.now(),
	}
	if e.activeShock != nil {
		shock := *e.activeShock
		snap.ActiveShock = &shock
	}
	return snap
}

// SystemStatus derives the subscriber-facing facility status.
func (e *Engine) SystemStatus() SystemStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	status := SystemStatus{
		Status:       "online",
		Message:      "FULLY OPERATIONAL",
		Source:       "Main Hall Mess",
		EntryEnabled: e.entryEnabled,
		Timestamp:    e.now(),
	}
	if e.activeShock != nil {
		shock := *e.activeShock
		status.Status = "limited"
		status.Message = fmt.Sprintf("Incident: %s", shock.Type)
		status.ShockEvent = &shock
	}
	return status
}

// QueueUpdate builds the current queue event without mutating state, for
// connect-time snapshots.
func (e *Engine) QueueUpdate() QueueUpdate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.queueUpdateLocked()
}

func (e *Engine) queueUpdateLocked() QueueUpdate {
	return QueueUpdate{
		QueueCount:      e.queueCount,
		CongestionLevel: e.congestion,
		ProcessRate:     e.cfg.ProcessRate,
		CapacityPercent: e.capacityPercentLocked(),
		Timestamp:       e.now(),
	}
}

func (e *Engine) capacityPercentLocked() int {
	base := e.cfg.CapacityBase
	if base <= 0 {
		base = e.cfg.MaxQueue
	}
	pct := int(float64(e.queueCount)/float64(base)*100 + 0.5)
	if pct > 100 {
		pct = 100
	}
	return pct
}

func (e *Engine) tierFor(queueCount int) Congestion {
	switch {
	case queueCount > e.cfg.HighThreshold:
		return CongestionHigh
	case queueCount > e.cfg.MediumThreshold:
		return CongestionMedium
	default:
		return CongestionLow
	}
}

// publish runs under e.mu so events leave in mutation order. Handlers on the
// bus must not call back into the engine.
func (e *Engine) publish(ctx context.Context, event eventbus.Event) {
	if err := e.bus.Publish(ctx, event); err != nil && e.logger != nil {
		e.logger.Printf("ops: publish %s error: %v", event.EventKind(), err)
	}
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
