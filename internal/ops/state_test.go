package ops

import (
	"context"
	"testing"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/simconfig"
)

func newTestEngine(t *testing.T) (*Engine, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(nil)
	engine, err := NewEngine(bus, simconfig.Default(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, bus
}

func countKind(bus *eventbus.Bus, kind eventbus.Kind, counter *int) {
	bus.Subscribe(kind, func(context.Context, eventbus.Event) error {
		*counter++
		return nil
	})
}

func TestApplyDeltaClampsToBounds(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	cfg := simconfig.Default()

	engine.ApplyDelta(ctx, -10*cfg.MaxQueue)
	if got := engine.Snapshot().QueueCount; got != 0 {
		t.Fatalf("queue below zero: %d", got)
	}

	engine.ApplyDelta(ctx, 10*cfg.MaxQueue)
	if got := engine.Snapshot().QueueCount; got != cfg.MaxQueue {
		t.Fatalf("queue above max: got %d want %d", got, cfg.MaxQueue)
	}
}

func TestCongestionTierTracksQueueDepth(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	cfg := simconfig.Default()

	cases := []struct {
		target int
		want   Congestion
	}{
		{0, CongestionLow},
		{cfg.MediumThreshold, CongestionLow},
		{cfg.MediumThreshold + 1, CongestionMedium},
		{cfg.HighThreshold, CongestionMedium},
		{cfg.HighThreshold + 1, CongestionHigh},
		{cfg.MaxQueue, CongestionHigh},
	}
	for _, tc := range cases {
		snap := engine.Snapshot()
		engine.ApplyDelta(ctx, tc.target-snap.QueueCount)
		if got := engine.Snapshot().Congestion; got != tc.want {
			t.Fatalf("queue=%d: got tier %q want %q", tc.target, got, tc.want)
		}
	}
}

func TestActiveShockFreezesQueue(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	before := engine.Snapshot().QueueCount
	engine.StartShock(ctx, ShockTypes[0])

	engine.ApplyDelta(ctx, 25)
	engine.ApplyDelta(ctx, -25)
	if got := engine.Snapshot().QueueCount; got != before {
		t.Fatalf("queue moved under incident: got %d want %d", got, before)
	}

	engine.ResolveShock(ctx)
	engine.ApplyDelta(ctx, 25)
	if got := engine.Snapshot().QueueCount; got != before+25 {
		t.Fatalf("queue frozen after resolve: got %d want %d", got, before+25)
	}
}

func TestDoubleStartShockFiresOnce(t *testing.T) {
	engine, bus := newTestEngine(t)
	ctx := context.Background()

	var shockEvents, alerts int
	countKind(bus, KindShockEvent, &shockEvents)
	countKind(bus, KindAlert, &alerts)

	first := engine.StartShock(ctx, ShockTypes[1])
	second := engine.StartShock(ctx, ShockTypes[2])

	if first == nil {
		t.Fatal("first start returned nil")
	}
	if second != nil {
		t.Fatalf("second start activated a new incident: %+v", second)
	}
	if shockEvents != 1 {
		t.Fatalf("expected 1 SHOCK_EVENT, got %d", shockEvents)
	}
	if alerts != 1 {
		t.Fatalf("expected 1 ALERT, got %d", alerts)
	}
	if got := engine.Snapshot().ActiveShock; got == nil || got.ID != ShockTypes[1].ID {
		t.Fatalf("active shock changed: %+v", got)
	}
}

func TestResolveWithoutActiveShock(t *testing.T) {
	engine, bus := newTestEngine(t)
	var resolved int
	countKind(bus, KindShockResolved, &resolved)

	if got := engine.ResolveShock(context.Background()); got != nil {
		t.Fatalf("resolve without incident returned %+v", got)
	}
	if resolved != 0 {
		t.Fatalf("expected 0 SHOCK_RESOLVED, got %d", resolved)
	}
}

func TestEntryDisabledFreezesQueue(t *testing.T) {
	engine, bus := newTestEngine(t)
	ctx := context.Background()

	var changed int
	countKind(bus, KindStateChanged, &changed)

	before := engine.Snapshot().QueueCount
	engine.SetEntryEnabled(ctx, false)
	engine.ApplyDelta(ctx, 10)
	if got := engine.Snapshot().QueueCount; got != before {
		t.Fatalf("queue moved with entry disabled: got %d want %d", got, before)
	}

	engine.SetEntryEnabled(ctx, true)
	engine.ApplyDelta(ctx, 10)
	if got := engine.Snapshot().QueueCount; got != before+10 {
		t.Fatalf("queue frozen after re-enable: got %d want %d", got, before+10)
	}
	if changed != 2 {
		t.Fatalf("expected 2 STATE_CHANGED, got %d", changed)
	}
}

func TestQueueUpdatePublishedPerDelta(t *testing.T) {
	engine, bus := newTestEngine(t)
	ctx := context.Background()

	var updates int
	countKind(bus, KindQueueUpdate, &updates)

	engine.ApplyDelta(ctx, 2)
	engine.ApplyDelta(ctx, -2)
	engine.StartShock(ctx, ShockTypes[0])
	engine.ApplyDelta(ctx, 5) // suppressed, no event

	if updates != 2 {
		t.Fatalf("expected 2 QUEUE_UPDATE, got %d", updates)
	}
}

func TestSystemStatusReflectsIncident(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	status := engine.SystemStatus()
	if status.Status != "online" || status.ShockEvent != nil {
		t.Fatalf("unexpected baseline status: %+v", status)
	}

	engine.StartShock(ctx, ShockTypes[0])
	status = engine.SystemStatus()
	if status.Status != "limited" {
		t.Fatalf("expected limited status, got %q", status.Status)
	}
	if status.ShockEvent == nil || status.ShockEvent.ID != ShockTypes[0].ID {
		t.Fatalf("status missing shock: %+v", status.ShockEvent)
	}

	engine.ResolveShock(ctx)
	status = engine.SystemStatus()
	if status.Status != "online" || status.ShockEvent != nil {
		t.Fatalf("status not restored: %+v", status)
	}
}

func TestSnapshotCopiesShock(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	engine.StartShock(ctx, ShockTypes[0])
	snap := engine.Snapshot()
	snap.ActiveShock.Message = "mutated"

	if got := engine.Snapshot().ActiveShock.Message; got == "mutated" {
		t.Fatal("snapshot aliases engine state")
	}
}

func TestShockTypeByIDFallsBack(t *testing.T) {
	if got := ShockTypeByID("power"); got.ID != "power" {
		t.Fatalf("lookup by id: %+v", got)
	}
	if got := ShockTypeByID("Staff Shortage"); got.ID != "staff" {
		t.Fatalf("lookup by label: %+v", got)
	}
	if got := ShockTypeByID("nonsense"); got.ID != ShockTypes[0].ID {
		t.Fatalf("unknown id fallback: %+v", got)
	}
}
