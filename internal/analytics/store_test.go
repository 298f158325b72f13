package analytics

import (
	"context"
	"testing"
	"time"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/sustain"
)

var testDay = time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	s := NewStore()
	s.now = func() time.Time { return testDay }
	return s
}

func TestSampleRingEvictsOldestFirst(t *testing.T) {
	ring := newSampleRing(3)
	for i := 1; i <= 5; i++ {
		ring.Append(Sample{QueueCount: i})
	}
	snap := ring.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 retained samples, got %d", len(snap))
	}
	for i, want := range []int{3, 4, 5} {
		if snap[i].QueueCount != want {
			t.Fatalf("snapshot[%d]=%d want %d", i, snap[i].QueueCount, want)
		}
	}
}

func TestSampleRingSnapshotIsACopy(t *testing.T) {
	ring := newSampleRing(4)
	ring.Append(Sample{QueueCount: 1})
	snap := ring.Snapshot()
	snap[0].QueueCount = 99
	if ring.Snapshot()[0].QueueCount != 1 {
		t.Fatal("snapshot aliases ring storage")
	}
}

func TestAttachFoldsQueueUpdatesWithLastWait(t *testing.T) {
	bus := eventbus.New(nil)
	s := newTestStore()
	s.Attach(bus)
	ctx := context.Background()

	_ = bus.Publish(ctx, ops.WaitPrediction{WaitMinutes: 7, Timestamp: testDay})
	_ = bus.Publish(ctx, ops.QueueUpdate{QueueCount: 42, CapacityPercent: 21, Timestamp: testDay})

	if got := s.SampleCount(); got != 1 {
		t.Fatalf("expected 1 sample, got %d", got)
	}
	sample := s.ring.Snapshot()[0]
	if sample.WaitMinutes != 7 {
		t.Fatalf("sample wait: got %d want 7", sample.WaitMinutes)
	}
	if sample.QueueCount != 42 || sample.CapacityPercent != 21 {
		t.Fatalf("sample fields: %+v", sample)
	}
}

func TestAlertFeedsSummaryAndAudit(t *testing.T) {
	bus := eventbus.New(nil)
	s := newTestStore()
	s.Attach(bus)

	_ = bus.Publish(context.Background(), ops.Alert{
		Type:      "shock",
		Title:     "Power Issue",
		Message:   "Power Issue has been detected.",
		Severity:  "critical",
		Timestamp: testDay,
	})

	summary := s.DailySummary(0)
	if len(summary) != 1 || summary[0].Title != "Power Issue" {
		t.Fatalf("summary: %+v", summary)
	}
	audit := s.AuditLog(AuditFilter{}, 0, 0)
	if len(audit) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit))
	}
	if audit[0].RiskLevel != "red" {
		t.Fatalf("critical alert risk: got %q want red", audit[0].RiskLevel)
	}
	if audit[0].ID == "" {
		t.Fatal("audit entry missing id")
	}
}

func TestAuditLogFilterLimitOffset(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 6; i++ {
		eventType := "re_entry_violation"
		risk := "red"
		if i%2 == 1 {
			eventType = "staff_override"
			risk = "amber"
		}
		s.pushAudit(AuditEntry{EventType: eventType, RiskLevel: risk, Timestamp: testDay})
	}

	if got := len(s.AuditLog(AuditFilter{EventType: "staff_override"}, 0, 0)); got != 3 {
		t.Fatalf("event type filter: got %d want 3", got)
	}
	if got := len(s.AuditLog(AuditFilter{RiskLevel: "red"}, 2, 0)); got != 2 {
		t.Fatalf("limit: got %d want 2", got)
	}
	if got := len(s.AuditLog(AuditFilter{}, 0, 4)); got != 2 {
		t.Fatalf("offset: got %d want 2", got)
	}
	if got := len(s.AuditLog(AuditFilter{}, 0, 100)); got != 0 {
		t.Fatalf("offset past end: got %d want 0", got)
	}
}

func TestAuditStatsUses24hCutoff(t *testing.T) {
	s := newTestStore()
	s.pushAudit(AuditEntry{EventType: "re_entry_violation", Timestamp: testDay.Add(-1 * time.Hour)})
	s.pushAudit(AuditEntry{EventType: "re_entry_violation", Timestamp: testDay.Add(-2 * time.Hour)})
	s.pushAudit(AuditEntry{EventType: "staff_override", Timestamp: testDay.Add(-30 * time.Hour)})

	stats := s.AuditStats()
	if stats.Total != 3 {
		t.Fatalf("total: got %d want 3", stats.Total)
	}
	if stats.Flagged24 != 2 {
		t.Fatalf("flagged 24h: got %d want 2", stats.Flagged24)
	}
	if stats.ByType["re_entry_violation"] != 2 {
		t.Fatalf("by type: %+v", stats.ByType)
	}
	if _, ok := stats.ByType["staff_override"]; ok {
		t.Fatal("stale entry counted in 24h byType")
	}
	if got := s.FairnessIncidents24h(); got != 2 {
		t.Fatalf("fairness incidents: got %d want 2", got)
	}
}

func TestAuditLogRetentionCap(t *testing.T) {
	s := newTestStore()
	for i := 0; i < maxAuditEntries+50; i++ {
		s.pushAudit(AuditEntry{EventType: "re_entry_violation", Timestamp: testDay})
	}
	if got := len(s.AuditLog(AuditFilter{}, 0, 0)); got != maxAuditEntries {
		t.Fatalf("audit retention: got %d want %d", got, maxAuditEntries)
	}
}

func TestSustainabilityLogNewestFirst(t *testing.T) {
	bus := eventbus.New(nil)
	s := newTestStore()
	s.Attach(bus)

	for i := 0; i < 3; i++ {
		_ = bus.Publish(context.Background(), ops.SustainabilityUpdate{Sample: sustain.Sample{
			Score:     80 + i,
			Timestamp: testDay.Add(time.Duration(i) * time.Minute),
		}})
	}

	log := s.SustainabilityLog(2)
	if len(log) != 2 {
		t.Fatalf("limit: got %d want 2", len(log))
	}
	if log[0].Score != 82 || log[1].Score != 81 {
		t.Fatalf("expected newest first, got scores %d, %d", log[0].Score, log[1].Score)
	}
}
