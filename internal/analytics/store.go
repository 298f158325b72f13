package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/ops"
	"messhall-cloud/internal/sustain"
)

// Retention bounds. The sample buffer holds 7 days at one sample a minute;
// the logs keep the N most recent entries, newest first.
const (
	SampleBufferCap = 7 * 24 * 60
	maxAuditEntries = 2000
	maxSustainLog   = 500
	maxDailySummary = 200
)

// AuditEntry is one recorded fairness/alert/incident audit event.
type AuditEntry struct {
	ID        string    `json:"id"`
	EventType string    `json:"eventType"`
	UserID    string    `json:"userId,omitempty"`
	Action    string    `json:"action,omitempty"`
	RiskLevel string    `json:"riskLevel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SummaryEntry is one row of the daily operational summary feed.
type SummaryEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditFilter narrows audit log reads.
type AuditFilter struct {
	EventType string
	RiskLevel string
}

// AuditStats summarizes the trailing 24 hours of audit activity.
type AuditStats struct {
	Total     int            `json:"total"`
	Flagged24 int            `json:"flagged24h"`
	ByType    map[string]int `json:"byType"`
}

// Store folds the event stream into derived views: the temporal sample
// buffer, the audit log, the sustainability log, and the daily summary
// feed. All read-side aggregates are recomputed from the sample buffer, so
// they can never contradict each other.
type Store struct {
	mu sync.RWMutex

	ring       *sampleRing
	audit      []AuditEntry
	sustainLog []sustain.Sample
	daily      []SummaryEntry

	lastWaitMinutes int
	now             func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		ring: newSampleRing(SampleBufferCap),
		now:  time.Now,
	}
}

// Attach subscribes the store to every event kind it aggregates.
func (s *Store) Attach(bus *eventbus.Bus) {
	bus.Subscribe(ops.KindQueueUpdate, func(_ context.Context, event eventbus.Event) error {
		if qu, ok := event.(ops.QueueUpdate); ok {
			s.ingestQueueUpdate(qu)
		}
		return nil
	})
	bus.Subscribe(ops.KindWaitPrediction, func(_ context.Context, event eventbus.Event) error {
		if wp, ok := event.(ops.WaitPrediction); ok {
			s.mu.Lock()
			s.lastWaitMinutes = wp.WaitMinutes
			s.mu.Unlock()
		}
		return nil
	})
	bus.Subscribe(ops.KindAlert, func(_ context.Context, event eventbus.Event) error {
		if alert, ok := event.(ops.Alert); ok {
			s.pushSummary(SummaryEntry{
				Type:      "alert",
				Title:     alert.Title,
				Message:   alert.Message,
				Severity:  alert.Severity,
				Timestamp: alert.Timestamp,
			})
			s.pushAudit(AuditEntry{
				EventType: "alert",
				Action:    alert.Title,
				RiskLevel: riskForSeverity(alert.Severity),
				Timestamp: alert.Timestamp,
			})
		}
		return nil
	})
	bus.Subscribe(ops.KindShockEvent, func(_ context.Context, event eventbus.Event) error {
		if shock, ok := event.(ops.ShockEvent); ok {
			s.pushSummary(SummaryEntry{
				Type:      "shock",
				Title:     shock.Type,
				Message:   shock.Message,
				Timestamp: shock.StartedAt,
			})
		}
		return nil
	})
	bus.Subscribe(ops.KindShockResolved, func(_ context.Context, event eventbus.Event) error {
		if resolved, ok := event.(ops.ShockResolved); ok {
			s.pushSummary(SummaryEntry{
				Type:      "shock_resolved",
				Title:     resolved.Previous.Type,
				Timestamp: s.now(),
			})
		}
		return nil
	})
	bus.Subscribe(ops.KindFairnessViolation, func(_ context.Context, event eventbus.Event) error {
		if fv, ok := event.(ops.FairnessViolation); ok {
			s.pushAudit(AuditEntry{
				EventType: fv.EventType,
				UserID:    fv.UserID,
				Timestamp: fv.Timestamp,
			})
		}
		return nil
	})
	bus.Subscribe(ops.KindAuditEvent, func(_ context.Context, event eventbus.Event) error {
		if ae, ok := event.(ops.AuditEvent); ok {
			s.pushAudit(AuditEntry{
				EventType: ae.EventType,
				UserID:    ae.UserID,
				Action:    ae.Action,
				RiskLevel: ae.RiskLevel,
				Timestamp: ae.Timestamp,
			})
		}
		return nil
	})
	bus.Subscribe(ops.KindSustainability, func(_ context.Context, event eventbus.Event) error {
		if su, ok := event.(ops.SustainabilityUpdate); ok {
			s.pushSustainability(su.Sample)
		}
		return nil
	})
}

func (s *Store) ingestQueueUpdate(qu ops.QueueUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := qu.Timestamp
	if at.IsZero() {
		at = s.now()
	}
	s.ring.Append(Sample{
		At:              at,
		QueueCount:      qu.QueueCount,
		WaitMinutes:     s.lastWaitMinutes,
		CapacityPercent: qu.CapacityPercent,
	})
}

// IngestSample appends one raw sample directly. Test and backfill entry
// point; event-driven ingest goes through Attach.
func (s *Store) IngestSample(sample Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Append(sample)
}

func (s *Store) pushAudit(entry AuditEntry) {
	if entry.ID == "" {
		entry.ID = "audit-" + uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append([]AuditEntry{entry}, s.audit...)
	if len(s.audit) > maxAuditEntries {
		s.audit = s.audit[:maxAuditEntries]
	}
}

func (s *Store) pushSummary(entry SummaryEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.daily = append([]SummaryEntry{entry}, s.daily...)
	if len(s.daily) > maxDailySummary {
		s.daily = s.daily[:maxDailySummary]
	}
}

func (s *Store) pushSustainability(sample sustain.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sustainLog = append([]sustain.Sample{sample}, s.sustainLog...)
	if len(s.sustainLog) > maxSustainLog {
		s.sustainLog = s.sustainLog[:maxSustainLog]
	}
}

// SampleCount reports the number of buffered raw samples.
func (s *Store) SampleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ring.Len()
}

// DailySummary returns the newest limit summary rows, most recent first.
func (s *Store) DailySummary(limit int) []SummaryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.daily) {
		limit = len(s.daily)
	}
	out := make([]SummaryEntry, limit)
	copy(out, s.daily[:limit])
	return out
}

// AuditLog returns filtered audit entries, most recent first.
func (s *Store) AuditLog(filter AuditFilter, limit, offset int) []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]AuditEntry, 0, len(s.audit))
	for _, entry := range s.audit {
		if filter.EventType != "" && entry.EventType != filter.EventType {
			continue
		}
		if filter.RiskLevel != "" && entry.RiskLevel != filter.RiskLevel {
			continue
		}
		matched = append(matched, entry)
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []AuditEntry{}
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched
}

// AuditStats computes trailing-24h counts by event type.
func (s *Store) AuditStats() AuditStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-24 * time.Hour)
	stats := AuditStats{Total: len(s.audit), ByType: make(map[string]int)}
	for _, entry := range s.audit {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		stats.Flagged24++
		stats.ByType[entry.EventType]++
	}
	return stats
}

// FairnessIncidents24h counts audit events in the trailing 24 hours.
func (s *Store) FairnessIncidents24h() int {
	return s.AuditStats().Flagged24
}

// SustainabilityLog returns the newest limit sustainability samples.
func (s *Store) SustainabilityLog(limit int) []sustain.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.sustainLog) {
		limit = len(s.sustainLog)
	}
	out := make([]sustain.Sample, limit)
	copy(out, s.sustainLog[:limit])
	return out
}

func riskForSeverity(severity string) string {
	switch severity {
	case "critical":
		return "red"
	case "warning":
		return "amber"
	default:
		return "green"
	}
}
