package ops

import (
	"time"

	"messhall-cloud/internal/eventbus"
	"messhall-cloud/internal/sustain"
)

// Event kinds published by the simulation core. The string values are the
// wire names live subscribers see.
const (
	KindQueueUpdate       eventbus.Kind = "QUEUE_UPDATE"
	KindWaitPrediction    eventbus.Kind = "WAIT_PREDICTION"
	KindShockEvent        eventbus.Kind = "SHOCK_EVENT"
	KindShockResolved     eventbus.Kind = "SHOCK_RESOLVED"
	KindAlert             eventbus.Kind = "ALERT"
	KindFairnessViolation eventbus.Kind = "FAIRNESS_VIOLATION"
	KindAuditEvent        eventbus.Kind = "AUDIT_EVENT"
	KindSustainability    eventbus.Kind = "SUSTAINABILITY_UPDATE"
	KindSystemStatus      eventbus.Kind = "SYSTEM_STATUS"
	KindStateChanged      eventbus.Kind = "STATE_CHANGED"
)

// QueueUpdate reports the queue after a movement tick.
type QueueUpdate struct {
	QueueCount      int        `json:"queueCount"`
	CongestionLevel Congestion `json:"congestionLevel"`
	ProcessRate     int        `json:"processRate"`
	CapacityPercent int        `json:"capacityPercent"`
	Timestamp       time.Time  `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (QueueUpdate) EventKind() eventbus.Kind { return KindQueueUpdate }

// ArrivalSuggestion recommends a later arrival window.
type ArrivalSuggestion struct {
	ArriveInMinutes      int       `json:"arriveInMinutes"`
	EstimatedSaveMinutes int       `json:"estimatedSaveMinutes"`
	SuggestedTime        time.Time `json:"suggestedTime"`
}

// WaitPrediction reports the current wait forecast.
type WaitPrediction struct {
	WaitMinutes      int               `json:"waitMinutes"`
	Confidence       float64           `json:"confidence"`
	QueueCount       int               `json:"queueCount"`
	BestTimeToArrive ArrivalSuggestion `json:"bestTimeToArrive"`
	ShockActive      bool              `json:"shockOrAlertActive"`
	Timestamp        time.Time         `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (WaitPrediction) EventKind() eventbus.Kind { return KindWaitPrediction }

// ShockEvent announces a started incident.
type ShockEvent struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	StartedAt time.Time `json:"startedAt"`
}

// EventKind implements eventbus.Event.
func (ShockEvent) EventKind() eventbus.Kind { return KindShockEvent }

// ShockResolved announces that the active incident cleared.
type ShockResolved struct {
	Previous ShockEvent `json:"previous"`
}

// EventKind implements eventbus.Event.
func (ShockResolved) EventKind() eventbus.Kind { return KindShockResolved }

// Alert is an operational alert for staff dashboards.
type Alert struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (Alert) EventKind() eventbus.Kind { return KindAlert }

// FairnessViolation flags anomalous gate access, independent of queue state.
type FairnessViolation struct {
	EventType string    `json:"eventType"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (FairnessViolation) EventKind() eventbus.Kind { return KindFairnessViolation }

// AuditEvent records a fairness violation with its enforcement action.
type AuditEvent struct {
	EventType string    `json:"eventType"`
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	RiskLevel string    `json:"riskLevel"`
	Timestamp time.Time `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (AuditEvent) EventKind() eventbus.Kind { return KindAuditEvent }

// SustainabilityUpdate carries one synthesized waste/throughput sample.
type SustainabilityUpdate struct {
	sustain.Sample
}

// EventKind implements eventbus.Event.
func (SustainabilityUpdate) EventKind() eventbus.Kind { return KindSustainability }

// SystemStatus summarizes the facility mode for subscribers.
type SystemStatus struct {
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	Source       string      `json:"source"`
	EntryEnabled bool        `json:"entryEnabled"`
	ShockEvent   *ShockEvent `json:"shockEvent"`
	Timestamp    time.Time   `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (SystemStatus) EventKind() eventbus.Kind { return KindSystemStatus }

// StateChanged reports an operator flag change.
type StateChanged struct {
	EntryEnabled bool      `json:"entryEnabled"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventKind implements eventbus.Event.
func (StateChanged) EventKind() eventbus.Kind { return KindStateChanged }
