package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "messhall_"

var (
	registerOnce sync.Once

	eventsPublished  *prometheus.CounterVec
	eventsDelivered  *prometheus.CounterVec
	subscriberFaults *prometheus.CounterVec

	tickDuration *prometheus.HistogramVec

	liveClients   prometheus.Gauge
	framesDropped *prometheus.CounterVec

	commandResults    *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers observability metrics. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		eventsPublished = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_published_total",
				Help: "Total events published by kind",
			},
			[]string{"kind"},
		)
		eventsDelivered = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_delivered_total",
				Help: "Total handler deliveries by kind",
			},
			[]string{"kind"},
		)
		subscriberFaults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "subscriber_faults_total",
				Help: "Handler errors and panics by kind",
			},
			[]string{"kind"},
		)

		tickDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "tick_duration_seconds",
				Help:    "Simulation tick duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tick"},
		)

		liveClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "live_clients",
				Help: "Currently connected live subscribers",
			},
		)
		framesDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "frames_dropped_total",
				Help: "Frames dropped for slow subscribers by channel",
			},
			[]string{"channel"},
		)

		commandResults = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "command_results_total",
				Help: "Operator command outcomes by command and result",
			},
			[]string{"command", "result"},
		)
		persistenceErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "persistence_errors_total",
				Help: "Fire-and-forget persistence failures by operation",
			},
			[]string{"operation"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Report exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		)

		prometheus.MustRegister(
			eventsPublished,
			eventsDelivered,
			subscriberFaults,
			tickDuration,
			liveClients,
			framesDropped,
			commandResults,
			persistenceErrors,
			exportTotal,
			exportLatency,
		)
	})
}

// ObservePublish records a publish and its fan-out size.
func ObservePublish(kind string, delivered int) {
	if eventsPublished == nil {
		return
	}
	eventsPublished.WithLabelValues(kind).Inc()
	if delivered > 0 {
		eventsDelivered.WithLabelValues(kind).Add(float64(delivered))
	}
}

// ObserveSubscriberFault records a handler error or panic.
func ObserveSubscriberFault(kind string) {
	if subscriberFaults == nil {
		return
	}
	subscriberFaults.WithLabelValues(kind).Inc()
}

// ObserveTick records one simulation tick duration.
func ObserveTick(tick string, elapsed time.Duration) {
	if tickDuration == nil {
		return
	}
	tickDuration.WithLabelValues(tick).Observe(elapsed.Seconds())
}

// ClientConnected increments the live client gauge.
func ClientConnected() {
	if liveClients != nil {
		liveClients.Inc()
	}
}

// ClientDisconnected decrements the live client gauge.
func ClientDisconnected() {
	if liveClients != nil {
		liveClients.Dec()
	}
}

// ObserveFrameDropped records a dropped frame for a slow subscriber.
func ObserveFrameDropped(channel string) {
	if framesDropped == nil {
		return
	}
	framesDropped.WithLabelValues(channel).Inc()
}

// ObserveCommand records an operator command outcome.
func ObserveCommand(command, result string) {
	if commandResults == nil {
		return
	}
	commandResults.WithLabelValues(command, result).Inc()
}

// ObservePersistenceError records a failed collaborator write.
func ObservePersistenceError(operation string) {
	if persistenceErrors == nil {
		return
	}
	persistenceErrors.WithLabelValues(operation).Inc()
}

// ObserveExport records a report export.
func ObserveExport(format, result string, elapsed time.Duration) {
	if exportTotal == nil {
		return
	}
	exportTotal.WithLabelValues(format, result).Inc()
	exportLatency.WithLabelValues(format).Observe(elapsed.Seconds())
}
