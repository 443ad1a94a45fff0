// Package metrics provides Prometheus metrics for the adbfs bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bridge operation metrics
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbfs_operations_total",
			Help: "Total number of bridge operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adbfs_operation_duration_seconds",
			Help:    "Bridge operation duration in seconds, including the settle delay",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	operationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adbfs_operations_in_flight",
			Help: "Number of bridge operations currently in flight",
		},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adbfs_settle_duration_seconds",
			Help:    "Time spent waiting for mutations to become observable",
			Buckets: []float64{.01, .05, .1, .2, .3, .5, 1},
		},
		[]string{"strategy"},
	)

	// Transfer metrics
	bytesPulled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adbfs_pull_bytes_total",
			Help: "Total bytes read from devices",
		},
	)

	bytesPushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adbfs_push_bytes_total",
			Help: "Total bytes written to devices",
		},
	)

	// Device metrics
	devicesAttached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adbfs_devices_attached",
			Help: "Number of currently attached devices",
		},
	)

	deviceEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbfs_device_events_total",
			Help: "Total number of device attach/detach events",
		},
		[]string{"type"},
	)

	trackerErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adbfs_tracker_errors_total",
			Help: "Total number of device tracker failures",
		},
	)

	// Change notification metrics
	changeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adbfs_change_events_total",
			Help: "Total number of published change events",
		},
		[]string{"cause"},
	)

	changeEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "adbfs_change_events_dropped_total",
			Help: "Total number of change events dropped for slow consumers",
		},
	)

	subscribersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adbfs_change_subscribers",
			Help: "Number of active change event subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOperation(operation string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncInFlight() {
	operationsInFlight.Inc()
}

func DecInFlight() {
	operationsInFlight.Dec()
}

func RecordSettle(strategy string, duration time.Duration) {
	settleDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

func RecordPull(bytes int) {
	bytesPulled.Add(float64(bytes))
}

func RecordPush(bytes int) {
	bytesPushed.Add(float64(bytes))
}

func SetDevicesAttached(count int) {
	devicesAttached.Set(float64(count))
}

func RecordDeviceEvent(eventType string) {
	deviceEventsTotal.WithLabelValues(eventType).Inc()
}

func RecordTrackerError() {
	trackerErrorsTotal.Inc()
}

func RecordChangeEvent(cause string) {
	changeEventsTotal.WithLabelValues(cause).Inc()
}

func RecordDroppedEvent() {
	changeEventsDropped.Inc()
}

func SetSubscribers(count int) {
	subscribersActive.Set(float64(count))
}
