// Package metrics exposes Prometheus collectors for tracking, transport and store activity.
// Every method is safe to call on a nil *Metrics so components can run without metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "surface_tuio"

// Element kinds used as label values.
const (
	KindPattern = "pattern"
	KindPointer = "pointer"
)

// Metrics groups every collector of the process.
type Metrics struct {
	framesTracked     prometheus.Counter
	cycleDuration     prometheus.Histogram
	trackingResults   *prometheus.CounterVec
	failedPartitions  prometheus.Counter
	messagesSent      *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	decodeErrors      *prometheus.CounterVec
	queueDrops        *prometheus.CounterVec
	evictions         *prometheus.CounterVec
	liveElements      *prometheus.GaugeVec
	registeredPattern prometheus.Gauge
}

// New creates collectors and registers them on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesTracked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_tracked_total",
			Help:      "Frames passed through the tracking coordinator.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tracking_cycle_seconds",
			Help:      "Wall time of one tracking cycle including feature extraction.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		trackingResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_results_total",
			Help:      "Validated tracking results by element kind.",
		}, []string{"kind"}),
		failedPartitions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracking_failed_partitions_total",
			Help:      "Worker partitions which failed and contributed no results.",
		}),
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "osc_messages_sent_total",
			Help:      "OSC messages sent by address.",
		}, []string{"address"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "osc_messages_received_total",
			Help:      "OSC messages decoded by address.",
		}, []string{"address"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "osc_decode_errors_total",
			Help:      "OSC messages rejected by the decoder.",
		}, []string{"address"}),
		queueDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "update_queue_drops_total",
			Help:      "Decoded updates dropped because the queue was full.",
		}, []string{"address"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_evictions_total",
			Help:      "Elements evicted after exceeding the element timeout.",
		}, []string{"kind"}),
		liveElements: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_live_elements",
			Help:      "Elements currently held by the store.",
		}, []string{"kind"}),
		registeredPattern: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_patterns",
			Help:      "Reference patterns loaded into the tracking registry.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.framesTracked,
			m.cycleDuration,
			m.trackingResults,
			m.failedPartitions,
			m.messagesSent,
			m.messagesReceived,
			m.decodeErrors,
			m.queueDrops,
			m.evictions,
			m.liveElements,
			m.registeredPattern,
		)
	}
	return m
}

// ObserveCycle records one tracking cycle
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.framesTracked.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

// AddResults counts validated results of given kind
func (m *Metrics) AddResults(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.trackingResults.WithLabelValues(kind).Add(float64(n))
}

// AddFailedPartitions counts failed worker partitions
func (m *Metrics) AddFailedPartitions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.failedPartitions.Add(float64(n))
}

// MessageSent counts one outbound OSC message
func (m *Metrics) MessageSent(address string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(address).Inc()
}

// MessageReceived counts one decoded OSC message
func (m *Metrics) MessageReceived(address string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(address).Inc()
}

// DecodeError counts one rejected OSC message
func (m *Metrics) DecodeError(address string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(address).Inc()
}

// QueueDrop counts one update dropped on a full queue
func (m *Metrics) QueueDrop(address string) {
	if m == nil {
		return
	}
	m.queueDrops.WithLabelValues(address).Inc()
}

// AddEvictions counts evicted elements of given kind
func (m *Metrics) AddEvictions(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.WithLabelValues(kind).Add(float64(n))
}

// SetLive sets the number of live elements of given kind
func (m *Metrics) SetLive(kind string, n int) {
	if m == nil {
		return
	}
	m.liveElements.WithLabelValues(kind).Set(float64(n))
}

// SetRegisteredPatterns sets the registry size
func (m *Metrics) SetRegisteredPatterns(n int) {
	if m == nil {
		return
	}
	m.registeredPattern.Set(float64(n))
}
