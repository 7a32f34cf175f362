package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus exposes job lifecycle and hub traffic counters.
// A nil *Prometheus records nothing.
type Prometheus struct {
	jobsStarted     *prometheus.CounterVec
	jobsFinished    *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	eventsPublished *prometheus.CounterVec
	eventsDelivered *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	connections     prometheus.Gauge
	fallbackPlans   prometheus.Counter
}

// NewPrometheus registers the fitplan collectors with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		jobsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_jobs_started_total",
			Help: "Background jobs started by kind",
		}, []string{"kind"}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_jobs_finished_total",
			Help: "Background jobs finished by kind and terminal status",
		}, []string{"kind", "status"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitplan_job_duration_seconds",
			Help:    "Background job duration by kind",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		eventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_hub_events_published_total",
			Help: "Events published to the hub by event name",
		}, []string{"event"}),
		eventsDelivered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_hub_events_delivered_total",
			Help: "Event copies queued to subscribers by event name",
		}, []string{"event"}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fitplan_hub_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full",
		}, []string{"event"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "fitplan_ws_connections",
			Help: "Open WebSocket connections",
		}),
		fallbackPlans: f.NewCounter(prometheus.CounterOpts{
			Name: "fitplan_fallback_plans_total",
			Help: "Generated plans that used the built-in fallback program",
		}),
	}
}

// JobStarted counts a job of kind entering its pipeline.
func (p *Prometheus) JobStarted(kind string) {
	if p == nil {
		return
	}
	p.jobsStarted.WithLabelValues(kind).Inc()
}

// JobFinished counts a job reaching a terminal status.
func (p *Prometheus) JobFinished(kind, status string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.jobsFinished.WithLabelValues(kind, status).Inc()
	p.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// FallbackPlan counts a plan that was replaced by the built-in program.
func (p *Prometheus) FallbackPlan() {
	if p == nil {
		return
	}
	p.fallbackPlans.Inc()
}

// EventPublished implements hub.Recorder.
func (p *Prometheus) EventPublished(event string, delivered int) {
	if p == nil {
		return
	}
	p.eventsPublished.WithLabelValues(event).Inc()
	p.eventsDelivered.WithLabelValues(event).Add(float64(delivered))
}

// EventDropped implements hub.Recorder.
func (p *Prometheus) EventDropped(event string) {
	if p == nil {
		return
	}
	p.eventsDropped.WithLabelValues(event).Inc()
}

// ConnectionOpened tracks a new WebSocket connection.
func (p *Prometheus) ConnectionOpened() {
	if p == nil {
		return
	}
	p.connections.Inc()
}

// ConnectionClosed tracks a closed WebSocket connection.
func (p *Prometheus) ConnectionClosed() {
	if p == nil {
		return
	}
	p.connections.Dec()
}
