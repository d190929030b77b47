package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	LockResourceSessionTable      = "session_table"
	LockResourceOrderTransition   = "order_transition"
	LockResourceAssignmentAdvisory = "assignment_advisory"
)

// DomainMetrics captures restaurant-core health signals: order transitions,
// row-lock contention, and realtime publish throughput. Modeled on
// SchedulerMetrics' singleton + ConstLabels pattern.
type DomainMetrics struct {
	orderTransitions  *prometheus.CounterVec
	sessionRaces      prometheus.Counter
	dbLockWait        *prometheus.HistogramVec
	realtimePublished *prometheus.CounterVec
	realtimeFailed    *prometheus.CounterVec
}

var (
	domainMetricsOnce sync.Once
	domainMetrics     *DomainMetrics
)

// Domain returns the singleton restaurant-core metrics registry.
func Domain() *DomainMetrics {
	return DomainWithConfig(Config{})
}

func DomainWithConfig(cfg Config) *DomainMetrics {
	domainMetricsOnce.Do(func() {
		domainMetrics = newDomainMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return domainMetrics
}

// ResetDomainMetricsForTest resets the singleton for tests.
func ResetDomainMetricsForTest() {
	domainMetricsOnce = sync.Once{}
	domainMetrics = nil
}

func newDomainMetrics(registerer prometheus.Registerer, cfg Config) *DomainMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "kitchencore"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kitchencore_order_transitions_total",
		Help:        "Order workflow_status transitions by from/to/action.",
		ConstLabels: constLabels,
	}, []string{"from", "to", "action"})

	sessionRaces := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "kitchencore_session_create_races_total",
		Help:        "Session get-or-create unique-violation races recovered by requery.",
		ConstLabels: constLabels,
	})

	dbLockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "kitchencore_db_lock_wait_seconds",
		Help:        "SELECT ... FOR UPDATE lock wait time by resource.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	realtimePublished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kitchencore_realtime_published_total",
		Help:        "Events successfully published to the realtime bus, by type.",
		ConstLabels: constLabels,
	}, []string{"event_type"})

	realtimeFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "kitchencore_realtime_publish_failed_total",
		Help:        "Realtime publish failures, by type. Logged, never rolled back (§5).",
		ConstLabels: constLabels,
	}, []string{"event_type"})

	registerer.MustRegister(orderTransitions, sessionRaces, dbLockWait, realtimePublished, realtimeFailed)

	return &DomainMetrics{
		orderTransitions:  orderTransitions,
		sessionRaces:      sessionRaces,
		dbLockWait:        dbLockWait,
		realtimePublished: realtimePublished,
		realtimeFailed:    realtimeFailed,
	}
}

func (m *DomainMetrics) IncOrderTransition(from, to, action string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to, action).Inc()
}

func (m *DomainMetrics) IncSessionRace() {
	if m == nil {
		return
	}
	m.sessionRaces.Inc()
}

func (m *DomainMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

func (m *DomainMetrics) IncRealtimePublished(eventType string) {
	if m == nil {
		return
	}
	m.realtimePublished.WithLabelValues(eventType).Inc()
}

func (m *DomainMetrics) IncRealtimeFailed(eventType string) {
	if m == nil {
		return
	}
	m.realtimeFailed.WithLabelValues(eventType).Inc()
}
