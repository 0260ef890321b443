package observability

import (
	"context"
	"net/http"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/persistence/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors fed by machine hooks.
type Metrics struct {
	registry *prometheus.Registry

	Transitions *prometheus.CounterVec
	Notices     *prometheus.CounterVec
	Dispensed   *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	Refills     *prometheus.CounterVec
	Inventory   *prometheus.GaugeVec
	Store       *prometheus.HistogramVec
}

// NewMetrics registers the dispenser collectors on a dedicated registry,
// together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_transitions_total",
				Help: "State changes, including the intermediate dispensing hop",
			},
			[]string{"from", "to"},
		),
		Notices: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_notices_total",
				Help: "Advisory notices emitted by machines",
			},
			[]string{"code"},
		),
		Dispensed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_dispensed_total",
				Help: "Units released",
			},
			[]string{"machine_id"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_rejections_total",
				Help: "Activations that did not dispense",
			},
			[]string{"reason"},
		),
		Refills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispenser_refills_total",
				Help: "Restock operations",
			},
			[]string{"machine_id"},
		),
		Inventory: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dispenser_inventory_units",
				Help: "Units left after the last dispense or refill",
			},
			[]string{"machine_id"},
		),
		Store: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispenser_store_operation_seconds",
				Help:    "Snapshot store latency",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"op", "outcome"},
		),
	}

	m.registry.MustRegister(
		m.Transitions,
		m.Notices,
		m.Dispensed,
		m.Rejections,
		m.Refills,
		m.Inventory,
		m.Store,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// StoreMiddleware times every snapshot store call.
func (m *Metrics) StoreMiddleware() middleware.Middleware {
	return middleware.NewInstrumentationMiddleware(m.Store)
}

// Hooks returns lifecycle hooks that record every event.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnNotice: func(_ context.Context, e *domain.NoticeEvent) {
			m.Notices.WithLabelValues(e.Notice.Code).Inc()
		},
		OnDispense: func(_ context.Context, e *domain.DispenseEvent) {
			m.Dispensed.WithLabelValues(e.MachineID).Inc()
			m.Inventory.WithLabelValues(e.MachineID).Set(float64(e.Inventory))
		},
		OnReject: func(_ context.Context, e *domain.DispenseEvent) {
			m.Rejections.WithLabelValues(string(e.Result.Reason)).Inc()
		},
		OnRefill: func(_ context.Context, e *domain.RefillEvent) {
			m.Refills.WithLabelValues(e.MachineID).Inc()
			m.Inventory.WithLabelValues(e.MachineID).Set(float64(e.Inventory))
		},
	}
}
