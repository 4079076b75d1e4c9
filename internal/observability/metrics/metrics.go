// Package metrics exposes prometheus instruments for the payment engine,
// published on the engine's /metrics endpoint.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	CallbacksReceived  *prometheus.CounterVec
	DuplicateCallbacks *prometheus.CounterVec
	Allocations        *prometheus.CounterVec
	PushInitiations    *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter
}

// New registers the instruments on the default registry.
func New() (*Metrics, error) {
	m := &Metrics{
		CallbacksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_received_total",
			Help: "Gateway callbacks received, by kind.",
		}, []string{"kind"}),
		DuplicateCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_callbacks_duplicate_total",
			Help: "Gateway callbacks acknowledged as duplicate deliveries, by kind.",
		}, []string{"kind"}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_transaction_allocations_total",
			Help: "Gateway transaction allocation outcomes.",
		}, []string{"outcome"}),
		PushInitiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "push_payment_initiations_total",
			Help: "Push payment initiation outcomes.",
		}, []string{"outcome"}),
		AuditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Audit log writes that failed and were swallowed.",
		}),
	}

	collectors := []prometheus.Collector{
		m.CallbacksReceived,
		m.DuplicateCallbacks,
		m.Allocations,
		m.PushInitiations,
		m.AuditWriteFailures,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

// Module wires the metrics instruments.
var Module = fx.Module("metrics",
	fx.Provide(New),
)
