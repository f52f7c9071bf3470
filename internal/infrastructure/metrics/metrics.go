// Package metrics exposes prometheus counters for the application record
// lifecycle. Counters are fed from dispatcher events.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/garyjia/visaflow/internal/application/dispatcher"
	"github.com/garyjia/visaflow/internal/domain/event"
)

// Metrics provides observability for the record lifecycle
type Metrics struct {
	// Record writes by reason: update, autosave, flush
	RecordsPersisted *prometheus.CounterVec

	// Validation runs by outcome: valid, invalid
	Validations *prometheus.CounterVec

	// Findings produced by severity
	Findings *prometheus.CounterVec

	// Applied status transitions by trigger
	Transitions *prometheus.CounterVec

	// Fields bypassed by the user
	Bypasses prometheus.Counter

	// Generated application documents
	DocumentsGenerated prometheus.Counter

	// Simulated service call duration by operation
	OperationLatency *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_records_persisted_total",
			Help: "Total application record writes by reason",
		}, []string{"reason"}),

		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_validations_total",
			Help: "Total validation runs by outcome",
		}, []string{"outcome"}),

		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_findings_total",
			Help: "Total validation findings by severity",
		}, []string{"severity"}),

		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "visaflow_status_transitions_total",
			Help: "Total applied status transitions by trigger",
		}, []string{"trigger"}),

		Bypasses: factory.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_bypasses_total",
			Help: "Total fields bypassed",
		}),

		DocumentsGenerated: factory.NewCounter(prometheus.CounterOpts{
			Name: "visaflow_documents_generated_total",
			Help: "Total generated application documents",
		}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "visaflow_operation_duration_seconds",
			Help:    "Duration of simulated service operations",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
		}, []string{"operation"}),
	}
}

// ObserveOperation records the duration of a simulated operation
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// Subscribe registers the handlers that keep the counters current
func (m *Metrics) Subscribe(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeRecordPersisted, "metrics.persisted", m.onPersisted)
	d.Subscribe(event.TypeValidationCompleted, "metrics.validation", m.onValidation)
	d.Subscribe(event.TypeStatusChanged, "metrics.transition", m.onTransition)
	d.Subscribe(event.TypeFindingBypassed, "metrics.bypass", m.onBypass)
	d.Subscribe(event.TypeDocumentGenerated, "metrics.generated", m.onGenerated)
}

func (m *Metrics) onPersisted(ctx context.Context, evt *event.Event) error {
	reason := evt.GetPayloadString("reason")
	if reason == "" {
		reason = "unknown"
	}
	m.RecordsPersisted.WithLabelValues(reason).Inc()
	return nil
}

func (m *Metrics) onValidation(ctx context.Context, evt *event.Event) error {
	outcome := "invalid"
	if evt.GetPayloadBool("is_valid") {
		outcome = "valid"
	}
	m.Validations.WithLabelValues(outcome).Inc()
	m.Findings.WithLabelValues("error").Add(float64(evt.GetPayloadInt("errors")))
	m.Findings.WithLabelValues("warning").Add(float64(evt.GetPayloadInt("warnings")))
	return nil
}

func (m *Metrics) onTransition(ctx context.Context, evt *event.Event) error {
	m.Transitions.WithLabelValues(evt.GetPayloadString("trigger")).Inc()
	return nil
}

func (m *Metrics) onBypass(ctx context.Context, evt *event.Event) error {
	m.Bypasses.Inc()
	return nil
}

func (m *Metrics) onGenerated(ctx context.Context, evt *event.Event) error {
	m.DocumentsGenerated.Inc()
	return nil
}
