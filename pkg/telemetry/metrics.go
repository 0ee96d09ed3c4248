package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts holds options for creating metrics
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
}

// Counter wraps an OTel counter
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on the global meter
func NewCounter(opts MetricOpts) (*Counter, error) {
	return newCounter(GetMeter(), opts)
}

func newCounter(meter metric.Meter, opts MetricOpts) (*Counter, error) {
	counter, err := meter.Int64Counter(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: counter}, nil
}

// Add increments the counter by the given value
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc increments the counter by 1
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Histogram wraps an OTel histogram
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram on the global meter
func NewHistogram(opts MetricOpts) (*Histogram, error) {
	return newHistogram(GetMeter(), opts)
}

func newHistogram(meter metric.Meter, opts MetricOpts) (*Histogram, error) {
	histogram, err := meter.Float64Histogram(
		opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: histogram}, nil
}

// Record records a value in the histogram
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Since records the seconds elapsed from start
func (h *Histogram) Since(ctx context.Context, start time.Time, attrs ...attribute.KeyValue) {
	h.Record(ctx, time.Since(start).Seconds(), attrs...)
}

// Metrics groups the registration instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProvisionAttempts  *Counter
	ProvisionOutcomes  *Counter
	Compensations      *Counter
	OnboardingFailures *Counter
	EmailsSent         *Counter
	ReconcilerActions  *Counter
	WorkflowDuration   *Histogram
}

// NewMetrics registers the registration instruments on the global meter
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(GetMeter())
}

// NewMetricsWithMeter registers the registration instruments on meter
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	counters := []struct {
		dst  **Counter
		opts MetricOpts
	}{
		{&m.ProvisionAttempts, MetricOpts{Name: MetricProvisionAttempts, Description: "Account provisioning attempts", Unit: "1"}},
		{&m.ProvisionOutcomes, MetricOpts{Name: MetricProvisionOutcomes, Description: "Account provisioning outcomes by result", Unit: "1"}},
		{&m.Compensations, MetricOpts{Name: MetricCompensations, Description: "Compensating account deletions", Unit: "1"}},
		{&m.OnboardingFailures, MetricOpts{Name: MetricOnboardingFailures, Description: "Host onboarding failures by stage", Unit: "1"}},
		{&m.EmailsSent, MetricOpts{Name: MetricEmailsSent, Description: "Transactional emails by kind and result", Unit: "1"}},
		{&m.ReconcilerActions, MetricOpts{Name: MetricReconcilerActions, Description: "Saga reconciler actions", Unit: "1"}},
	}
	for _, c := range counters {
		counter, err := newCounter(meter, c.opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", c.opts.Name, err)
		}
		*c.dst = counter
	}

	h, err := newHistogram(meter, MetricOpts{Name: MetricWorkflowDuration, Description: "Registration workflow duration", Unit: "s"})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", MetricWorkflowDuration, err)
	}
	m.WorkflowDuration = h

	return m, nil
}

// IncProvision counts a provisioning attempt for role
func (m *Metrics) IncProvision(ctx context.Context, role string) {
	if m == nil {
		return
	}
	m.ProvisionAttempts.Inc(ctx, RoleAttr(role))
}

// RecordOutcome counts a provisioning result and its duration
func (m *Metrics) RecordOutcome(ctx context.Context, role, result string, start time.Time) {
	if m == nil {
		return
	}
	m.ProvisionOutcomes.Inc(ctx, RoleAttr(role), ResultAttr(result))
	m.WorkflowDuration.Since(ctx, start, RoleAttr(role), ResultAttr(result))
}

// IncCompensation counts a compensating delete and whether it succeeded
func (m *Metrics) IncCompensation(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.Compensations.Inc(ctx, ResultAttr(result))
}

// IncOnboardingFailure counts a failed onboarding stage
func (m *Metrics) IncOnboardingFailure(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.OnboardingFailures.Inc(ctx, StageAttr(stage))
}

// IncEmail counts an email send attempt
func (m *Metrics) IncEmail(ctx context.Context, kind, result string) {
	if m == nil {
		return
	}
	m.EmailsSent.Inc(ctx, attribute.String(AttrEmailKind, kind), ResultAttr(result))
}

// IncReconcilerAction counts a reconciler action on a saga state
func (m *Metrics) IncReconcilerAction(ctx context.Context, state, action string) {
	if m == nil {
		return
	}
	m.ReconcilerActions.Inc(ctx, attribute.String(AttrSagaState, state), attribute.String(AttrAction, action))
}

// Metric names
const (
	MetricProvisionAttempts  = "registration.provision.attempts"
	MetricProvisionOutcomes  = "registration.provision.outcomes"
	MetricCompensations      = "registration.compensations"
	MetricOnboardingFailures = "registration.onboarding.failures"
	MetricEmailsSent         = "notification.emails"
	MetricReconcilerActions  = "saga.reconciler.actions"
	MetricWorkflowDuration   = "registration.workflow.duration"
)

// Common metric attribute keys
const (
	AttrRole      = "user.role"
	AttrResult    = "result"
	AttrStage     = "onboarding.stage"
	AttrEmailKind = "email.kind"
	AttrSagaState = "saga.state"
	AttrAction    = "action"
	AttrSagaID    = "saga.id"
)

// Result attribute values
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// RoleAttr returns the user.role attribute
func RoleAttr(role string) attribute.KeyValue {
	return attribute.String(AttrRole, role)
}

// ResultAttr returns the result attribute
func ResultAttr(result string) attribute.KeyValue {
	return attribute.String(AttrResult, result)
}

// StageAttr returns the onboarding.stage attribute
func StageAttr(stage string) attribute.KeyValue {
	return attribute.String(AttrStage, stage)
}

// SagaIDAttr returns the saga.id attribute
func SagaIDAttr(id string) attribute.KeyValue {
	return attribute.String(AttrSagaID, id)
}
