package docstore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	labelStore  = "store"
	labelOp     = "op"
	labelResult = "result"

	resultOK    = "ok"
	resultError = "error"
)

type Metrics struct {
	Ops     *prometheus.CounterVec
	Latency *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_operations_total",
				Help: "Document store loads and saves",
			},
			[]string{labelStore, labelOp, labelResult},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "docstore_operation_duration_seconds",
				Help: "Document store latency",
			},
			[]string{labelStore, labelOp},
		),
	}

	reg.MustRegister(m.Ops, m.Latency)
	return m
}

// Instrumented wraps a Repository and records every load and save.
type Instrumented[T any] struct {
	next    Repository[T]
	name    string
	metrics *Metrics
}

func Instrument[T any](next Repository[T], name string, m *Metrics) *Instrumented[T] {
	return &Instrumented[T]{next: next, name: name, metrics: m}
}

func (r *Instrumented[T]) Load(ctx context.Context) ([]T, bool, error) {
	start := time.Now()
	records, found, err := r.next.Load(ctx)
	r.observe("load", start, err)
	return records, found, err
}

func (r *Instrumented[T]) Save(ctx context.Context, records []T) error {
	start := time.Now()
	err := r.next.Save(ctx, records)
	r.observe("save", start, err)
	return err
}

func (r *Instrumented[T]) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func (r *Instrumented[T]) observe(op string, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}

	r.metrics.Latency.WithLabelValues(r.name, op).Observe(time.Since(start).Seconds())
	r.metrics.Ops.WithLabelValues(r.name, op, result).Inc()
}
