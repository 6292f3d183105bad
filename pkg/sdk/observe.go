package billsearch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/billsearch/internal/domain"
)

// sdkMetrics are registered on the caller's registry, never the global one.
type sdkMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billsearch",
			Subsystem: "sdk",
			Name:      "operations_total",
			Help:      "SDK operations by name and outcome (ok or an error kind).",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billsearch",
			Subsystem: "sdk",
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"operation"}),
	}
	var err error
	if m.operations, err = reuseRegistered(reg, m.operations); err != nil {
		return nil, err
	}
	if m.duration, err = reuseRegistered(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// reuseRegistered registers c, or returns the collector already registered under the
// same descriptor so several clients can share one registry.
func reuseRegistered[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, fmt.Errorf("billsearch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return c, fmt.Errorf("billsearch: metric registered with incompatible type %T", are.ExistingCollector)
	}
	return existing, nil
}

// outcomeKinds maps sentinels to outcome labels, most specific first.
var outcomeKinds = []struct {
	err  error
	kind string
}{
	{domain.ErrNotReady, "not_ready"},
	{domain.ErrTimeout, "timeout"},
	{domain.ErrValidation, "validation"},
	{domain.ErrModelMismatch, "model_mismatch"},
	{domain.ErrDimensionMismatch, "model_mismatch"},
	{domain.ErrEmbedding, "embedding_error"},
	{domain.ErrGeneration, "generation_error"},
	{domain.ErrLoad, "load_error"},
	{domain.ErrBuild, "build_error"},
	{domain.ErrNotFound, "not_found"},
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range outcomeKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "internal_error"
}

// observer logs and counts SDK operations. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	kind := outcome(err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(op, kind).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("billsearch operation failed", "op", op, "kind", kind, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("billsearch operation completed", "op", op, "duration", dur)
}
