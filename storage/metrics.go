package storage

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pixelforge/cms-storage-backend/interfaces"
)

// Observer captures telemetry for manager operations. Fallbacks are the
// operationally interesting event: a misconfigured backend degrades
// silently to local disk, so the counter is the signal operators watch.
type Observer interface {
	RecordOperation(op string, backend interfaces.BackendKind, duration time.Duration, sizeBytes int, err error)
	RecordFallback(reason string)
}

// PrometheusObserver exports storage manager metrics to Prometheus.
type PrometheusObserver struct {
	opDuration  *prometheus.HistogramVec
	opErrors    *prometheus.CounterVec
	savedBytes  *prometheus.CounterVec
	fallbacks   *prometheus.CounterVec
}

// NewPrometheusObserver registers operation and fallback metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "asset_storage"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	observer := &PrometheusObserver{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency for storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "backend"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of storage operation failures.",
		}, []string{"operation", "backend"}),
		savedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "saved_bytes_total",
			Help:      "Cumulative payload size successfully saved per backend.",
		}, []string{"backend"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "local_fallbacks_total",
			Help:      "Count of resolutions degraded to local storage.",
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		observer.opDuration, observer.opErrors, observer.savedBytes, observer.fallbacks,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("register storage metric: %w", err)
		}
	}
	return observer, nil
}

// RecordOperation tracks duration, failures, and saved payload size.
func (o *PrometheusObserver) RecordOperation(op string, backend interfaces.BackendKind, duration time.Duration, sizeBytes int, err error) {
	if o == nil {
		return
	}
	o.opDuration.WithLabelValues(op, backend.String()).Observe(duration.Seconds())
	if err != nil {
		o.opErrors.WithLabelValues(op, backend.String()).Inc()
		return
	}
	if op == "save" && sizeBytes > 0 {
		o.savedBytes.WithLabelValues(backend.String()).Add(float64(sizeBytes))
	}
}

// RecordFallback counts a resolution degraded to local storage.
func (o *PrometheusObserver) RecordFallback(reason string) {
	if o == nil {
		return
	}
	o.fallbacks.WithLabelValues(reason).Inc()
}

type nopObserver struct{}

func (nopObserver) RecordOperation(string, interfaces.BackendKind, time.Duration, int, error) {}

func (nopObserver) RecordFallback(string) {}
