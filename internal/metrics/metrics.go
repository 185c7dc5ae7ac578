package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "photovault"

// Recorder exports ingestion and storage metrics. A nil *Recorder is valid
// and records nothing.
type Recorder struct {
	storageDuration *prometheus.HistogramVec
	storageErrors   *prometheus.CounterVec
	storedBytes     prometheus.Counter
	ingests         *prometheus.CounterVec
	compensations   *prometheus.CounterVec
}

func New(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	storageDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "operation_duration_seconds",
		Help:      "Latency of object storage operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	storageErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "operation_errors_total",
		Help:      "Failed object storage operations.",
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}
	storedBytes, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "storage",
		Name:      "uploaded_bytes_total",
		Help:      "Bytes successfully written to object storage.",
	}))
	if err != nil {
		return nil, err
	}
	ingests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "requests_total",
		Help:      "Ingestion attempts by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	compensations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ingest",
		Name:      "compensations_total",
		Help:      "Compensation steps run after a failed ingestion.",
	}, []string{"step", "result"}))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		storageDuration: storageDuration,
		storageErrors:   storageErrors,
		storedBytes:     storedBytes,
		ingests:         ingests,
		compensations:   compensations,
	}, nil
}

// register returns the already registered collector when an identical one
// exists, so New can be called more than once against the same registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

func (r *Recorder) RecordStorage(op string, duration time.Duration, bytes int64, err error) {
	if r == nil {
		return
	}
	r.storageDuration.WithLabelValues(op).Observe(duration.Seconds())
	if err != nil {
		r.storageErrors.WithLabelValues(op).Inc()
		return
	}
	if bytes > 0 {
		r.storedBytes.Add(float64(bytes))
	}
}

// RecordIngest counts one ingestion by outcome ("ok", "validation",
// "processing", "storage", "metadata").
func (r *Recorder) RecordIngest(outcome string) {
	if r == nil {
		return
	}
	r.ingests.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordCompensation(step string, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.compensations.WithLabelValues(step, result).Inc()
}
