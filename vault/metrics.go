package vault

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/assetvault/errkind"
)

// Observer captures telemetry for vault operations.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes int64, secure bool, err error)
	RecordDownload(duration time.Duration, sizeBytes int64, err error)
	RecordTokenIssue(err error)
}

// PrometheusObserver exports vault metrics to Prometheus.
type PrometheusObserver struct {
	duration  *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	tokens    *prometheus.CounterVec
	integrity prometheus.Counter
}

// NewPrometheusObserver registers the vault metrics with reg, or with the
// default registerer when reg is nil. Registering twice reuses the
// existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "assetvault"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &PrometheusObserver{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of vault uploads and downloads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of failed vault operations by error kind.",
		}, []string{"operation", "kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payload_bytes_total",
			Help:      "Plaintext bytes successfully stored or returned.",
		}, []string{"operation", "mode"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Download tokens issued, by result.",
		}, []string{"result"}),
		integrity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "integrity_failures_total",
			Help:      "Downloads rejected because stored bytes failed authentication or checksum verification.",
		}),
	}

	var err error
	if o.duration, err = register(reg, o.duration); err != nil {
		return nil, err
	}
	if o.failures, err = register(reg, o.failures); err != nil {
		return nil, err
	}
	if o.bytes, err = register(reg, o.bytes); err != nil {
		return nil, err
	}
	if o.tokens, err = register(reg, o.tokens); err != nil {
		return nil, err
	}
	if o.integrity, err = register(reg, o.integrity); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register vault metric: %w", err)
	}
	return c, nil
}

// RecordUpload tracks upload latency, stored size and failures.
func (o *PrometheusObserver) RecordUpload(duration time.Duration, sizeBytes int64, secure bool, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("upload").Observe(duration.Seconds())
	if err != nil {
		o.failures.WithLabelValues("upload", errkind.Of(err).String()).Inc()
		return
	}
	mode := "public"
	if secure {
		mode = "secure"
	}
	o.bytes.WithLabelValues("upload", mode).Add(float64(sizeBytes))
}

// RecordDownload tracks download latency, returned size and failures.
func (o *PrometheusObserver) RecordDownload(duration time.Duration, sizeBytes int64, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues("download").Observe(duration.Seconds())
	if err != nil {
		kind := errkind.Of(err)
		o.failures.WithLabelValues("download", kind.String()).Inc()
		if kind == errkind.KindIntegrity {
			o.integrity.Inc()
		}
		return
	}
	o.bytes.WithLabelValues("download", "any").Add(float64(sizeBytes))
}

// RecordTokenIssue counts issued and refused tokens.
func (o *PrometheusObserver) RecordTokenIssue(err error) {
	if o == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = errkind.Of(err).String()
	}
	o.tokens.WithLabelValues(result).Inc()
}

type nopObserver struct{}

func (nopObserver) RecordUpload(time.Duration, int64, bool, error) {}

func (nopObserver) RecordDownload(time.Duration, int64, error) {}

func (nopObserver) RecordTokenIssue(error) {}
