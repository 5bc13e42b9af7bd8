package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kycportal/identity-verification-service/internal/verification"
)

// Metrics holds the service collectors. All methods are nil-safe so callers
// without a registry (CLI, tests) can pass a nil *Metrics.
type Metrics struct {
	Verdicts           *prometheus.CounterVec
	Findings           *prometheus.CounterVec
	EvaluateLatency    prometheus.Histogram
	ExtractionLatency  *prometheus.HistogramVec
	ExtractionFailures *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Verdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_verdicts_total",
			Help: "Verification verdicts by outcome",
		}, []string{"outcome"}), // approved, rejected, manual_review

		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_findings_total",
			Help: "Findings recorded in verdicts by field, kind and severity",
		}, []string{"field", "kind", "severity"}),

		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kyc_evaluate_duration_seconds",
			Help:    "Duration of engine evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		ExtractionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kyc_extraction_duration_seconds",
			Help:    "Duration of AI document extraction by provider",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"provider"}),

		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kyc_extraction_failures_total",
			Help: "Failed AI extractions by provider and reason",
		}, []string{"provider", "reason"}),
	}
}

// ObserveVerdict records one completed evaluation.
func (m *Metrics) ObserveVerdict(v *verification.Verdict, elapsed time.Duration) {
	if m == nil || v == nil {
		return
	}
	m.Verdicts.WithLabelValues(Outcome(v)).Inc()
	for _, f := range v.Findings() {
		field := f.Field
		if field == "" {
			field = "document"
		}
		m.Findings.WithLabelValues(field, string(f.Kind), string(f.Severity)).Inc()
	}
	m.EvaluateLatency.Observe(elapsed.Seconds())
}

// ObserveExtraction records the latency of one extraction call.
func (m *Metrics) ObserveExtraction(provider string, d time.Duration) {
	if m != nil {
		m.ExtractionLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}

// IncrementExtractionFailure counts a failed extraction.
func (m *Metrics) IncrementExtractionFailure(provider, reason string) {
	if m != nil {
		m.ExtractionFailures.WithLabelValues(provider, reason).Inc()
	}
}

// Outcome labels a verdict for the verdicts counter.
func Outcome(v *verification.Verdict) string {
	switch {
	case v.ManualReview:
		return "manual_review"
	case v.Approved:
		return "approved"
	default:
		return "rejected"
	}
}
