package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	documentExtractor = "document_extractor"

	// Extraction metrics
	extractionRequestsTotal  = "extraction_requests_total"
	extractionStageDuration  = "extraction_stage_duration_seconds"
	notificationPollAttempts = "notification_poll_attempts_total"

	// Labels
	statusLabel     = "status"
	stageLabel      = "stage"
	pollResultLabel = "result"
)

var extractionRequestsTotalLabels = []string{
	statusLabel,
	stageLabel,
}

var extractionStageDurationLabels = []string{
	stageLabel,
}

var notificationPollAttemptsLabels = []string{
	pollResultLabel,
}

/**
* Metrics definition
**/
var extractionRequestsTotalMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: documentExtractor,
		Name:      extractionRequestsTotal,
		Help:      "number of extraction requests partitioned by final job status and failed stage",
	},
	extractionRequestsTotalLabels,
)

var extractionStageDurationMetric = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Subsystem: documentExtractor,
		Name:      extractionStageDuration,
		Help:      "time spent in each stage of an extraction",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	},
	extractionStageDurationLabels,
)

var notificationPollAttemptsMetric = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Subsystem: documentExtractor,
		Name:      notificationPollAttempts,
		Help:      "number of notification queue polls partitioned by result",
	},
	notificationPollAttemptsLabels,
)

// IncreaseExtractionRequestsMetric counts a finished extraction. stage is the
// failed stage, empty on success.
func IncreaseExtractionRequestsMetric(status, stage string) {
	labels := prometheus.Labels{
		statusLabel: status,
		stageLabel:  stage,
	}
	extractionRequestsTotalMetric.With(labels).Inc()
}

func ObserveStageDuration(stage string, d time.Duration) {
	labels := prometheus.Labels{
		stageLabel: stage,
	}
	extractionStageDurationMetric.With(labels).Observe(d.Seconds())
}

func IncreasePollAttemptsMetric(result string) {
	labels := prometheus.Labels{
		pollResultLabel: result,
	}
	notificationPollAttemptsMetric.With(labels).Inc()
}

type PrometheusMetricsHandler struct {
	gatherer prometheus.Gatherer
}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	return &PrometheusMetricsHandler{gatherer: prometheus.DefaultGatherer}
}

func (h *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
}

func init() {
	registerMetrics()
}

func registerMetrics() {
	prometheus.MustRegister(extractionRequestsTotalMetric)
	prometheus.MustRegister(extractionStageDurationMetric)
	prometheus.MustRegister(notificationPollAttemptsMetric)
}
