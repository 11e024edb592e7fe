package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PendingCounter reports how many jobs are currently awaited.
type PendingCounter interface {
	Waiting() int
}

type pendingJobsCollector struct {
	source  PendingCounter
	pending *prometheus.Desc
}

func newPendingJobsCollector(source PendingCounter) prometheus.Collector {
	return &pendingJobsCollector{
		source: source,
		pending: prometheus.NewDesc(
			fmt.Sprintf("%s_pending_jobs", documentExtractor),
			"Number of jobs awaiting their completion notification.",
			nil,
			prometheus.Labels{},
		),
	}
}

// RegisterPendingJobsCollector exposes the number of awaited jobs of source.
func RegisterPendingJobsCollector(source PendingCounter) error {
	return prometheus.Register(newPendingJobsCollector(source))
}

func (c *pendingJobsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.pending
}

func (c *pendingJobsCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(c.source.Waiting()))
}
