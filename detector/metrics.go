package detector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdetect",
			Subsystem: "detector",
			Name:      "runs_total",
			Help:      "Total number of detection runs",
		},
		[]string{"backend", "result"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snapdetect",
			Subsystem: "detector",
			Name:      "run_duration_seconds",
			Help:      "Duration of detection runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	objectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapdetect",
			Subsystem: "detector",
			Name:      "objects_total",
			Help:      "Objects tagged on images, by label",
		},
		[]string{"label"},
	)
)

// knownLabels holds the label values objects_total may carry. Free-form
// labels from generative backends are counted as "other".
var knownLabels = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Labels))
	for _, l := range Labels {
		if l != "N/A" {
			m[l] = struct{}{}
		}
	}
	return m
}()

func init() {
	prometheus.MustRegister(runsTotal, runDuration, objectsTotal)
}

func metricLabel(label string) string {
	if _, ok := knownLabels[label]; ok {
		return label
	}
	return "other"
}

func observeRun(backend string, start time.Time, res *Result, err error) {
	if backend == "" {
		backend = "unspecified"
	}
	runDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		runsTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	runsTotal.WithLabelValues(backend, "ok").Inc()
	for _, tag := range res.Tags {
		objectsTotal.WithLabelValues(metricLabel(tag)).Inc()
	}
}
