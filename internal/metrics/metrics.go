// Package metrics registers the Prometheus collectors of the publisher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names used as the "stage" label.
const (
	StageExtract = "extract"
	StageArchive = "archive"
	StageUpload  = "upload"
	StagePortal  = "portal"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnb_publication_runs_total",
			Help: "Area publications by outcome",
		},
		[]string{"area", "status"},
	)

	stageDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rnb_publication_stage_duration_seconds",
			Help:    "Duration of each publication stage",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 16), // 0.5s to ~4.5h
		},
		[]string{"stage"},
	)

	archiveBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rnb_publication_archive_bytes",
			Help: "Size of the last archive published per area",
		},
		[]string{"area"},
	)

	exportRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnb_publication_export_rows_total",
			Help: "Rows exported from the database",
		},
		[]string{"area"},
	)

	queueJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rnb_publication_queue_jobs_total",
			Help: "Queue tasks handled by workers",
		},
		[]string{"task", "status"},
	)
)

// ObserveRun counts one finished area publication.
func ObserveRun(area string, err error) {
	runsTotal.WithLabelValues(area, status(err)).Inc()
}

// StageTimer starts timing stage; call the returned func when it ends.
func StageTimer(stage string) func() {
	start := time.Now()
	return func() {
		stageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// SetArchiveBytes records the size of the archive just built for area.
func SetArchiveBytes(area string, n int64) {
	archiveBytes.WithLabelValues(area).Set(float64(n))
}

// AddExportRows counts rows written by an export.
func AddExportRows(area string, n int64) {
	exportRowsTotal.WithLabelValues(area).Add(float64(n))
}

// ObserveJob counts one queue task handled by a worker.
func ObserveJob(task string, err error) {
	queueJobsTotal.WithLabelValues(task, status(err)).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
