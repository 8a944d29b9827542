// Package metrics provides Prometheus metrics for a scan session.
//
// Each session registers its own collectors on the registerer it is given,
// so concurrent sessions and tests never share counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scan holds the collectors for one crawl. A nil *Scan records nothing.
type Scan struct {
	entriesTotal   *prometheus.CounterVec
	bytesTotal     prometheus.Counter
	errorsTotal    *prometheus.CounterVec
	dirReadSeconds prometheus.Histogram
	workersBusy    prometheus.Gauge
	queueDepth     prometheus.Gauge
	scanSeconds    prometheus.Gauge
}

// New registers the scan collectors on reg.
func New(reg prometheus.Registerer) *Scan {
	factory := promauto.With(reg)
	return &Scan{
		entriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacemap_entries_scanned_total",
				Help: "Filesystem entries discovered by the crawler",
			},
			[]string{"kind"},
		),
		bytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "spacemap_bytes_scanned_total",
				Help: "Bytes attributed to discovered entries",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacemap_entry_errors_total",
				Help: "Entries that could not be read",
			},
			[]string{"op"},
		),
		dirReadSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spacemap_dir_read_duration_seconds",
				Help:    "Time to enumerate one directory",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		workersBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spacemap_workers_busy",
				Help: "Crawler workers currently enumerating a directory",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spacemap_queue_depth",
				Help: "Directories waiting to be enumerated",
			},
		),
		scanSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spacemap_scan_duration_seconds",
				Help: "Wall time of the finished scan",
			},
		),
	}
}

// RecordEntry records one discovered entry.
func (s *Scan) RecordEntry(kind string, size int64) {
	if s == nil {
		return
	}
	s.entriesTotal.WithLabelValues(kind).Inc()
	if size > 0 {
		s.bytesTotal.Add(float64(size))
	}
}

// RecordError records an unreadable entry.
func (s *Scan) RecordError(op string) {
	if s == nil {
		return
	}
	s.errorsTotal.WithLabelValues(op).Inc()
}

// RecordDirRead records how long one directory enumeration took.
func (s *Scan) RecordDirRead(d time.Duration) {
	if s == nil {
		return
	}
	s.dirReadSeconds.Observe(d.Seconds())
}

// WorkerBusy adjusts the busy-worker gauge by delta.
func (s *Scan) WorkerBusy(delta float64) {
	if s == nil {
		return
	}
	s.workersBusy.Add(delta)
}

// SetQueueDepth sets the pending-directory gauge.
func (s *Scan) SetQueueDepth(n int) {
	if s == nil {
		return
	}
	s.queueDepth.Set(float64(n))
}

// RecordScanDone records the duration of the finished scan.
func (s *Scan) RecordScanDone(d time.Duration) {
	if s == nil {
		return
	}
	s.scanSeconds.Set(d.Seconds())
}

// Handler returns the /metrics handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
