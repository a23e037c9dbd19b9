// Package prometheus is the Prometheus-backed implementation of
// pkg/metrics.VFSMetrics, mirroring pkg/metrics/prometheus/cache.go's
// shape in this codebase: a struct of client_golang collectors, a
// constructor that registers them once, wired in via init so importing
// this package for its side effect is enough to activate it.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/memvfs/pkg/metrics"
)

const namespace = "memvfs"

// singleton ensures repeated NewVFSMetrics calls (one per filesystem
// instance, in a process that opens more than one) share one set of
// collectors instead of panicking on double registration.
var (
	singletonOnce sync.Once
	singleton     metrics.VFSMetrics
)

type vfsMetrics struct {
	channelsOpened   prometheus.Counter
	channelsClosed   *prometheus.CounterVec
	bytesRead        prometheus.Counter
	bytesWritten     prometheus.Counter
	readDuration     prometheus.Histogram
	writeDuration    prometheus.Histogram
	lockWaitDuration *prometheus.HistogramVec
	pagesAllocated   prometheus.Counter
	pagesReleased    prometheus.Counter
}

func newVFSMetrics() metrics.VFSMetrics {
	singletonOnce.Do(func() { singleton = buildVFSMetrics() })
	return singleton
}

func buildVFSMetrics() metrics.VFSMetrics {
	m := &vfsMetrics{
		channelsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_opened_total",
			Help:      "Total number of channels opened.",
		}),
		channelsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Total number of channels closed, by reason.",
		}, []string{"reason"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_read_total",
			Help:      "Total bytes read across all channels.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Total bytes written across all channels.",
		}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "read_duration_seconds",
			Help:      "Duration of completed read operations.",
			Buckets:   prometheus.DefBuckets,
		}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_duration_seconds",
			Help:      "Duration of completed write operations.",
			Buckets:   prometheus.DefBuckets,
		}),
		lockWaitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_duration_seconds",
			Help:      "Time spent waiting to acquire a file lock.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		pagesAllocated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_allocated_total",
			Help:      "Total pages allocated fresh (not reused from the pool).",
		}),
		pagesReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_released_total",
			Help:      "Total pages returned to the pool.",
		}),
	}

	prometheus.MustRegister(
		m.channelsOpened, m.channelsClosed, m.bytesRead, m.bytesWritten,
		m.readDuration, m.writeDuration, m.lockWaitDuration,
		m.pagesAllocated, m.pagesReleased,
	)
	return m
}

func (m *vfsMetrics) ChannelOpened() { m.channelsOpened.Inc() }

func (m *vfsMetrics) ChannelClosed(reason string) {
	m.channelsClosed.WithLabelValues(reason).Inc()
}

func (m *vfsMetrics) ReadCompleted(n int64, d time.Duration) {
	m.bytesRead.Add(float64(n))
	m.readDuration.Observe(d.Seconds())
}

func (m *vfsMetrics) WriteCompleted(n int64, d time.Duration) {
	m.bytesWritten.Add(float64(n))
	m.writeDuration.Observe(d.Seconds())
}

func (m *vfsMetrics) LockWaitObserved(exclusive bool, d time.Duration) {
	mode := "shared"
	if exclusive {
		mode = "exclusive"
	}
	m.lockWaitDuration.WithLabelValues(mode).Observe(d.Seconds())
}

func (m *vfsMetrics) PageAllocated() { m.pagesAllocated.Inc() }
func (m *vfsMetrics) PageReleased()  { m.pagesReleased.Inc() }

func init() {
	metrics.RegisterConstructor(newVFSMetrics)
}
