package daemon

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsSet holds the Prometheus registry for the daemon. Capture
// counters read the coordinator's cumulative stats at scrape time;
// transcodes are counted as the export handler completes them.
type metricsSet struct {
	registry   *prometheus.Registry
	transcodes *prometheus.CounterVec
}

func newMetricsSet(d *Daemon) *metricsSet {
	registry := prometheus.NewRegistry()

	transcodes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reel_transcodes_total",
		Help: "Completed export transcodes by output container",
	}, []string{"container"})

	registry.MustRegister(
		transcodes,
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reel_captures_started_total",
			Help: "Total number of capture sessions started",
		}, func() float64 { return float64(d.coordinator.Stats().CapturesStarted) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reel_captures_failed_total",
			Help: "Total number of capture sessions that ended in stream failure",
		}, func() float64 { return float64(d.coordinator.Stats().CapturesFailed) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reel_fragments_appended_total",
			Help: "Total number of PCM fragments appended to session buffers",
		}, func() float64 { return float64(d.coordinator.Stats().FragmentsAppended) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reel_bytes_appended_total",
			Help: "Total PCM bytes appended to session buffers",
		}, func() float64 { return float64(d.coordinator.Stats().BytesAppended) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "reel_meter_frames_dropped_total",
			Help: "Total meter frames dropped because subscribers lagged",
		}, func() float64 { return float64(d.coordinator.Stats().MeterDrops) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reel_capture_active",
			Help: "Whether a capture session is currently active",
		}, func() float64 {
			if d.CaptureState(context.Background()).Capturing {
				return 1
			}
			return 0
		}),
	)

	return &metricsSet{
		registry:   registry,
		transcodes: transcodes,
	}
}

// observeTranscode counts one completed export transcode.
func (m *metricsSet) observeTranscode(container string) {
	if m == nil {
		return
	}
	m.transcodes.WithLabelValues(container).Inc()
}

// handler serves the registry in Prometheus exposition format.
func (m *metricsSet) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
