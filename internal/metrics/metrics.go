package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the playback engine.
type Metrics struct {
	registry          *prometheus.Registry
	tracksPlayedTotal *prometheus.CounterVec
	resolutionsTotal  *prometheus.CounterVec
	framesSentTotal   prometheus.Counter
	activePlayers     prometheus.Gauge
	frameLagSeconds   prometheus.Histogram
}

// New creates and registers the Prometheus collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	tracksPlayedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veebot_tracks_played_total",
		Help: "Total number of tracks that left the player, by result",
	}, []string{"result"})
	resolutionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "veebot_resolutions_total",
		Help: "Total number of track resolutions, by outcome",
	}, []string{"outcome"})
	framesSentTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "veebot_frames_sent_total",
		Help: "Total number of audio frames written to voice sinks",
	})
	activePlayers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "veebot_active_players",
		Help: "Number of guild players currently registered",
	})
	frameLagSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "veebot_frame_lag_seconds",
		Help:    "How far behind schedule frames were written",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
	})

	registry.MustRegister(
		tracksPlayedTotal,
		resolutionsTotal,
		framesSentTotal,
		activePlayers,
		frameLagSeconds,
	)

	return &Metrics{
		registry:          registry,
		tracksPlayedTotal: tracksPlayedTotal,
		resolutionsTotal:  resolutionsTotal,
		framesSentTotal:   framesSentTotal,
		activePlayers:     activePlayers,
		frameLagSeconds:   frameLagSeconds,
	}
}

// IncTracksPlayed increments the played-tracks counter for a result
// ("played", "skipped", "errored", "stopped").
func (m *Metrics) IncTracksPlayed(result string) {
	m.tracksPlayedTotal.WithLabelValues(result).Inc()
}

// IncResolutions increments the resolutions counter for an outcome
// ("ok", "not_found", "extraction_failed", "unsupported").
func (m *Metrics) IncResolutions(outcome string) {
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
}

// IncFramesSent increments the frames-sent counter.
func (m *Metrics) IncFramesSent() {
	m.framesSentTotal.Inc()
}

// SetActivePlayers sets the active players gauge.
func (m *Metrics) SetActivePlayers(n int) {
	m.activePlayers.Set(float64(n))
}

// ObserveFrameLag records how late a frame was written.
func (m *Metrics) ObserveFrameLag(seconds float64) {
	m.frameLagSeconds.Observe(seconds)
}
