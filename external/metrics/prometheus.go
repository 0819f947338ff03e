package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/mensetsu/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "mensetsu"
	shutdownTimeout = 5 * time.Second
)

// Metrics holds the Prometheus collectors for one interview client.
type Metrics struct {
	registry *prometheus.Registry

	TurnsSubmitted    *prometheus.CounterVec
	TurnsRejected     *prometheus.CounterVec
	RepliesReceived   *prometheus.CounterVec
	AudioBytesTotal   *prometheus.CounterVec
	FramesDropped     prometheus.Counter
	ConnectionChanges *prometheus.CounterVec
	ConnectionOpen    prometheus.Gauge
	SinkErrors        prometheus.Counter
}

var _ telemetry.Recorder = (*Metrics)(nil)

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		TurnsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_submitted_total",
			Help:      "User turns sent to the interview server",
		}, []string{"mode"}),
		TurnsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_rejected_total",
			Help:      "User turns rejected before sending",
		}, []string{"reason"}),
		RepliesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_received_total",
			Help:      "Interviewer replies received",
		}, []string{"mode"}),
		AudioBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Reply audio bytes received",
		}, []string{"disposition"}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound text frames that were not protocol replies",
		}),
		ConnectionChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_state_changes_total",
			Help:      "Channel state transitions",
		}, []string{"state", "terminal"}),
		ConnectionOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_open",
			Help:      "1 while the interview channel is open",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_sink_errors_total",
			Help:      "Errors reported by the audio sink",
		}),
	}

	registry.MustRegister(
		m.TurnsSubmitted,
		m.TurnsRejected,
		m.RepliesReceived,
		m.AudioBytesTotal,
		m.FramesDropped,
		m.ConnectionChanges,
		m.ConnectionOpen,
		m.SinkErrors,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TurnSubmitted(mode string) {
	m.TurnsSubmitted.WithLabelValues(mode).Inc()
}

func (m *Metrics) TurnRejected(reason string) {
	m.TurnsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ReplyReceived(mode string) {
	m.RepliesReceived.WithLabelValues(mode).Inc()
}

func (m *Metrics) AudioReceived(bytes int) {
	m.AudioBytesTotal.WithLabelValues("buffered").Add(float64(bytes))
}

func (m *Metrics) StaleAudioDropped(bytes int) {
	m.AudioBytesTotal.WithLabelValues("stale").Add(float64(bytes))
}

func (m *Metrics) FrameDropped() {
	m.FramesDropped.Inc()
}

func (m *Metrics) ConnectionState(state string, terminal bool) {
	m.ConnectionChanges.WithLabelValues(state, strconv.FormatBool(terminal)).Inc()
	if state == "open" {
		m.ConnectionOpen.Set(1)
	} else {
		m.ConnectionOpen.Set(0)
	}
}

func (m *Metrics) SinkError() {
	m.SinkErrors.Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
