package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "transcribebot"

// Job outcomes used as the "outcome" label.
const (
	OutcomeOK           = "ok"
	OutcomeDownloadFail = "download_error"
	OutcomeConvertFail  = "convert_error"
	OutcomeModelFail    = "model_error"
	OutcomeTooLong      = "too_long"
	OutcomeTimeout      = "timeout"
	OutcomeReplyFail    = "reply_error"
	OutcomeUnauthorized = "unauthorized"
)

// Metrics groups the bot's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	UpdatesReceived   prometheus.Counter
	PollErrors        prometheus.Counter
	Commands          *prometheus.CounterVec
	AudioJobs         *prometheus.CounterVec
	JobDuration       prometheus.Histogram
	DownloadBytes     prometheus.Histogram
	TranscodeDuration prometheus.Histogram
	ModelDuration     prometheus.Histogram
	AudioSeconds      prometheus.Histogram
	ModelTokens       *prometheus.CounterVec
	InFlight          prometheus.Gauge
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		UpdatesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_updates_received_total",
			Help:      "Telegram updates received from getUpdates",
		}),
		PollErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_poll_errors_total",
			Help:      "Failed getUpdates calls, excluding poll timeouts",
		}),
		Commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_commands_total",
			Help:      "Slash commands handled",
		}, []string{"command"}),
		AudioJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_jobs_total",
			Help:      "Audio messages processed, by outcome",
		}, []string{"outcome"}),
		JobDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_job_duration_seconds",
			Help:      "End to end handling time of an audio message",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		DownloadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "telegram_download_bytes",
			Help:      "Size of downloaded voice and audio files",
			Buckets:   prometheus.ExponentialBuckets(4096, 4, 8), // 4KB to ~64MB
		}),
		TranscodeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcode_duration_seconds",
			Help:      "Time spent converting audio to WAV",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ModelDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Duration of transcription model calls",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		AudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Duration of transcribed audio",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		ModelTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Tokens reported by the model",
		}, []string{"kind"}),
		InFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_jobs_in_flight",
			Help:      "Audio messages currently being processed",
		}),
	}
}

func (m *Metrics) RecordUpdate() {
	if m == nil {
		return
	}
	m.UpdatesReceived.Inc()
}

func (m *Metrics) RecordPollError() {
	if m == nil {
		return
	}
	m.PollErrors.Inc()
}

func (m *Metrics) RecordCommand(cmd string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(cmd).Inc()
}

func (m *Metrics) RecordDownload(bytes int64) {
	if m == nil {
		return
	}
	m.DownloadBytes.Observe(float64(bytes))
}

// JobStarted bumps the in-flight gauge and returns a func that records the
// outcome and duration of the job.
func (m *Metrics) JobStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.InFlight.Inc()
	return func(outcome string) {
		m.InFlight.Dec()
		m.AudioJobs.WithLabelValues(outcome).Inc()
		m.JobDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordTranscript records the timings and sizes of a finished transcription.
func (m *Metrics) RecordTranscript(convert, model time.Duration, audio time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.TranscodeDuration.Observe(convert.Seconds())
	m.ModelDuration.Observe(model.Seconds())
	m.AudioSeconds.Observe(audio.Seconds())
	if inputTokens > 0 {
		m.ModelTokens.WithLabelValues("input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.ModelTokens.WithLabelValues("output").Add(float64(outputTokens))
	}
}

// RecordUnauthorized counts a message rejected by the chat allowlist.
func (m *Metrics) RecordUnauthorized() {
	if m == nil {
		return
	}
	m.AudioJobs.WithLabelValues(OutcomeUnauthorized).Inc()
}
