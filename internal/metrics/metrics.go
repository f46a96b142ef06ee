package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Scoring modes used as the "mode" label
const (
	ModeScore   = "score"
	ModeWatch   = "watch"
	ModeExplain = "explain"
	ModeAPI     = "api"
	ModeMCP     = "mcp"
)

var (
	LinesScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsift_lines_scored_total",
			Help: "Total number of log lines scored",
		},
		[]string{"mode"},
	)

	Anomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logsift_anomalies_total",
			Help: "Total number of lines at or above the anomaly threshold",
		},
		[]string{"mode", "tier"},
	)

	ScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logsift_score_duration_seconds",
			Help:    "Time spent scoring a batch or a single streamed line",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		},
		[]string{"mode"},
	)

	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logsift_train_duration_seconds",
			Help:    "Time spent training a model, including bootstrap scoring",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
	)

	VocabularySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logsift_model_vocabulary_size",
			Help: "Vocabulary size of the currently loaded model",
		},
	)

	SuppressedDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logsift_watch_suppressed_total",
			Help: "Anomalous lines suppressed as probable repeats in watch mode",
		},
	)
)
