package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KeywordsHarvested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_keywords_total",
			Help: "Keywords processed, by engine and status",
		},
		[]string{"engine", "status"},
	)

	ResultsCollected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_results_total",
			Help: "Organic results collected",
		},
		[]string{"engine"},
	)

	KeywordDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "serpharvest_keyword_duration_seconds",
			Help:    "Time spent harvesting one keyword including pagination",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"engine"},
	)

	CaptchaOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_captcha_total",
			Help: "Captcha gates handled, by outcome",
		},
		[]string{"engine", "outcome"},
	)

	DedupSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_dedup_skips_total",
			Help: "Keywords skipped because another worker already claimed them",
		},
		[]string{"engine"},
	)

	BroadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_broadcast_messages_total",
			Help: "Broadcast messages sent and received",
		},
		[]string{"bus", "direction"},
	)

	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "serpharvest_tasks_total",
			Help: "Keyword tasks finished, by status",
		},
		[]string{"status"},
	)

	ActiveWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "serpharvest_active_workers",
			Help: "Workers currently running a task",
		},
	)
)
