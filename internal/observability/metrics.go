package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the settlement service.
type Metrics struct {
	// --- Settlement engine ---
	TransitionsApplied  *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	TransitionDuration  *prometheus.HistogramVec
	EngineSequence      prometheus.Gauge
	StateHashDuration   prometheus.Histogram

	// --- Games ---
	GamesByStatus *prometheus.GaugeVec
	PayoutsTotal  prometheus.Counter
	RefundsTotal  prometheus.Counter

	// --- Price ledger ---
	PricesAppended  prometheus.Counter
	PriceLedgerSize prometheus.Gauge

	// --- Escrow ---
	EscrowedBalance prometheus.Gauge

	// --- Price feed ---
	FeedTicksReceived prometheus.Counter
	FeedTicksRejected *prometheus.CounterVec

	// --- Event publishing & persistence ---
	PublishDrops           prometheus.Counter
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistLastSequence    prometheus.Gauge

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000005, 0.00001, 0.000025, 0.00005, 0.0001,
		0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		TransitionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2h_transitions_applied_total",
			Help: "Settlement transitions committed",
		}, []string{"op"}),

		TransitionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2h_transitions_rejected_total",
			Help: "Settlement transitions rejected at a gate",
		}, []string{"op", "reason"}),

		TransitionDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "h2h_transition_duration_seconds",
			Help:    "Time to apply a single settlement transition",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2h_engine_sequence",
			Help: "Current global event sequence",
		}),

		StateHashDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "h2h_state_hash_duration_seconds",
			Help:    "Time to compute the state hash",
			Buckets: latencyBuckets,
		}),

		GamesByStatus: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "h2h_games",
			Help: "Games in the registry by lifecycle status",
		}, []string{"status"}),

		PayoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_payouts_total",
			Help: "Winner payouts executed",
		}),

		RefundsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_refunds_total",
			Help: "Host refunds executed",
		}),

		PricesAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_prices_appended_total",
			Help: "Price points appended to the ledger",
		}),

		PriceLedgerSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2h_price_ledger_size",
			Help: "Number of points in the price ledger",
		}),

		EscrowedBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2h_escrowed_balance",
			Help: "Total value held in the escrow vault (smallest unit)",
		}),

		FeedTicksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_feed_ticks_received_total",
			Help: "Price ticks received from the feed",
		}),

		FeedTicksRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2h_feed_ticks_rejected_total",
			Help: "Price ticks rejected (stale, malformed, append failure)",
		}, []string{"reason"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "h2h_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "h2h_persist_batch_size",
			Help:    "Events per persistence batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2h_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "h2h_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "h2h_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"route", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "h2h_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"route"}),
	}
}
