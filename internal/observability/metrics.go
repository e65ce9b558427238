package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for WagerLedger.
type Metrics struct {
	// --- Engine processing ---
	CommandsApplied  *prometheus.CounterVec
	CommandsRejected *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec
	EngineSequence   prometheus.Gauge

	// --- Settlement domain ---
	BetsPlaced        *prometheus.CounterVec
	BetVolume         *prometheus.CounterVec
	MarketsSettled    *prometheus.CounterVec
	WinningsClaimed   prometheus.Counter
	RefundsPaid       *prometheus.CounterVec
	PlayersRegistered prometheus.Counter
	PrizesDistributed prometheus.Counter
	OracleRejections  *prometheus.CounterVec

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	CommandSequenceGap    *prometheus.CounterVec
	CommandOutOfOrder     *prometheus.CounterVec

	// --- Persistence ---
	PersistEventsWritten    prometheus.Counter
	PersistTransfersWritten prometheus.Counter
	PersistBatchSize        prometheus.Histogram
	PersistBatchDur         prometheus.Histogram
	PersistErrors           *prometheus.CounterVec
	PersistRetry            prometheus.Counter
	PersistLastSequence     prometheus.Gauge

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// --- Price cache ---
	PriceCacheWrites prometheus.Counter
	PriceCacheErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Engine processing
		CommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_commands_applied_total",
			Help: "Commands successfully applied by the engine",
		}, []string{"command_type"}),

		CommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_commands_rejected_total",
			Help: "Commands rejected (dedup, gap, guard, validation)",
		}, []string{"command_type", "reason"}),

		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_command_apply_duration_seconds",
			Help:    "Time to apply a single command in the engine",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_engine_sequence",
			Help: "Current global sequence number",
		}),

		// Settlement domain
		BetsPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_bets_placed_total",
			Help: "Accepted bets",
		}, []string{"market_id", "outcome"}),

		BetVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_bet_volume_total",
			Help: "Total staked amount (smallest units)",
		}, []string{"market_id", "outcome"}),

		MarketsSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_markets_settled_total",
			Help: "Markets settled",
		}, []string{"outcome", "path"}),

		WinningsClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_winnings_claimed_total",
			Help: "Winning claims paid",
		}),

		RefundsPaid: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_refunds_paid_total",
			Help: "Refunds paid on cancelled markets and tournaments",
		}, []string{"kind"}),

		PlayersRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_players_registered_total",
			Help: "Tournament registrations",
		}),

		PrizesDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_prizes_distributed_total",
			Help: "Prize distributions completed",
		}),

		OracleRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_oracle_rejections_total",
			Help: "Attestation verification failures",
		}, []string{"entity_kind"}),

		// Channel & backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wager_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_backpressure_total",
			Help: "Times the engine blocked on the persist channel",
		}),

		// Idempotency & ordering
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		CommandSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_command_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		CommandOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_command_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		// Persistence
		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_events_written_total",
			Help: "Envelopes written to Postgres",
		}),

		PersistTransfersWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_transfers_written_total",
			Help: "Transfer rows written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_persist_batch_size",
			Help:    "Outputs per write batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot & replay
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "wager_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_replay_events_total",
			Help: "Events replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "wager_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wager_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		// Price cache
		PriceCacheWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_price_cache_writes_total",
			Help: "Price updates pushed to Redis",
		}),

		PriceCacheErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "wager_price_cache_errors_total",
			Help: "Redis price cache write failures",
		}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
