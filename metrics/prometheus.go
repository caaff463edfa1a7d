package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Block metrics
	headBlockNum         prometheus.Gauge
	irreversibleBlockNum prometheus.Gauge
	blocksApplied        prometheus.Counter
	blocksProduced       prometheus.Counter
	forkSwitches         prometheus.Counter
	blockApplyDuration   prometheus.Histogram
	blockSize            prometheus.Gauge

	// Transaction metrics
	txsApplied  prometheus.Counter
	txsRejected *prometheus.CounterVec
	pendingTxs  prometheus.Gauge

	// Market metrics
	ordersFilled     prometheus.Counter
	ordersCancelled  prometheus.Counter
	forceSettlements prometheus.Counter

	// Maintenance metrics
	maintenanceDuration  *prometheus.HistogramVec
	witnessParticipation prometheus.Gauge

	// State metrics
	stateRevision  prometheus.Gauge
	undoStackDepth prometheus.Gauge
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		// Block metrics
		headBlockNum: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "head_block_num",
				Help:      "Current head block number",
			},
		),
		irreversibleBlockNum: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "irreversible_block_num",
				Help:      "Last irreversible block number",
			},
		),
		blocksApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_applied_total",
				Help:      "Total number of blocks applied",
			},
		),
		blocksProduced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "blocks_produced_total",
				Help:      "Total number of blocks produced by this node",
			},
		),
		forkSwitches: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fork_switches_total",
				Help:      "Total number of branch switches",
			},
		),
		blockApplyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "block_apply_duration_seconds",
				Help:      "Time taken to apply a block",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		blockSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_size_bytes",
				Help:      "Size of the latest block in bytes",
			},
		),

		// Transaction metrics
		txsApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_applied_total",
				Help:      "Total number of transactions applied",
			},
		),
		txsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "txs_rejected_total",
				Help:      "Total number of rejected transactions",
			},
			[]string{"reason"},
		),
		pendingTxs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_txs",
				Help:      "Number of pending transactions",
			},
		),

		// Market metrics
		ordersFilled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_filled_total",
				Help:      "Total number of order fills",
			},
		),
		ordersCancelled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_cancelled_total",
				Help:      "Total number of cancelled orders",
			},
		),
		forceSettlements: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "force_settlements_total",
				Help:      "Total number of executed force settlements",
			},
		),

		// Maintenance metrics
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Time taken by per-block maintenance tasks",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"task"},
		),
		witnessParticipation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "witness_participation",
				Help:      "Fraction of recent slots filled (0.0 - 1.0)",
			},
		),

		// State metrics
		stateRevision: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "state_revision",
				Help:      "Current state database revision",
			},
		),
		undoStackDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "undo_stack_depth",
				Help:      "Number of reversible revisions on the undo stack",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

func (m *PrometheusMetrics) registerMetrics() {
	m.registry.MustRegister(
		// Block metrics
		m.headBlockNum,
		m.irreversibleBlockNum,
		m.blocksApplied,
		m.blocksProduced,
		m.forkSwitches,
		m.blockApplyDuration,
		m.blockSize,

		// Transaction metrics
		m.txsApplied,
		m.txsRejected,
		m.pendingTxs,

		// Market metrics
		m.ordersFilled,
		m.ordersCancelled,
		m.forceSettlements,

		// Maintenance metrics
		m.maintenanceDuration,
		m.witnessParticipation,

		// State metrics
		m.stateRevision,
		m.undoStackDepth,
	)
}

// Block metrics implementation

func (m *PrometheusMetrics) SetHeadBlockNum(num uint32) {
	m.headBlockNum.Set(float64(num))
}

func (m *PrometheusMetrics) SetIrreversibleBlockNum(num uint32) {
	m.irreversibleBlockNum.Set(float64(num))
}

func (m *PrometheusMetrics) IncBlocksApplied() {
	m.blocksApplied.Inc()
}

func (m *PrometheusMetrics) IncBlocksProduced() {
	m.blocksProduced.Inc()
}

func (m *PrometheusMetrics) IncForkSwitches() {
	m.forkSwitches.Inc()
}

func (m *PrometheusMetrics) ObserveBlockApplyDuration(d time.Duration) {
	m.blockApplyDuration.Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetBlockSize(size int) {
	m.blockSize.Set(float64(size))
}

// Transaction metrics implementation

func (m *PrometheusMetrics) IncTxsApplied() {
	m.txsApplied.Inc()
}

func (m *PrometheusMetrics) IncTxsRejected(reason string) {
	m.txsRejected.WithLabelValues(reason).Inc()
}

func (m *PrometheusMetrics) SetPendingTxs(count int) {
	m.pendingTxs.Set(float64(count))
}

// Market metrics implementation

func (m *PrometheusMetrics) IncOrdersFilled() {
	m.ordersFilled.Inc()
}

func (m *PrometheusMetrics) IncOrdersCancelled() {
	m.ordersCancelled.Inc()
}

func (m *PrometheusMetrics) IncForceSettlements() {
	m.forceSettlements.Inc()
}

// Maintenance metrics implementation

func (m *PrometheusMetrics) ObserveMaintenanceDuration(task string, d time.Duration) {
	m.maintenanceDuration.WithLabelValues(task).Observe(d.Seconds())
}

func (m *PrometheusMetrics) SetWitnessParticipation(rate float64) {
	m.witnessParticipation.Set(rate)
}

// State metrics implementation

func (m *PrometheusMetrics) SetStateRevision(rev int64) {
	m.stateRevision.Set(float64(rev))
}

func (m *PrometheusMetrics) SetUndoStackDepth(depth int) {
	m.undoStackDepth.Set(float64(depth))
}

// HTTPHandler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

var _ Metrics = (*PrometheusMetrics)(nil)
