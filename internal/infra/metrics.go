package infra

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides lightweight observability for the sequencer and the
// price poller. Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	commandsApplied    atomic.Uint64
	commandsRejected   atomic.Uint64
	stakes             atomic.Uint64
	unstakes           atomic.Uint64
	claims             atomic.Uint64
	stalePricesDropped atomic.Uint64
	oracleErrors       atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	openTickets atomic.Int64
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCommand records one processed command with its latency.
func (m *Metrics) RecordCommand(latencyNs int64, accepted bool) {
	if accepted {
		m.commandsApplied.Add(1)
	} else {
		m.commandsRejected.Add(1)
	}
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

func (m *Metrics) RecordStake()   { m.stakes.Add(1) }
func (m *Metrics) RecordUnstake() { m.unstakes.Add(1) }
func (m *Metrics) RecordClaim()   { m.claims.Add(1) }

// RecordStalePrice records a price observation older than the stored one.
func (m *Metrics) RecordStalePrice() {
	m.stalePricesDropped.Add(1)
}

// RecordOracleError records a failed oracle fetch.
func (m *Metrics) RecordOracleError() {
	m.oracleErrors.Add(1)
}

// SetOpenTickets sets the number of unclaimed tickets.
func (m *Metrics) SetOpenTickets(n int) {
	m.openTickets.Store(int64(n))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CommandsApplied    uint64
	CommandsRejected   uint64
	Stakes             uint64
	Unstakes           uint64
	Claims             uint64
	StalePricesDropped uint64
	OracleErrors       uint64
	AvgLatencyNs       int64
	OpenTickets        int64
	Timestamp          time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgLatency int64
	count := m.latencyCount.Load()
	if count > 0 {
		avgLatency = m.latencySumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CommandsApplied:    m.commandsApplied.Load(),
		CommandsRejected:   m.commandsRejected.Load(),
		Stakes:             m.stakes.Load(),
		Unstakes:           m.unstakes.Load(),
		Claims:             m.claims.Load(),
		StalePricesDropped: m.stalePricesDropped.Load(),
		OracleErrors:       m.oracleErrors.Load(),
		AvgLatencyNs:       avgLatency,
		OpenTickets:        m.openTickets.Load(),
		Timestamp:          time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.commandsApplied.Store(0)
	m.commandsRejected.Store(0)
	m.stakes.Store(0)
	m.unstakes.Store(0)
	m.claims.Store(0)
	m.stalePricesDropped.Store(0)
	m.oracleErrors.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.openTickets.Store(0)
}

const metricsNamespace = "mpsol"

// MetricsCollector exports a Metrics snapshot to Prometheus on every scrape.
type MetricsCollector struct {
	m *Metrics

	commands    *prometheus.Desc
	operations  *prometheus.Desc
	stalePrices *prometheus.Desc
	oracleErrs  *prometheus.Desc
	avgLatency  *prometheus.Desc
	openTickets *prometheus.Desc
}

var _ prometheus.Collector = (*MetricsCollector)(nil)

func NewMetricsCollector(m *Metrics) *MetricsCollector {
	return &MetricsCollector{
		m: m,
		commands: prometheus.NewDesc(
			metricsNamespace+"_commands_total",
			"Commands processed by the sequencer.",
			[]string{"result"},
			nil,
		),
		operations: prometheus.NewDesc(
			metricsNamespace+"_operations_total",
			"Accepted user operations.",
			[]string{"operation"},
			nil,
		),
		stalePrices: prometheus.NewDesc(
			metricsNamespace+"_stale_prices_dropped_total",
			"Price observations older than the stored one.",
			nil, nil,
		),
		oracleErrs: prometheus.NewDesc(
			metricsNamespace+"_oracle_errors_total",
			"Failed oracle state fetches.",
			nil, nil,
		),
		avgLatency: prometheus.NewDesc(
			metricsNamespace+"_command_latency_avg_seconds",
			"Average command processing latency.",
			nil, nil,
		),
		openTickets: prometheus.NewDesc(
			metricsNamespace+"_open_tickets",
			"Unstake tickets not yet fully claimed.",
			nil, nil,
		),
	}
}

// Describe describes to Prometheus the metrics this collector will collect
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.commands
	ch <- c.operations
	ch <- c.stalePrices
	ch <- c.oracleErrs
	ch <- c.avgLatency
	ch <- c.openTickets
}

// Collect reads one snapshot and emits it.
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(s.CommandsApplied), "applied")
	ch <- prometheus.MustNewConstMetric(c.commands, prometheus.CounterValue, float64(s.CommandsRejected), "rejected")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(s.Stakes), "stake")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(s.Unstakes), "unstake")
	ch <- prometheus.MustNewConstMetric(c.operations, prometheus.CounterValue, float64(s.Claims), "ticket_claim")
	ch <- prometheus.MustNewConstMetric(c.stalePrices, prometheus.CounterValue, float64(s.StalePricesDropped))
	ch <- prometheus.MustNewConstMetric(c.oracleErrs, prometheus.CounterValue, float64(s.OracleErrors))
	ch <- prometheus.MustNewConstMetric(c.avgLatency, prometheus.GaugeValue, time.Duration(s.AvgLatencyNs).Seconds())
	ch <- prometheus.MustNewConstMetric(c.openTickets, prometheus.GaugeValue, float64(s.OpenTickets))
}
