package database

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector 将 sql.DBStats 暴露为Prometheus指标，抓取时读取
type PoolCollector struct {
	db *sql.DB

	connections *prometheus.Desc
	waitCount   *prometheus.Desc
	waitSeconds *prometheus.Desc
	closedTotal *prometheus.Desc
}

// NewPoolCollector 创建连接池指标收集器
func NewPoolCollector(db *sql.DB) *PoolCollector {
	return &PoolCollector{
		db: db,
		connections: prometheus.NewDesc(
			"database_connections",
			"Number of database connections in different states",
			[]string{"state"}, nil, // states: idle, in_use, open
		),
		waitCount: prometheus.NewDesc(
			"database_wait_count_total",
			"Total number of connections waited for",
			nil, nil,
		),
		waitSeconds: prometheus.NewDesc(
			"database_wait_duration_seconds_total",
			"Total time blocked waiting for a new connection",
			nil, nil,
		),
		closedTotal: prometheus.NewDesc(
			"database_closed_connections_total",
			"Total number of connections closed by pool limits",
			[]string{"reason"}, nil, // reason: max_idle, max_idle_time, max_lifetime
		),
	}
}

// Describe 实现 prometheus.Collector
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.waitCount
	ch <- c.waitSeconds
	ch <- c.closedTotal
}

// Collect 实现 prometheus.Collector
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.db.Stats()

	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.InUse), "in_use")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(stats.OpenConnections), "open")

	ch <- prometheus.MustNewConstMetric(c.waitCount, prometheus.CounterValue, float64(stats.WaitCount))
	ch <- prometheus.MustNewConstMetric(c.waitSeconds, prometheus.CounterValue, stats.WaitDuration.Seconds())

	ch <- prometheus.MustNewConstMetric(c.closedTotal, prometheus.CounterValue, float64(stats.MaxIdleClosed), "max_idle")
	ch <- prometheus.MustNewConstMetric(c.closedTotal, prometheus.CounterValue, float64(stats.MaxIdleTimeClosed), "max_idle_time")
	ch <- prometheus.MustNewConstMetric(c.closedTotal, prometheus.CounterValue, float64(stats.MaxLifetimeClosed), "max_lifetime")
}

var _ prometheus.Collector = (*PoolCollector)(nil)
