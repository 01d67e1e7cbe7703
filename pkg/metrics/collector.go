// Package metrics adapts the engine's counters and live-connection
// table to Prometheus, the way the teacher's pkg/exporter adapts Linux
// tcp_info to a prometheus.Collector: a Describe/Collect pair over a
// protected map, plus Add/Remove hooks called by the owning server.
package metrics

import (
	"net"
	"sync"

	"github.com/higebu/netfd"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/simeonmiteff/sia-server/pkg/sia"
)

type connEntry struct {
	fd     int
	labels []string
}

// Collector exports sia.Counters as a set of Prometheus counters and
// tracks live connections (for an "open connections" gauge), keyed by
// net.Conn the way exporter.TCPInfoCollector.conns is.
type Collector struct {
	counters *sia.Counters

	mu    sync.Mutex
	conns map[net.Conn]connEntry

	counterDesc *prometheus.Desc
	connDesc    *prometheus.Desc
}

// NewCollector builds a Collector over counters, with prefix used as
// the Prometheus metric namespace (mirroring
// exporter.NewTCPInfoCollector's prefix argument).
func NewCollector(prefix string, counters *sia.Counters) *Collector {
	return &Collector{
		counters: counters,
		conns:    make(map[net.Conn]connEntry),
		counterDesc: prometheus.NewDesc(
			prefix+"_events_total",
			"Count of SIA DC-09 events processed, by outcome category.",
			[]string{"category"}, nil,
		),
		connDesc: prometheus.NewDesc(
			prefix+"_open_connections",
			"Number of currently open stream connections (TCP or OH).",
			[]string{"transport"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.counterDesc
	descs <- c.connDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	for _, cat := range sia.Categories() {
		metrics <- prometheus.MustNewConstMetric(
			c.counterDesc, prometheus.CounterValue,
			float64(c.counters.Get(cat)), cat.Name(),
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byTransport := make(map[string]int)
	for _, entry := range c.conns {
		byTransport[entry.labels[0]]++
	}
	for transport, n := range byTransport {
		metrics <- prometheus.MustNewConstMetric(
			c.connDesc, prometheus.GaugeValue, float64(n), transport,
		)
	}
}

// Add registers conn as open, labeled with transport (e.g. "tcp",
// "oh"). The raw file descriptor is captured via netfd.GetFdFromConn
// exactly as exporter.TCPInfoCollector.Add does, for future use by
// per-connection diagnostics.
func (c *Collector) Add(conn net.Conn, transport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conns[conn] = connEntry{
		fd:     netfd.GetFdFromConn(conn),
		labels: []string{transport},
	}
}

// Remove drops conn from the live-connection table on close.
func (c *Collector) Remove(conn net.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.conns, conn)
}
