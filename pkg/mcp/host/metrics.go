// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package host

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the host's Prometheus collectors. An application wires
// these into its own registry via Registry(); none are registered to the
// global default registry, since a host is a library component that may
// be embedded alongside other instrumented subsystems.
type Metrics struct {
	registry          *prometheus.Registry
	ConnectionsGauge  prometheus.Gauge
	RequestLatency    *prometheus.HistogramVec
	ReconnectsCounter prometheus.Counter
}

// NewMetrics constructs a Metrics with its own private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		ConnectionsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mcp",
			Subsystem: "host",
			Name:      "connections",
			Help:      "Number of currently connected MCP servers.",
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mcp",
			Subsystem: "host",
			Name:      "request_duration_seconds",
			Help:      "Latency of outbound MCP requests by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		ReconnectsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mcp",
			Subsystem: "host",
			Name:      "reconnects_total",
			Help:      "Total number of reconnect attempts across all connections.",
		}),
	}

	reg.MustRegister(m.ConnectionsGauge, m.RequestLatency, m.ReconnectsCounter)
	return m
}

// Registry returns the private registry so an application can merge it
// into its own (e.g. via prometheus.WrapRegistererWith or a multi-gatherer).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records the latency of one outbound request for method.
func (m *Metrics) ObserveRequest(method string, d time.Duration) {
	m.RequestLatency.WithLabelValues(method).Observe(d.Seconds())
}
