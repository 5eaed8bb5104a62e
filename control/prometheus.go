// File: control/prometheus.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus export of a MetricsRegistry.

package control

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector publishes every numeric registry entry as a gauge named
// <namespace>_<key>. Keys are dynamic, so the collector is unchecked.
type Collector struct {
	namespace string
	reg       *MetricsRegistry
	labels    prometheus.Labels
}

// NewCollector wraps reg. constLabels are attached to every sample.
func NewCollector(namespace string, reg *MetricsRegistry, constLabels prometheus.Labels) *Collector {
	return &Collector{namespace: namespace, reg: reg, labels: constLabels}
}

// Describe sends nothing, which marks the collector unchecked.
func (c *Collector) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for key, v := range c.reg.GetSnapshot() {
		f, ok := toFloat(v)
		if !ok {
			continue
		}
		desc := prometheus.NewDesc(
			prometheus.BuildFQName(c.namespace, "", metricName(key)),
			"hioload-wsc session metric "+key,
			nil, c.labels,
		)
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, f)
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// metricName maps a registry key onto the Prometheus name alphabet.
func metricName(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, key)
}
