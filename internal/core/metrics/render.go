package metrics

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// gauge 一个由快照导出的单值指标
type gauge struct {
	desc  *prometheus.Desc
	kind  prometheus.ValueType
	value func(Snapshot) float64
}

// descSet 一个命名空间下的全部指标描述
type descSet struct {
	values      []gauge
	subscribers *prometheus.Desc
}

func newDescSet(namespace string) *descSet {
	def := func(name, help string, kind prometheus.ValueType, value func(Snapshot) float64) gauge {
		return gauge{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil),
			kind:  kind,
			value: value,
		}
	}
	counter, level := prometheus.CounterValue, prometheus.GaugeValue

	return &descSet{
		values: []gauge{
			def("connections_total", "Connections accepted or established by the gossip node and the hub.", counter,
				func(s Snapshot) float64 { return float64(s.Connections) }),
			def("messages_total", "Messages sent and received by the gossip node and the hub.", counter,
				func(s Snapshot) float64 { return float64(s.Messages) }),
			def("bytes_total", "Payload bytes sent and received by the gossip node and the hub.", counter,
				func(s Snapshot) float64 { return float64(s.Bytes) }),
			def("start_time_seconds", "Start time of the process since unix epoch in seconds.", level,
				func(s Snapshot) float64 { return float64(s.StartTime.UnixMilli()) / 1e3 }),
			def("uptime_seconds", "Seconds since the process started.", level,
				func(s Snapshot) float64 { return s.Uptime.Seconds() }),
			def("message_rate", "Average messages per second over the last minute.", level,
				func(s Snapshot) float64 { return s.MessageRate }),
			def("byte_rate", "Average payload bytes per second over the last minute.", level,
				func(s Snapshot) float64 { return s.ByteRate }),

			def("gossip_peers", "Open gossip peer connections.", level,
				func(s Snapshot) float64 { return float64(s.Gossip.Peers) }),
			def("gossip_known_addresses", "Addresses in the gossip known set.", level,
				func(s Snapshot) float64 { return float64(s.Gossip.Known) }),
			def("gossip_state_keys", "Keys in the replicated state.", level,
				func(s Snapshot) float64 { return float64(s.Gossip.Keys) }),
			def("gossip_retrying", "Addresses waiting for a reconnect attempt.", level,
				func(s Snapshot) float64 { return float64(s.Gossip.Retrying) }),

			def("hub_clients", "Connected signaling clients.", level,
				func(s Snapshot) float64 { return float64(s.Hub.Connections) }),
			def("hub_topics", "Topics known to the hub.", level,
				func(s Snapshot) float64 { return float64(len(s.Hub.Topics)) }),
			def("hub_dropped_total", "Inbound client messages dropped by the hub.", counter,
				func(s Snapshot) float64 { return float64(s.Hub.Dropped) }),
		},
		subscribers: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "hub", "topic_subscribers"),
			"Subscribers per topic.",
			[]string{"topic"}, nil,
		),
	}
}

func (d *descSet) describe(ch chan<- *prometheus.Desc) {
	for _, g := range d.values {
		ch <- g.desc
	}
	ch <- d.subscribers
}

func (d *descSet) collect(ch chan<- prometheus.Metric, s Snapshot) {
	for _, g := range d.values {
		ch <- prometheus.MustNewConstMetric(g.desc, g.kind, g.value(s))
	}
	topics := make([]string, 0, len(s.Hub.Topics))
	for name := range s.Hub.Topics {
		topics = append(topics, name)
	}
	sort.Strings(topics)
	for _, name := range topics {
		ch <- prometheus.MustNewConstMetric(d.subscribers, prometheus.GaugeValue, float64(s.Hub.Topics[name]), name)
	}
}

// staticCollector 导出一个固定快照
type staticCollector struct {
	descs *descSet
	snap  Snapshot
}

func (c staticCollector) Describe(ch chan<- *prometheus.Desc) { c.descs.describe(ch) }
func (c staticCollector) Collect(ch chan<- prometheus.Metric)  { c.descs.collect(ch, c.snap) }

// Render 把快照渲染为 Prometheus 文本格式，每个指标包含 HELP、TYPE 与取值
func Render(s Snapshot, namespace string) (string, error) {
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(staticCollector{descs: newDescSet(namespace), snap: s}); err != nil {
		return "", fmt.Errorf("metrics: register: %w", err)
	}
	return gatherText(reg)
}

// gatherText 采集并编码一个 Gatherer
func gatherText(g prometheus.Gatherer) (string, error) {
	families, err := g.Gather()
	if err != nil {
		return "", fmt.Errorf("metrics: gather: %w", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return "", fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.String(), nil
}
