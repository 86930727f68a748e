// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package metrics exports channel counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	coap "github.com/qwerty-iot/cloudcoap"
)

type counter struct {
	desc  *prometheus.Desc
	value func(s *coap.Stats) uint64
}

// Collector reads the counters of one channel at scrape time. The channel
// keeps running on its own execution context; only its atomic counters are read.
type Collector struct {
	stats    *coap.Stats
	counters []counter
	session  *prometheus.Desc
	state    *prometheus.Desc
}

func NewCollector(namespace string, stats *coap.Stats, labels prometheus.Labels) *Collector {
	if namespace == "" {
		namespace = "cloudcoap"
	}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "channel", name), help, nil, labels)
	}
	c := &Collector{
		stats:   stats,
		session: desc("session", "Current session number of the channel"),
		state:   desc("state", "Channel state (0=closed, 1=opening, 2=open, 3=closing)"),
	}
	add := func(name, help string, value func(s *coap.Stats) uint64) {
		c.counters = append(c.counters, counter{desc: desc(name, help), value: value})
	}
	add("datagrams_sent_total", "Datagrams handed to the transport",
		func(s *coap.Stats) uint64 { return s.DatagramsSent.Load() })
	add("datagrams_received_total", "Datagrams received from the transport",
		func(s *coap.Stats) uint64 { return s.DatagramsReceived.Load() })
	add("datagrams_dropped_total", "Datagrams dropped without being processed",
		func(s *coap.Stats) uint64 { return s.DatagramsDropped.Load() })
	add("retransmissions_total", "Confirmable messages sent again for lack of an ack",
		func(s *coap.Stats) uint64 { return s.Retransmissions.Load() })
	add("duplicates_total", "Duplicate confirmable messages received",
		func(s *coap.Stats) uint64 { return s.Duplicates.Load() })
	add("requests_sent_total", "Requests sent",
		func(s *coap.Stats) uint64 { return s.RequestsSent.Load() })
	add("requests_received_total", "Requests received",
		func(s *coap.Stats) uint64 { return s.RequestsReceived.Load() })
	add("responses_sent_total", "Separate responses sent",
		func(s *coap.Stats) uint64 { return s.ResponsesSent.Load() })
	add("responses_received_total", "Responses received",
		func(s *coap.Stats) uint64 { return s.ResponsesReceived.Load() })
	add("exchanges_failed_total", "Exchanges ended through their error callback",
		func(s *coap.Stats) uint64 { return s.ExchangesFailed.Load() })
	add("timeouts_total", "Exchanges failed with a timeout",
		func(s *coap.Stats) uint64 { return s.Timeouts.Load() })
	return c
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, cnt := range c.counters {
		ch <- cnt.desc
	}
	ch <- c.session
	ch <- c.state
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, cnt := range c.counters {
		ch <- prometheus.MustNewConstMetric(cnt.desc, prometheus.CounterValue, float64(cnt.value(c.stats)))
	}
	ch <- prometheus.MustNewConstMetric(c.session, prometheus.GaugeValue, float64(c.stats.Session()))
	ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, float64(c.stats.State()))
}
