// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	coap "github.com/qwerty-iot/cloudcoap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	var sent int
	ch := coap.NewChannel(coap.FuncTransport(func([]byte) error {
		sent++
		return nil
	}), nil)
	ch.Open()

	msg, _, err := ch.BeginRequest("E", coap.CodePost, 0, 0)
	require.NoError(t, err)
	require.NoError(t, ch.EndRequest(msg, nil, nil, nil))
	ch.CancelRequest(msg.RequestID())

	c := NewCollector("test", ch.Stats(), prometheus.Labels{"peer": "unit"})
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))

	expected := `
# HELP test_channel_datagrams_sent_total Datagrams handed to the transport
# TYPE test_channel_datagrams_sent_total counter
test_channel_datagrams_sent_total{peer="unit"} 1
# HELP test_channel_requests_sent_total Requests sent
# TYPE test_channel_requests_sent_total counter
test_channel_requests_sent_total{peer="unit"} 1
# HELP test_channel_exchanges_failed_total Exchanges ended through their error callback
# TYPE test_channel_exchanges_failed_total counter
test_channel_exchanges_failed_total{peer="unit"} 1
# HELP test_channel_session Current session number of the channel
# TYPE test_channel_session gauge
test_channel_session{peer="unit"} 1
# HELP test_channel_state Channel state (0=closed, 1=opening, 2=open, 3=closing)
# TYPE test_channel_state gauge
test_channel_state{peer="unit"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"test_channel_datagrams_sent_total", "test_channel_requests_sent_total", "test_channel_exchanges_failed_total",
		"test_channel_session", "test_channel_state"))

	assert.Equal(t, 13, testutil.CollectAndCount(c))
	assert.Equal(t, 1, sent)
}

