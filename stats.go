// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import "go.uber.org/atomic"

// Stats are channel counters. They are written on the execution context
// and may be read from any goroutine.
type Stats struct {
	DatagramsSent     atomic.Uint64
	DatagramsReceived atomic.Uint64
	DatagramsDropped  atomic.Uint64
	Retransmissions   atomic.Uint64
	Duplicates        atomic.Uint64
	RequestsSent      atomic.Uint64
	RequestsReceived  atomic.Uint64
	ResponsesSent     atomic.Uint64
	ResponsesReceived atomic.Uint64
	ExchangesFailed   atomic.Uint64
	Timeouts          atomic.Uint64

	session atomic.Int64
	state   atomic.Int32
}

func (s *Stats) Session() int64 {
	return s.session.Load()
}

func (s *Stats) State() ChannelState {
	return ChannelState(s.state.Load())
}
