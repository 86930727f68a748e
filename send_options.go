// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"math/rand"
	"time"
)

// SendOptions are the retransmission parameters of confirmable messages.
type SendOptions struct {
	maxRetransmit int
	ackTimeout    time.Duration
	randomFactor  float64
}

func NewOptions() *SendOptions {
	return &SendOptions{
		maxRetransmit: 4,
		ackTimeout:    time.Second * 2,
		randomFactor:  1.5,
	}
}

func (so *SendOptions) WithRetry(count int, timeout time.Duration, randomFactor float64) *SendOptions {
	so.maxRetransmit = count
	so.ackTimeout = timeout
	so.randomFactor = randomFactor
	return so
}

func (so *SendOptions) NoRetry() *SendOptions {
	so.maxRetransmit = 0
	return so
}

func (so *SendOptions) MaxRetransmit() int {
	return so.maxRetransmit
}

func (so *SendOptions) AckTimeout() time.Duration {
	return so.ackTimeout
}

// initialTimeout picks the first retransmission timeout between
// ACK_TIMEOUT and ACK_TIMEOUT * ACK_RANDOM_FACTOR.
func (so *SendOptions) initialTimeout() time.Duration {
	if so.randomFactor <= 1.0 {
		return so.ackTimeout
	}
	return time.Duration(((float64(so.ackTimeout)*so.randomFactor)-float64(so.ackTimeout))*rand.Float64()) + so.ackTimeout
}
