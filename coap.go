// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"crypto/rand"
	"time"
)

const tokenLength = 8

type Config struct {
	// RequestTimeout applies to requests begun with a zero timeout.
	RequestTimeout time.Duration
	// DeduplicateExpiration is how long an inbound confirmable message id is remembered.
	DeduplicateExpiration time.Duration
	// Send holds the retransmission parameters for confirmable messages.
	Send *SendOptions
	// Clock returns the current time; tests replace it.
	Clock func() time.Time
}

// DefaultConfig returns the protocol defaults: 60s request timeout,
// ACK_TIMEOUT 2s, ACK_RANDOM_FACTOR 1.5 and MAX_RETRANSMIT 4.
func DefaultConfig() *Config {
	return &Config{
		RequestTimeout:        60 * time.Second,
		DeduplicateExpiration: 247 * time.Second,
		Send:                  NewOptions(),
		Clock:                 time.Now,
	}
}

func (c *Config) withDefaults() *Config {
	def := DefaultConfig()
	if c == nil {
		return def
	}
	conf := *c
	if conf.RequestTimeout <= 0 {
		conf.RequestTimeout = def.RequestTimeout
	}
	if conf.DeduplicateExpiration <= 0 {
		conf.DeduplicateExpiration = def.DeduplicateExpiration
	}
	if conf.Send == nil {
		conf.Send = def.Send
	}
	if conf.Clock == nil {
		conf.Clock = def.Clock
	}
	return &conf
}

// newToken returns tokenLength random bytes.
func newToken() []byte {
	token := make([]byte, tokenLength)
	if _, err := rand.Read(token); err != nil {
		panic("coap: no randomness for token: " + err.Error())
	}
	return token
}
