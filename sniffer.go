// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"github.com/qwerty-iot/dtls/v2"
	"go.uber.org/atomic"
)

const (
	SniffWrite = "write"
	SniffRead  = "read"
)

// Packet is a datagram seen by a transport.
type Packet struct {
	Transport string
	Op        string
	From      string
	To        string
	Data      []byte
}

// SniffFunc observes datagrams. It is called on the transport's goroutine
// and must not block; Data is a copy the callee may keep.
type SniffFunc func(p Packet)

type sniffHook struct {
	fn SniffFunc
}

var sniffer atomic.Value

func init() {
	sniffer.Store(sniffHook{})
}

// SetSniffer installs fn to observe every datagram read or written by the
// transports of this package, DTLS records included. nil removes it.
func SetSniffer(fn SniffFunc) {
	sniffer.Store(sniffHook{fn: fn})
	if fn == nil {
		dtls.SetSniffPacketsCallback(nil)
		return
	}
	dtls.SetSniffPacketsCallback(func(_ string, op string, from string, to string, data []byte) {
		sniffPacket("dtls", op, from, to, data)
	})
}

func sniffPacket(transport string, op string, from string, to string, data []byte) {
	hook := sniffer.Load().(sniffHook)
	if hook.fn == nil {
		return
	}
	hook.fn(Packet{
		Transport: transport,
		Op:        op,
		From:      from,
		To:        to,
		Data:      append([]byte(nil), data...),
	})
}
