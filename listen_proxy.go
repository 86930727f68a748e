// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
)

// ProxyTransport hands datagrams to application code that carries them over
// a link of its own. Inbound datagrams come back through ProxySend.
type ProxyTransport struct {
	name     string
	recv     func(data []byte) error
	receiver Receiver
}

func NewProxyTransport(name string, recv func(data []byte) error) *ProxyTransport {
	return &ProxyTransport{name: name, recv: recv}
}

func (t *ProxyTransport) Listen(r Receiver) {
	t.receiver = r
}

// ProxySend delivers a datagram received by the application to the channel.
func (t *ProxyTransport) ProxySend(data []byte) error {
	if t.receiver == nil {
		return errors.New("coap: proxy transport is not listening")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	sniffPacket("proxy", SniffRead, t.name, "", cp)
	t.receiver.Deliver(cp)
	return nil
}

func (t *ProxyTransport) Send(data []byte) error {
	if t.recv == nil {
		return errors.New("coap: no proxy receive callback registered")
	}
	sniffPacket("proxy", SniffWrite, "", t.name, data)
	return t.recv(data)
}

// FuncTransport adapts a function to the Transport interface.
type FuncTransport func(data []byte) error

func (f FuncTransport) Send(data []byte) error {
	return f(data)
}
