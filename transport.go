// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// Transport carries whole datagrams to the peer. Send is called from the
// channel's execution context and must not call back into the channel.
type Transport interface {
	Send(data []byte) error
}

// Receiver accepts what a transport reads from the peer. Implementations
// must be safe to call from the transport's reader goroutine.
type Receiver interface {
	// Deliver hands over one inbound datagram; the receiver owns data.
	Deliver(data []byte)
	// Fail reports that the link is gone.
	Fail(err error)
}
