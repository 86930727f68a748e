// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"

	"github.com/qwerty-iot/dtls/v2"
	"go.uber.org/atomic"
)

// DtlsTransport exchanges datagrams with one peer of a DTLS listener. The
// listener and the peer session are set up by the application.
type DtlsTransport struct {
	name     string
	socket   *dtls.Listener
	addr     string
	shutdown atomic.Bool
}

func NewDtlsTransport(name string, listener *dtls.Listener, addr string) *DtlsTransport {
	return &DtlsTransport{name: name, socket: listener, addr: addr}
}

// Listen starts the reader goroutine feeding r. Datagrams from other peers
// of the listener are dropped.
func (t *DtlsTransport) Listen(r Receiver) {
	go t.reader(r)
}

func (t *DtlsTransport) reader(r Receiver) {
	for {
		rawReq, peer := t.socket.Read()
		if t.shutdown.Load() {
			logDebug(nil, nil, "coap: port is shutdown")
			return
		}
		if peer == nil || peer.RemoteAddr() != t.addr {
			continue
		}
		logDebug(nil, nil, "coap: dtls datagram from %s (identity %s)", peer.RemoteAddr(), peer.SessionIdentityString())
		r.Deliver(rawReq)
	}
}

func (t *DtlsTransport) FindPeer() *dtls.Peer {
	if t == nil {
		return nil
	}
	peer, _ := t.socket.FindPeer(t.addr)
	return peer
}

func (t *DtlsTransport) Send(data []byte) error {
	peer := t.FindPeer()
	if peer == nil {
		return fmt.Errorf("coap: no dtls session with %s", t.addr)
	}
	return peer.Write(data)
}

func (t *DtlsTransport) Close() error {
	t.shutdown.Store(true)
	return t.socket.Shutdown()
}
