// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"net"

	"go.uber.org/atomic"
)

// UdpTransport is a connected UDP socket to a single peer.
type UdpTransport struct {
	name   string
	socket *net.UDPConn
	closed atomic.Bool
}

// DialUDP connects to addr. Call Listen to start reading.
func DialUDP(name string, addr string) (*UdpTransport, error) {
	uaddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	socket, err := net.DialUDP("udp", nil, uaddr)
	if err != nil {
		return nil, err
	}
	return &UdpTransport{name: name, socket: socket}, nil
}

// Listen starts the reader goroutine feeding r.
func (t *UdpTransport) Listen(r Receiver) {
	go t.reader(r)
}

func (t *UdpTransport) reader(r Receiver) {
	rawReq := make([]byte, 8192)
	for {
		rawLen, err := t.socket.Read(rawReq)
		if err != nil {
			if t.closed.Load() || errors.Is(err, net.ErrClosed) {
				logDebug(nil, nil, "coap: udp transport %s is shutdown", t.name)
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			logWarn(nil, err, "coap: error reading COAP packet")
			r.Fail(err)
			return
		}
		data := make([]byte, rawLen)
		copy(data, rawReq[:rawLen])
		sniffPacket("udp", SniffRead, t.socket.RemoteAddr().String(), t.socket.LocalAddr().String(), data)
		r.Deliver(data)
	}
}

func (t *UdpTransport) Send(data []byte) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	sniffPacket("udp", SniffWrite, t.socket.LocalAddr().String(), t.socket.RemoteAddr().String(), data)
	_, err := t.socket.Write(data)
	return err
}

func (t *UdpTransport) LocalAddr() net.Addr {
	return t.socket.LocalAddr()
}

func (t *UdpTransport) Close() error {
	t.closed.Store(true)
	return t.socket.Close()
}
