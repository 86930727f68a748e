// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cloud

import (
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
	coap "github.com/qwerty-iot/cloudcoap"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testPeer is the remote end of a channel, speaking raw CoAP.
type testPeer struct {
	t      *testing.T
	ch     *coap.Channel
	sent   [][]byte
	nextID uint16
}

func newTestCloud(t *testing.T, opts ...Option) (*Cloud, *testPeer) {
	p := &testPeer{t: t, nextID: 0x2000}
	p.ch = coap.NewChannel(coap.FuncTransport(p.send), nil)
	p.ch.Open()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	return New(p.ch, opts...), p
}

func (p *testPeer) send(data []byte) error {
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func (p *testPeer) count() int {
	return len(p.sent)
}

func (p *testPeer) msg(i int) *message.Message {
	require.Greater(p.t, len(p.sent), i)
	m := message.Message{Options: make(message.Options, 0, 16)}
	_, err := coder.DefaultCoder.Decode(p.sent[i], &m)
	require.NoError(p.t, err)
	return &m
}

func (p *testPeer) last() *message.Message {
	return p.msg(len(p.sent) - 1)
}

func (p *testPeer) deliver(m message.Message) {
	size, err := coder.DefaultCoder.Size(m)
	require.NoError(p.t, err)
	buf := make([]byte, size)
	n, err := coder.DefaultCoder.Encode(m, buf)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ch.HandleDatagram(buf[:n]))
}

// ack acknowledges m, piggybacking a response unless code is empty.
func (p *testPeer) ack(m *message.Message, code codes.Code) {
	var token message.Token
	if code != codes.Empty {
		token = m.Token
	}
	p.deliver(message.Message{Type: message.Acknowledgement, Code: code, MessageID: m.MessageID, Token: token})
}

// postEvent sends a confirmable POST to /E/name and returns it.
func (p *testPeer) postEvent(name string, opts message.Options, payload []byte) *message.Message {
	p.nextID++
	all := message.Options{
		{ID: message.URIPath, Value: []byte("E")},
		{ID: message.URIPath, Value: []byte(name)},
	}
	all = append(all, opts...)
	m := message.Message{
		Type:      message.Confirmable,
		Code:      codes.POST,
		MessageID: int32(p.nextID),
		Token:     message.Token("subtoken"),
		Options:   all,
		Payload:   payload,
	}
	p.deliver(m)
	return &m
}

func uriPath(m *message.Message) []string {
	var rv []string
	for _, o := range m.Options {
		if o.ID == message.URIPath {
			rv = append(rv, string(o.Value))
		}
	}
	return rv
}

func findOption(m *message.Message, id message.OptionID) []byte {
	for _, o := range m.Options {
		if o.ID == id {
			return o.Value
		}
	}
	return nil
}

// blockOption encodes a Block1/Block2 value for 1024 byte blocks.
func blockOption(id message.OptionID, num int, more bool) message.Option {
	v := uint32(num)<<4 | 6
	if more {
		v |= 0x08
	}
	var value []byte
	for v != 0 {
		value = append([]byte{byte(v)}, value...)
		v >>= 8
	}
	return message.Option{ID: id, Value: value}
}

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 253)
	}
	return data
}
