// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testPeer plays the remote endpoint: it records what the channel sends and
// injects datagrams back into it.
type testPeer struct {
	t      *testing.T
	ch     *Channel
	sent   [][]byte
	fail   error
	now    time.Time
	nextID uint16
}

func newTestChannel(t *testing.T) (*Channel, *testPeer) {
	p := &testPeer{t: t, now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), nextID: 0x4000}
	conf := DefaultConfig()
	conf.Clock = func() time.Time { return p.now }
	conf.Send = NewOptions().WithRetry(4, 2*time.Second, 1.0)
	p.ch = NewChannel(FuncTransport(p.send), conf)
	p.ch.Open()
	require.Equal(t, StateOpen, p.ch.State())
	return p.ch, p
}

func (p *testPeer) send(data []byte) error {
	if p.fail != nil {
		return p.fail
	}
	p.sent = append(p.sent, append([]byte(nil), data...))
	return nil
}

func (p *testPeer) count() int {
	return len(p.sent)
}

func (p *testPeer) msg(i int) *wireMessage {
	require.Greater(p.t, len(p.sent), i)
	w, err := decodeMessage(p.sent[i])
	require.NoError(p.t, err)
	return w
}

func (p *testPeer) last() *wireMessage {
	require.NotEmpty(p.t, p.sent)
	return p.msg(len(p.sent) - 1)
}

func (p *testPeer) advance(d time.Duration) {
	p.now = p.now.Add(d)
}

func (p *testPeer) id() uint16 {
	p.nextID++
	return p.nextID
}

func (p *testPeer) deliver(w *wireMessage) {
	data, err := encodeMessage(w)
	require.NoError(p.t, err)
	require.NoError(p.t, p.ch.HandleDatagram(data))
}

// ack acknowledges w, optionally piggybacking a response.
func (p *testPeer) ack(w *wireMessage, code COAPCode, opts options, payload []byte) {
	var token []byte
	if code != CodeEmpty {
		token = w.Token
	}
	p.deliver(&wireMessage{Type: TypeAcknowledgement, Code: code, MessageID: w.MessageID, Token: token, Options: opts, Payload: payload})
}

// request sends a request from the peer and returns it.
func (p *testPeer) request(typ COAPType, method COAPCode, path []string, opts options, payload []byte) *wireMessage {
	all := options{}
	for _, part := range path {
		all = append(all, Option{id: OptURIPath, value: []byte(part)})
	}
	all = append(all, opts...)
	w := &wireMessage{Type: typ, Code: method, MessageID: p.id(), Token: []byte("peertokn"), Options: all, Payload: payload}
	p.deliver(w)
	return w
}

func blockOpt(id OptionID, num int, more bool) Option {
	return Option{id: id, value: blockInit(num, more, BlockSize).Encode()}
}

func testPayload(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
