// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultChannel(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(nil)
	_, _, err := BeginRequest("E", CodePost, 0, 0)
	assert.ErrorIs(t, err, ErrConnectionClosed)
	assert.ErrorIs(t, AddRequestHandler("E", CodePost, func(*Message, string, COAPCode, int) error { return nil }), ErrInvalidState)
	_, err = AddConnectionHandler(func(error, ConnectionStatus) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidState)
	DestroyMessage(nil)
	CancelRequest(1)

	ch, p := newTestChannel(t)
	SetDefault(ch)
	assert.Same(t, ch, Default())

	msg, _, err := BeginRequest("E", CodePost, 0, 0)
	require.NoError(t, err)
	_, _, err = WritePayload(msg, []byte("hi"), nil, nil)
	require.NoError(t, err)

	acked := false
	require.NoError(t, EndRequest(msg, nil, func(int) error {
		acked = true
		return nil
	}, nil))
	p.ack(p.last(), CodeEmpty, nil, nil)
	assert.True(t, acked)
	assert.Equal(t, "hi", string(p.msg(0).Payload))
}
