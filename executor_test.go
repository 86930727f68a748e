// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorCallAndStop(t *testing.T) {
	ch := NewChannel(FuncTransport(func([]byte) error { return nil }), nil)
	e := NewExecutor(ch, 10*time.Millisecond)
	assert.Same(t, ch, e.Channel())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Serve(ctx) }()

	require.NoError(t, e.Call(ctx, ch.Open))
	var state ChannelState
	require.NoError(t, e.Call(ctx, func() { state = ch.State() }))
	assert.Equal(t, StateOpen, state)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, e.Post(func() {}), ErrExecutorStopped)
	assert.ErrorIs(t, e.Call(context.Background(), func() {}), ErrExecutorStopped)
}

func TestExecutorCallContext(t *testing.T) {
	ch := NewChannel(FuncTransport(func([]byte) error { return nil }), nil)
	e := NewExecutor(ch, 0)

	// nothing serves the queue
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Call(ctx, func() {}), context.DeadlineExceeded)
}

func TestExecutorReceiver(t *testing.T) {
	sent := make(chan []byte, 8)
	tr := NewProxyTransport("test", func(data []byte) error {
		sent <- data
		return nil
	})
	ch := NewChannel(tr, nil)
	e := NewExecutor(ch, 0)
	tr.Listen(e)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Serve(ctx)
	require.NoError(t, e.Call(ctx, ch.Open))

	ping, err := encodeMessage(&wireMessage{Type: TypeConfirmable, Code: CodeEmpty, MessageID: 99})
	require.NoError(t, err)
	require.NoError(t, tr.ProxySend(ping))
	select {
	case data := <-sent:
		w, err := decodeMessage(data)
		require.NoError(t, err)
		assert.Equal(t, TypeReset, w.Type)
		assert.Equal(t, uint16(99), w.MessageID)
	case <-time.After(5 * time.Second):
		t.Fatal("ping not answered")
	}

	var closeErr error
	require.NoError(t, e.Call(ctx, func() {
		_, err = ch.AddConnectionHandler(func(err error, status ConnectionStatus) error {
			closeErr = err
			return nil
		})
	}))
	require.NoError(t, err)

	e.Fail(errors.New("link down"))
	require.Eventually(t, func() bool {
		return ch.Stats().State() == StateClosed
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, e.Call(ctx, func() {
		assert.ErrorIs(t, closeErr, ErrTransport)
	}))
}

func TestProxyTransportNotListening(t *testing.T) {
	tr := NewProxyTransport("idle", nil)
	assert.Error(t, tr.ProxySend([]byte{1}))
	assert.Error(t, tr.Send([]byte{1}))
}
