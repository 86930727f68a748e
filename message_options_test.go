// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeInt(t *testing.T) {
	assert.Nil(t, encodeInt(0))
	assert.Equal(t, []byte{0x01}, encodeInt(1))
	assert.Equal(t, []byte{0x01, 0x00}, encodeInt(256))
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, encodeInt(^uint64(0)))

	for _, v := range []uint64{0, 1, 255, 256, 65535, 1 << 40} {
		assert.Equal(t, v, decodeInt(encodeInt(v)))
	}
}

func TestOptionValues(t *testing.T) {
	opt := Option{id: OptContentFormat, value: encodeInt(uint64(AppCBOR))}
	assert.Equal(t, OptContentFormat, opt.Number())
	v, err := opt.Uint()
	require.NoError(t, err)
	assert.Equal(t, uint32(AppCBOR), v)

	wide := Option{id: 2048, value: encodeInt(1 << 40)}
	_, err = wide.Uint()
	assert.ErrorIs(t, err, ErrInvalidOptionType)
	v64, err := wide.Uint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), v64)

	str := Option{id: OptURIPath, value: []byte("temp")}
	assert.Equal(t, "temp", str.String())
	assert.Equal(t, []byte("temp"), str.Opaque())
}

func TestValidateOption(t *testing.T) {
	assert.NoError(t, validateOption(OptURIPath, []byte("x")))
	assert.NoError(t, validateOption(OptContentFormat, nil))
	assert.NoError(t, validateOption(65000, make([]byte, 300)))
	assert.ErrorIs(t, validateOption(OptURIPath, make([]byte, 256)), ErrOptionTooLong)
	assert.ErrorIs(t, validateOption(OptBlock1, []byte{0x06}), ErrInvalidArgument)
	assert.ErrorIs(t, validateOption(OptBlock2, []byte{0x06}), ErrInvalidArgument)
}

func TestOptionsSortedKeepsRepeatOrder(t *testing.T) {
	opts := options{
		{id: OptContentFormat, value: []byte{1}},
		{id: OptURIPath, value: []byte("a")},
		{id: OptURIQuery, value: []byte("q")},
		{id: OptURIPath, value: []byte("b")},
	}
	sorted := opts.sorted()
	assert.Equal(t, []string{"a", "b"}, sorted.strings(OptURIPath))
	assert.Equal(t, OptURIPath, sorted[0].id)
	assert.Equal(t, OptContentFormat, sorted[2].id)
	assert.Equal(t, OptContentFormat, opts[0].id, "sorted must not reorder the receiver")

	assert.Nil(t, opts.find(OptAccept))
}

func TestMessageOptionAPI(t *testing.T) {
	ch, p := newTestChannel(t)

	msg, _, err := ch.BeginRequest("/E/temp", CodePost, 0, 0)
	require.NoError(t, err)
	require.NoError(t, msg.AddStringOption(OptURIQuery, "unit=c"))
	require.NoError(t, msg.AddStringOption(OptURIQuery, "precise"))
	require.NoError(t, msg.AddUintOption(OptAccept, uint32(AppJSON)))
	require.NoError(t, msg.AddUint64Option(OptSize1, 2500))
	require.NoError(t, msg.AddOpaqueOption(OptETag, []byte{1, 2}))
	require.NoError(t, msg.AddEmptyOption(OptIfNoneMatch))
	assert.ErrorIs(t, msg.AddOpaqueOption(OptBlock1, []byte{0x06}), ErrInvalidArgument)

	assert.Equal(t, "/E/temp", msg.URI())
	assert.Equal(t, CodePost, msg.Method())
	assert.Equal(t, AppJSON, msg.Accept())
	assert.Equal(t, map[string]string{"unit": "c", "precise": ""}, msg.ParseQuery())

	first := msg.NextOption(nil)
	require.NotNil(t, first)
	assert.Equal(t, OptURIQuery, first.Number())
	second := msg.NextOption(first)
	require.NotNil(t, second)
	assert.Equal(t, "precise", second.String())

	require.NoError(t, ch.EndRequest(msg, nil, nil, nil))
	assert.ErrorIs(t, msg.AddStringOption(OptURIQuery, "late"), ErrInvalidState)

	w := p.last()
	assert.Equal(t, []string{"E", "temp"}, w.Options.strings(OptURIPath))
	assert.Equal(t, []string{"unit=c", "precise"}, w.Options.strings(OptURIQuery))
	assert.Equal(t, []byte{1, 2}, w.Options.find(OptETag).Opaque())
	assert.NotNil(t, w.Options.find(OptIfNoneMatch))
}

func TestInboundMessageAccessors(t *testing.T) {
	ch, p := newTestChannel(t)

	var got *Message
	require.NoError(t, ch.AddRequestHandler("E", CodePost, func(m *Message, uri string, method COAPCode, reqID int) error {
		got = m
		return nil
	}))
	p.request(TypeConfirmable, CodePost, []string{"E", "temp"}, options{
		{id: OptContentFormat, value: encodeInt(uint64(AppCBOR))},
		{id: OptURIQuery, value: []byte("a=1")},
		{id: OptURIQuery, value: []byte("b=2")},
	}, []byte{0xa0})
	require.NotNil(t, got)

	assert.Equal(t, "/E/temp", got.URI())
	assert.Equal(t, []string{"E", "temp"}, got.Path())
	assert.Equal(t, "E/temp", got.PathString())
	assert.Equal(t, AppCBOR, got.ContentFormat())
	assert.Equal(t, []byte("peertokn"), got.Token())
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got.ParseQuery())
	assert.Equal(t, "a=1&b=2", got.QueryString())
	assert.NotNil(t, got.Option(OptContentFormat))
	assert.Nil(t, got.Option(OptAccept))
	assert.ErrorIs(t, got.AddStringOption(OptURIQuery, "x"), ErrInvalidArgument)

	buf := make([]byte, 4)
	n, err := ch.PeekPayload(got, buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _, err = ch.ReadPayload(got, buf, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, _, err = ch.ReadPayload(got, buf, nil, nil)
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestCodecRejectsLongToken(t *testing.T) {
	_, err := decodeMessage([]byte{0x49, 0x01, 0x00, 0x01, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	assert.Error(t, err)

	_, err = decodeMessage([]byte{0x40})
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestDecodeKeepsIllegalOptionLength(t *testing.T) {
	data, err := encodeMessage(&wireMessage{
		Type:      TypeConfirmable,
		Code:      CodePost,
		MessageID: 7,
		Token:     []byte{1, 2},
		Options: options{
			{id: OptURIPath, value: []byte("E")},
			{id: OptContentFormat, value: []byte{1, 2, 3, 4, 5}},
		},
		Payload: []byte("x"),
	})
	require.NoError(t, err)

	w, err := decodeMessage(data)
	require.NoError(t, err)
	cf := w.Options.find(OptContentFormat)
	require.NotNil(t, cf)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, cf.value)
	assert.Equal(t, []byte("x"), w.Payload)
	assert.ErrorIs(t, w.Options.validate(), ErrOptionTooLong)
}
