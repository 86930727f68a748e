// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
)

// room for the options of one inbound datagram
const maxDecodedOptions = 64

// fixed part of a UDP message header, before the token
const headerLength = 4

// no definitions: every option is kept with its raw value
var rawOptionDefs = map[message.OptionID]message.OptionDef{}

// wireMessage is a decoded datagram. Slices point into the datagram.
type wireMessage struct {
	Type      COAPType
	Code      COAPCode
	MessageID uint16
	Token     []byte
	Options   options
	Payload   []byte
}

func (w *wireMessage) isEmpty() bool {
	return w.Code == CodeEmpty
}

func (w *wireMessage) isRequest() bool {
	return w.Code.Class() == 0 && w.Code != CodeEmpty
}

func (w *wireMessage) isResponse() bool {
	return w.Code.IsResponse()
}

func encodeMessage(w *wireMessage) ([]byte, error) {
	opts := w.Options.sorted()
	m := message.Message{
		Token:     message.Token(w.Token),
		Code:      codes.Code(w.Code),
		MessageID: int32(w.MessageID),
		Type:      message.Type(w.Type),
		Payload:   w.Payload,
		Options:   make(message.Options, 0, len(opts)),
	}
	for _, o := range opts {
		m.Options = append(m.Options, message.Option{ID: message.OptionID(o.id), Value: o.value})
	}
	size, err := coder.DefaultCoder.Size(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	buf := make([]byte, size)
	n, err := coder.DefaultCoder.Encode(m, buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return buf[:n], nil
}

func decodeMessage(data []byte) (*wireMessage, error) {
	m := message.Message{
		Options: make(message.Options, 0, maxDecodedOptions),
	}
	if _, err := coder.DefaultCoder.Decode(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	if len(m.Token) > 8 {
		return nil, ErrInvalidTokenLen
	}
	// the coder skips options with an illegal length; parse them again raw
	// so the channel can refuse them
	m.Options = m.Options[:0]
	if _, err := m.Options.Unmarshal(data[headerLength+len(m.Token):], rawOptionDefs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	w := &wireMessage{
		Type:      COAPType(m.Type),
		Code:      COAPCode(m.Code),
		MessageID: uint16(m.MessageID),
		Token:     m.Token,
		Payload:   m.Payload,
		Options:   make(options, 0, len(m.Options)),
	}
	for _, o := range m.Options {
		w.Options = append(w.Options, Option{id: OptionID(o.ID), value: o.Value})
	}
	return w, nil
}
