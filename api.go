// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import "time"

var defaultChannel *Channel

// SetDefault installs the channel used by the package level functions.
func SetDefault(ch *Channel) {
	defaultChannel = ch
}

// Default returns the channel installed with SetDefault.
func Default() *Channel {
	return defaultChannel
}

func BeginRequest(uri string, method COAPCode, timeout time.Duration, flags Flags) (*Message, int, error) {
	if defaultChannel == nil {
		return nil, 0, ErrConnectionClosed
	}
	return defaultChannel.BeginRequest(uri, method, timeout, flags)
}

func EndRequest(msg *Message, onResponse ResponseCallback, onAck AckCallback, onError ErrorCallback) error {
	if defaultChannel == nil {
		return ErrConnectionClosed
	}
	return defaultChannel.EndRequest(msg, onResponse, onAck, onError)
}

func BeginResponse(status COAPCode, reqID int, flags Flags) (*Message, error) {
	if defaultChannel == nil {
		return nil, ErrConnectionClosed
	}
	return defaultChannel.BeginResponse(status, reqID, flags)
}

func EndResponse(msg *Message, onAck AckCallback, onError ErrorCallback) error {
	if defaultChannel == nil {
		return ErrConnectionClosed
	}
	return defaultChannel.EndResponse(msg, onAck, onError)
}

func WritePayload(msg *Message, data []byte, onBlock BlockCallback, onError ErrorCallback) (int, Result, error) {
	if defaultChannel == nil {
		return 0, ResultOK, ErrConnectionClosed
	}
	return defaultChannel.WritePayload(msg, data, onBlock, onError)
}

func ReadPayload(msg *Message, data []byte, onBlock BlockCallback, onError ErrorCallback) (int, Result, error) {
	if defaultChannel == nil {
		return 0, ResultOK, ErrConnectionClosed
	}
	return defaultChannel.ReadPayload(msg, data, onBlock, onError)
}

func PeekPayload(msg *Message, data []byte) (int, error) {
	if defaultChannel == nil {
		return 0, ErrConnectionClosed
	}
	return defaultChannel.PeekPayload(msg, data)
}

func DestroyMessage(msg *Message) {
	if defaultChannel != nil {
		defaultChannel.DestroyMessage(msg)
	}
}

func CancelRequest(reqID int) {
	if defaultChannel != nil {
		defaultChannel.CancelRequest(reqID)
	}
}

func AddRequestHandler(uriPrefix string, method COAPCode, cb RequestCallback) error {
	if defaultChannel == nil {
		return ErrInvalidState
	}
	return defaultChannel.AddRequestHandler(uriPrefix, method, cb)
}

func RemoveRequestHandler(uriPrefix string, method COAPCode) {
	if defaultChannel != nil {
		defaultChannel.RemoveRequestHandler(uriPrefix, method)
	}
}

func AddConnectionHandler(cb ConnectionCallback) (HandlerID, error) {
	if defaultChannel == nil {
		return 0, ErrInvalidState
	}
	return defaultChannel.AddConnectionHandler(cb)
}

func RemoveConnectionHandler(id HandlerID) {
	if defaultChannel != nil {
		defaultChannel.RemoveConnectionHandler(id)
	}
}
