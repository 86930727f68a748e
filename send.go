// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"time"
)

// BeginRequest creates an outbound request. A zero timeout selects
// Config.RequestTimeout. The returned request id is never 0.
func (c *Channel) BeginRequest(uri string, method COAPCode, timeout time.Duration, flags Flags) (*Message, int, error) {
	if len(splitPath(uri)) == 0 || !method.IsMethod() || flags != 0 || timeout < 0 {
		return nil, 0, ErrInvalidArgument
	}
	if !c.isActive() {
		return nil, 0, ErrConnectionClosed
	}
	if timeout == 0 {
		timeout = c.conf.RequestTimeout
	}
	id := c.nextID()
	m := &Message{
		id:        id,
		requestID: id,
		sessionID: c.sessID,
		kind:      kindRequest,
		state:     stateNew,
		uri:       uri,
		method:    method,
		token:     newToken(),
		timeout:   timeout,
	}
	return m, id, nil
}

// EndRequest sends the request, or its final block. The handle must not
// be used afterwards; the outcome arrives through the callbacks.
func (c *Channel) EndRequest(m *Message, onResponse ResponseCallback, onAck AckCallback, onError ErrorCallback) error {
	if m == nil || m.kind != kindRequest || len(splitPath(m.uri)) == 0 {
		return ErrInvalidArgument
	}
	if err := c.checkMessage(m); err != nil {
		return err
	}
	if m.state != stateNew && m.state != stateWrite {
		return ErrInvalidState
	}
	m.hasMore = false
	m.onResponse, m.onAck, m.onError = onResponse, onAck, onError
	m.timeSent = c.now()
	if err := c.sendMessage(m); err != nil {
		m.clearCallbacks()
		return err
	}
	c.stats.RequestsSent.Inc()
	return nil
}

// BeginResponse creates the response to the inbound request reqID.
func (c *Channel) BeginResponse(status COAPCode, reqID int, flags Flags) (*Message, error) {
	if !status.IsResponse() || flags != 0 {
		return nil, ErrInvalidArgument
	}
	if !c.isActive() {
		return nil, ErrConnectionClosed
	}
	match := func(m *Message) bool {
		return m.kind == kindInboundRequest && m.id == reqID
	}
	req := c.recvReqs.find(match)
	if req == nil {
		req = c.blockMsgs.find(match)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	m := &Message{
		id:        c.nextID(),
		requestID: req.id,
		sessionID: c.sessID,
		kind:      kindResponse,
		state:     stateNew,
		uri:       req.uri,
		method:    req.method,
		status:    status,
		token:     req.token,
	}
	return m, nil
}

// EndResponse sends the response as a separate confirmable message.
func (c *Channel) EndResponse(m *Message, onAck AckCallback, onError ErrorCallback) error {
	if m == nil || m.kind != kindResponse {
		return ErrInvalidArgument
	}
	if err := c.checkMessage(m); err != nil {
		return err
	}
	if m.state != stateNew && m.state != stateWrite {
		return ErrInvalidState
	}
	m.onAck, m.onError = onAck, onError
	if err := c.sendMessage(m); err != nil {
		m.clearCallbacks()
		return err
	}
	c.stats.ResponsesSent.Inc()
	return nil
}

// WritePayload appends data to an outbound message and returns the number
// of bytes taken. When a request overflows the current block and onBlock is
// set, the block is sent and ResultWaitBlock is returned; onBlock fires once
// the peer accepted it, and the rest of data must be written from there.
// Responses are limited to a single block.
func (c *Channel) WritePayload(m *Message, data []byte, onBlock BlockCallback, onError ErrorCallback) (int, Result, error) {
	if m == nil || !m.isOutbound() {
		return 0, ResultOK, ErrInvalidArgument
	}
	if err := c.checkMessage(m); err != nil {
		return 0, ResultOK, err
	}
	if m.state != stateNew && m.state != stateWrite {
		return 0, ResultOK, ErrInvalidState
	}
	if len(data) == 0 {
		return 0, ResultOK, nil
	}
	if err := c.acquireBuffer(m); err != nil {
		return 0, ResultOK, err
	}

	n := len(data)
	sendBlock := false
	if free := BlockSize - m.written; n > free {
		if m.kind != kindRequest || onBlock == nil {
			if m.written == 0 {
				c.releaseBuffer()
			}
			return 0, ResultOK, ErrTooLarge
		}
		if c.blockTransferInProgress(m) {
			if m.written == 0 {
				c.releaseBuffer()
			}
			return 0, ResultOK, fmt.Errorf("%w: blockwise transfer to %s already in progress", ErrNotSupported, m.uri)
		}
		n = free
		sendBlock = true
	}

	m.payloadStarted = true
	if m.state == stateNew {
		m.setState(stateWrite)
	}
	copy(c.buf[m.written:], data[:n])
	m.written += n
	m.onError = onError

	if !sendBlock {
		return n, ResultOK, nil
	}
	m.blockwise = true
	m.hasMore = true
	m.onBlock = onBlock
	if err := c.sendMessage(m); err != nil {
		m.clearCallbacks()
		return 0, ResultOK, err
	}
	logDebug(m, nil, "coap: sent block %d", m.blockIndex)
	return n, ResultWaitBlock, nil
}

// blockTransferInProgress reports whether another blockwise request to the
// same URI is pending.
func (c *Channel) blockTransferInProgress(m *Message) bool {
	if m.blockwise {
		return false
	}
	match := func(o *Message) bool {
		return o != m && o.kind == kindRequest && o.blockwise && o.uri == m.uri
	}
	return c.blockMsgs.find(match) != nil || c.unackMsgs.find(match) != nil || c.sentReqs.find(match) != nil
}

// sendMessage sends m as a confirmable message carrying the payload held in
// the shared buffer, and parks it until acknowledged.
func (c *Channel) sendMessage(m *Message) error {
	c.unlink(m)

	var payload []byte
	if c.curMsgID == m.id {
		payload = c.buf[:m.written]
	}
	w := &wireMessage{
		Type:      TypeConfirmable,
		MessageID: c.nextMessageID(),
		Token:     m.token,
		Payload:   payload,
	}
	switch m.kind {
	case kindRequest, kindBlockRequest:
		w.Code = m.method
		w.Options = c.requestOptions(m)
	default:
		w.Code = m.status
		w.Options = m.opts
	}
	data, err := encodeMessage(w)
	if c.curMsgID == m.id {
		c.releaseBuffer()
		m.written = 0
	}
	if err != nil {
		return err
	}
	if err := c.transmit(data); err != nil {
		return err
	}

	m.coapID = w.MessageID
	m.datagram = data
	m.retransmits = 0
	m.ackTimeout = c.conf.Send.initialTimeout()
	m.nextRetransmit = c.now().Add(m.ackTimeout)
	c.park(m, stateWaitAck, &c.unackMsgs)
	return nil
}

func (c *Channel) requestOptions(m *Message) options {
	opts := make(options, 0, len(m.opts)+4)
	for _, part := range splitPath(m.uri) {
		opts = append(opts, Option{id: OptURIPath, value: []byte(part)})
	}
	if m.kind == kindBlockRequest {
		parent := m.blockResponse
		opts = append(opts, parent.requestOpts...)
		if len(parent.etag) != 0 {
			opts = append(opts, Option{id: OptETag, value: parent.etag})
		}
		opts = append(opts, Option{id: OptBlock2, value: blockInit(m.blockIndex, false, BlockSize).Encode()})
		return opts
	}
	opts = append(opts, m.opts...)
	if m.blockwise {
		opts = append(opts, Option{id: OptBlock1, value: blockInit(m.blockIndex, m.hasMore, BlockSize).Encode()})
	}
	return opts
}
