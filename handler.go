// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"bytes"
	"errors"
	"strings"
)

// HandleDatagram processes one datagram received from the peer. Datagrams
// that match no pending exchange or handler are dropped without error; an
// error is returned only for datagrams that cannot be decoded.
func (c *Channel) HandleDatagram(data []byte) error {
	c.stats.DatagramsReceived.Inc()
	if !c.isActive() {
		c.stats.DatagramsDropped.Inc()
		logDebug(nil, nil, "coap: datagram dropped, channel is %s", c.state)
		return nil
	}
	w, err := decodeMessage(data)
	if err != nil {
		c.stats.DatagramsDropped.Inc()
		logWarn(nil, err, "coap: error parsing COAP header")
		return err
	}

	switch w.Type {
	case TypeConfirmable:
		entry, fresh := c.dedup.deduplicate(w.MessageID, c.now())
		if !fresh {
			c.stats.Duplicates.Inc()
			if !entry.pending {
				logDebug(nil, nil, "coap: duplicate message %d, repeating reply", w.MessageID)
				return c.transmit(entry.reply)
			}
			logDebug(nil, nil, "coap: duplicate message %d dropped", w.MessageID)
			return nil
		}
		switch {
		case w.isEmpty():
			// ping
			return c.sendReply(TypeReset, w.MessageID, CodeEmpty, nil, nil)
		case w.isRequest():
			c.handleRequest(w)
		case w.isResponse():
			c.handleResponse(w)
		default:
			c.drop(w, "unexpected code")
		}
	case TypeNonConfirmable:
		switch {
		case w.isRequest():
			c.handleRequest(w)
		case w.isResponse():
			c.handleResponse(w)
		default:
			c.drop(w, "unexpected code")
		}
	case TypeAcknowledgement:
		c.handleAck(w)
	case TypeReset:
		c.handleRst(w)
	}
	return nil
}

func (c *Channel) drop(w *wireMessage, reason string) {
	c.stats.DatagramsDropped.Inc()
	logDebug(nil, nil, "coap: dropped %s %s message %d: %s", w.Type, w.Code.NumberString(), w.MessageID, reason)
}

// rejectRequest answers a confirmable request the channel cannot take.
func (c *Channel) rejectRequest(w *wireMessage, code COAPCode, err error) {
	logWarn(nil, err, "coap: rejected request %d with %s", w.MessageID, code.NumberString())
	if w.Type != TypeConfirmable {
		return
	}
	if serr := c.sendReply(TypeAcknowledgement, w.MessageID, code, w.Token, nil); serr != nil {
		logWarn(nil, serr, "coap: failed to send rejection")
	}
}

func requestURI(opts options) string {
	return "/" + strings.Join(opts.strings(OptURIPath), "/")
}

func (c *Channel) handleRequest(w *wireMessage) {
	c.stats.RequestsReceived.Inc()
	if !w.Code.IsMethod() {
		c.drop(w, "unsupported method")
		return
	}
	if err := w.Options.validate(); err != nil {
		c.rejectRequest(w, RspCodeBadOption, err)
		return
	}
	uri := requestURI(w.Options)
	block1, hasBlock1, err := messageBlock(w.Options, OptBlock1)
	if err != nil {
		code := RspCodeBadOption
		if errors.Is(err, ErrNotSupported) {
			code = RspCodeRequestEntityTooLarge
		}
		c.rejectRequest(w, code, err)
		return
	}
	if hasBlock1 && block1.Num > 0 {
		c.handleRequestBlock(w, uri, block1)
		return
	}

	handler := c.routes.match(w.Code, uri)
	if handler == nil {
		c.drop(w, "no handler for "+uri)
		return
	}

	id := c.nextID()
	m := &Message{
		id:        id,
		requestID: id,
		sessionID: c.sessID,
		kind:      kindInboundRequest,
		state:     stateNew,
		uri:       uri,
		method:    w.Code,
		token:     append([]byte(nil), w.Token...),
		coapID:    w.MessageID,
		opts:      w.Options,
		block:     w.Payload,
	}
	if hasBlock1 {
		m.blockwise = true
		m.hasMore = block1.More
	}
	if !c.acknowledgeBlock(m, w.Type) {
		return
	}
	c.park(m, stateRead, &c.recvReqs)

	if err := handler(m, uri, m.method, id); err != nil {
		logWarn(m, err, "coap: request handler failed")
		c.DestroyMessage(m)
	}
}

// acknowledgeBlock sends the empty ACK of a confirmable request block unless
// more blocks follow, in which case the ACK waits until the block is drained.
func (c *Channel) acknowledgeBlock(m *Message, typ COAPType) bool {
	if typ != TypeConfirmable {
		return true
	}
	if m.hasMore {
		m.pendingAck = true
		return true
	}
	if err := c.sendReply(TypeAcknowledgement, m.coapID, CodeEmpty, nil, nil); err != nil {
		logWarn(m, err, "coap: failed to acknowledge request")
		return false
	}
	return true
}

// handleRequestBlock feeds a Block1 continuation to the request waiting for it.
func (c *Channel) handleRequestBlock(w *wireMessage, uri string, block1 *BlockMetadata) {
	m := c.blockMsgs.find(func(m *Message) bool {
		return m.kind == kindInboundRequest && m.method == w.Code && m.uri == uri && m.blockIndex+1 == block1.Num
	})
	if m == nil {
		c.drop(w, "unexpected request block")
		return
	}
	m.blockIndex = block1.Num
	m.hasMore = block1.More
	m.block = w.Payload
	m.pos = 0
	m.coapID = w.MessageID
	m.token = append([]byte(nil), w.Token...)
	if !c.acknowledgeBlock(m, w.Type) {
		return
	}
	c.park(m, stateRead, &c.recvReqs)

	cb := m.onBlock
	m.onBlock = nil
	if cb != nil {
		if err := cb(m); err != nil {
			logWarn(m, err, "coap: block handler failed")
		}
	}
}

// handleResponse matches a response to a pending request by token.
func (c *Channel) handleResponse(w *wireMessage) {
	req := c.sentReqs.find(func(m *Message) bool {
		return bytes.Equal(m.token, w.Token)
	})
	if req == nil {
		c.drop(w, "no pending request for token")
		return
	}
	if w.Type == TypeConfirmable {
		if err := c.sendReply(TypeAcknowledgement, w.MessageID, CodeEmpty, nil, nil); err != nil {
			logWarn(req, err, "coap: failed to acknowledge response")
			return
		}
	}
	c.stats.ResponsesReceived.Inc()

	if req.kind == kindRequest && req.blockwise && req.hasMore {
		c.handleBlockAck(req, w)
		return
	}
	if req.kind == kindBlockRequest {
		c.handleBlockResponse(req, w)
		return
	}

	resp := &Message{
		id:          c.nextID(),
		requestID:   req.requestID,
		sessionID:   c.sessID,
		kind:        kindInboundResponse,
		state:       stateNew,
		uri:         req.uri,
		method:      req.method,
		status:      w.Code,
		token:       req.token,
		coapID:      w.MessageID,
		opts:        w.Options,
		requestOpts: req.opts,
		block:       w.Payload,
	}
	block2, hasBlock2, err := messageBlock(w.Options, OptBlock2)
	if err == nil && hasBlock2 && block2.Num != 0 {
		err = ErrBlockMismatch
	}
	if err != nil {
		c.failExchange(req, err)
		return
	}
	if hasBlock2 {
		resp.blockwise = true
		resp.hasMore = block2.More
		if etag := w.Options.find(OptETag); etag != nil {
			resp.etag = etag.value
		}
	}

	cb := req.onResponse
	c.retire(req)
	c.park(resp, stateRead, nil)
	if cb == nil {
		resp.setState(stateDone)
		return
	}
	if err := cb(resp, resp.status, resp.requestID); err != nil {
		logWarn(resp, err, "coap: response handler failed")
	}
}

// handleBlockResponse delivers the next Block2 of a response being read.
func (c *Channel) handleBlockResponse(br *Message, w *wireMessage) {
	resp := br.blockResponse
	c.retire(br)
	if resp == nil || resp.state != stateWaitBlock {
		return
	}
	resp.blockRequest = nil

	block2, hasBlock2, err := messageBlock(w.Options, OptBlock2)
	switch {
	case err != nil:
	case !w.Code.IsSuccess():
		err = RspCodeToError(w.Code)
	case !hasBlock2 || block2.Num != resp.blockIndex+1:
		err = ErrBlockMismatch
	default:
		if etag := w.Options.find(OptETag); len(resp.etag) != 0 && (etag == nil || !bytes.Equal(etag.value, resp.etag)) {
			err = ErrBlockMismatch
		}
	}
	if err != nil {
		c.failExchange(resp, err)
		return
	}

	resp.blockIndex = block2.Num
	resp.hasMore = block2.More
	resp.block = w.Payload
	resp.pos = 0
	c.park(resp, stateRead, nil)

	cb := resp.onBlock
	resp.onBlock = nil
	if cb != nil {
		if err := cb(resp); err != nil {
			logWarn(resp, err, "coap: block handler failed")
		}
	}
}
