// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// ReadPayload copies payload of an inbound message into data. When the
// current block is drained and the peer has more, the next block is
// requested and ResultWaitBlock returned; onBlock fires once it arrived.
// ErrEndOfStream is returned after the final block was drained.
func (c *Channel) ReadPayload(m *Message, data []byte, onBlock BlockCallback, onError ErrorCallback) (int, Result, error) {
	if m == nil || !m.isInbound() {
		return 0, ResultOK, ErrInvalidArgument
	}
	if err := c.checkMessage(m); err != nil {
		return 0, ResultOK, err
	}
	if m.state != stateRead {
		return 0, ResultOK, ErrInvalidState
	}
	if m.pos == len(m.block) && !m.hasMore {
		return 0, ResultOK, ErrEndOfStream
	}
	if len(data) == 0 {
		return 0, ResultOK, nil
	}

	n := copy(data, m.block[m.pos:])
	m.pos += n
	if m.pos < len(m.block) || !m.hasMore {
		return n, ResultOK, nil
	}

	if onBlock == nil {
		logWarn(m, nil, "coap: incomplete read of blockwise message")
		return n, ResultOK, nil
	}
	m.onBlock, m.onError = onBlock, onError
	if err := c.requestNextBlock(m); err != nil {
		return n, ResultOK, err
	}
	return n, ResultWaitBlock, nil
}

// PeekPayload copies payload without consuming it.
func (c *Channel) PeekPayload(m *Message, data []byte) (int, error) {
	if m == nil || !m.isInbound() {
		return 0, ErrInvalidArgument
	}
	if err := c.checkMessage(m); err != nil {
		return 0, err
	}
	if m.state != stateRead {
		return 0, ErrInvalidState
	}
	if m.pos == len(m.block) && !m.hasMore && len(data) != 0 {
		return 0, ErrEndOfStream
	}
	return copy(data, m.block[m.pos:]), nil
}

// requestNextBlock asks the peer for the block after the drained one and
// parks m until it arrives.
func (c *Channel) requestNextBlock(m *Message) error {
	switch m.kind {
	case kindInboundRequest:
		// acknowledging the drained block lets the peer send the next one
		if m.pendingAck {
			opts := options{{id: OptBlock1, value: blockInit(m.blockIndex, true, BlockSize).Encode()}}
			m.pendingAck = false
			if err := c.sendReply(TypeAcknowledgement, m.coapID, RspCodeContinue, m.token, opts); err != nil {
				return err
			}
		}
	case kindInboundResponse:
		br := &Message{
			id:            c.nextID(),
			requestID:     m.requestID,
			sessionID:     m.sessionID,
			kind:          kindBlockRequest,
			state:         stateNew,
			uri:           m.uri,
			method:        m.method,
			token:         newToken(),
			timeout:       c.conf.RequestTimeout,
			blockIndex:    m.blockIndex + 1,
			blockResponse: m,
		}
		br.timeSent = c.now()
		if err := c.sendMessage(br); err != nil {
			return err
		}
		m.blockRequest = br
	}
	c.park(m, stateWaitBlock, &c.blockMsgs)
	return nil
}
