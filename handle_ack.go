// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"time"
)

func (c *Channel) findUnacked(coapID uint16) *Message {
	return c.unackMsgs.find(func(m *Message) bool {
		return m.coapID == coapID
	})
}

// handleAck completes the confirmable transmission the ACK refers to. An
// ACK may carry a piggybacked response.
func (c *Channel) handleAck(w *wireMessage) {
	m := c.findUnacked(w.MessageID)
	if m == nil {
		c.drop(w, "no pending message for ack")
		return
	}
	m.datagram = nil

	switch m.kind {
	case kindRequest:
		if m.blockwise && m.hasMore {
			if w.isEmpty() {
				// 2.31 Continue follows as a separate response
				m.timeSent = c.now()
				c.park(m, stateWaitResponse, &c.sentReqs)
				return
			}
			c.handleBlockAck(m, w)
			return
		}
		c.park(m, stateWaitResponse, &c.sentReqs)
		cb := m.onAck
		m.onAck = nil
		if cb != nil {
			if err := cb(m.requestID); err != nil {
				logWarn(m, err, "coap: ack handler failed")
			}
		}
		if !w.isEmpty() {
			c.handleResponse(w)
		}
	case kindBlockRequest:
		c.park(m, stateWaitResponse, &c.sentReqs)
		if !w.isEmpty() {
			c.handleResponse(w)
		}
	case kindResponse:
		cb := m.onAck
		c.retire(m)
		if cb != nil {
			if err := cb(m.requestID); err != nil {
				logWarn(m, err, "coap: ack handler failed")
			}
		}
	}
}

// handleBlockAck handles the answer to a non-final Block1 block, piggybacked
// in its ACK or sent separately.
func (c *Channel) handleBlockAck(m *Message, w *wireMessage) {
	if w.Code != RspCodeContinue {
		err := RspCodeToError(w.Code)
		if err == nil {
			err = fmt.Errorf("%w: block %d answered with %s", ErrProtocol, m.blockIndex, w.Code.NumberString())
		}
		c.failExchange(m, err)
		return
	}
	m.blockIndex++
	m.timeSent = time.Time{}
	c.park(m, stateWrite, &c.blockMsgs)

	cb := m.onBlock
	m.onBlock = nil
	if cb != nil {
		if err := cb(m); err != nil {
			logWarn(m, err, "coap: block handler failed")
		}
	}
}

// handleRst fails the exchange whose message the peer rejected.
func (c *Channel) handleRst(w *wireMessage) {
	m := c.findUnacked(w.MessageID)
	if m == nil {
		c.drop(w, "no pending message for reset")
		return
	}
	c.failExchange(m, ErrReset)
}
