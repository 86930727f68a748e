// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// Run performs the channel's timed work: retransmission of unacknowledged
// confirmable messages, request timeouts and expiry of duplicate detection
// state. It must be called periodically from the execution context.
func (c *Channel) Run() {
	if !c.isActive() {
		return
	}
	now := c.now()
	session := c.sessID

	for _, m := range c.unackMsgs.snapshot() {
		if m.state != stateWaitAck || now.Before(m.nextRetransmit) {
			continue
		}
		if m.retransmits >= c.conf.Send.maxRetransmit {
			logDebug(m, nil, "coap: send ack timeout (%d transmits)", m.retransmits+1)
			c.failExchange(m, ErrTimeout)
			continue
		}
		m.retransmits++
		m.ackTimeout *= 2
		m.nextRetransmit = now.Add(m.ackTimeout)
		c.stats.Retransmissions.Inc()
		logDebug(m, nil, "coap: resending message %d (%d/%d, timeout %0.2fs)", m.coapID, m.retransmits, c.conf.Send.maxRetransmit, m.ackTimeout.Seconds())
		if err := c.transmit(m.datagram); err != nil {
			return
		}
		if c.sessID != session || !c.isActive() {
			return
		}
	}

	for _, l := range []*msgList{&c.unackMsgs, &c.sentReqs} {
		for _, m := range l.snapshot() {
			if m.state == stateDone || m.timeout <= 0 || m.timeSent.IsZero() {
				continue
			}
			if m.kind != kindRequest && m.kind != kindBlockRequest {
				continue
			}
			if now.Sub(m.timeSent) >= m.timeout {
				logDebug(m, nil, "coap: request timed out after %0.2fs", now.Sub(m.timeSent).Seconds())
				c.failExchange(m, ErrTimeout)
			}
		}
	}

	c.dedup.expire(now)
}
