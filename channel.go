// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ResponseCallback receives the response to a request. The handler owns msg
// and must destroy it.
type ResponseCallback func(msg *Message, status COAPCode, reqID int) error

// AckCallback fires when the peer acknowledged the (last block of the) message.
type AckCallback func(reqID int) error

// BlockCallback fires when the next block of msg may be written or read.
type BlockCallback func(msg *Message) error

// ErrorCallback fires once when an exchange fails.
type ErrorCallback func(err error, reqID int)

// ConnectionCallback is notified of channel open and close transitions.
type ConnectionCallback func(err error, status ConnectionStatus) error

type HandlerID int

type connectionHandler struct {
	id         HandlerID
	callback   ConnectionCallback
	openFailed bool
}

// Channel is the reliable messaging engine for one peer. It is not safe
// for concurrent use: every method must run on one execution context,
// see Executor.
type Channel struct {
	conf *Config
	tr   Transport

	state  ChannelState
	sessID int

	lastMsgID  int
	nextCoapID uint16

	// shared wire buffer, owned by the message with id curMsgID
	buf      []byte
	curMsgID int

	sentReqs  msgList
	recvReqs  msgList
	blockMsgs msgList
	unackMsgs msgList

	routes        *routeTable
	connHandlers  []*connectionHandler
	lastHandlerID HandlerID

	dedup *dedupCache
	stats Stats

	pendingOpen  bool
	pendingClose error
}

func NewChannel(tr Transport, conf *Config) *Channel {
	c := &Channel{
		conf:   conf.withDefaults(),
		tr:     tr,
		buf:    make([]byte, BlockSize),
		routes: newRouteTable(),
	}
	c.dedup = newDedupCache(c.conf.DeduplicateExpiration)
	c.nextCoapID = uint16(rand.Intn(math.MaxUint16 + 1))
	return c
}

func (c *Channel) State() ChannelState {
	return c.state
}

// Session returns the session counter; it increments on every open.
func (c *Channel) Session() int {
	return c.sessID
}

func (c *Channel) Stats() *Stats {
	return &c.stats
}

func (c *Channel) setState(s ChannelState) {
	logDebug(nil, nil, "coap: channel %s -> %s", c.state, s)
	c.state = s
	c.stats.state.Store(int32(s))
}

func (c *Channel) isActive() bool {
	return c.state == StateOpen || c.state == StateOpening
}

func (c *Channel) now() time.Time {
	return c.conf.Clock()
}

// Open marks the transport as connected and starts a new session. Called
// while the channel is closing, the open happens once the close completes.
func (c *Channel) Open() {
	if c.state != StateClosed {
		if c.state == StateClosing {
			c.pendingOpen = true
		}
		return
	}
	c.pendingClose = nil
	c.setState(StateOpening)
	c.sessID++
	c.stats.session.Store(int64(c.sessID))
	c.fenceStaleSessions()

	for _, h := range c.snapshotConnectionHandlers() {
		if err := h.callback(nil, ConnectionOpen); err != nil {
			logError(nil, err, "coap: connection handler failed to open")
			h.openFailed = true
		}
	}
	c.setState(StateOpen)
	logInfo(nil, nil, "coap: session %d open", c.sessID)

	if c.pendingClose != nil {
		err := c.pendingClose
		c.pendingClose = nil
		c.Close(err)
	}
}

// Close ends the session. Every pending exchange reports err (default
// ErrConnectionClosed) through its error callback; received requests not
// yet answered are dropped silently.
func (c *Channel) Close(err error) {
	if err == nil {
		err = ErrConnectionClosed
	}
	c.pendingOpen = false
	if c.state != StateOpen {
		if c.state == StateOpening {
			c.pendingClose = err
		}
		return
	}
	c.setState(StateClosing)
	logInfo(nil, err, "coap: closing session %d", c.sessID)

	pending := c.sentReqs.drain()
	pending = append(pending, c.unackMsgs.drain()...)
	pending = append(pending, c.blockMsgs.drain()...)
	for _, m := range c.recvReqs.drain() {
		m.clearCallbacks()
	}
	c.releaseBuffer()
	for _, m := range pending {
		c.failExchange(m, err)
	}
	c.dedup.reset()

	for _, h := range c.snapshotConnectionHandlers() {
		if h.openFailed {
			h.openFailed = false
			continue
		}
		if herr := h.callback(err, ConnectionClosed); herr != nil {
			logWarn(nil, herr, "coap: connection handler failed on close")
		}
	}
	c.setState(StateClosed)

	if c.pendingOpen {
		c.pendingOpen = false
		c.Open()
	}
}

// fenceStaleSessions fails anything left over from an earlier session.
func (c *Channel) fenceStaleSessions() {
	for _, l := range []*msgList{&c.sentReqs, &c.unackMsgs, &c.blockMsgs, &c.recvReqs} {
		for _, m := range l.snapshot() {
			if m.sessionID != c.sessID {
				c.failExchange(m, ErrSessionClosed)
			}
		}
	}
}

func (c *Channel) AddRequestHandler(uriPrefix string, method COAPCode, cb RequestCallback) error {
	if cb == nil || !method.IsMethod() {
		return ErrInvalidArgument
	}
	c.routes.add(uriPrefix, method, cb)
	return nil
}

func (c *Channel) RemoveRequestHandler(uriPrefix string, method COAPCode) {
	if !c.routes.remove(uriPrefix, method) {
		logDebug(nil, nil, "coap: no handler for %s %s", method, uriPrefix)
	}
}

func (c *Channel) AddConnectionHandler(cb ConnectionCallback) (HandlerID, error) {
	if cb == nil {
		return 0, ErrInvalidArgument
	}
	c.lastHandlerID++
	c.connHandlers = append(c.connHandlers, &connectionHandler{id: c.lastHandlerID, callback: cb})
	return c.lastHandlerID, nil
}

func (c *Channel) RemoveConnectionHandler(id HandlerID) {
	for i, h := range c.connHandlers {
		if h.id == id {
			c.connHandlers = append(c.connHandlers[:i], c.connHandlers[i+1:]...)
			return
		}
	}
}

func (c *Channel) snapshotConnectionHandlers() []*connectionHandler {
	rv := make([]*connectionHandler, len(c.connHandlers))
	copy(rv, c.connHandlers)
	return rv
}

// DestroyMessage releases a message handle. Destroying a message whose
// exchange is still pending abandons it without invoking callbacks.
func (c *Channel) DestroyMessage(m *Message) {
	if m == nil || m.state == stateDone {
		return
	}
	if m.kind == kindInboundRequest && m.pendingAck && m.sessionID == c.sessID && c.isActive() {
		// the peer still waits for the ack of a block we never drained
		m.pendingAck = false
		if err := c.sendReply(TypeAcknowledgement, m.coapID, RspCodeRequestEntityIncomplete, m.token, nil); err != nil {
			logWarn(m, err, "coap: failed to reject abandoned blockwise request")
		}
	}
	c.retire(m)
}

// CancelRequest aborts a pending outbound exchange; its error callback
// receives ErrRequestCancelled.
func (c *Channel) CancelRequest(reqID int) {
	match := func(m *Message) bool {
		return m.requestID == reqID && (m.kind == kindRequest || m.kind == kindInboundResponse)
	}
	for _, l := range []*msgList{&c.unackMsgs, &c.sentReqs, &c.blockMsgs} {
		if m := l.find(match); m != nil {
			c.failExchange(m, ErrRequestCancelled)
			return
		}
	}
	logDebug(nil, nil, "coap: cancel of unknown request %d", reqID)
}

// checkMessage validates a handle passed in by the application.
func (c *Channel) checkMessage(m *Message) error {
	if m == nil {
		return ErrInvalidArgument
	}
	if m.sessionID != c.sessID {
		return ErrSessionClosed
	}
	if !c.isActive() {
		return ErrConnectionClosed
	}
	return nil
}

func (c *Channel) nextID() int {
	if c.lastMsgID == math.MaxInt32 {
		c.lastMsgID = 0
	}
	c.lastMsgID++
	return c.lastMsgID
}

func (c *Channel) nextMessageID() uint16 {
	id := c.nextCoapID
	c.nextCoapID++
	return id
}

func (c *Channel) acquireBuffer(m *Message) error {
	switch c.curMsgID {
	case m.id:
		return nil
	case 0:
		c.curMsgID = m.id
		m.written = 0
		return nil
	default:
		return ErrBufferBusy
	}
}

func (c *Channel) releaseBuffer() {
	c.curMsgID = 0
}

// park moves m into state and, when l is not nil, onto list l.
func (c *Channel) park(m *Message, state messageState, l *msgList) {
	c.unlink(m)
	m.setState(state)
	if l != nil {
		l.add(m)
	}
}

func (c *Channel) unlink(m *Message) {
	if m.list != nil {
		m.list.remove(m)
	}
}

// retire takes m out of the engine without callbacks.
func (c *Channel) retire(m *Message) {
	c.unlink(m)
	if br := m.blockRequest; br != nil {
		m.blockRequest = nil
		br.blockResponse = nil
		c.unlink(br)
		br.clearCallbacks()
		br.setState(stateDone)
	}
	if c.curMsgID == m.id {
		c.releaseBuffer()
	}
	m.datagram = nil
	m.clearCallbacks()
	m.setState(stateDone)
}

// failExchange ends the exchange of m with err, invoking its error callback once.
func (c *Channel) failExchange(m *Message, err error) {
	if m.state == stateDone {
		return
	}
	if m.kind == kindBlockRequest {
		parent := m.blockResponse
		c.retire(m)
		if parent != nil {
			parent.blockRequest = nil
			c.failExchange(parent, err)
		}
		return
	}
	cb := m.onError
	c.retire(m)
	c.stats.ExchangesFailed.Inc()
	if errors.Is(err, ErrTimeout) {
		c.stats.Timeouts.Inc()
	}
	logDebug(m, err, "coap: exchange failed")
	if cb != nil {
		cb(err, m.requestID)
	}
}

// transmit hands a datagram to the transport. A transport failure closes the channel.
func (c *Channel) transmit(data []byte) error {
	if err := c.tr.Send(data); err != nil {
		err = fmt.Errorf("%w: %w", ErrTransport, err)
		logError(nil, err, "coap: transport send failed")
		c.Close(err)
		return err
	}
	c.stats.DatagramsSent.Inc()
	return nil
}

// sendReply sends an ACK or RST that is not retransmitted and remembers it
// for duplicates of the message it answers.
func (c *Channel) sendReply(typ COAPType, coapID uint16, code COAPCode, token []byte, opts options) error {
	if code == CodeEmpty {
		token = nil
	}
	data, err := encodeMessage(&wireMessage{Type: typ, Code: code, MessageID: coapID, Token: token, Options: opts})
	if err != nil {
		return err
	}
	c.dedup.save(coapID, data)
	return c.transmit(data)
}
