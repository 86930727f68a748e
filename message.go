// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type messageKind int

const (
	kindRequest        messageKind = iota + 1 // request sent by us
	kindBlockRequest                          // request for the next Block2 of a response
	kindInboundRequest                        // request received from the peer
	kindResponse                              // response sent by us
	kindInboundResponse                       // response received from the peer
)

var kindNames = map[messageKind]string{
	kindRequest:         "request",
	kindBlockRequest:    "block request",
	kindInboundRequest:  "inbound request",
	kindResponse:        "response",
	kindInboundResponse: "inbound response",
}

func (k messageKind) String() string {
	return kindNames[k]
}

type messageState int

const (
	stateNew messageState = iota
	stateWrite
	stateRead
	stateWaitBlock
	stateWaitAck
	stateWaitResponse
	stateDone
)

var stateNames = map[messageState]string{
	stateNew:          "NEW",
	stateWrite:        "WRITE",
	stateRead:         "READ",
	stateWaitBlock:    "WAIT_BLOCK",
	stateWaitAck:      "WAIT_ACK",
	stateWaitResponse: "WAIT_RESPONSE",
	stateDone:         "DONE",
}

func (s messageState) String() string {
	return stateNames[s]
}

// any state may move to stateDone
var messageTransitions = map[messageState][]messageState{
	stateNew:          {stateWrite, stateRead, stateWaitAck},
	stateWrite:        {stateWaitAck},
	stateRead:         {stateWaitBlock},
	stateWaitBlock:    {stateRead},
	stateWaitAck:      {stateWrite, stateWaitResponse},
	stateWaitResponse: {stateWrite},
}

// Message is a CoAP message entity owned by a Channel. Handles are only
// valid on the channel and session that produced them.
type Message struct {
	id        int
	requestID int
	sessionID int

	kind  messageKind
	state messageState
	list  *msgList

	uri    string
	method COAPCode
	status COAPCode
	token  []byte
	coapID uint16
	opts   options

	// options of the request that produced an inbound response, reused by block requests
	requestOpts options

	payloadStarted bool
	written        int

	blockwise  bool
	blockIndex int
	hasMore    bool
	etag       []byte
	pendingAck bool

	block []byte
	pos   int

	datagram       []byte
	retransmits    int
	ackTimeout     time.Duration
	nextRetransmit time.Time
	timeout        time.Duration
	timeSent       time.Time

	blockResponse *Message
	blockRequest  *Message

	onResponse ResponseCallback
	onAck      AckCallback
	onError    ErrorCallback
	onBlock    BlockCallback
}

func (m *Message) setState(to messageState) {
	if m.state == to {
		return
	}
	if to != stateDone && !slices.Contains(messageTransitions[m.state], to) {
		panic(fmt.Sprintf("coap: invalid %s state transition %s -> %s", m.kind, m.state, to))
	}
	m.state = to
}

func (m *Message) clearCallbacks() {
	m.onResponse = nil
	m.onAck = nil
	m.onError = nil
	m.onBlock = nil
}

func (m *Message) isOutbound() bool {
	return m.kind == kindRequest || m.kind == kindResponse
}

func (m *Message) isInbound() bool {
	return m.kind == kindInboundRequest || m.kind == kindInboundResponse
}

// ID is the channel-internal message id.
func (m *Message) ID() int {
	return m.id
}

// RequestID is the id of the request this message belongs to.
func (m *Message) RequestID() int {
	return m.requestID
}

// URI returns the request URI, with a leading slash for inbound requests.
func (m *Message) URI() string {
	return m.uri
}

func (m *Message) Method() COAPCode {
	return m.method
}

func (m *Message) Status() COAPCode {
	return m.status
}

func (m *Message) Token() []byte {
	return m.token
}

// Path gets the Uri-Path segments of the message.
func (m *Message) Path() []string {
	return m.opts.strings(OptURIPath)
}

// PathString gets a path as a / separated string.
func (m *Message) PathString() string {
	return strings.Join(m.Path(), "/")
}

func (m *Message) ParseQuery() map[string]string {
	rv := map[string]string{}
	for _, q := range m.opts.strings(OptURIQuery) {
		ss := strings.SplitN(q, "=", 2)
		if len(ss) == 2 {
			rv[ss[0]] = ss[1]
		} else {
			rv[ss[0]] = ""
		}
	}
	return rv
}

// QueryString joins the Uri-Query options with "&".
func (m *Message) QueryString() string {
	return strings.Join(m.opts.strings(OptURIQuery), "&")
}

func (m *Message) ContentFormat() MediaType {
	if opt := m.opts.find(OptContentFormat); opt != nil {
		if v, err := opt.Uint(); err == nil {
			return MediaType(v)
		}
	}
	return None
}

func (m *Message) Accept() MediaType {
	if opt := m.opts.find(OptAccept); opt != nil {
		if v, err := opt.Uint(); err == nil {
			return MediaType(v)
		}
	}
	return None
}

// Option returns the first option with the given number, or nil.
func (m *Message) Option(num OptionID) *Option {
	return m.opts.find(num)
}

// NextOption returns the option following opt, or nil when opt was the last.
// A nil opt returns the first option.
func (m *Message) NextOption(opt *Option) *Option {
	if opt == nil {
		if len(m.opts) == 0 {
			return nil
		}
		return &m.opts[0]
	}
	for i := range m.opts {
		if &m.opts[i] == opt && i+1 < len(m.opts) {
			return &m.opts[i+1]
		}
	}
	return nil
}

func (m *Message) AddEmptyOption(num OptionID) error {
	return m.addOption(num, nil)
}

func (m *Message) AddUintOption(num OptionID, val uint32) error {
	return m.addOption(num, encodeInt(uint64(val)))
}

func (m *Message) AddUint64Option(num OptionID, val uint64) error {
	return m.addOption(num, encodeInt(val))
}

func (m *Message) AddStringOption(num OptionID, val string) error {
	return m.addOption(num, []byte(val))
}

func (m *Message) AddOpaqueOption(num OptionID, val []byte) error {
	b := make([]byte, len(val))
	copy(b, val)
	return m.addOption(num, b)
}

func (m *Message) addOption(num OptionID, val []byte) error {
	if m == nil || !m.isOutbound() {
		return ErrInvalidArgument
	}
	if m.payloadStarted {
		return fmt.Errorf("%w: options must precede the payload", ErrInvalidArgument)
	}
	if m.state != stateNew {
		return ErrInvalidState
	}
	if err := validateOption(num, val); err != nil {
		return err
	}
	m.opts = append(m.opts, Option{id: num, value: val})
	return nil
}
