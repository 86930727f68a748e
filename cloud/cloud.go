// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cloud

import (
	"errors"
	"strings"

	coap "github.com/qwerty-iot/cloudcoap"
	"go.uber.org/zap"
)

// events are posted to /E/<name>
const eventPath = "E"

// Handler receives an event delivered to a subscription. The handler owns ev.
type Handler func(ev *Event)

type subscription struct {
	prefix  string
	handler Handler
}

// Cloud publishes and subscribes to events over a channel. It must be used
// on the channel's execution context.
type Cloud struct {
	ch         *coap.Channel
	logger     *zap.Logger
	subs       []subscription
	registered bool
	unmatched  coap.COAPCode
}

type Option func(*Cloud)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cloud) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithUnmatchedStatus sets the response to events no subscription matches.
// The default is 2.04 Changed: the event is consumed without delivery.
func WithUnmatchedStatus(status coap.COAPCode) Option {
	return func(c *Cloud) {
		if status.IsResponse() {
			c.unmatched = status
		}
	}
}

func New(ch *coap.Channel, opts ...Option) *Cloud {
	c := &Cloud{ch: ch, logger: zap.NewNop(), unmatched: coap.RspCodeChanged}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("cloud")
	return c
}

// Publish sends ev. The event moves to SENDING, then SENT once the peer
// acknowledged the last block, or FAILED. An event without a name fails
// synchronously.
func (c *Cloud) Publish(ev *Event) error {
	if ev == nil {
		return coap.ErrInvalidArgument
	}
	if err := ev.prepareForPublish(); err != nil {
		return err
	}
	t := &publishTask{c: c, ev: ev}
	if err := t.begin(); err != nil {
		t.fail(err)
		return err
	}
	return nil
}

// Subscribe delivers events whose name starts with prefix to handler.
// Subscriptions are matched in the order they were made.
func (c *Cloud) Subscribe(prefix string, handler Handler) error {
	if handler == nil {
		return coap.ErrInvalidArgument
	}
	if !c.registered {
		if err := c.ch.AddRequestHandler(eventPath, coap.CodePost, c.handleEvent); err != nil {
			return err
		}
		c.registered = true
	}
	c.subs = append(c.subs, subscription{prefix: prefix, handler: handler})
	return nil
}

// Unsubscribe removes every subscription made with prefix.
func (c *Cloud) Unsubscribe(prefix string) {
	subs := c.subs[:0]
	for _, s := range c.subs {
		if s.prefix != prefix {
			subs = append(subs, s)
		}
	}
	clear(c.subs[len(subs):])
	c.subs = subs
}

func (c *Cloud) match(name string) *subscription {
	for i := range c.subs {
		if strings.HasPrefix(name, c.subs[i].prefix) {
			return &c.subs[i]
		}
	}
	return nil
}

// publishTask streams one event into a request, resuming from the block
// callback whenever the channel asks to wait.
type publishTask struct {
	c     *Cloud
	ev    *Event
	msg   *coap.Message
	reqID int
	off   int
}

func (t *publishTask) begin() error {
	msg, reqID, err := t.c.ch.BeginRequest(eventPath, coap.CodePost, 0, 0)
	if err != nil {
		return err
	}
	t.msg, t.reqID = msg, reqID
	if err := msg.AddStringOption(coap.OptURIPath, t.ev.name); err != nil {
		return err
	}
	if t.ev.hasContentType {
		if err := msg.AddUintOption(coap.OptContentFormat, uint32(t.ev.contentType)); err != nil {
			return err
		}
	}
	return t.write()
}

func (t *publishTask) write() error {
	data := t.ev.data
	for t.off < len(data) {
		n, res, err := t.c.ch.WritePayload(t.msg, data[t.off:], t.onBlock, t.onError)
		if err != nil {
			return err
		}
		t.off += n
		if res == coap.ResultWaitBlock {
			return nil
		}
	}
	return t.c.ch.EndRequest(t.msg, t.onResponse, t.onAck, t.onError)
}

func (t *publishTask) fail(err error) {
	t.c.logger.Warn("publish failed", zap.String("event", t.ev.name), zap.Int("reqId", t.reqID), zap.Error(err))
	t.c.ch.DestroyMessage(t.msg)
	t.ev.fail(err)
}

func (t *publishTask) onBlock(*coap.Message) error {
	if err := t.write(); err != nil {
		t.fail(err)
		return err
	}
	return nil
}

func (t *publishTask) onAck(int) error {
	if t.ev.status != StatusSending {
		return nil
	}
	t.ev.status = StatusSent
	t.c.logger.Debug("event sent", zap.String("event", t.ev.name), zap.Int("size", len(t.ev.data)))
	return nil
}

func (t *publishTask) onResponse(rsp *coap.Message, status coap.COAPCode, reqID int) error {
	defer t.c.ch.DestroyMessage(rsp)
	if err := coap.RspCodeToError(status); err != nil {
		t.c.logger.Warn("event rejected", zap.String("event", t.ev.name), zap.Stringer("status", status))
	}
	return nil
}

func (t *publishTask) onError(err error, reqID int) {
	if t.ev.status != StatusSending {
		// the event was already acknowledged
		t.c.logger.Debug("event response failed", zap.String("event", t.ev.name), zap.Error(err))
		return
	}
	t.c.logger.Warn("publish failed", zap.String("event", t.ev.name), zap.Int("reqId", reqID), zap.Error(err))
	t.ev.fail(err)
}

func (c *Cloud) handleEvent(msg *coap.Message, uri string, method coap.COAPCode, reqID int) error {
	name := strings.Join(msg.Path()[1:], "/")
	sub := c.match(name)
	if sub == nil {
		c.logger.Debug("no subscriber for event", zap.String("event", name))
		c.respond(msg, reqID, c.unmatched)
		return nil
	}

	ev := NewEvent()
	if err := ev.SetName(name); err != nil {
		c.logger.Warn("invalid event name", zap.String("uri", uri), zap.Error(err))
		c.respond(msg, reqID, coap.RspCodeBadRequest)
		return nil
	}
	if msg.Option(coap.OptContentFormat) != nil {
		ev.contentType = msg.ContentFormat()
		ev.hasContentType = true
	}
	d := &delivery{
		c:       c,
		msg:     msg,
		reqID:   reqID,
		ev:      ev,
		handler: sub.handler,
		buf:     make([]byte, coap.BlockSize),
	}
	return d.read()
}

// respond answers an event request and releases it.
func (c *Cloud) respond(msg *coap.Message, reqID int, status coap.COAPCode) {
	defer c.ch.DestroyMessage(msg)
	rsp, err := c.ch.BeginResponse(status, reqID, 0)
	if err == nil {
		err = c.ch.EndResponse(rsp, nil, nil)
	}
	if err != nil {
		c.logger.Warn("failed to respond to event", zap.Int("reqId", reqID), zap.Error(err))
	}
}

// delivery reassembles an inbound event before handing it to a subscriber.
type delivery struct {
	c       *Cloud
	msg     *coap.Message
	reqID   int
	ev      *Event
	handler Handler
	buf     []byte
}

func (d *delivery) read() error {
	for {
		n, res, err := d.c.ch.ReadPayload(d.msg, d.buf, d.onBlock, d.onError)
		if errors.Is(err, coap.ErrEndOfStream) {
			d.complete()
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := d.ev.Write(d.buf[:n]); err != nil {
			return err
		}
		if res == coap.ResultWaitBlock {
			return nil
		}
	}
}

func (d *delivery) onBlock(*coap.Message) error {
	if err := d.read(); err != nil {
		d.c.logger.Warn("event read failed", zap.String("event", d.ev.name), zap.Error(err))
		d.c.ch.DestroyMessage(d.msg)
		return err
	}
	return nil
}

func (d *delivery) onError(err error, reqID int) {
	d.c.logger.Warn("event transfer failed", zap.String("event", d.ev.name), zap.Int("reqId", reqID), zap.Error(err))
}

func (d *delivery) complete() {
	d.c.respond(d.msg, d.reqID, coap.RspCodeChanged)
	d.ev.pos = 0
	d.c.logger.Debug("event received", zap.String("event", d.ev.name), zap.Int("size", len(d.ev.data)))
	d.handler(d.ev)
}
