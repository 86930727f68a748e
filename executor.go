// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const DefaultTickInterval = 100 * time.Millisecond

// Executor is the single execution context of a Channel. Work posted from
// any goroutine runs on the goroutine calling Serve, interleaved with the
// periodic Run of the channel.
type Executor struct {
	ch       *Channel
	tasks    chan func()
	interval time.Duration
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewExecutor(ch *Channel, interval time.Duration) *Executor {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Executor{
		ch:       ch,
		tasks:    make(chan func(), 64),
		interval: interval,
		stopped:  make(chan struct{}),
	}
}

func (e *Executor) Channel() *Channel {
	return e.ch
}

// Post queues fn for execution. It blocks while the queue is full and
// fails once Serve has returned.
func (e *Executor) Post(fn func()) error {
	select {
	case <-e.stopped:
		return ErrExecutorStopped
	default:
	}
	select {
	case e.tasks <- fn:
		return nil
	case <-e.stopped:
		return ErrExecutorStopped
	}
}

// Call runs fn on the execution context and waits for it to finish.
func (e *Executor) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := e.Post(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrExecutorStopped
		}
	}
}

// Serve runs posted work and ticks the channel until ctx is done.
func (e *Executor) Serve(ctx context.Context) error {
	defer e.stopOnce.Do(func() { close(e.stopped) })
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.tasks:
			fn()
		case <-ticker.C:
			e.ch.Run()
		}
	}
}

// Deliver posts an inbound datagram to the channel.
func (e *Executor) Deliver(data []byte) {
	err := e.Post(func() {
		if err := e.ch.HandleDatagram(data); err != nil {
			logDebug(nil, err, "coap: inbound datagram rejected")
		}
	})
	if err != nil {
		logDebug(nil, err, "coap: datagram dropped")
	}
}

// Fail posts a close of the channel with the transport's error.
func (e *Executor) Fail(err error) {
	err = fmt.Errorf("%w: %w", ErrTransport, err)
	if perr := e.Post(func() { e.ch.Close(err) }); perr != nil {
		logDebug(nil, perr, "coap: transport failure dropped")
	}
}
