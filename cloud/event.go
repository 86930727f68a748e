// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package cloud

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	coap "github.com/qwerty-iot/cloudcoap"
)

// MaxNameLength is the longest event name in bytes.
const MaxNameLength = 64

type Status int

const (
	StatusNew Status = iota
	StatusSending
	StatusSent
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusSending:
		return "SENDING"
	case StatusSent:
		return "SENT"
	case StatusFailed:
		return "FAILED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Event is a named unit of publish/subscribe traffic. Its content can only
// be changed while the event is NEW. Like the channel it travels on, an
// Event is not safe for concurrent use.
type Event struct {
	name           string
	contentType    coap.MediaType
	hasContentType bool
	data           []byte
	pos            int
	status         Status
	err            error
}

func NewEvent() *Event {
	return &Event{contentType: coap.TextPlain}
}

// SetName names the event. The name can be set once, before any content
// is written.
func (e *Event) SetName(name string) error {
	if len(name) == 0 || len(name) > MaxNameLength {
		return fmt.Errorf("%w: event name must be 1 to %d bytes", coap.ErrInvalidArgument, MaxNameLength)
	}
	if e.status != StatusNew || e.name != "" || len(e.data) != 0 {
		return coap.ErrInvalidState
	}
	e.name = name
	return nil
}

func (e *Event) Name() string {
	return e.name
}

func (e *Event) SetContentType(ct coap.MediaType) error {
	if e.status != StatusNew {
		return coap.ErrInvalidState
	}
	e.contentType = ct
	e.hasContentType = true
	return nil
}

// ContentType returns the declared content format, text/plain by default.
func (e *Event) ContentType() coap.MediaType {
	return e.contentType
}

// Write stores p at the current position, growing the content as needed.
func (e *Event) Write(p []byte) (int, error) {
	if e.status != StatusNew {
		return 0, coap.ErrInvalidState
	}
	if end := e.pos + len(p); end > len(e.data) {
		e.grow(end)
	}
	n := copy(e.data[e.pos:], p)
	e.pos += n
	return n, nil
}

func (e *Event) Read(p []byte) (int, error) {
	if e.status != StatusNew {
		return 0, coap.ErrInvalidState
	}
	if e.pos >= len(e.data) {
		return 0, io.EOF
	}
	n := copy(p, e.data[e.pos:])
	e.pos += n
	return n, nil
}

// Seek moves the position within the content; it cannot move past the end.
func (e *Event) Seek(offset int64, whence int) (int64, error) {
	if e.status != StatusNew {
		return 0, coap.ErrInvalidState
	}
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(e.pos) + offset
	case io.SeekEnd:
		pos = int64(len(e.data)) + offset
	default:
		return 0, coap.ErrInvalidArgument
	}
	if pos < 0 || pos > int64(len(e.data)) {
		return 0, fmt.Errorf("%w: seek to %d outside of %d bytes", coap.ErrInvalidArgument, pos, len(e.data))
	}
	e.pos = int(pos)
	return pos, nil
}

// Resize truncates or zero-extends the content.
func (e *Event) Resize(size int) error {
	if size < 0 {
		return coap.ErrInvalidArgument
	}
	if e.status != StatusNew {
		return coap.ErrInvalidState
	}
	if size > len(e.data) {
		e.grow(size)
	} else {
		e.data = e.data[:size]
	}
	if e.pos > size {
		e.pos = size
	}
	return nil
}

func (e *Event) grow(size int) {
	if size <= cap(e.data) {
		old := len(e.data)
		e.data = e.data[:size]
		clear(e.data[old:])
		return
	}
	data := make([]byte, size, max(size, 2*cap(e.data)))
	copy(data, e.data)
	e.data = data
}

func (e *Event) Size() int {
	return len(e.data)
}

// Bytes returns the content. The slice must not be modified.
func (e *Event) Bytes() []byte {
	return e.data
}

func (e *Event) Status() Status {
	return e.status
}

// Err returns the error that failed the event.
func (e *Event) Err() error {
	return e.err
}

// ClearError returns a FAILED event to NEW so it can be published again.
func (e *Event) ClearError() {
	if e.status != StatusFailed {
		return
	}
	e.err = nil
	e.status = StatusNew
}

// SetCBOR replaces the content with the CBOR encoding of v.
func (e *Event) SetCBOR(v any) error {
	if e.status != StatusNew {
		return coap.ErrInvalidState
	}
	data, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	e.data = data
	e.pos = len(data)
	e.contentType = coap.AppCBOR
	e.hasContentType = true
	return nil
}

// DecodeCBOR decodes the content into v.
func (e *Event) DecodeCBOR(v any) error {
	if e.hasContentType && e.contentType != coap.AppCBOR {
		return fmt.Errorf("%w: content format is %d", coap.ErrInvalidArgument, e.contentType)
	}
	return cbor.Unmarshal(e.data, v)
}

func (e *Event) prepareForPublish() error {
	if e.status != StatusNew {
		return coap.ErrInvalidState
	}
	if e.name == "" {
		e.fail(fmt.Errorf("%w: event has no name", coap.ErrInvalidArgument))
		return e.err
	}
	e.status = StatusSending
	return nil
}

// fail moves the event to FAILED, keeping the first error.
func (e *Event) fail(err error) {
	if e.err == nil {
		e.err = err
	}
	e.status = StatusFailed
}
