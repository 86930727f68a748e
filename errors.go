// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"errors"
	"fmt"
)

// argument and state errors
var (
	ErrInvalidArgument = errors.New("coap: invalid argument")
	ErrInvalidState    = errors.New("coap: invalid state")
	ErrNotSupported    = errors.New("coap: not supported")
)

// resource errors
var (
	ErrTooLarge        = errors.New("coap: payload too large")
	ErrBufferBusy      = errors.New("coap: wire buffer in use by another message")
	ErrRequestNotFound = errors.New("coap: request not found")
)

// protocol errors
var (
	ErrProtocol          = errors.New("coap: protocol error")
	ErrReset             = errors.New("coap: message reset by peer")
	ErrBlockMismatch     = errors.New("coap: unexpected block")
	ErrInvalidTokenLen   = errors.New("coap: invalid token length")
	ErrOptionTooLong     = errors.New("coap: option is too long")
	ErrOptionUnknown     = errors.New("coap: unknown option")
	ErrInvalidOptionType = errors.New("coap: option value is not of the requested type")
)

// transport and lifecycle errors
var (
	ErrTransport        = errors.New("coap: transport error")
	ErrConnectionClosed = errors.New("coap: connection closed")
	ErrSessionClosed    = errors.New("coap: session closed")
	ErrTimeout          = errors.New("coap: timeout")
	ErrExecutorStopped  = errors.New("coap: executor stopped")
)

// ErrRequestCancelled is reported to the error callback of a cancelled exchange.
var ErrRequestCancelled = errors.New("coap: request cancelled")

// ErrEndOfStream is returned by ReadPayload once the final block is drained.
var ErrEndOfStream = errors.New("coap: end of stream")

// response code errors
var (
	ErrBadRequest            = errors.New("coap: bad request")
	ErrNotFound              = errors.New("coap: not found")
	ErrUnauthorized          = errors.New("coap: not authorized")
	ErrForbidden             = errors.New("coap: forbidden")
	ErrMethodNotAllowed      = errors.New("coap: method not allowed")
	ErrEncodingNotAcceptable = errors.New("coap: encoding not acceptable")
	ErrEntityIncomplete      = errors.New("coap: request entity incomplete")
	ErrEntityTooLarge        = errors.New("coap: request entity too large")
	ErrInternalServerError   = errors.New("coap: internal server error")
	ErrServiceUnavailable    = errors.New("coap: service unavailable")
)

// RspCodeToError maps an error response code to an error. Success codes return nil.
func RspCodeToError(code COAPCode) error {
	if code.Class() < 4 {
		return nil
	}
	switch code {
	case RspCodeBadRequest:
		return ErrBadRequest
	case RspCodeNotFound:
		return ErrNotFound
	case RspCodeUnauthorized:
		return ErrUnauthorized
	case RspCodeForbidden:
		return ErrForbidden
	case RspCodeMethodNotAllowed:
		return ErrMethodNotAllowed
	case RspCodeNotAcceptable:
		return ErrEncodingNotAcceptable
	case RspCodeRequestEntityIncomplete:
		return ErrEntityIncomplete
	case RspCodeRequestEntityTooLarge:
		return ErrEntityTooLarge
	case RspCodeInternalServerError:
		return ErrInternalServerError
	case RspCodeServiceUnavailable:
		return ErrServiceUnavailable
	default:
		return fmt.Errorf("coap: other error %s (%s)", code.NumberString(), code.String())
	}
}
