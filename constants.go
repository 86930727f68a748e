// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"fmt"
	"strings"

	"github.com/qwerty-iot/tox"
)

// BlockSize is the payload capacity of one datagram and the size of every
// block in a blockwise transfer (SZX 6).
const BlockSize = 1024

const blockSZX = 6

// COAPType represents the message type.
type COAPType uint8

const (
	// Confirmable messages require acknowledgements.
	TypeConfirmable COAPType = 0
	// NonConfirmable messages do not require acknowledgements.
	TypeNonConfirmable COAPType = 1
	// Acknowledgement is a message indicating a response to confirmable message.
	TypeAcknowledgement COAPType = 2
	// Reset indicates a permanent negative acknowledgement.
	TypeReset COAPType = 3
)

var typeNames = [256]string{
	TypeConfirmable:     "Confirmable",
	TypeNonConfirmable:  "NonConfirmable",
	TypeAcknowledgement: "Acknowledgement",
	TypeReset:           "Reset",
}

func init() {
	for i := range typeNames {
		if typeNames[i] == "" {
			typeNames[i] = fmt.Sprintf("Unknown (0x%x)", i)
		}
	}
}

func (t COAPType) String() string {
	return typeNames[t]
}

// COAPCode is the type used for both request and response codes.
type COAPCode uint8

// Request Codes
const (
	CodeEmpty COAPCode = 0

	CodeGet    COAPCode = 1
	CodePost   COAPCode = 2
	CodePut    COAPCode = 3
	CodeDelete COAPCode = 4
)

// Response Codes
const (
	RspCodeCreated                 COAPCode = 65
	RspCodeDeleted                 COAPCode = 66
	RspCodeValid                   COAPCode = 67
	RspCodeChanged                 COAPCode = 68
	RspCodeContent                 COAPCode = 69
	RspCodeContinue                COAPCode = 95
	RspCodeBadRequest              COAPCode = 128
	RspCodeUnauthorized            COAPCode = 129
	RspCodeBadOption               COAPCode = 130
	RspCodeForbidden               COAPCode = 131
	RspCodeNotFound                COAPCode = 132
	RspCodeMethodNotAllowed        COAPCode = 133
	RspCodeNotAcceptable           COAPCode = 134
	RspCodeRequestEntityIncomplete COAPCode = 136
	RspCodePreconditionFailed      COAPCode = 140
	RspCodeRequestEntityTooLarge   COAPCode = 141
	RspCodeUnsupportedMediaType    COAPCode = 143
	RspCodeInternalServerError     COAPCode = 160
	RspCodeNotImplemented          COAPCode = 161
	RspCodeBadGateway              COAPCode = 162
	RspCodeServiceUnavailable      COAPCode = 163
	RspCodeGatewayTimeout          COAPCode = 164
	RspCodeProxyingNotSupported    COAPCode = 165
)

var codeNames = [256]string{
	CodeEmpty:                      "Empty",
	CodeGet:                        "GET",
	CodePost:                       "POST",
	CodePut:                        "PUT",
	CodeDelete:                     "DELETE",
	RspCodeCreated:                 "Created",
	RspCodeDeleted:                 "Deleted",
	RspCodeValid:                   "Valid",
	RspCodeChanged:                 "Changed",
	RspCodeContent:                 "Content",
	RspCodeContinue:                "Continue",
	RspCodeBadRequest:              "BadRequest",
	RspCodeUnauthorized:            "Unauthorized",
	RspCodeBadOption:               "BadOption",
	RspCodeForbidden:               "Forbidden",
	RspCodeNotFound:                "NotFound",
	RspCodeMethodNotAllowed:        "MethodNotAllowed",
	RspCodeNotAcceptable:           "NotAcceptable",
	RspCodeRequestEntityIncomplete: "RequestEntityIncomplete",
	RspCodePreconditionFailed:      "PreconditionFailed",
	RspCodeRequestEntityTooLarge:   "RequestEntityTooLarge",
	RspCodeUnsupportedMediaType:    "UnsupportedMediaType",
	RspCodeInternalServerError:     "InternalServerError",
	RspCodeNotImplemented:          "NotImplemented",
	RspCodeBadGateway:              "BadGateway",
	RspCodeServiceUnavailable:      "ServiceUnavailable",
	RspCodeGatewayTimeout:          "GatewayTimeout",
	RspCodeProxyingNotSupported:    "ProxyingNotSupported",
}

func init() {
	for i := range codeNames {
		if codeNames[i] == "" {
			codeNames[i] = fmt.Sprintf("Unknown (0x%x)", i)
		}
	}
}

// ToCOAPCode parses the dotted "c.dd" notation, e.g. "2.04" or "0.02".
func ToCOAPCode(val string) COAPCode {
	ss := strings.Split(val, ".")
	if len(ss) != 2 {
		return RspCodeInternalServerError
	}
	return COAPCode(tox.ToInt(ss[0])<<5 | tox.ToInt(ss[1])&0x1F)
}

func (c COAPCode) String() string {
	return codeNames[c]
}

func (c COAPCode) NumberString() string {
	lower := c & 0x1F
	upper := c >> 5
	return fmt.Sprintf("%d.%02d", upper, lower)
}

// Class returns the code class, the digit before the dot.
func (c COAPCode) Class() int {
	return int(c >> 5)
}

// IsMethod reports whether the code is one of the request methods the channel carries.
func (c COAPCode) IsMethod() bool {
	return c >= CodeGet && c <= CodeDelete
}

// IsResponse reports whether the code belongs to a response class (2.xx to 5.xx).
func (c COAPCode) IsResponse() bool {
	return c.Class() >= 2 && c.Class() <= 5
}

// IsSuccess reports whether the code is a 2.xx response.
func (c COAPCode) IsSuccess() bool {
	return c.Class() == 2
}

// MediaType specifies the content type of a message.
type MediaType int

// Content types.
const (
	None          MediaType = -1
	TextPlain     MediaType = 0     // text/plain;charset=utf-8
	AppLinkFormat MediaType = 40    // application/link-format
	AppXML        MediaType = 41    // application/xml
	AppOctets     MediaType = 42    // application/octet-stream
	AppExi        MediaType = 47    // application/exi
	AppJSON       MediaType = 50    // application/json
	AppCBOR       MediaType = 60    // application/cbor
	AppSenmlCBOR  MediaType = 112   // application/senml_cbor
	AppLwm2mTLV   MediaType = 11542 //application/vnd.oma.lwm2m+tlv
	AppLwm2mJSON  MediaType = 11543 //application/vnd.oma.lwm2m+json
)

// ChannelState is the connection state of a Channel.
type ChannelState int

const (
	StateClosed ChannelState = iota
	StateOpening
	StateOpen
	StateClosing
)

var channelStateNames = map[ChannelState]string{
	StateClosed:  "CLOSED",
	StateOpening: "OPENING",
	StateOpen:    "OPEN",
	StateClosing: "CLOSING",
}

func (s ChannelState) String() string {
	if n, ok := channelStateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("Unknown (%d)", int(s))
}

// ConnectionStatus is passed to connection handlers.
type ConnectionStatus int

const (
	ConnectionClosed ConnectionStatus = iota
	ConnectionOpen
)

func (s ConnectionStatus) String() string {
	if s == ConnectionOpen {
		return "OPEN"
	}
	return "CLOSED"
}

// Result is the non-error outcome of a payload read or write.
type Result int

const (
	// ResultOK means the operation completed on the current block.
	ResultOK Result = iota
	// ResultWaitBlock means the current block was handed to the transport (write)
	// or drained (read); the block callback fires when the next one may proceed.
	ResultWaitBlock
)

func (r Result) String() string {
	if r == ResultWaitBlock {
		return "WAIT_BLOCK"
	}
	return "OK"
}

// Flags are reserved for future use and must be zero.
type Flags uint32
