// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// OptionID identifies an option in a message.
type OptionID uint16

/*
   +-----+----+---+---+---+----------------+--------+--------+---------+
   | No. | C  | U | N | R | Name           | Format | Length | Default |
   +-----+----+---+---+---+----------------+--------+--------+---------+
   |   1 | x  |   |   | x | If-Match       | opaque | 0-8    | (none)  |
   |   3 | x  | x | - |   | Uri-Host       | string | 1-255  | (see    |
   |     |    |   |   |   |                |        |        | below)  |
   |   4 |    |   |   | x | ETag           | opaque | 1-8    | (none)  |
   |   5 | x  |   |   |   | If-None-Match  | empty  | 0      | (none)  |
   |   7 | x  | x | - |   | Uri-Port       | uint   | 0-2    | (see    |
   |     |    |   |   |   |                |        |        | below)  |
   |   8 |    |   |   | x | Location-Path  | string | 0-255  | (none)  |
   |  11 | x  | x | - | x | Uri-Path       | string | 0-255  | (none)  |
   |  12 |    |   |   |   | Content-Format | uint   | 0-2    | (none)  |
   |  14 |    | x | - |   | Max-Age        | uint   | 0-4    | 60      |
   |  15 | x  | x | - | x | Uri-Query      | string | 0-255  | (none)  |
   |  17 | x  |   |   |   | Accept         | uint   | 0-2    | (none)  |
   |  20 |    |   |   | x | Location-Query | string | 0-255  | (none)  |
   |  23 | x  | x |   |   | Block2         | uint   | 0-3    | (none)  |
   |  27 | x  | x |   |   | Block1         | uint   | 0-3    | (none)  |
   |  35 | x  | x | - |   | Proxy-Uri      | string | 1-1034 | (none)  |
   |  39 | x  | x | - |   | Proxy-Scheme   | string | 1-255  | (none)  |
   |  60 |    |   | x |   | Size1          | uint   | 0-4    | (none)  |
   +-----+----+---+---+---+----------------+--------+--------+---------+
*/

// Option IDs.
const (
	OptIfMatch       OptionID = 1
	OptURIHost       OptionID = 3
	OptETag          OptionID = 4
	OptIfNoneMatch   OptionID = 5
	OptObserve       OptionID = 6
	OptURIPort       OptionID = 7
	OptLocationPath  OptionID = 8
	OptURIPath       OptionID = 11
	OptContentFormat OptionID = 12
	OptMaxAge        OptionID = 14
	OptURIQuery      OptionID = 15
	OptAccept        OptionID = 17
	OptLocationQuery OptionID = 20
	OptBlock2        OptionID = 23
	OptBlock1        OptionID = 27
	OptProxyURI      OptionID = 35
	OptProxyScheme   OptionID = 39
	OptSize1         OptionID = 60
)

// Option value format (RFC7252 section 3.2)
type valueFormat uint8

const (
	valueUnknown valueFormat = iota
	valueEmpty
	valueOpaque
	valueUint
	valueString
)

type optionDef struct {
	valueFormat valueFormat
	minLen      int
	maxLen      int
	reserved    bool
}

var optionDefs = map[OptionID]optionDef{
	OptIfMatch:       {valueFormat: valueOpaque, minLen: 0, maxLen: 8},
	OptURIHost:       {valueFormat: valueString, minLen: 1, maxLen: 255},
	OptETag:          {valueFormat: valueOpaque, minLen: 1, maxLen: 8},
	OptIfNoneMatch:   {valueFormat: valueEmpty, minLen: 0, maxLen: 0},
	OptObserve:       {valueFormat: valueUint, minLen: 0, maxLen: 3},
	OptURIPort:       {valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptLocationPath:  {valueFormat: valueString, minLen: 0, maxLen: 255},
	OptURIPath:       {valueFormat: valueString, minLen: 0, maxLen: 255},
	OptContentFormat: {valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptMaxAge:        {valueFormat: valueUint, minLen: 0, maxLen: 4},
	OptURIQuery:      {valueFormat: valueString, minLen: 0, maxLen: 255},
	OptAccept:        {valueFormat: valueUint, minLen: 0, maxLen: 2},
	OptLocationQuery: {valueFormat: valueString, minLen: 0, maxLen: 255},
	OptBlock2:        {valueFormat: valueUint, minLen: 0, maxLen: 3, reserved: true},
	OptBlock1:        {valueFormat: valueUint, minLen: 0, maxLen: 3, reserved: true},
	OptProxyURI:      {valueFormat: valueString, minLen: 1, maxLen: 1034},
	OptProxyScheme:   {valueFormat: valueString, minLen: 1, maxLen: 255},
	OptSize1:         {valueFormat: valueUint, minLen: 0, maxLen: 4},
}

// critical reports whether a peer that does not recognize the option must
// reject the message (odd option numbers).
func (id OptionID) critical() bool {
	return id&1 == 1
}

// validateOption checks a value against the option's registered length limits.
// Options not in the table are accepted as opaque values.
func validateOption(id OptionID, value []byte) error {
	def, ok := optionDefs[id]
	if !ok {
		return nil
	}
	if def.reserved {
		return fmt.Errorf("%w: option %d is managed by the channel", ErrInvalidArgument, id)
	}
	return def.checkLength(id, value)
}

func (def optionDef) checkLength(id OptionID, value []byte) error {
	if len(value) > def.maxLen {
		return fmt.Errorf("%w: option %d length %d", ErrOptionTooLong, id, len(value))
	}
	if len(value) < def.minLen {
		return fmt.Errorf("%w: option %d length %d", ErrInvalidArgument, id, len(value))
	}
	return nil
}

// Option is a single option of a message. Options returned by a message
// stay valid until the message is destroyed.
type Option struct {
	id    OptionID
	value []byte
}

// Number returns the option number.
func (o *Option) Number() OptionID {
	return o.id
}

// Uint decodes a uint option value of up to four bytes.
func (o *Option) Uint() (uint32, error) {
	if len(o.value) > 4 {
		return 0, ErrInvalidOptionType
	}
	return uint32(decodeInt(o.value)), nil
}

// Uint64 decodes a uint option value of up to eight bytes.
func (o *Option) Uint64() (uint64, error) {
	if len(o.value) > 8 {
		return 0, ErrInvalidOptionType
	}
	return decodeInt(o.value), nil
}

func (o *Option) String() string {
	return string(o.value)
}

// Opaque returns the raw option value.
func (o *Option) Opaque() []byte {
	return o.value
}

// encodeInt returns the shortest big endian encoding of v; zero encodes as no bytes.
func encodeInt(v uint64) []byte {
	if v == 0 {
		return nil
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	i := 0
	for buf[i] == 0 {
		i++
	}
	return buf[i:]
}

func decodeInt(b []byte) uint64 {
	tmp := make([]byte, 8)
	copy(tmp[8-len(b):], b)
	return binary.BigEndian.Uint64(tmp)
}

type options []Option

func (o options) Len() int {
	return len(o)
}

func (o options) Less(i, j int) bool {
	return o[i].id < o[j].id
}

func (o options) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
}

// sorted returns a copy ordered by option number, keeping the relative
// order of repeated options.
func (o options) sorted() options {
	rv := make(options, len(o))
	copy(rv, o)
	sort.Stable(rv)
	return rv
}

// validate checks received options: known options must respect their length
// limits and unknown critical options are refused.
func (o options) validate() error {
	for i := range o {
		id := o[i].id
		def, ok := optionDefs[id]
		if !ok {
			if id.critical() {
				return fmt.Errorf("%w: critical option %d", ErrOptionUnknown, id)
			}
			continue
		}
		if err := def.checkLength(id, o[i].value); err != nil {
			return err
		}
	}
	return nil
}

func (o options) find(oid OptionID) *Option {
	for i := range o {
		if o[i].id == oid {
			return &o[i]
		}
	}
	return nil
}

func (o options) strings(oid OptionID) []string {
	var rv []string
	for _, opt := range o {
		if opt.id == oid {
			rv = append(rv, string(opt.value))
		}
	}
	return rv
}
