// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

// msgList is an ordered list of pending messages. A message is a member of
// at most one list, recorded in Message.list.
type msgList []*Message

func (l *msgList) add(m *Message) {
	*l = append(*l, m)
	m.list = l
}

func (l *msgList) remove(m *Message) bool {
	for i, e := range *l {
		if e == m {
			*l = append((*l)[:i], (*l)[i+1:]...)
			m.list = nil
			return true
		}
	}
	return false
}

func (l msgList) find(fn func(m *Message) bool) *Message {
	for _, m := range l {
		if fn(m) {
			return m
		}
	}
	return nil
}

// snapshot copies the list so callbacks may modify it during iteration.
func (l msgList) snapshot() []*Message {
	rv := make([]*Message, len(l))
	copy(rv, l)
	return rv
}

// drain empties the list and returns its former members.
func (l *msgList) drain() []*Message {
	rv := l.snapshot()
	for _, m := range rv {
		m.list = nil
	}
	*l = nil
	return rv
}
