// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"time"
)

// dedupCache remembers the message ids of inbound confirmable messages and
// the reply sent for each, so a retransmission is answered with the same reply.
type dedupCache struct {
	entries    map[uint16]*dedupEntry
	expiration time.Duration
}

type dedupEntry struct {
	pending bool
	reply   []byte
	expires time.Time
}

func newDedupCache(expiration time.Duration) *dedupCache {
	return &dedupCache{entries: map[uint16]*dedupEntry{}, expiration: expiration}
}

// deduplicate returns the entry for id and whether the message is new.
func (d *dedupCache) deduplicate(id uint16, now time.Time) (*dedupEntry, bool) {
	if entry, found := d.entries[id]; found && now.Before(entry.expires) {
		return entry, false
	}
	entry := &dedupEntry{pending: true, expires: now.Add(d.expiration)}
	d.entries[id] = entry
	return entry, true
}

func (d *dedupCache) save(id uint16, reply []byte) {
	if entry, found := d.entries[id]; found {
		entry.save(reply)
	}
}

func (entry *dedupEntry) save(reply []byte) {
	entry.reply = reply
	entry.pending = false
}

func (d *dedupCache) expire(now time.Time) {
	for id, entry := range d.entries {
		if !now.Before(entry.expires) {
			delete(d.entries, id)
		}
	}
}

func (d *dedupCache) reset() {
	d.entries = map[uint16]*dedupEntry{}
}

func (d *dedupCache) len() int {
	return len(d.entries)
}
