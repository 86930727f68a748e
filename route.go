// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"strings"
)

// RequestCallback handles an inbound request. The message is in READ state;
// the handler owns it and must eventually destroy it. A returned error
// makes the channel destroy the request.
type RequestCallback func(msg *Message, uri string, method COAPCode, reqID int) error

type routeEntry struct {
	children map[string]*routeEntry
	callback RequestCallback
}

func newRouteEntry() *routeEntry {
	return &routeEntry{children: map[string]*routeEntry{}}
}

// routeTable keeps one path trie per method.
type routeTable struct {
	roots map[COAPCode]*routeEntry
}

func newRouteTable() *routeTable {
	return &routeTable{roots: map[COAPCode]*routeEntry{}}
}

func splitPath(path string) []string {
	var rv []string
	for _, part := range strings.Split(path, "/") {
		if len(part) != 0 {
			rv = append(rv, part)
		}
	}
	return rv
}

// add registers or replaces the handler for (prefix, method).
func (t *routeTable) add(prefix string, method COAPCode, callback RequestCallback) {
	route, found := t.roots[method]
	if !found {
		route = newRouteEntry()
		t.roots[method] = route
	}
	for _, part := range splitPath(prefix) {
		child, found := route.children[part]
		if !found {
			child = newRouteEntry()
			route.children[part] = child
		}
		route = child
	}
	route.callback = callback
}

func (t *routeTable) remove(prefix string, method COAPCode) bool {
	route, found := t.roots[method]
	if !found {
		return false
	}
	for _, part := range splitPath(prefix) {
		if route, found = route.children[part]; !found {
			return false
		}
	}
	if route.callback == nil {
		return false
	}
	route.callback = nil
	return true
}

// match returns the handler of the deepest registered prefix of path.
func (t *routeTable) match(method COAPCode, path string) RequestCallback {
	route, found := t.roots[method]
	if !found {
		return nil
	}
	deepestCallback := route.callback
	for _, part := range splitPath(path) {
		if route, found = route.children[part]; !found {
			break
		}
		if route.callback != nil {
			deepestCallback = route.callback
		}
	}
	return deepestCallback
}
