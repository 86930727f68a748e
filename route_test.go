// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouteTableMatch(t *testing.T) {
	table := newRouteTable()
	var hit string
	named := func(name string) RequestCallback {
		return func(*Message, string, COAPCode, int) error {
			hit = name
			return nil
		}
	}
	table.add("/E", CodePost, named("events"))
	table.add("E/dev/", CodePost, named("device"))
	table.add("/", CodeGet, named("root"))

	tests := []struct {
		method COAPCode
		path   string
		want   string
	}{
		{CodePost, "/E", "events"},
		{CodePost, "/E/temp", "events"},
		{CodePost, "/E/dev", "device"},
		{CodePost, "//E//dev/x/", "device"},
		{CodePost, "/F", ""},
		{CodeGet, "/anything/at/all", "root"},
		{CodePut, "/E", ""},
	}
	for _, tt := range tests {
		hit = ""
		cb := table.match(tt.method, tt.path)
		if tt.want == "" {
			assert.Nil(t, cb, "%s %s", tt.method, tt.path)
			continue
		}
		if assert.NotNil(t, cb, "%s %s", tt.method, tt.path) {
			_ = cb(nil, tt.path, tt.method, 0)
			assert.Equal(t, tt.want, hit, "%s %s", tt.method, tt.path)
		}
	}
}

func TestRouteTableRemove(t *testing.T) {
	table := newRouteTable()
	table.add("a/b", CodePost, func(*Message, string, COAPCode, int) error { return nil })

	assert.False(t, table.remove("a", CodePost))
	assert.False(t, table.remove("a/b", CodeGet))
	assert.False(t, table.remove("a/b/c", CodePost))
	assert.True(t, table.remove("/a/b/", CodePost))
	assert.False(t, table.remove("a/b", CodePost))
	assert.Nil(t, table.match(CodePost, "a/b"))
}

func TestSplitPath(t *testing.T) {
	assert.Nil(t, splitPath(""))
	assert.Nil(t, splitPath("///"))
	assert.Equal(t, []string{"E", "temp"}, splitPath("/E//temp/"))
}
