// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package coap

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
)

// WebSocketTransport carries one datagram per binary websocket frame.
type WebSocketTransport struct {
	name   string
	conn   *websocket.Conn
	wmu    sync.Mutex
	closed atomic.Bool
}

// DialWebSocket opens a websocket to url (ws:// or wss://).
func DialWebSocket(ctx context.Context, name string, url string, header http.Header) (*WebSocketTransport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("coap: websocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("coap: websocket connection failed: %w", err)
	}
	return NewWebSocketTransport(name, conn), nil
}

// NewWebSocketTransport wraps an established connection, e.g. one accepted by a websocket.Upgrader.
func NewWebSocketTransport(name string, conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{name: name, conn: conn}
}

func (t *WebSocketTransport) Listen(r Receiver) {
	go t.reader(r)
}

func (t *WebSocketTransport) reader(r Receiver) {
	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() {
				logDebug(nil, nil, "coap: websocket transport %s is shutdown", t.name)
				return
			}
			logWarn(nil, err, "coap: websocket read failed")
			r.Fail(err)
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		sniffPacket("websocket", SniffRead, t.conn.RemoteAddr().String(), t.conn.LocalAddr().String(), data)
		r.Deliver(data)
	}
}

func (t *WebSocketTransport) Send(data []byte) error {
	t.wmu.Lock()
	defer t.wmu.Unlock()
	sniffPacket("websocket", SniffWrite, t.conn.LocalAddr().String(), t.conn.RemoteAddr().String(), data)
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *WebSocketTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.wmu.Lock()
	err := t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	t.wmu.Unlock()
	return multierr.Append(err, t.conn.Close())
}
