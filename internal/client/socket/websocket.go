package socket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 25 * time.Second
	pingTimeout  = 5 * time.Second
	readLimit    = 1 << 20
)

// WebsocketTransport dials the gateway socket endpoint with a bearer token.
type WebsocketTransport struct {
	URL        string
	Token      string
	HTTPClient *http.Client
}

func (t *WebsocketTransport) Dial(ctx context.Context) (Conn, error) {
	header := http.Header{}
	if t.Token != "" {
		header.Set("Authorization", "Bearer "+t.Token)
	}

	conn, _, err := websocket.Dial(ctx, t.URL, &websocket.DialOptions{
		HTTPClient: t.HTTPClient,
		HTTPHeader: header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)

	wc := &wsConn{conn: conn, done: make(chan struct{})}
	go wc.keepAlive()
	return wc, nil
}

type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) Read(ctx context.Context) (protocol.Envelope, error) {
	var env protocol.Envelope
	err := wsjson.Read(ctx, c.conn, &env)
	return env, err
}

func (c *wsConn) Write(ctx context.Context, env protocol.Envelope) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c.conn, env)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close(websocket.StatusNormalClosure, "bye")
	})
	return err
}

func (c *wsConn) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			_ = c.conn.Ping(pingCtx)
			cancel()
		}
	}
}
