// Package sockettest provides an in-memory transport for exercising
// socket.Manager and the views built on it.
package sockettest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var ErrConnClosed = errors.New("sockettest: conn closed")

// Responder computes the ack for an emitted envelope. Returning ok=false
// leaves the emit unacknowledged.
type Responder func(env protocol.Envelope) (reply any, ok bool)

type Conn struct {
	inbound   chan protocol.Envelope
	closed    chan struct{}
	closeOnce sync.Once
	responder Responder

	mu      sync.Mutex
	written []protocol.Envelope
}

func NewConn(responder Responder) *Conn {
	return &Conn{
		inbound:   make(chan protocol.Envelope, 256),
		closed:    make(chan struct{}),
		responder: responder,
	}
}

func (c *Conn) Read(ctx context.Context) (protocol.Envelope, error) {
	select {
	case env := <-c.inbound:
		return env, nil
	case <-c.closed:
		return protocol.Envelope{}, io.EOF
	case <-ctx.Done():
		return protocol.Envelope{}, ctx.Err()
	}
}

func (c *Conn) Write(_ context.Context, env protocol.Envelope) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}

	c.mu.Lock()
	c.written = append(c.written, env)
	c.mu.Unlock()

	if env.AckID == 0 || c.responder == nil {
		return nil
	}
	reply, ok := c.responder(env)
	if !ok {
		return nil
	}
	ack, err := protocol.NewEnvelope(protocol.EventAck, reply)
	if err != nil {
		return err
	}
	ack.AckID = env.AckID
	c.inbound <- ack
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// Push delivers a server-originated event to the client.
func (c *Conn) Push(tb testing.TB, event string, payload any) {
	tb.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		tb.Fatalf("encode %s: %v", event, err)
	}
	c.inbound <- env
}

// Written returns the envelopes emitted for event, or all of them when
// event is empty.
func (c *Conn) Written(event string) []protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]protocol.Envelope, 0, len(c.written))
	for _, env := range c.written {
		if event == "" || env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

type Transport struct {
	Responder Responder

	mu    sync.Mutex
	conns []*Conn
}

func (t *Transport) Dial(ctx context.Context) (socket.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conn := NewConn(t.Responder)
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *Transport) Dials() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// WaitConn blocks until the transport has been dialed n times and returns
// the n-th connection.
func (t *Transport) WaitConn(tb testing.TB, n int) *Conn {
	tb.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		t.mu.Lock()
		if len(t.conns) >= n {
			conn := t.conns[n-1]
			t.mu.Unlock()
			return conn
		}
		t.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	tb.Fatalf("transport not dialed %d times", n)
	return nil
}
