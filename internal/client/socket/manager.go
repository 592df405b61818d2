// Package socket owns the single realtime connection a client process keeps
// to the gateway. Views never hold the connection themselves: they attach
// listeners through a Scope and emit through the Manager.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var (
	ErrClosed       = errors.New("socket: manager closed")
	ErrNotConnected = errors.New("socket: not connected")
	ErrDisconnected = errors.New("socket: disconnected before ack")
)

const defaultReconnectDelay = 2 * time.Second

// Conn is one established transport session.
type Conn interface {
	Read(ctx context.Context) (protocol.Envelope, error)
	Write(ctx context.Context, env protocol.Envelope) error
	Close() error
}

type Transport interface {
	Dial(ctx context.Context) (Conn, error)
}

type Handler func(env protocol.Envelope)

// Emitter is the write side of the Manager that views depend on.
type Emitter interface {
	Emit(ctx context.Context, event string, payload any) error
	EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error)
}

type listener struct {
	id    uuid.UUID
	event string
	fn    Handler
}

type Manager struct {
	transport      Transport
	logger         zerolog.Logger
	reconnectDelay time.Duration

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      Conn
	listeners []listener
	pending   map[int64]chan json.RawMessage
	nextAck   int64
	opened    bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithReconnectDelay(delay time.Duration) Option {
	return func(m *Manager) {
		if delay > 0 {
			m.reconnectDelay = delay
		}
	}
}

func NewManager(transport Transport, opts ...Option) *Manager {
	m := &Manager{
		transport:      transport,
		logger:         zerolog.Nop(),
		reconnectDelay: defaultReconnectDelay,
		pending:        make(map[int64]chan json.RawMessage),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open starts the connection loop. It is safe to call from every view that
// needs the connection; only the first call dials.
func (m *Manager) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.opened {
		return nil
	}
	m.opened = true

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.run(ctx)
	return nil
}

// Close stops reconnecting, drops the live connection and waits for the
// connection loop to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	opened := m.opened
	cancel := m.cancel
	conn := m.conn
	m.mu.Unlock()

	if !opened {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.Close()
	}
	<-m.done
	return nil
}

func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Scope returns a listener group. Closing it detaches exactly the listeners
// attached through it.
func (m *Manager) Scope() *Scope {
	return &Scope{manager: m}
}

func (m *Manager) Emit(ctx context.Context, event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return m.write(ctx, env)
}

// EmitWithAck sends event and blocks until the gateway acknowledges it, the
// connection drops or ctx is done.
func (m *Manager) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}

	reply := make(chan json.RawMessage, 1)
	m.mu.Lock()
	m.nextAck++
	env.AckID = m.nextAck
	m.pending[env.AckID] = reply
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, env.AckID)
		m.mu.Unlock()
	}()

	if err := m.write(ctx, env); err != nil {
		return nil, err
	}

	select {
	case data, ok := <-reply:
		if !ok {
			return nil, ErrDisconnected
		}
		return data, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s ack: %w", event, ctx.Err())
	}
}

func (m *Manager) write(ctx context.Context, env protocol.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.Write(ctx, env); err != nil {
		return fmt.Errorf("write %s: %w", env.Event, err)
	}
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	for {
		conn, err := m.transport.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warn().Err(err).Msg("socket dial failed")
			if !sleep(ctx, m.reconnectDelay) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()

		m.logger.Debug().Msg("socket connected")
		m.dispatch(protocol.Envelope{Event: protocol.EventConnect})

		err = m.readLoop(ctx, conn)
		m.drop(conn)
		m.dispatch(protocol.Envelope{Event: protocol.EventDisconnect})

		if ctx.Err() != nil {
			return
		}
		m.logger.Warn().Err(err).Msg("socket disconnected")
		if !sleep(ctx, m.reconnectDelay) {
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) error {
	for {
		env, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if env.Event == protocol.EventAck {
			m.resolve(env)
			continue
		}
		m.dispatch(env)
	}
}

func (m *Manager) resolve(env protocol.Envelope) {
	m.mu.Lock()
	reply, ok := m.pending[env.AckID]
	if ok {
		delete(m.pending, env.AckID)
	}
	m.mu.Unlock()

	if !ok {
		m.logger.Debug().Int64("ack_id", env.AckID).Msg("ack without pending emit")
		return
	}
	reply <- env.Data
}

// drop forgets conn and fails every emit still waiting for an ack on it.
func (m *Manager) drop(conn Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	pending := m.pending
	m.pending = make(map[int64]chan json.RawMessage)
	m.mu.Unlock()

	_ = conn.Close()
	for _, reply := range pending {
		close(reply)
	}
}

func (m *Manager) dispatch(env protocol.Envelope) {
	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.listeners))
	for _, l := range m.listeners {
		if l.event == env.Event {
			handlers = append(handlers, l.fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(env)
	}
}

func (m *Manager) attach(event string, fn Handler) uuid.UUID {
	id := uuid.New()
	m.mu.Lock()
	m.listeners = append(m.listeners, listener{id: id, event: event, fn: fn})
	m.mu.Unlock()
	return id
}

func (m *Manager) detach(ids []uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	kept := m.listeners[:0]
	for _, l := range m.listeners {
		if _, ok := drop[l.id]; !ok {
			kept = append(kept, l)
		}
	}
	m.listeners = kept
	m.mu.Unlock()
}

func (m *Manager) listenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
