package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/session"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

const registerTimeout = 10 * time.Second

type Socket interface {
	socket.Emitter
	Open() error
	Connected() bool
	Scope() *socket.Scope
}

type Backend interface {
	ReadMarker
	Clearer
}

// View wires the feed and toaster to the shared connection.
type View struct {
	sock    Socket
	session *session.Store
	logger  zerolog.Logger

	feed    *Feed
	toaster *Toaster

	mu       sync.Mutex
	mounted  bool
	scope    *socket.Scope
	ctx      context.Context
	cancel   context.CancelFunc
	unsubOut func()
	wg       sync.WaitGroup
}

type Option func(*viewOptions)

type viewOptions struct {
	clock         clock.Clock
	logger        zerolog.Logger
	toastDuration time.Duration
	marker        ReadMarker
}

func WithClock(clk clock.Clock) Option {
	return func(o *viewOptions) { o.clock = clk }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *viewOptions) { o.logger = logger }
}

func WithToastDuration(d time.Duration) Option {
	return func(o *viewOptions) { o.toastDuration = d }
}

// WithReadMarker overrides how mark-read reaches the server.
func WithReadMarker(marker ReadMarker) Option {
	return func(o *viewOptions) { o.marker = marker }
}

func NewView(sock Socket, store *session.Store, backend Backend, opts ...Option) *View {
	o := viewOptions{clock: clock.Real{}, logger: zerolog.Nop(), marker: backend}
	for _, opt := range opts {
		opt(&o)
	}

	return &View{
		sock:    sock,
		session: store,
		logger:  o.logger,
		feed:    NewFeed(o.marker, backend, sock, o.logger),
		toaster: NewToaster(o.clock, o.toastDuration),
	}
}

func (v *View) Mount(context.Context) error {
	if v.session.Identity().UserID == "" {
		return session.ErrAnonymous
	}

	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return nil
	}
	v.mounted = true
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.scope = v.sock.Scope()
	scope := v.scope
	v.unsubOut = v.session.OnLogout(func() {
		v.feed.Clear()
		v.toaster.Stop()
	})
	v.mu.Unlock()

	scope.On(protocol.EventConnect, func(protocol.Envelope) { v.spawn(v.register) })
	scope.On(protocol.EventNotification, v.onNotification)

	if err := v.sock.Open(); err != nil {
		v.Unmount()
		return err
	}
	if v.sock.Connected() {
		v.spawn(v.register)
	}
	return nil
}

func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	scope, cancel, unsub := v.scope, v.cancel, v.unsubOut
	v.scope, v.unsubOut = nil, nil
	v.mu.Unlock()

	scope.Close()
	unsub()
	cancel()
	v.wg.Wait()
	v.toaster.Stop()
}

func (v *View) MarkRead(ctx context.Context, id string) error {
	return v.feed.MarkRead(ctx, id)
}

func (v *View) Delete(ctx context.Context, id string) error {
	return v.feed.Delete(ctx, id)
}

func (v *View) ClearAll(ctx context.Context) error {
	return v.feed.ClearAll(ctx)
}

func (v *View) Feed() *Feed {
	return v.feed
}

func (v *View) Toasts() []Toast {
	return v.toaster.Active()
}

func (v *View) DismissToast(id string) {
	v.toaster.Dismiss(id)
}

func (v *View) register(ctx context.Context) {
	identity := v.session.Identity()
	if identity.UserID == "" {
		return
	}

	regCtx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()
	pending, err := session.Register(regCtx, v.sock, identity)
	if err != nil {
		v.logger.Warn().Err(err).Msg("register failed")
		return
	}
	if n := v.feed.Seed(pending); n > 0 {
		v.logger.Debug().Int("count", n).Msg("seeded pending notifications")
	}
}

func (v *View) onNotification(env protocol.Envelope) {
	var n models.Notification
	if err := env.Decode(&n); err != nil {
		v.logger.Warn().Err(err).Msg("decode notification")
		return
	}
	if v.feed.Push(n) {
		v.toaster.Show(n)
	}
}

func (v *View) spawn(fn func(ctx context.Context)) {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	ctx := v.ctx
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		fn(ctx)
	}()
}
