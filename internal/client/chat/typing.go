package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

const DefaultQuietPeriod = 3 * time.Second

// Typer emits typing on the first keystroke of a burst and stopped-typing once
// the input has been quiet for the configured period.
type Typer struct {
	emitter socket.Emitter
	clock   clock.Clock
	quiet   time.Duration
	logger  zerolog.Logger

	mu       sync.Mutex
	username string
	roomID   string
	typing   bool
	timer    clock.Timer
	// gen identifies the live timer; callbacks of replaced timers are ignored.
	gen uint64
}

func NewTyper(emitter socket.Emitter, clk clock.Clock, quiet time.Duration, logger zerolog.Logger) *Typer {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Typer{emitter: emitter, clock: clk, quiet: quiet, logger: logger}
}

// SetRoom moves the typer to another room. A burst in progress is closed in
// the old room first.
func (t *Typer) SetRoom(roomID, username string) {
	t.Stop()
	t.mu.Lock()
	t.roomID = roomID
	t.username = username
	t.mu.Unlock()
}

// Input reports the current contents of the composer.
func (t *Typer) Input(text string) {
	if strings.TrimSpace(text) == "" {
		t.Stop()
		return
	}

	t.mu.Lock()
	if t.roomID == "" {
		t.mu.Unlock()
		return
	}
	edge := !t.typing
	t.typing = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.quiet, func() { t.expire(gen) })
	payload := protocol.TypingPayload{Username: t.username, RoomID: t.roomID}
	t.mu.Unlock()

	if edge {
		t.emit(protocol.EventTyping, payload)
	}
}

// Stop ends the current burst immediately.
func (t *Typer) Stop() {
	t.mu.Lock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	if !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	roomID := t.roomID
	t.mu.Unlock()

	t.emit(protocol.EventStoppedTyping, protocol.StoppedTypingPayload{RoomID: roomID})
}

func (t *Typer) Typing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

func (t *Typer) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if !t.typing {
		t.mu.Unlock()
		return
	}
	t.typing = false
	roomID := t.roomID
	t.mu.Unlock()

	t.emit(protocol.EventStoppedTyping, protocol.StoppedTypingPayload{RoomID: roomID})
}

func (t *Typer) emit(event string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	if err := t.emitter.Emit(ctx, event, payload); err != nil {
		t.logger.Debug().Err(err).Str("event", event).Msg("typing emit failed")
	}
}

// Indicator shows who is typing in the active room.
type Indicator struct {
	mu     sync.Mutex
	roomID string
	user   string
}

func (i *Indicator) Reset(roomID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.roomID = roomID
	i.user = ""
}

func (i *Indicator) Typing(p protocol.TypingPayload) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if p.RoomID == "" || p.RoomID != i.roomID {
		return
	}
	i.user = p.Username
}

func (i *Indicator) Stopped(p protocol.StoppedTypingPayload) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if p.RoomID != i.roomID {
		return
	}
	i.user = ""
}

// User returns the name to show, or "" when nobody is typing.
func (i *Indicator) User() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.user
}
