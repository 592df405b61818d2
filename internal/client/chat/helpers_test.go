package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/api"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func msgAt(id string, minute int, sender string) models.Message {
	return models.Message{
		ID:             id,
		ChatID:         "c1",
		MessageContent: "text " + id,
		SenderID:       sender,
		SenderModel:    models.RoleVendor,
		SendedTime:     t0.Add(time.Duration(minute) * time.Minute),
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

type emitted struct {
	event   string
	payload any
}

type recordingEmitter struct {
	mu    sync.Mutex
	emits []emitted
}

func (e *recordingEmitter) Emit(_ context.Context, event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emits = append(e.emits, emitted{event: event, payload: payload})
	return nil
}

func (e *recordingEmitter) EmitWithAck(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	return nil, e.Emit(ctx, event, payload)
}

func (e *recordingEmitter) payloads(event string) []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []any
	for _, em := range e.emits {
		if em.event == event {
			out = append(out, em.payload)
		}
	}
	return out
}

// fakeBackend serves chat history newest-first, pageSize messages per page.
type fakeBackend struct {
	mu       sync.Mutex
	history  map[string][]models.Message
	chats    []models.ChatSummary
	err      error
	calls    []string
	gates    map[string]chan struct{}
	pageSize int
}

func (b *fakeBackend) ListMessages(ctx context.Context, chatID string, page, limit int) (api.MessagePage, error) {
	b.mu.Lock()
	b.calls = append(b.calls, fmt.Sprintf("%s:%d", chatID, page))
	gate := b.gates[chatID]
	err := b.err
	all := b.history[chatID]
	if b.pageSize > 0 {
		limit = b.pageSize
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return api.MessagePage{}, ctx.Err()
		}
	}
	if err != nil {
		return api.MessagePage{}, err
	}

	end := len(all) - (page-1)*limit
	if end <= 0 {
		return api.MessagePage{}, nil
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	batch := make([]models.Message, end-start)
	copy(batch, all[start:end])
	return api.MessagePage{Messages: batch, HasMore: start > 0}, nil
}

func (b *fakeBackend) ListChats(context.Context, int, int) (api.ChatPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return api.ChatPage{
		Chats:      b.chats,
		Pagination: models.PaginationMeta{Page: 1, Limit: 10, Total: len(b.chats), TotalPages: 1},
	}, nil
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// lateClock models timers whose callback has already started when Stop is
// called: Stop always reports false and the test fires callbacks by hand.
type lateClock struct {
	mu        sync.Mutex
	callbacks []func()
}

func (c *lateClock) Now() time.Time { return t0 }

func (c *lateClock) AfterFunc(_ time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, f)
	return lateTimer{}
}

func (c *lateClock) fire(i int) {
	c.mu.Lock()
	f := c.callbacks[i]
	c.mu.Unlock()
	f()
}

func (c *lateClock) scheduled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.callbacks)
}

type lateTimer struct{}

func (lateTimer) Stop() bool { return false }
