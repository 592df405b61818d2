package chat

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/clock"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

// SeenThreshold is the fraction of a message that must be on screen before it
// counts as read.
const SeenThreshold = 0.5

const emitTimeout = 5 * time.Second

type Visibility struct {
	MessageID string
	Ratio     float64
}

// ReadTracker turns visibility reports into messagesSeen emits. Each message
// id is reported at most once per chat.
type ReadTracker struct {
	emitter  socket.Emitter
	clock    clock.Clock
	settle   time.Duration
	logger   zerolog.Logger
	messages func() []models.Message

	mu      sync.Mutex
	chatID  string
	roomID  string
	selfID  string
	marked  map[string]struct{}
	visible bool
	timer   clock.Timer
	gen     uint64
}

func NewReadTracker(emitter socket.Emitter, messages func() []models.Message, clk clock.Clock, settle time.Duration, logger zerolog.Logger) *ReadTracker {
	return &ReadTracker{
		emitter:  emitter,
		clock:    clk,
		settle:   settle,
		logger:   logger,
		messages: messages,
		marked:   make(map[string]struct{}),
		visible:  true,
	}
}

// Reset starts tracking a new chat and forgets every id marked in the
// previous one.
func (t *ReadTracker) Reset(chatID, roomID, selfID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chatID = chatID
	t.roomID = roomID
	t.selfID = selfID
	t.marked = make(map[string]struct{})
	t.stopTimer()
}

// Adopt fills in the chat id of a conversation that only got one after its
// first message, keeping the ids already marked.
func (t *ReadTracker) Adopt(chatID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID == "" {
		t.chatID = chatID
	}
}

// Observe handles one batch of visibility reports and emits at most one
// messagesSeen event for it. It returns the ids that were reported.
func (t *ReadTracker) Observe(ctx context.Context, batch []Visibility) []string {
	t.mu.Lock()
	if !t.visible || t.chatID == "" {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	byID := t.index()
	candidates := make([]string, 0, len(batch))
	for _, v := range batch {
		if v.Ratio < SeenThreshold {
			continue
		}
		if msg, ok := byID[v.MessageID]; ok {
			candidates = append(candidates, msg.ID)
		}
	}
	return t.report(ctx, candidates, byID)
}

// SetVisible records whether the chat is on screen. Coming back into view
// schedules a rescan of the held messages once the settle delay passes.
func (t *ReadTracker) SetVisible(visible bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasVisible := t.visible
	t.visible = visible
	if !visible {
		t.stopTimer()
		return
	}
	if wasVisible {
		return
	}
	t.stopTimer()
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.settle, func() { t.rescan(gen) })
}

// Stop cancels a pending rescan.
func (t *ReadTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimer()
}

// Marked reports whether id was already reported in the current chat.
func (t *ReadTracker) Marked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.marked[id]
	return ok
}

func (t *ReadTracker) rescan(gen uint64) {
	t.mu.Lock()
	if gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	if !t.visible {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	byID := t.index()
	ids := make([]string, 0, len(byID))
	for _, msg := range t.messages() {
		if msg.ID != "" {
			ids = append(ids, msg.ID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()
	t.report(ctx, ids, byID)
}

func (t *ReadTracker) report(ctx context.Context, candidates []string, byID map[string]models.Message) []string {
	t.mu.Lock()
	ids := make([]string, 0, len(candidates))
	for _, id := range candidates {
		msg := byID[id]
		if msg.SenderID == t.selfID || msg.Seen {
			continue
		}
		if _, done := t.marked[id]; done {
			continue
		}
		t.marked[id] = struct{}{}
		ids = append(ids, id)
	}
	payload := protocol.MessagesSeenPayload{
		ChatID:     t.chatID,
		RoomID:     t.roomID,
		UserID:     t.selfID,
		MessageIDs: ids,
	}
	t.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	if err := t.emitter.Emit(ctx, protocol.EventMessagesSeen, payload); err != nil {
		t.logger.Warn().Err(err).Str("chat_id", payload.ChatID).Int("count", len(ids)).Msg("emit messagesSeen failed")
	}
	return ids
}

func (t *ReadTracker) index() map[string]models.Message {
	msgs := t.messages()
	byID := make(map[string]models.Message, len(msgs))
	for _, msg := range msgs {
		if msg.ID != "" {
			byID[msg.ID] = msg
		}
	}
	return byID
}

// stopTimer also invalidates a callback that already started running.
func (t *ReadTracker) stopTimer() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
