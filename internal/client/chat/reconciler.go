package chat

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

var (
	ErrStalePage    = errors.New("chat: page response for an inactive chat")
	ErrNoActiveChat = errors.New("chat: no active chat")
	ErrPageInFlight = errors.New("chat: page fetch already in flight")
	ErrNoMorePages  = errors.New("chat: no older pages")
)

type LoadState int

const (
	Idle LoadState = iota
	Loading
	Ready
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return fmt.Sprintf("LoadState(%d)", int(s))
}

// PageRequest identifies one history fetch. A response is only applied while
// its ChatID and Generation still match the list.
type PageRequest struct {
	ChatID     string
	Page       int
	Generation uint64
}

// MessageList holds the messages of the active chat. History pages and live
// pushes both go through the same de-dup and sort step, so the result does
// not depend on arrival order.
type MessageList struct {
	mu         sync.Mutex
	chatID     string
	generation uint64
	state      LoadState
	messages   []models.Message
	ids        map[string]struct{}
	nextPage   int
	hasMore    bool
	inFlight   *PageRequest
	lastErr    error
	scroll     bool
}

func NewMessageList() *MessageList {
	return &MessageList{ids: make(map[string]struct{})}
}

// Reset switches the list to chatID and invalidates every outstanding fetch.
func (l *MessageList) Reset(chatID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.chatID = chatID
	l.generation++
	l.state = Idle
	l.messages = nil
	l.ids = make(map[string]struct{})
	l.nextPage = 1
	l.hasMore = chatID != ""
	l.inFlight = nil
	l.lastErr = nil
	l.scroll = false
}

// Adopt gives a brand-new conversation the id the gateway created for it.
// There is no history to fetch for such a chat.
func (l *MessageList) Adopt(chatID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chatID != "" || chatID == "" {
		return false
	}
	l.chatID = chatID
	l.hasMore = false
	l.state = Ready
	return true
}

// BeginPage reserves the next older page for fetching.
func (l *MessageList) BeginPage() (PageRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.chatID == "" {
		return PageRequest{}, ErrNoActiveChat
	}
	if l.inFlight != nil {
		return PageRequest{}, ErrPageInFlight
	}
	if !l.hasMore {
		return PageRequest{}, ErrNoMorePages
	}

	req := PageRequest{ChatID: l.chatID, Page: l.nextPage, Generation: l.generation}
	l.inFlight = &req
	if req.Page == 1 {
		l.state = Loading
	}
	return req, nil
}

// ApplyPage merges a fetched batch. Responses for a chat that is no longer
// active are dropped with ErrStalePage.
func (l *MessageList) ApplyPage(req PageRequest, batch []models.Message, hasMore bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.current(req) {
		return ErrStalePage
	}
	l.inFlight = nil
	l.lastErr = nil
	l.state = Ready
	l.nextPage = req.Page + 1
	l.hasMore = hasMore

	for _, msg := range batch {
		l.insert(msg)
	}
	l.sort()
	if req.Page == 1 {
		l.scroll = true
	}
	return nil
}

// FailPage records a failed fetch. A failed first page puts the list in the
// Failed state; a failed older page keeps what is already shown.
func (l *MessageList) FailPage(req PageRequest, err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.current(req) {
		return ErrStalePage
	}
	l.inFlight = nil
	l.lastErr = err
	if req.Page == 1 {
		l.state = Failed
	}
	return nil
}

// Push appends a live message when it belongs to the active chat and has not
// been seen before. It reports whether the list changed.
func (l *MessageList) Push(msg models.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.chatID == "" || (msg.ChatID != "" && msg.ChatID != l.chatID) {
		return false
	}
	if !l.insert(msg) {
		return false
	}
	l.sort()
	l.scroll = l.inFlight == nil || l.inFlight.Page == 1
	return true
}

// MarkOwnSeen flips the seen flag on the listed messages authored by selfID.
func (l *MessageList) MarkOwnSeen(ids []string, selfID string) int {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for i := range l.messages {
		msg := &l.messages[i]
		if msg.SenderID != selfID || msg.Seen {
			continue
		}
		if _, ok := want[msg.ID]; ok {
			msg.Seen = true
			n++
		}
	}
	return n
}

// ShouldScrollToBottom reports, and clears, the pending scroll request raised
// by the last append.
func (l *MessageList) ShouldScrollToBottom() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	scroll := l.scroll
	l.scroll = false
	return scroll
}

func (l *MessageList) Messages() []models.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *MessageList) ChatID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chatID
}

func (l *MessageList) State() LoadState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *MessageList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func (l *MessageList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

func (l *MessageList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *MessageList) current(req PageRequest) bool {
	return req.ChatID == l.chatID && req.Generation == l.generation &&
		l.inFlight != nil && l.inFlight.Page == req.Page
}

func (l *MessageList) insert(msg models.Message) bool {
	if msg.ID != "" {
		if _, dup := l.ids[msg.ID]; dup {
			return false
		}
		l.ids[msg.ID] = struct{}{}
	}
	l.messages = append(l.messages, msg)
	return true
}

func (l *MessageList) sort() {
	sort.SliceStable(l.messages, func(i, j int) bool {
		a, b := l.messages[i], l.messages[j]
		if !a.SendedTime.Equal(b.SendedTime) {
			return a.SendedTime.Before(b.SendedTime)
		}
		return a.ID < b.ID
	})
}

// RenderKey is the stable key a renderer should use for the message at index.
func RenderKey(index int, msg models.Message) string {
	if msg.ID != "" {
		return msg.ID
	}
	return fmt.Sprintf("%d-%d", index, msg.SendedTime.UnixNano())
}
