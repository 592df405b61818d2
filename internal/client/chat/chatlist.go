package chat

import (
	"context"
	"sync"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/api"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

const defaultChatPageSize = 10

type ChatLister interface {
	ListChats(ctx context.Context, page, limit int) (api.ChatPage, error)
}

// ChatList is the sidebar of conversations. Entries are only ever added or
// reordered, never removed.
type ChatList struct {
	lister ChatLister
	limit  int

	mu      sync.Mutex
	chats   []models.ChatSummary
	next    int
	hasMore bool
	loading bool
	err     error
}

func NewChatList(lister ChatLister, limit int) *ChatList {
	if limit <= 0 {
		limit = defaultChatPageSize
	}
	return &ChatList{lister: lister, limit: limit, next: 1, hasMore: true}
}

// Load fetches the next page of conversations. A failed load keeps the
// cursor, so calling Load again retries the same page.
func (l *ChatList) Load(ctx context.Context) error {
	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return nil
	}
	l.loading = true
	page := l.next
	l.mu.Unlock()

	result, err := l.lister.ListChats(ctx, page, l.limit)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false
	if err != nil {
		l.err = err
		return err
	}
	l.err = nil
	l.next = page + 1
	l.hasMore = result.HasMore()
	for _, c := range result.Chats {
		if l.indexOf(c.ID) < 0 {
			l.chats = append(l.chats, c)
		}
	}
	return nil
}

// Apply records msg as the latest message of its chat and moves that chat to
// the top. It reports false for chats not loaded yet.
func (l *ChatList) Apply(msg models.Message) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(msg.ChatID)
	if i < 0 {
		return false
	}
	c := l.chats[i]
	c.LastMessage = msg.MessageContent
	if msg.SendedTime.After(c.LastMessageAt) {
		c.LastMessageAt = msg.SendedTime
	}
	copy(l.chats[1:i+1], l.chats[:i])
	l.chats[0] = c
	return true
}

// Add inserts a conversation created outside the paged listing at the top.
func (l *ChatList) Add(c models.ChatSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.indexOf(c.ID) >= 0 {
		return
	}
	l.chats = append([]models.ChatSummary{c}, l.chats...)
}

func (l *ChatList) Chats() []models.ChatSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ChatSummary, len(l.chats))
	copy(out, l.chats)
	return out
}

func (l *ChatList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

func (l *ChatList) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *ChatList) indexOf(chatID string) int {
	for i, c := range l.chats {
		if c.ID == chatID {
			return i
		}
	}
	return -1
}
