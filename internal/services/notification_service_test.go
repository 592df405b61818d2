package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/store"
)

type memoryNotificationStore struct {
	items map[string][]models.Notification
}

func newMemoryNotificationStore() *memoryNotificationStore {
	return &memoryNotificationStore{items: map[string][]models.Notification{}}
}

func (m *memoryNotificationStore) Save(_ context.Context, n models.Notification) error {
	list := m.items[n.UserID]
	for i := range list {
		if list[i].ID == n.ID {
			list[i] = n
			return nil
		}
	}
	m.items[n.UserID] = append(list, n)
	return nil
}

func (m *memoryNotificationStore) List(_ context.Context, userID string) ([]models.Notification, error) {
	return append([]models.Notification(nil), m.items[userID]...), nil
}

func (m *memoryNotificationStore) Update(_ context.Context, userID, id string, fn func(*models.Notification)) (*models.Notification, error) {
	list := m.items[userID]
	for i := range list {
		if list[i].ID == id {
			fn(&list[i])
			n := list[i]
			return &n, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memoryNotificationStore) Delete(_ context.Context, userID, id string) error {
	list := m.items[userID]
	for i := range list {
		if list[i].ID == id {
			m.items[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memoryNotificationStore) Clear(_ context.Context, userID string) (int, error) {
	n := len(m.items[userID])
	delete(m.items, userID)
	return n, nil
}

func TestNotifyMessageThenUnread(t *testing.T) {
	service := NewNotificationService(newMemoryNotificationStore())
	clock := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	service.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	ctx := context.Background()
	from := Actor{ID: "v1", Name: "Venue", Role: models.RoleVendor}

	first, err := service.NotifyMessage(ctx, from, "u1", models.RoleClient)
	if err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}
	if first.Message != "New message from Venue" || first.From.ID != "v1" || first.ID == "" {
		t.Fatalf("unexpected notification %+v", first)
	}
	second, err := service.NotifyMessage(ctx, from, "u1", models.RoleClient)
	if err != nil {
		t.Fatalf("NotifyMessage: %v", err)
	}

	if _, err := service.MarkRead(ctx, "u1", first.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	unread, err := service.Unread(ctx, "u1")
	if err != nil {
		t.Fatalf("Unread: %v", err)
	}
	if len(unread) != 1 || unread[0].ID != second.ID {
		t.Fatalf("expected only the second notification unread, got %+v", unread)
	}

	all, err := service.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != first.ID {
		t.Fatalf("expected the freshly read notification first, got %+v", all)
	}
}

func TestNotificationServiceErrors(t *testing.T) {
	service := NewNotificationService(newMemoryNotificationStore())
	ctx := context.Background()

	if _, err := service.NotifyMessage(ctx, Actor{}, "u1", models.RoleClient); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := service.MarkRead(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := service.Delete(ctx, "u1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := service.Delete(ctx, "u1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestClearReportsCount(t *testing.T) {
	service := NewNotificationService(newMemoryNotificationStore())
	ctx := context.Background()
	from := Actor{ID: "v1", Role: models.RoleVendor}

	for i := 0; i < 3; i++ {
		if _, err := service.NotifyMessage(ctx, from, "u1", models.RoleClient); err != nil {
			t.Fatalf("NotifyMessage: %v", err)
		}
	}

	n, err := service.Clear(ctx, "u1")
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 cleared, got %d", n)
	}
}
