package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/store"
)

type notificationStore interface {
	Save(ctx context.Context, n models.Notification) error
	List(ctx context.Context, userID string) ([]models.Notification, error)
	Update(ctx context.Context, userID, id string, fn func(*models.Notification)) (*models.Notification, error)
	Delete(ctx context.Context, userID, id string) error
	Clear(ctx context.Context, userID string) (int, error)
}

type NotificationService struct {
	store notificationStore
	now   func() time.Time
}

func NewNotificationService(store notificationStore) *NotificationService {
	return &NotificationService{store: store, now: time.Now}
}

// NotifyMessage records that from sent recipientID a chat message.
func (s *NotificationService) NotifyMessage(
	ctx context.Context,
	from Actor,
	recipientID string,
	recipientModel models.Role,
) (*models.Notification, error) {
	if from.ID == "" || recipientID == "" {
		return nil, ErrInvalidInput
	}

	name := strings.TrimSpace(from.Name)
	if name == "" {
		name = "Someone"
	}

	now := s.now().UTC()
	n := models.Notification{
		ID:            newID(),
		From:          models.Actor{ID: from.ID, Name: name},
		Message:       "New message from " + name,
		UserID:        recipientID,
		CreatedAt:     now,
		UpdatedAt:     now,
		SenderModel:   from.Role,
		ReceiverModel: recipientModel,
	}
	if err := s.store.Save(ctx, n); err != nil {
		return nil, err
	}
	return &n, nil
}

// List returns every notification of userID, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp().After(list[j].Timestamp())
	})
	return list, nil
}

// Unread returns what a client is handed when it registers.
func (s *NotificationService) Unread(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread := make([]models.Notification, 0, len(list))
	for _, n := range list {
		if !n.Read {
			unread = append(unread, n)
		}
	}
	return unread, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) (*models.Notification, error) {
	if id == "" {
		return nil, ErrInvalidInput
	}
	n, err := s.store.Update(ctx, userID, id, func(n *models.Notification) {
		n.Read = true
		n.UpdatedAt = s.now().UTC()
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return n, err
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if id == "" {
		return ErrInvalidInput
	}
	err := s.store.Delete(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *NotificationService) Clear(ctx context.Context, userID string) (int, error) {
	return s.store.Clear(ctx, userID)
}
