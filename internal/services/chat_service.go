package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/repository"
)

const maxMessageLength = 4000

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Actor is the authenticated caller of a service method.
type Actor struct {
	ID   string
	Name string
	Role models.Role
}

type SendMessageInput struct {
	Content       string
	SentAt        time.Time
	ReceiverID    string
	ReceiverModel models.Role
}

type ChatDelivery struct {
	Chat           *models.Chat
	Message        *models.Message
	RecipientID    string
	RecipientModel models.Role
}

type ChatService struct {
	db              txBeginner
	chatRepo        *repository.ChatRepository
	messageRepo     *repository.MessageRepository
	participantRepo *repository.ParticipantRepository
	now             func() time.Time
}

func NewChatService(
	db txBeginner,
	chatRepo *repository.ChatRepository,
	messageRepo *repository.MessageRepository,
	participantRepo *repository.ParticipantRepository,
) *ChatService {
	return &ChatService{
		db:              db,
		chatRepo:        chatRepo,
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		now:             time.Now,
	}
}

// RegisterParticipant records the caller's display data for chat summaries.
func (s *ChatService) RegisterParticipant(ctx context.Context, actor Actor) error {
	if actor.ID == "" || !actor.Role.Valid() {
		return ErrInvalidInput
	}
	return s.participantRepo.Upsert(ctx, models.Participant{ID: actor.ID, Name: actor.Name, Role: actor.Role})
}

func (s *ChatService) ListChats(
	ctx context.Context,
	actor Actor,
	page int,
	limit int,
) ([]models.ChatSummary, int, error) {
	if !actor.Role.Valid() {
		return nil, 0, ErrForbidden
	}
	if page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	return s.chatRepo.ListForParticipant(ctx, actor.ID, limit, (page-1)*limit)
}

// ListMessages returns one page of history, newest first.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actor Actor,
	chatID string,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if !actor.Role.Valid() {
		return nil, 0, ErrForbidden
	}
	if chatID == "" || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	if _, err := s.chatRepo.GetByIDForParticipant(ctx, chatID, actor.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}

	return s.messageRepo.ListByChat(ctx, chatID, limit, (page-1)*limit)
}

// SendMessage stores a message from actor to the receiver, creating their
// chat on the first message.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actor Actor,
	input SendMessageInput,
) (*ChatDelivery, error) {
	if !actor.Role.Valid() {
		return nil, ErrForbidden
	}

	content := strings.TrimSpace(input.Content)
	if content == "" || len(content) > maxMessageLength {
		return nil, ErrInvalidInput
	}
	if input.ReceiverID == "" || input.ReceiverID == actor.ID {
		return nil, ErrInvalidInput
	}
	if input.ReceiverModel != actor.Role.Counter() {
		return nil, ErrInvalidInput
	}

	clientID, vendorID := actor.ID, input.ReceiverID
	if actor.Role == models.RoleVendor {
		clientID, vendorID = input.ReceiverID, actor.ID
	}

	sentAt := input.SentAt
	if sentAt.IsZero() {
		sentAt = s.now()
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txChatRepo := repository.NewChatRepository(tx)
	txMessageRepo := repository.NewMessageRepository(tx)

	chat, err := txChatRepo.CreateOrGet(ctx, newID(), clientID, vendorID)
	if err != nil {
		return nil, err
	}

	message, err := txMessageRepo.Create(ctx, models.Message{
		ID:             newID(),
		ChatID:         chat.ID,
		MessageContent: content,
		SenderID:       actor.ID,
		SenderModel:    actor.Role,
		SendedTime:     sentAt.UTC(),
	})
	if err != nil {
		return nil, err
	}

	if err := txChatRepo.TouchLastMessage(ctx, *message); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &ChatDelivery{
		Chat:           chat,
		Message:        message,
		RecipientID:    input.ReceiverID,
		RecipientModel: input.ReceiverModel,
	}, nil
}

// MarkSeen marks the listed messages of chatID as seen by actor. Messages
// actor wrote are left alone. It returns the ids that changed.
func (s *ChatService) MarkSeen(
	ctx context.Context,
	actor Actor,
	chatID string,
	messageIDs []string,
) ([]string, error) {
	if chatID == "" {
		return nil, ErrInvalidInput
	}
	if len(messageIDs) == 0 {
		return nil, nil
	}

	if _, err := s.chatRepo.GetByIDForParticipant(ctx, chatID, actor.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrForbidden
		}
		return nil, err
	}

	return s.messageRepo.MarkSeen(ctx, chatID, messageIDs, actor.ID)
}

func newID() string {
	return ulid.Make().String()
}
