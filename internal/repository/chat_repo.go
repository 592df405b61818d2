package repository

import (
	"context"
	"database/sql"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

type ChatRepository struct {
	db DBTX
}

func NewChatRepository(db DBTX) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateOrGet returns the chat between clientID and vendorID, creating it
// with id when it does not exist yet.
func (r *ChatRepository) CreateOrGet(
	ctx context.Context,
	id string,
	clientID string,
	vendorID string,
) (*models.Chat, error) {
	query := `
		INSERT INTO chats (id, client_id, vendor_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (client_id, vendor_id)
		DO UPDATE SET updated_at = chats.updated_at
		RETURNING id, client_id, vendor_id, last_message, last_message_at, created_at, updated_at
	`

	var chat models.Chat
	var lastMessageAt sql.NullTime
	err := r.db.QueryRow(ctx, query, id, clientID, vendorID).Scan(
		&chat.ID,
		&chat.ClientID,
		&chat.VendorID,
		&chat.LastMessage,
		&lastMessageAt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	chat.LastMessageAt = lastMessageAt.Time

	return &chat, nil
}

func (r *ChatRepository) GetByIDForParticipant(
	ctx context.Context,
	chatID string,
	participantID string,
) (*models.Chat, error) {
	query := `
		SELECT id, client_id, vendor_id, last_message, last_message_at, created_at, updated_at
		FROM chats
		WHERE id = $1 AND (client_id = $2 OR vendor_id = $2)
	`

	var chat models.Chat
	var lastMessageAt sql.NullTime
	err := r.db.QueryRow(ctx, query, chatID, participantID).Scan(
		&chat.ID,
		&chat.ClientID,
		&chat.VendorID,
		&chat.LastMessage,
		&lastMessageAt,
		&chat.CreatedAt,
		&chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	chat.LastMessageAt = lastMessageAt.Time

	return &chat, nil
}

// ListForParticipant pages through participantID's chats, most recently
// active first.
func (r *ChatRepository) ListForParticipant(
	ctx context.Context,
	participantID string,
	limit int,
	offset int,
) ([]models.ChatSummary, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM chats
		WHERE client_id = $1 OR vendor_id = $1
	`, participantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			c.id,
			c.client_id,
			c.vendor_id,
			c.last_message,
			c.last_message_at,
			c.created_at,
			c.updated_at,
			COALESCE(pc.name, ''),
			COALESCE(pc.avatar, ''),
			COALESCE(pv.name, ''),
			COALESCE(pv.avatar, ''),
			COALESCE(uc.unread_count, 0)
		FROM chats c
		LEFT JOIN participants pc ON pc.id = c.client_id
		LEFT JOIN participants pv ON pv.id = c.vendor_id
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages
			WHERE chat_id = c.id
			  AND sender_id <> $1
			  AND seen = FALSE
		) uc ON TRUE
		WHERE c.client_id = $1 OR c.vendor_id = $1
		ORDER BY COALESCE(c.last_message_at, c.updated_at, c.created_at) DESC, c.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, participantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	summaries := make([]models.ChatSummary, 0)
	for rows.Next() {
		var summary models.ChatSummary
		var lastMessageAt sql.NullTime

		if err := rows.Scan(
			&summary.ID,
			&summary.ClientID,
			&summary.VendorID,
			&summary.LastMessage,
			&lastMessageAt,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.Client.Name,
			&summary.Client.Avatar,
			&summary.Vendor.Name,
			&summary.Vendor.Avatar,
			&summary.UnreadCount,
		); err != nil {
			return nil, 0, err
		}

		summary.LastMessageAt = lastMessageAt.Time
		summary.Client.ID = summary.ClientID
		summary.Client.Role = models.RoleClient
		summary.Vendor.ID = summary.VendorID
		summary.Vendor.Role = models.RoleVendor
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return summaries, total, nil
}

func (r *ChatRepository) TouchLastMessage(ctx context.Context, msg models.Message) error {
	_, err := r.db.Exec(ctx, `
		UPDATE chats
		SET last_message = $2,
			last_message_at = $3,
			updated_at = NOW()
		WHERE id = $1
	`, msg.ChatID, msg.MessageContent, msg.SendedTime)
	return err
}
