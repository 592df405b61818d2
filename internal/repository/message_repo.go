package repository

import (
	"context"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, sender_model, content, sent_at, seen)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING id, chat_id, sender_id, sender_model, content, sent_at, seen
	`

	var created models.Message
	var senderModel string
	err := r.db.QueryRow(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.SenderID,
		string(msg.SenderModel),
		msg.MessageContent,
		msg.SendedTime,
	).Scan(
		&created.ID,
		&created.ChatID,
		&created.SenderID,
		&senderModel,
		&created.MessageContent,
		&created.SendedTime,
		&created.Seen,
	)
	if err != nil {
		return nil, err
	}
	created.SenderModel = models.Role(senderModel)

	return &created, nil
}

// ListByChat returns one page of a chat's messages, newest first.
func (r *MessageRepository) ListByChat(
	ctx context.Context,
	chatID string,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE chat_id = $1
	`, chatID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT id, chat_id, sender_id, sender_model, content, sent_at, seen
		FROM messages
		WHERE chat_id = $1
		ORDER BY sent_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, chatID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		var senderModel string
		if err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.SenderID,
			&senderModel,
			&message.MessageContent,
			&message.SendedTime,
			&message.Seen,
		); err != nil {
			return nil, 0, err
		}
		message.SenderModel = models.Role(senderModel)
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkSeen flips the seen flag on the listed messages of chatID that were
// not written by readerID and returns the ids it changed.
func (r *MessageRepository) MarkSeen(
	ctx context.Context,
	chatID string,
	messageIDs []string,
	readerID string,
) ([]string, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		UPDATE messages
		SET seen = TRUE
		WHERE chat_id = $1
		  AND id = ANY($2)
		  AND sender_id <> $3
		  AND seen = FALSE
		RETURNING id
	`, chatID, messageIDs, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	updated := make([]string, 0, len(messageIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		updated = append(updated, id)
	}
	return updated, rows.Err()
}
