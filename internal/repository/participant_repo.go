package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
)

type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ParticipantRepository stores the display data of clients and vendors so
// chat summaries can show the other side.
type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// Upsert records p, keeping a previously stored name or avatar when p leaves
// them empty.
func (r *ParticipantRepository) Upsert(ctx context.Context, p models.Participant) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO participants (id, name, avatar, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = COALESCE(NULLIF(EXCLUDED.name, ''), participants.name),
			avatar = COALESCE(NULLIF(EXCLUDED.avatar, ''), participants.avatar),
			updated_at = NOW()
	`, p.ID, p.Name, p.Avatar, string(p.Role))
	return err
}

func (r *ParticipantRepository) GetByID(ctx context.Context, id string) (*models.Participant, error) {
	var p models.Participant
	var role string
	err := r.db.QueryRow(ctx, `
		SELECT id, name, avatar, role
		FROM participants
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Avatar, &role)
	if err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	return &p, nil
}
