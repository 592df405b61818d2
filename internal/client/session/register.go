package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/client/socket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/protocol"
)

var ErrAnonymous = errors.New("session: no signed-in user")

// Register announces identity on the socket and returns the notifications
// the gateway held while the user was away. It is sent on every connect, so
// the gateway treats repeats as no-ops.
func Register(ctx context.Context, emitter socket.Emitter, identity Identity) ([]models.Notification, error) {
	if identity.UserID == "" {
		return nil, ErrAnonymous
	}

	reply, err := emitter.EmitWithAck(ctx, protocol.EventRegister, protocol.RegisterPayload{
		UserID: identity.UserID,
		Name:   identity.Name,
	})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if ackErr, ok := protocol.ParseAckError(reply); ok {
		return nil, fmt.Errorf("register: %s", ackErr.Message)
	}

	var pending []models.Notification
	if len(reply) == 0 || string(reply) == "null" {
		return pending, nil
	}
	if err := json.Unmarshal(reply, &pending); err != nil {
		return nil, fmt.Errorf("register: decode pending notifications: %w", err)
	}
	return pending, nil
}
