package handlers

import (
	"errors"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
)

var errMissingActor = errors.New("missing actor")

// actorFrom builds the caller from the values the auth middleware stored in
// the request locals.
func actorFrom(userID, role, name interface{}) (services.Actor, error) {
	id, _ := userID.(string)
	if id == "" {
		return services.Actor{}, errMissingActor
	}
	roleStr, _ := role.(string)
	nameStr, _ := name.(string)
	return services.Actor{ID: id, Name: nameStr, Role: models.Role(roleStr)}, nil
}
