package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
)

type notificationApplicationService interface {
	List(ctx context.Context, userID string) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, id string) (*models.Notification, error)
	Clear(ctx context.Context, userID string) (int, error)
}

type NotificationHandler struct {
	service notificationApplicationService
}

func NewNotificationHandler(service notificationApplicationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c.Locals("user_id"), c.Locals("role"), c.Locals("name"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notifications, err := h.service.List(c.Context(), actor.ID)
	if err != nil {
		return mapNotificationError(c, err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	return c.JSON(fiber.Map{"notifications": notifications})
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := actorFrom(c.Locals("user_id"), c.Locals("role"), c.Locals("name"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	notification, err := h.service.MarkRead(c.Context(), actor.ID, c.Params("id"))
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"notification": notification})
}

func (h *NotificationHandler) Clear(c *fiber.Ctx) error {
	actor, err := actorFrom(c.Locals("user_id"), c.Locals("role"), c.Locals("name"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	cleared, err := h.service.Clear(c.Context(), actor.ID)
	if err != nil {
		return mapNotificationError(c, err)
	}

	return c.JSON(fiber.Map{"cleared": cleared})
}

func mapNotificationError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("notification request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process notification request"})
	}
}
