package handlers

import (
	"context"
	"errors"
	"strings"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/middleware"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
	chatws "github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/websocket"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/pkg/utils"
)

type chatApplicationService interface {
	ListChats(ctx context.Context, actor services.Actor, page int, limit int) ([]models.ChatSummary, int, error)
	ListMessages(ctx context.Context, actor services.Actor, chatID string, page int, limit int) ([]models.Message, int, error)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	jwtSecret string
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	actor, err := actorFrom(c.Locals("user_id"), c.Locals("role"), c.Locals("name"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if !actor.Role.Valid() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	page, limit := parsePage(c.Query("page"), c.Query("limit"))
	chats, total, err := h.service.ListChats(c.Context(), actor, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}
	if chats == nil {
		chats = []models.ChatSummary{}
	}

	return c.JSON(fiber.Map{
		"chats":      chats,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actor, err := actorFrom(c.Locals("user_id"), c.Locals("role"), c.Locals("name"))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	if !actor.Role.Valid() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	chatID := strings.TrimSpace(c.Params("id"))
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid chat id"})
	}

	page, limit := parsePage(c.Query("page"), c.Query("limit"))
	messages, total, err := h.service.ListMessages(c.Context(), actor, chatID, page, limit)
	if err != nil {
		return mapChatError(c, err)
	}
	if messages == nil {
		messages = []models.Message{}
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	claims, err := h.parseWSClaims(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}
	if !models.Role(claims.Role).Valid() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	c.Locals("name", claims.Name)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	actor, err := actorFrom(conn.Locals("user_id"), conn.Locals("role"), conn.Locals("name"))
	if err != nil {
		_ = conn.Close()
		return
	}

	client := chatws.NewClient(h.hub, conn, actor)
	if err := h.hub.Register(client); err != nil {
		log.Warn().Err(err).Str("user", actor.ID).Msg("rejecting socket")
		_ = conn.Close()
		return
	}
	go client.WritePump()
	client.ReadPump(context.Background())
}

func (h *ChatHandler) parseWSClaims(c *fiber.Ctx) (*utils.Claims, error) {
	tokenString := middleware.BearerToken(c)
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	return utils.ValidateToken(tokenString, h.jwtSecret)
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Chat not found"})
	default:
		log.Error().Err(err).Str("path", c.Path()).Msg("chat request failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
