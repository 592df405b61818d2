package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/models"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
	chatws "github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/websocket"
)

type stubChatService struct {
	chatsResult    []models.ChatSummary
	chatsTotal     int
	chatsErr       error
	messagesResult []models.Message
	messagesTotal  int
	messagesErr    error
	lastActor      services.Actor
	lastChatID     string
	lastPage       int
	lastLimit      int
}

func (s *stubChatService) ListChats(_ context.Context, actor services.Actor, page int, limit int) ([]models.ChatSummary, int, error) {
	s.lastActor = actor
	s.lastPage = page
	s.lastLimit = limit
	return s.chatsResult, s.chatsTotal, s.chatsErr
}

func (s *stubChatService) ListMessages(_ context.Context, actor services.Actor, chatID string, page int, limit int) ([]models.Message, int, error) {
	s.lastActor = actor
	s.lastChatID = chatID
	s.lastPage = page
	s.lastLimit = limit
	return s.messagesResult, s.messagesTotal, s.messagesErr
}

func newTestHub() *chatws.Hub {
	return chatws.NewHub(nil, nil, zerolog.Nop())
}

func newChatApp(handler *ChatHandler, role, userID string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("role", role)
		c.Locals("user_id", userID)
		c.Locals("name", "Asha")
		return c.Next()
	})
	app.Get("/api/v1/chats", handler.ListChats)
	app.Get("/api/v1/chats/:id/messages", handler.GetMessages)
	return app
}

func TestListChatsReturnsSummaries(t *testing.T) {
	service := &stubChatService{
		chatsResult: []models.ChatSummary{
			{
				Chat: models.Chat{
					ID:            "c1",
					ClientID:      "u1",
					VendorID:      "v1",
					LastMessage:   "See you Friday",
					LastMessageAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
				},
				Vendor:      models.Participant{ID: "v1", Name: "Lakeside Hall", Role: models.RoleVendor},
				UnreadCount: 2,
			},
		},
		chatsTotal: 1,
	}
	handler := NewChatHandler(service, newTestHub(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	resp, err := newChatApp(handler, "User", "u1").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastActor.ID != "u1" || service.lastActor.Role != models.RoleClient || service.lastActor.Name != "Asha" {
		t.Fatalf("unexpected actor context: %+v", service.lastActor)
	}
	if service.lastPage != 1 || service.lastLimit != defaultPageLimit {
		t.Fatalf("unexpected default pagination: page=%d limit=%d", service.lastPage, service.lastLimit)
	}

	var body struct {
		Chats      []models.ChatSummary  `json:"chats"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Chats) != 1 || body.Chats[0].UnreadCount != 2 || body.Chats[0].Counterpart("u1").Name != "Lakeside Hall" {
		t.Fatalf("unexpected response: %+v", body.Chats)
	}
	if body.Pagination.TotalPages != 1 || body.Pagination.HasMore() {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
}

func TestListChatsRejectsUnknownRole(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, newTestHub(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	resp, err := newChatApp(handler, "admin", "u1").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestListChatsRequiresUser(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, newTestHub(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats", nil)
	resp, err := newChatApp(handler, "User", "").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestGetMessagesReturnsPagination(t *testing.T) {
	service := &stubChatService{
		messagesResult: []models.Message{
			{ID: "m5", ChatID: "c11", SenderID: "v1", SenderModel: models.RoleVendor, MessageContent: "Hi", SendedTime: time.Now().UTC()},
		},
		messagesTotal: 12,
	}
	handler := NewChatHandler(service, newTestHub(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/c11/messages?page=2&limit=5", nil)
	resp, err := newChatApp(handler, "Vendor", "v1").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if service.lastChatID != "c11" || service.lastPage != 2 || service.lastLimit != 5 {
		t.Fatalf("unexpected forwarded pagination: chat=%s page=%d limit=%d", service.lastChatID, service.lastPage, service.lastLimit)
	}

	var body struct {
		Messages   []models.Message      `json:"messages"`
		Pagination models.PaginationMeta `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(body.Messages) != 1 || body.Pagination.Total != 12 || body.Pagination.TotalPages != 3 {
		t.Fatalf("unexpected response body: %+v %+v", body.Messages, body.Pagination)
	}
	if !body.Pagination.HasMore() {
		t.Fatalf("expected more pages after page 2 of 3")
	}
}

func TestGetMessagesClampsLimit(t *testing.T) {
	service := &stubChatService{}
	handler := NewChatHandler(service, newTestHub(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/c1/messages?page=-1&limit=500", nil)
	resp, err := newChatApp(handler, "User", "u1").Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if service.lastPage != 1 || service.lastLimit != maxPageLimit {
		t.Fatalf("unexpected pagination: page=%d limit=%d", service.lastPage, service.lastLimit)
	}

	var body struct {
		Messages []models.Message `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Messages == nil {
		t.Fatalf("expected empty list, got null")
	}
}

func TestGetMessagesMapsErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: services.ErrNotFound, want: http.StatusNotFound},
		{name: "forbidden", err: services.ErrForbidden, want: http.StatusForbidden},
		{name: "invalid", err: services.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "other", err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewChatHandler(&stubChatService{messagesErr: tt.err}, newTestHub(), "secret")

			req := httptest.NewRequest(http.MethodGet, "/api/v1/chats/c99/messages", nil)
			resp, err := newChatApp(handler, "Vendor", "v1").Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestWebSocketAuthRequiresUpgrade(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, newTestHub(), "secret")

	app := fiber.New()
	app.Get("/api/v1/ws", handler.WebSocketAuth, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestWebSocketAuthRejectsBadToken(t *testing.T) {
	handler := NewChatHandler(&stubChatService{}, newTestHub(), "secret")

	app := fiber.New()
	app.Get("/api/v1/ws", handler.WebSocketAuth, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws?token=garbage", nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	req.Header.Set("Sec-WebSocket-Version", "13")
	req.Header.Set("Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}
