package routes

import (
	"context"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/config"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/handlers"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/middleware"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/repository"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/services"
	"github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/store"
	chatws "github.com/aparnaappu2002/Planzo-Frontend-sub000/internal/websocket"
)

const healthTimeout = 2 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

// RegisterRoutes wires the REST API, the socket endpoint and the operational
// routes. The chat hub runs until ctx is done.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client) error {
	participantRepo := repository.NewParticipantRepository(db)
	chatRepo := repository.NewChatRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	notificationStore := store.NewNotificationStore(rdb, "", cfg.NotificationTTL)

	chatService := services.NewChatService(db, chatRepo, messageRepo, participantRepo)
	notificationService := services.NewNotificationService(notificationStore)

	chatHub := chatws.NewHub(chatService, notificationService, log.Logger.With().Str("component", "hub").Logger())
	go chatHub.Run(ctx)

	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	app.Get("/health", healthHandler(map[string]pinger{
		"postgres": db,
		"redis":    notificationStore,
	}))
	if cfg.EnableMetrics {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	api := app.Group("/api")

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	chats := authProtected.Group("/chats")
	chats.Get("", chatHandler.ListChats)
	chats.Get("/:id/messages", chatHandler.GetMessages)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Patch("/:id/read", notificationHandler.MarkRead)
	notifications.Delete("", notificationHandler.Clear)

	return nil
}

func healthHandler(deps map[string]pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
		defer cancel()

		checks := fiber.Map{}
		status := fiber.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				checks[name] = err.Error()
				status = fiber.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		overall := "ok"
		if status != fiber.StatusOK {
			overall = "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status": overall,
			"checks": checks,
		})
	}
}
