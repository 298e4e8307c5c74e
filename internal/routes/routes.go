package routes

import (
	"context"
	"errors"

	"github.com/Gersondiaz03/aasmcbev2/internal/config"
	"github.com/Gersondiaz03/aasmcbev2/internal/handlers"
	"github.com/Gersondiaz03/aasmcbev2/internal/middleware"
	"github.com/Gersondiaz03/aasmcbev2/internal/repository"
	"github.com/Gersondiaz03/aasmcbev2/internal/services"
	chatws "github.com/Gersondiaz03/aasmcbev2/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RegisterRoutes wires the chat stack onto app. The returned registry must be
// closed on shutdown; ctx bounds the lifetime of every accepted socket.
func RegisterRoutes(ctx context.Context, app *fiber.App, cfg *config.Config, db *pgxpool.Pool) (*chatws.Registry, error) {
	if cfg == nil || db == nil {
		return nil, errors.New("routes need a config and a database pool")
	}

	userRepo := repository.NewUserRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	chatService := services.NewChatService(conversationRepo, messageRepo, userRepo)

	registry := chatws.NewRegistry()
	gateway := chatws.NewGateway(
		registry,
		chatws.JWTVerifier(cfg.JWTSecret),
		chatService,
		chatws.GatewayConfig{
			IdleTimeout:  cfg.WSIdleTimeout,
			WriteTimeout: cfg.WSWriteTimeout,
		},
	)
	chatHandler := handlers.NewChatHandler(
		ctx,
		chatService,
		registry,
		gateway,
		handlers.PageLimits{Default: cfg.MessagePageLimit, Max: cfg.MessagePageMax},
	)

	RegisterChatRoutes(app, chatHandler, cfg.JWTSecret)
	app.Get("/api/v1/me", middleware.AuthRequired(cfg.JWTSecret), handlers.NewMeHandler(userRepo).Me)
	return registry, nil
}

func RegisterChatRoutes(app fiber.Router, chatHandler *handlers.ChatHandler, jwtSecret string) {
	api := app.Group("/api/v1")

	// Registered before the bearer-protected group: sockets authenticate
	// during the handshake and are rejected with close codes.
	api.Use("/chat/ws", chatHandler.WebSocketUpgrade)
	api.Get("/chat/ws/:id", websocket.New(chatHandler.HandleWebSocket))

	chat := api.Group("/chat", middleware.AuthRequired(jwtSecret))
	chat.Get("/counterparts", chatHandler.ListCounterparts)

	conversations := chat.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("/counselor", chatHandler.StartWithCounselor)
	conversations.Post("/admin", chatHandler.StartWithAdmin)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Post("/:id/read", chatHandler.MarkRead)
}
