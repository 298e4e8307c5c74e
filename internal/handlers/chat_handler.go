package handlers

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/Gersondiaz03/aasmcbev2/internal/services"
	chatws "github.com/Gersondiaz03/aasmcbev2/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

const wsTokenLocal = "ws_token"

var errInvalidActor = errors.New("invalid actor identity")

type chatApplicationService interface {
	StartConversationWithCounselor(ctx context.Context, adminID int64, counselorID int64) (*models.Conversation, error)
	StartConversationWithAdmin(ctx context.Context, counselorID int64, adminID int64) (*models.Conversation, error)
	ListCounterparts(ctx context.Context, role models.Role) ([]models.User, error)
	ListConversations(ctx context.Context, userID int64, role models.Role) ([]models.ConversationSummary, error)
	IsParticipant(ctx context.Context, conversationID int64, userID int64) (bool, error)
	ListMessages(ctx context.Context, conversationID int64, skip int, limit int) ([]models.ChatMessage, int, error)
	CreateMessage(ctx context.Context, conversationID int64, senderID int64, receiverID int64, text string) (*models.ChatMessage, error)
	MarkMessagesAsRead(ctx context.Context, conversationID int64, userID int64) (int64, error)
}

type messageBroadcaster interface {
	BroadcastEvent(conversationID int64, event any) (chatws.DeliveryReport, error)
}

type connectionServer interface {
	Serve(ctx context.Context, conn chatws.Conn, conversationID int64, token string) error
}

type ChatHandler struct {
	service     chatApplicationService
	broadcaster messageBroadcaster
	gateway     connectionServer
	limits      PageLimits
	// lifetime is cancelled when the server shuts down; live sockets follow it.
	lifetime context.Context
}

type startWithCounselorRequest struct {
	CounselorID int64 `json:"counselor_id" validate:"required,gt=0"`
}

type startWithAdminRequest struct {
	AdminID int64 `json:"admin_id" validate:"required,gt=0"`
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id" validate:"required,gt=0"`
	Text       string `json:"text" validate:"required"`
}

type chatActor struct {
	userID int64
	role   models.Role
}

func NewChatHandler(
	lifetime context.Context,
	service chatApplicationService,
	broadcaster messageBroadcaster,
	gateway connectionServer,
	limits PageLimits,
) *ChatHandler {
	return &ChatHandler{
		service:     service,
		broadcaster: broadcaster,
		gateway:     gateway,
		limits:      limits.normalize(),
		lifetime:    lifetime,
	}
}

func (h *ChatHandler) ListCounterparts(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}

	users, err := h.service.ListCounterparts(c.Context(), actor.role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"users": users})
}

func (h *ChatHandler) StartWithCounselor(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}
	if actor.role != models.RoleAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req startWithCounselorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	conversation, err := h.service.StartConversationWithCounselor(c.Context(), actor.userID, req.CounselorID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) StartWithAdmin(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}
	if actor.role != models.RoleCounselor {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	}

	var req startWithAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	conversation, err := h.service.StartConversationWithAdmin(c.Context(), actor.userID, req.AdminID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversation": conversation})
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}

	conversations, err := h.service.ListConversations(c.Context(), actor.userID, actor.role)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, err := parseConversationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	skip, limit, err := parseSkipLimit(c, h.limits)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid pagination"})
	}

	if err := h.requireParticipant(c, conversationID, actor.userID); err != nil {
		return mapChatError(c, err)
	}

	messages, total, err := h.service.ListMessages(c.Context(), conversationID, skip, limit)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(skip, limit, total),
	})
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, err := parseConversationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if err := h.requireParticipant(c, conversationID, actor.userID); err != nil {
		return mapChatError(c, err)
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if msg := validateRequest(req); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
	}

	message, err := h.service.CreateMessage(c.Context(), conversationID, actor.userID, req.ReceiverID, req.Text)
	if err != nil {
		return mapChatError(c, err)
	}

	// The message is committed; push failures never fail the request.
	report, err := h.broadcaster.BroadcastEvent(conversationID, models.NewMessageEventFrom(message))
	if err != nil {
		log.Printf("chat broadcast conversation=%d message=%d: %v", conversationID, message.ID, err)
	}
	for _, failure := range report.Failures {
		log.Printf("chat push conversation=%d target=%s dropped: %v", conversationID, failure.TargetID, failure.Err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": message})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actor, err := chatActorFrom(c)
	if err != nil {
		return mapChatError(c, err)
	}

	conversationID, err := parseConversationID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if err := h.requireParticipant(c, conversationID, actor.userID); err != nil {
		return mapChatError(c, err)
	}

	marked, err := h.service.MarkMessagesAsRead(c.Context(), conversationID, actor.userID)
	if err != nil {
		return mapChatError(c, err)
	}

	return c.JSON(fiber.Map{"marked_read": marked})
}

// WebSocketUpgrade rejects plain HTTP requests and remembers a bearer token
// from the handshake headers. Authentication itself happens in the gateway so
// rejections are delivered as close codes.
func (h *ChatHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return c.Status(fiber.StatusUpgradeRequired).JSON(fiber.Map{"error": "WebSocket upgrade required"})
	}

	c.Locals(wsTokenLocal, bearerToken(c.Get("Authorization")))
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	conversationID, _ := strconv.ParseInt(conn.Params("id"), 10, 64)

	token := strings.TrimSpace(conn.Query("token"))
	if token == "" {
		token, _ = conn.Locals(wsTokenLocal).(string)
	}

	err := h.gateway.Serve(h.lifetime, conn, conversationID, token)
	if err == nil ||
		errors.Is(err, chatws.ErrAuthenticationFailed) ||
		errors.Is(err, chatws.ErrAuthorizationFailed) {
		return
	}
	log.Printf("chat ws conversation=%d closed: %v", conversationID, err)
}

func chatActorFrom(c *fiber.Ctx) (chatActor, error) {
	role, _ := c.Locals("role").(string)
	actorRole := models.Role(role)
	if !actorRole.Valid() {
		return chatActor{}, services.ErrForbidden
	}

	userID, err := parseActorID(c)
	if err != nil {
		return chatActor{}, errInvalidActor
	}

	return chatActor{userID: userID, role: actorRole}, nil
}

// requireParticipant answers unknown and foreign conversations the same way.
func (h *ChatHandler) requireParticipant(c *fiber.Ctx, conversationID int64, userID int64) error {
	ok, err := h.service.IsParticipant(c.Context(), conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return services.ErrNotParticipant
	}
	return nil
}

func parseActorID(c *fiber.Ctx) (int64, error) {
	userIDStr, ok := c.Locals("user_id").(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil {
		return 0, err
	}
	if userID <= 0 {
		return 0, strconv.ErrRange
	}
	return userID, nil
}

func parseConversationID(c *fiber.Ctx) (int64, error) {
	conversationID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if conversationID <= 0 {
		return 0, errInvalidNumber
	}
	return conversationID, nil
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func mapChatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errInvalidActor):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrSelfConversation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "A conversation needs two different users"})
	case errors.Is(err, services.ErrInvalidParticipant):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Receiver is not the other participant"})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	case errors.Is(err, services.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
	case errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, pgx.ErrNoRows):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	default:
		log.Printf("chat request %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process chat request"})
	}
}
