package handlers

import (
	"context"
	"errors"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

type userLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type MeHandler struct {
	users userLookup
}

func NewMeHandler(users userLookup) *MeHandler {
	return &MeHandler{users: users}
}

// Me returns the directory record of the authenticated user, which chat
// clients use to pick their side of a conversation.
func (h *MeHandler) Me(c *fiber.Ctx) error {
	userID, err := parseActorID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}

	user, err := h.users.GetByID(c.Context(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}

	return c.JSON(fiber.Map{
		"user":         user,
		"display_name": user.DisplayName(),
	})
}
