package handlers

import (
	"errors"
	"strconv"

	"github.com/Gersondiaz03/aasmcbev2/internal/models"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

var errInvalidNumber = errors.New("invalid number")

// PageLimits bounds the limit query parameter of paged history.
type PageLimits struct {
	Default int
	Max     int
}

func (l PageLimits) normalize() PageLimits {
	if l.Default <= 0 {
		l.Default = defaultPageLimit
	}
	if l.Max <= 0 {
		l.Max = maxPageLimit
	}
	if l.Default > l.Max {
		l.Default = l.Max
	}
	return l
}

func parseSkipLimit(c *fiber.Ctx, limits PageLimits) (int, int, error) {
	skip, err := parseNonNegativeInt(c.Query("skip"))
	if err != nil {
		return 0, 0, err
	}

	limit := parsePositiveInt(c.Query("limit"), limits.Default)
	if limit > limits.Max {
		limit = limits.Max
	}
	return skip, limit, nil
}

func buildPaginationMeta(skip, limit, total int) models.PaginationMeta {
	return models.PaginationMeta{
		Skip:  skip,
		Limit: limit,
		Total: total,
	}
}

func parsePositiveInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseNonNegativeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, errInvalidNumber
	}
	return value, nil
}
