package handler

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/elimu-api/internal/middleware"
)

// ErrorPolicy decides whether internal error text reaches clients.
type ErrorPolicy struct {
	ExposeDetails bool
}

func (p ErrorPolicy) detail(err error) error {
	if p.ExposeDetails {
		return err
	}
	return nil
}

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

// lenientQueryInt returns 0 for missing or malformed values so the service
// applies its defaults.
func lenientQueryInt(c *fiber.Ctx, key string) int {
	value, err := parseQueryInt(c, key)
	if err != nil {
		return 0
	}
	return value
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := middleware.RequestLogger(base, c)
	return &logger
}
