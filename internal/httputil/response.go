package httputil

import (
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/wireline-chat/wireline-server/internal/apierrors"
)

// Envelope is the response shape every handler in internal/api returns:
// status mirrors whether the call succeeded, code mirrors the HTTP status,
// and data is only present on success.
type Envelope struct {
	Status  bool   `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success sends a 200 envelope carrying data.
func Success(c fiber.Ctx, data any) error {
	return SuccessStatus(c, fiber.StatusOK, data)
}

// SuccessStatus sends an envelope with a custom status code.
func SuccessStatus(c fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(Envelope{
		Status: true,
		Code:   status,
		Data:   data,
	})
}

// Fail sends a failure envelope. code categorizes the failure for logging;
// the wire response itself only carries the mirrored HTTP status and message.
func Fail(c fiber.Ctx, status int, code apierrors.Code, message string) error {
	log.Debug().Str("error_code", string(code)).Int("status", status).Str("path", c.Path()).Msg(message)
	return c.Status(status).JSON(Envelope{
		Status:  false,
		Code:    status,
		Message: message,
	})
}
