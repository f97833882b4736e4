package middlewares

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// HandleError is the app-level fiber error handler. Unhandled errors render
// as opaque server_error responses; the detail goes to the log only.
func HandleError(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(errorResponse{
			Error:            "invalid_request",
			ErrorDescription: fiberErr.Message,
		})
	}
	slog.Error("Unhandled request error", "path", ctx.Path(), "error", err)
	return ctx.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "server_error"})
}
