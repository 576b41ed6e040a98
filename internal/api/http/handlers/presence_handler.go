package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thread-service/internal/api/dto"
	"github.com/spec-kit/thread-service/internal/auth"
	"github.com/spec-kit/thread-service/internal/service"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// PresenceHandler manages typing indicator endpoints.
type PresenceHandler struct {
	service *service.PresenceService
}

// NewPresenceHandler constructs handler.
func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{service: presenceService}
}

// SetTyping PUT /threads/:id/typing.
func (h *PresenceHandler) SetTyping(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.SetTyping(c.Context(), c.Params("id"),
		principal.UserID, principal.UserName); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ClearTyping DELETE /threads/:id/typing.
func (h *PresenceHandler) ClearTyping(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.ClearTyping(c.Context(), c.Params("id"), principal.UserID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// GetTypers GET /threads/:id/typing.
func (h *PresenceHandler) GetTypers(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("user required")
	}
	typers, err := h.service.ActiveTypers(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TypingIndicatorResponse, 0, len(typers))
	for _, typer := range typers {
		items = append(items, dto.TypingIndicatorResponse{
			UserID:    typer.UserID,
			UserName:  typer.UserName,
			ExpiresAt: typer.ExpiresAt,
		})
	}
	return c.JSON(fiber.Map{"data": items})
}
