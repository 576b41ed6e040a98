package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thread-service/internal/api/dto"
	"github.com/spec-kit/thread-service/internal/auth"
	"github.com/spec-kit/thread-service/internal/service"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// DevicesHandler manages push token registration.
type DevicesHandler struct {
	service *service.RegistrationService
}

// NewDevicesHandler constructs handler.
func NewDevicesHandler(registrationService *service.RegistrationService) *DevicesHandler {
	return &DevicesHandler{service: registrationService}
}

// RegisterDevice POST /devices.
func (h *DevicesHandler) RegisterDevice(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.RegisterDeviceRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.RegisterToken(c.Context(), principal.UserID, req.Token); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
