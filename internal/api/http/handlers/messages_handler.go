package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thread-service/internal/api/dto"
	"github.com/spec-kit/thread-service/internal/auth"
	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/service"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// MessagesHandler manages message endpoints.
type MessagesHandler struct {
	service *service.ThreadService
}

// NewMessagesHandler constructs handler.
func NewMessagesHandler(threadService *service.ThreadService) *MessagesHandler {
	return &MessagesHandler{service: threadService}
}

// PostMessage POST /threads/:id/messages.
func (h *MessagesHandler) PostMessage(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.PostMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	msg, err := h.service.PostMessage(c.Context(), service.PostMessageInput{
		ClientMsgID:     req.ClientMsgID,
		ThreadID:        c.Params("id"),
		AuthorID:        principal.UserID,
		AuthorName:      principal.UserName,
		AuthorKind:      domain.AuthorKindHuman,
		Body:            req.Body,
		ParentMessageID: req.ParentMessageID,
		Attachments:     req.Attachments,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": messageResponse(msg)})
}

// MarkRead POST /threads/:id/read.
func (h *MessagesHandler) MarkRead(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.MarkReadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.UpTo.IsZero() {
		return apperrors.NewValidationError("up_to required", nil)
	}
	if err := h.service.MarkRead(c.Context(), c.Params("id"),
		principal.UserID, principal.UserName, req.UpTo); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddReaction PUT /messages/:id/reactions.
func (h *MessagesHandler) AddReaction(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.AddReaction(c.Context(), c.Params("id"), req.Emoji, principal.UserID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// RemoveReaction DELETE /messages/:id/reactions.
func (h *MessagesHandler) RemoveReaction(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.ReactionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.RemoveReaction(c.Context(), c.Params("id"), req.Emoji, principal.UserID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
