package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/thread-service/internal/api/dto"
	"github.com/spec-kit/thread-service/internal/auth"
	"github.com/spec-kit/thread-service/internal/domain"
	"github.com/spec-kit/thread-service/internal/service"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// ThreadsHandler manages thread endpoints.
type ThreadsHandler struct {
	service *service.ThreadService
}

// NewThreadsHandler constructs handler.
func NewThreadsHandler(threadService *service.ThreadService) *ThreadsHandler {
	return &ThreadsHandler{service: threadService}
}

// CreateThread POST /threads.
func (h *ThreadsHandler) CreateThread(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateThreadRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	thread, err := h.service.CreateThread(c.Context(), service.CreateThreadInput{
		Title:          req.Title,
		OwnerID:        principal.UserID,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": threadSummary(thread)})
}

// ListThreads GET /threads.
func (h *ThreadsHandler) ListThreads(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	threads, err := h.service.ListThreads(c.Context(), principal.UserID, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ThreadSummary, 0, len(threads))
	for i := range threads {
		items = append(items, threadSummary(&threads[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTimeline GET /threads/:id/messages.
func (h *ThreadsHandler) GetTimeline(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("user required")
	}
	limit, _ := strconv.Atoi(c.Query("limit", "200"))
	msgs, err := h.service.GetTimeline(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.MessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, messageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// UpdateStatus PATCH /threads/:id/status.
func (h *ThreadsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.UpdateThreadStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := h.service.UpdateStatus(c.Context(), c.Params("id"), principal.UserID,
		domain.ThreadStatus(req.Status)); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// DeleteThread DELETE /threads/:id.
func (h *ThreadsHandler) DeleteThread(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.DeleteThread(c.Context(), c.Params("id"), principal.UserID); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func threadSummary(thread *domain.Thread) dto.ThreadSummary {
	return dto.ThreadSummary{
		ID:             thread.ID,
		Title:          thread.Title,
		OwnerID:        thread.OwnerID,
		ParticipantIDs: thread.ParticipantIDs,
		Status:         string(thread.Status),
		CreatedAt:      thread.CreatedAt,
		UpdatedAt:      thread.UpdatedAt,
	}
}

func messageResponse(msg *domain.Message) dto.MessageResponse {
	reactions := make([]dto.ReactionResponse, 0, len(msg.Reactions))
	for _, reaction := range msg.Reactions {
		reactions = append(reactions, dto.ReactionResponse{
			Emoji:     reaction.Emoji,
			UserID:    reaction.UserID,
			Timestamp: reaction.CreatedAt,
		})
	}
	receipts := make([]dto.ReadReceiptResponse, 0, len(msg.ReadReceipts))
	for _, receipt := range msg.ReadReceipts {
		receipts = append(receipts, dto.ReadReceiptResponse{
			UserID:   receipt.UserID,
			UserName: receipt.UserName,
			ReadAt:   receipt.ReadAt,
		})
	}
	return dto.MessageResponse{
		ID:              msg.ID,
		ThreadID:        msg.ThreadID,
		ClientMsgID:     msg.ClientMsgID,
		AuthorID:        msg.AuthorID,
		AuthorName:      msg.AuthorName,
		AuthorKind:      string(msg.AuthorKind),
		Body:            msg.Body,
		Attachments:     msg.Attachments,
		ParentMessageID: msg.ParentMessageID,
		ReplyCount:      msg.ReplyCount,
		Reactions:       reactions,
		ReadReceipts:    receipts,
		Status:          string(msg.DeliveryStatus),
		CreatedAt:       msg.CreatedAt,
	}
}
