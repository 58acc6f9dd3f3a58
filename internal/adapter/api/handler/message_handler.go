package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"clipfolio/internal/usecase"
	"clipfolio/pkg/errors"
	"clipfolio/pkg/response"
	"clipfolio/pkg/utils"
)

type MessageHandler struct {
	messagingUseCase *usecase.MessagingUseCase
	defaultPageSize  int
}

func NewMessageHandler(messagingUseCase *usecase.MessagingUseCase, defaultPageSize int) *MessageHandler {
	return &MessageHandler{
		messagingUseCase: messagingUseCase,
		defaultPageSize:  defaultPageSize,
	}
}

type sendMessageRequest struct {
	Text           string `json:"text"`
	AttachmentURL  string `json:"attachment_url,omitempty" validate:"omitempty,url"`
	AttachmentType string `json:"attachment_type,omitempty" validate:"omitempty,oneof=image video audio"`
}

type editMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type messageIDsRequest struct {
	MessageIDs []string `json:"message_ids" validate:"required,min=1"`
}

// ListMessages returns one page of the conversation with :userId, ascending
// by creation time. An empty cursor means the newest page.
func (h *MessageHandler) ListMessages(c echo.Context) error {
	selfID := c.Get("uid").(string)
	otherID := c.Param("userId")

	cursor, err := utils.DecodeMessageCursor(c.QueryParam("cursor"))
	if err != nil {
		return response.Error(c, errors.BadRequest("Invalid cursor", err))
	}

	limit := h.defaultPageSize
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	messages, next, err := h.messagingUseCase.ListMessages(c.Request().Context(), selfID, otherID, cursor, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Page(c, messages, utils.EncodeMessageCursor(next))
}

func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	selfID := c.Get("uid").(string)

	message, err := h.messagingUseCase.SendMessage(c.Request().Context(), selfID, usecase.SendMessageInput{
		ReceiverID:     c.Param("userId"),
		Text:           req.Text,
		AttachmentURL:  req.AttachmentURL,
		AttachmentType: req.AttachmentType,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

func (h *MessageHandler) EditMessage(c echo.Context) error {
	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	selfID := c.Get("uid").(string)

	message, err := h.messagingUseCase.EditMessage(c.Request().Context(), selfID, c.Param("id"), req.Text)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

func (h *MessageHandler) UnsendMessage(c echo.Context) error {
	selfID := c.Get("uid").(string)

	message, err := h.messagingUseCase.UnsendMessage(c.Request().Context(), selfID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, message)
}

func (h *MessageHandler) MarkRead(c echo.Context) error {
	var req messageIDsRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	selfID := c.Get("uid").(string)

	if err := h.messagingUseCase.MarkRead(c.Request().Context(), selfID, req.MessageIDs); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"marked": true})
}

func (h *MessageHandler) HideMessages(c echo.Context) error {
	var req messageIDsRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	selfID := c.Get("uid").(string)

	if err := h.messagingUseCase.HideMessages(c.Request().Context(), selfID, req.MessageIDs); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"hidden": true})
}

// UnreadCounts serves the badge snapshot from the authoritative store scan.
func (h *MessageHandler) UnreadCounts(c echo.Context) error {
	selfID := c.Get("uid").(string)

	counts, err := h.messagingUseCase.UnreadCounts(c.Request().Context(), selfID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, counts)
}
