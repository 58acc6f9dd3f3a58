package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"clipfolio/internal/usecase"
	"clipfolio/pkg/response"
)

type DirectoryHandler struct {
	directoryUseCase *usecase.DirectoryUseCase
}

func NewDirectoryHandler(directoryUseCase *usecase.DirectoryUseCase) *DirectoryHandler {
	return &DirectoryHandler{
		directoryUseCase: directoryUseCase,
	}
}

type followRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// ListContacts returns the contact rail; ?target= resolves a deep-link
// counterpart that may have no history yet.
func (h *DirectoryHandler) ListContacts(c echo.Context) error {
	selfID := c.Get("uid").(string)

	contacts, err := h.directoryUseCase.ListContacts(c.Request().Context(), selfID)
	if err != nil {
		return response.Error(c, err)
	}

	if target := c.QueryParam("target"); target != "" {
		contacts = h.directoryUseCase.ResolveDeepLinkTarget(c.Request().Context(), selfID, target, contacts)
	}

	return response.Success(c, contacts)
}

func (h *DirectoryHandler) Follow(c echo.Context) error {
	var req followRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	selfID := c.Get("uid").(string)

	if err := h.directoryUseCase.Follow(c.Request().Context(), selfID, req.UserID); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, map[string]bool{"following": true})
}

func (h *DirectoryHandler) Unfollow(c echo.Context) error {
	selfID := c.Get("uid").(string)

	if err := h.directoryUseCase.Unfollow(c.Request().Context(), selfID, c.Param("id")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, map[string]bool{"following": false})
}

func (h *DirectoryHandler) SearchCurators(c echo.Context) error {
	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	users, err := h.directoryUseCase.SearchCurators(c.Request().Context(), c.QueryParam("q"), limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, users)
}
