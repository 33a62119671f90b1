package chat

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
)

// HistoryRequest represents the request body of POST /api/chat/history
type HistoryRequest struct {
	Username  string `json:"username" validate:"required"`
	SessionID string `json:"session_id" validate:"omitempty,max=36"`
	Limit     int    `json:"limit" validate:"omitempty,gte=1,lte=100"`
}

// History handles POST /api/chat/history. Only the caller's own history is readable.
func (h *ChatHandler) History(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req HistoryRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	result, err := h.chatService.History(c.UserContext(), user, services.HistoryRequest{
		Username:  validation.SanitizeString(req.Username),
		SessionID: req.SessionID,
		Limit:     req.Limit,
	})
	if err != nil {
		return h.serviceError(c, err, "Failed to fetch chat history")
	}
	return response.Success(c, result)
}

// Search handles GET /api/chat/search?q=&limit=
func (h *ChatHandler) Search(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	query := validation.SanitizeString(c.Query("q"))
	if query == "" {
		return response.BadRequest(c, "q is required")
	}
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultSearchLimit)))
	if err != nil || limit < 1 || limit > 50 {
		return response.BadRequest(c, "limit must be between 1 and 50")
	}

	hits, err := h.chatService.SearchSimilar(c.UserContext(), user.ID, query, limit)
	if err != nil {
		return h.serviceError(c, err, "Failed to search messages")
	}
	return response.Success(c, hits)
}
