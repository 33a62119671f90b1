package chat

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
)

const sessionNotFoundMessage = "Chat session not found"

// ChatHandler handles chat-related requests
type ChatHandler struct {
	validator   *validation.Validator
	chatService *services.ChatService
	log         *zap.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService, log *zap.Logger) *ChatHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatHandler{
		validator:   validation.NewValidator(),
		chatService: chatService,
		log:         log,
	}
}

// CreateSessionRequest represents the request to create a chat session
type CreateSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=255"`
}

// SendMessageRequest represents the request to send a chat message
type SendMessageRequest struct {
	SessionID string `json:"session_id" validate:"required,max=36"`
	Content   string `json:"content" validate:"required,min=1,max=10000"`
}

// ChatResponse is returned for every exchange
type ChatResponse struct {
	Message     string            `json:"message"`
	TechContext model.TechContext `json:"tech_context"`
	SessionID   string            `json:"session_id"`
	Title       string            `json:"title"`
}

// CreateSession handles POST /api/chat/session
func (h *ChatHandler) CreateSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.BadRequest(c, "Invalid request body")
		}
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	session, err := h.chatService.CreateSession(c.UserContext(), user.ID, validation.SanitizeString(req.Title))
	if err != nil {
		h.log.Error("failed to create chat session", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to create chat session")
	}
	return response.Created(c, session)
}

// ListSessions handles GET /api/chat/sessions
func (h *ChatHandler) ListSessions(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultSessionListLimit)))
	if err != nil || limit < 1 || limit > 100 {
		return response.BadRequest(c, "limit must be between 1 and 100")
	}

	sessions, err := h.chatService.ListSessions(c.UserContext(), user.ID, limit)
	if err != nil {
		h.log.Error("failed to list chat sessions", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch chat sessions")
	}
	return response.Success(c, sessions)
}

// GetSessionMessages handles GET /api/chat/session/:id/messages
func (h *ChatHandler) GetSessionMessages(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	messages, err := h.chatService.GetSessionMessages(c.UserContext(), user.ID, c.Params("id"))
	if err != nil {
		return h.serviceError(c, err, "Failed to fetch messages")
	}
	return response.Success(c, messages)
}

// SendMessage handles POST /api/chat/message
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Content = validation.SanitizeString(req.Content)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	result, err := h.chatService.SendMessage(c.UserContext(), user, req.SessionID, req.Content)
	if err != nil {
		return h.serviceError(c, err, "Failed to send message")
	}

	return response.Success(c, ChatResponse{
		Message:     result.Reply,
		TechContext: result.TechContext,
		SessionID:   result.SessionID,
		Title:       result.Title,
	})
}

// DeleteSession handles DELETE /api/chat/session/:id
func (h *ChatHandler) DeleteSession(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	if err := h.chatService.DeactivateSession(c.UserContext(), user.ID, c.Params("id")); err != nil {
		return h.serviceError(c, err, "Failed to delete chat session")
	}
	return response.SuccessWithMessage(c, "Chat session deleted successfully", nil)
}

// serviceError maps chat service errors onto the response envelope
func (h *ChatHandler) serviceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		return response.NotFound(c, sessionNotFoundMessage)
	case errors.Is(err, services.ErrUserNotFound):
		return response.NotFound(c, "User not found")
	case errors.Is(err, services.ErrGenerationFailed):
		return response.GenerationFailed(c)
	case errors.Is(err, services.ErrEmbeddingUnavailable):
		return response.ServiceUnavailable(c, "Search is temporarily unavailable")
	default:
		h.log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
		return response.InternalServerError(c, fallback)
	}
}
