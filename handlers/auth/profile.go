package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
)

// UpdateProfileRequest represents a profile update request; omitted fields are kept
type UpdateProfileRequest struct {
	FullName          *string `json:"full_name" validate:"omitempty,max=255"`
	YearsOfExperience *int    `json:"years_of_experience" validate:"omitempty,gte=0,lte=50"`
	CurrentRole       *string `json:"current_role" validate:"omitempty,max=255"`
}

// GetProfile returns the authenticated user with their tech stack
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}
	return response.Success(c, user)
}

// UpdateProfile updates the current user's profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = validation.SanitizeString(*req.FullName)
	}
	if req.YearsOfExperience != nil {
		updates["years_of_experience"] = *req.YearsOfExperience
	}
	if req.CurrentRole != nil {
		updates["current_role"] = validation.SanitizeString(*req.CurrentRole)
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(c.UserContext()).Model(&model.User{ID: user.ID}).Updates(updates).Error; err != nil {
			h.log.Error("failed to update profile", zap.Uint("user_id", user.ID), zap.Error(err))
			return response.InternalServerError(c, "Failed to update profile")
		}
	}

	var updated model.User
	if err := h.db.WithContext(c.UserContext()).Preload("TechStacks").First(&updated, user.ID).Error; err != nil {
		return response.InternalServerError(c, "Failed to load profile")
	}
	return response.Success(c, updated)
}
