package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	authutil "github.com/sahilchouksey/devpilot-api/utils/auth"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	bruteForceProtection *middleware.BruteForceProtection
	validator            *validation.Validator
	log                  *zap.Logger
	hashCost             int
}

// NewAuthHandler creates a new auth handler. bruteForceProtection may be nil.
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, bruteForceProtection *middleware.BruteForceProtection, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		bruteForceProtection: bruteForceProtection,
		validator:            validation.NewValidator(),
		log:                  log,
		hashCost:             authutil.DefaultCost,
	}
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username          string `json:"username" validate:"required,min=3,max=50"`
	Email             string `json:"email" validate:"required,email,max=255"`
	Password          string `json:"password" validate:"required,min=8,max=72"`
	FullName          string `json:"full_name" validate:"max=255"`
	YearsOfExperience int    `json:"years_of_experience" validate:"gte=0,lte=50"`
	CurrentRole       string `json:"current_role" validate:"max=255"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	req.Username = validation.SanitizeString(req.Username)
	req.Email = strings.ToLower(validation.SanitizeString(req.Email))
	req.FullName = validation.SanitizeString(req.FullName)
	req.CurrentRole = validation.SanitizeString(req.CurrentRole)

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	ctx := c.UserContext()

	// username is checked before email
	if field, err := h.duplicateField(ctx, req.Username, req.Email); err != nil {
		h.log.Error("failed to check existing users", zap.Error(err))
		return response.InternalServerError(c, "")
	} else if field != "" {
		return conflict(c, field)
	}

	hashedPassword, err := authutil.HashPasswordWithCost(req.Password, h.hashCost)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.User{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hashedPassword,
		FullName:          req.FullName,
		YearsOfExperience: req.YearsOfExperience,
		CurrentRole:       req.CurrentRole,
		IsActive:          true,
		TechStacks:        []model.TechStack{},
	}

	if err := h.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a race with a concurrent registration
			field, lookupErr := h.duplicateField(ctx, req.Username, req.Email)
			if lookupErr == nil && field != "" {
				return conflict(c, field)
			}
			return response.Conflict(c, "Username or email already registered")
		}
		h.log.Error("failed to create user", zap.String("username", req.Username), zap.Error(err))
		return response.InternalServerError(c, "Failed to create user")
	}

	h.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	return response.Created(c, user)
}

// duplicateField returns "username" or "email" for the first taken identifier
func (h *AuthHandler) duplicateField(ctx context.Context, username, email string) (string, error) {
	db := h.db.WithContext(ctx)

	var count int64
	if err := db.Model(&model.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "username", nil
	}

	if err := db.Model(&model.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return "", err
	}
	if count > 0 {
		return "email", nil
	}
	return "", nil
}

func conflict(c *fiber.Ctx, field string) error {
	if field == "username" {
		return response.ConflictField(c, field, "Username already registered")
	}
	return response.ConflictField(c, field, "Email already registered")
}
