package preference

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxKeyLength = 100

// PreferenceHandler handles per-user key/value settings
type PreferenceHandler struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewPreferenceHandler creates a new preference handler
func NewPreferenceHandler(db *gorm.DB, log *zap.Logger) *PreferenceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PreferenceHandler{db: db, log: log}
}

// SetPreferenceRequest carries any JSON value
type SetPreferenceRequest struct {
	Value json.RawMessage `json:"value"`
}

// List handles GET /api/preferences
func (h *PreferenceHandler) List(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	prefs := []model.UserPreference{}
	if err := h.db.WithContext(c.UserContext()).
		Where("user_id = ?", user.ID).
		Order("preference_key ASC").
		Find(&prefs).Error; err != nil {
		h.log.Error("failed to list preferences", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch preferences")
	}
	return response.Success(c, prefs)
}

// Set handles PUT /api/preferences/:key, creating or replacing the value
func (h *PreferenceHandler) Set(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	key, ok := preferenceKey(c)
	if !ok {
		return response.BadRequest(c, "Invalid preference key")
	}

	var req SetPreferenceRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if len(req.Value) == 0 || !json.Valid(req.Value) {
		return response.ValidationError(c, "value is required")
	}

	var pref model.UserPreference
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND preference_key = ?", user.ID, key).First(&pref).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			pref = model.UserPreference{
				UserID:          user.ID,
				PreferenceKey:   key,
				PreferenceValue: datatypes.JSON(req.Value),
			}
			return tx.Create(&pref).Error
		case err != nil:
			return err
		}
		pref.PreferenceValue = datatypes.JSON(req.Value)
		return tx.Model(&pref).Update("preference_value", pref.PreferenceValue).Error
	})
	if err != nil {
		h.log.Error("failed to save preference", zap.Uint("user_id", user.ID), zap.String("key", key), zap.Error(err))
		return response.InternalServerError(c, "Failed to save preference")
	}
	return response.Success(c, pref)
}

// Delete handles DELETE /api/preferences/:key
func (h *PreferenceHandler) Delete(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	key, ok := preferenceKey(c)
	if !ok {
		return response.BadRequest(c, "Invalid preference key")
	}

	result := h.db.WithContext(c.UserContext()).
		Where("user_id = ? AND preference_key = ?", user.ID, key).
		Delete(&model.UserPreference{})
	if result.Error != nil {
		h.log.Error("failed to delete preference", zap.Uint("user_id", user.ID), zap.String("key", key), zap.Error(result.Error))
		return response.InternalServerError(c, "Failed to delete preference")
	}
	if result.RowsAffected == 0 {
		return response.NotFound(c, "Preference not found")
	}
	return response.SuccessWithMessage(c, "Preference deleted successfully", nil)
}

func preferenceKey(c *fiber.Ctx) (string, bool) {
	key := validation.SanitizeString(c.Params("key"))
	return key, key != "" && len(key) <= maxKeyLength
}
