package techstack

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"github.com/sahilchouksey/devpilot-api/utils/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TechStackHandler handles the tech stack catalogue and the user's own stack
type TechStackHandler struct {
	db        *gorm.DB
	validator *validation.Validator
	log       *zap.Logger
}

// NewTechStackHandler creates a new tech stack handler
func NewTechStackHandler(db *gorm.DB, log *zap.Logger) *TechStackHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &TechStackHandler{
		db:        db,
		validator: validation.NewValidator(),
		log:       log,
	}
}

// CreateTechStackRequest represents the request to add a catalogue entry
type CreateTechStackRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Category    string `json:"category" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// UpdateMyStackRequest replaces the user's tech stack
type UpdateMyStackRequest struct {
	TechStackIDs []uint `json:"tech_stack_ids" validate:"max=100"`
}

// ListAvailable handles GET /api/techstack/available
func (h *TechStackHandler) ListAvailable(c *fiber.Ctx) error {
	query := h.db.WithContext(c.UserContext()).Model(&model.TechStack{})
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var techs []model.TechStack
	if err := query.Order("category ASC").Order("name ASC").Find(&techs).Error; err != nil {
		h.log.Error("failed to list tech stacks", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch tech stacks")
	}
	return response.Success(c, techs)
}

// ListCategories handles GET /api/techstack/categories
func (h *TechStackHandler) ListCategories(c *fiber.Ctx) error {
	var categories []string
	if err := h.db.WithContext(c.UserContext()).
		Model(&model.TechStack{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		h.log.Error("failed to list tech stack categories", zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch categories")
	}
	return response.Success(c, categories)
}

// Create handles POST /api/techstack/create
func (h *TechStackHandler) Create(c *fiber.Ctx) error {
	var req CreateTechStackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.Name = validation.SanitizeString(req.Name)
	req.Category = validation.SanitizeString(req.Category)
	req.Description = validation.SanitizeString(req.Description)
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	db := h.db.WithContext(c.UserContext())

	var existing int64
	if err := db.Model(&model.TechStack{}).Where("LOWER(name) = LOWER(?)", req.Name).Count(&existing).Error; err != nil {
		h.log.Error("failed to check tech stack name", zap.Error(err))
		return response.InternalServerError(c, "Failed to create tech stack")
	}
	if existing > 0 {
		return response.ConflictField(c, "name", "Tech stack already exists")
	}

	tech := model.TechStack{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
	}
	if err := db.Create(&tech).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return response.ConflictField(c, "name", "Tech stack already exists")
		}
		h.log.Error("failed to create tech stack", zap.String("name", req.Name), zap.Error(err))
		return response.InternalServerError(c, "Failed to create tech stack")
	}
	return response.Created(c, tech)
}

// GetMyStack handles GET /api/techstack/my-stack
func (h *TechStackHandler) GetMyStack(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	techs, err := h.userStack(c, user)
	if err != nil {
		h.log.Error("failed to load user tech stack", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch tech stack")
	}
	return response.Success(c, techs)
}

// UpdateMyStack handles PUT /api/techstack/my-stack. Every id must exist.
func (h *TechStackHandler) UpdateMyStack(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req UpdateMyStackRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}
	ids := uniqueIDs(req.TechStackIDs)

	techs := []model.TechStack{}
	err := h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if len(ids) > 0 {
			if err := tx.Where("id IN ?", ids).Find(&techs).Error; err != nil {
				return err
			}
			if len(techs) != len(ids) {
				return errUnknownTechStack
			}
		}
		association := tx.Model(&model.User{ID: user.ID}).Association("TechStacks")
		if len(techs) == 0 {
			return association.Clear()
		}
		return association.Replace(techs)
	})
	if err != nil {
		if errors.Is(err, errUnknownTechStack) {
			return response.BadRequest(c, "One or more tech stack ids do not exist")
		}
		h.log.Error("failed to update user tech stack", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to update tech stack")
	}

	updated, err := h.userStack(c, user)
	if err != nil {
		h.log.Error("failed to reload user tech stack", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to fetch tech stack")
	}
	return response.SuccessWithMessage(c, "Tech stack updated successfully", updated)
}

// RemoveFromMyStack handles DELETE /api/techstack/my-stack/:id
func (h *TechStackHandler) RemoveFromMyStack(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid tech stack id")
	}

	db := h.db.WithContext(c.UserContext())

	var tech model.TechStack
	if err := db.First(&tech, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return response.NotFound(c, "Tech stack not found")
		}
		h.log.Error("failed to load tech stack", zap.Uint64("tech_stack_id", id), zap.Error(err))
		return response.InternalServerError(c, "Failed to remove tech stack")
	}

	var linked int64
	if err := db.Table("user_techstacks").
		Where("user_id = ? AND tech_stack_id = ?", user.ID, tech.ID).
		Count(&linked).Error; err != nil {
		h.log.Error("failed to check user tech stack", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to remove tech stack")
	}
	if linked == 0 {
		return response.BadRequest(c, "Tech stack is not in your stack")
	}

	if err := db.Model(&model.User{ID: user.ID}).Association("TechStacks").Delete(&tech); err != nil {
		h.log.Error("failed to remove tech stack", zap.Uint("user_id", user.ID), zap.Error(err))
		return response.InternalServerError(c, "Failed to remove tech stack")
	}
	return response.SuccessWithMessage(c, "Tech stack removed successfully", nil)
}

var errUnknownTechStack = errors.New("unknown tech stack")

func (h *TechStackHandler) userStack(c *fiber.Ctx, user *model.User) ([]model.TechStack, error) {
	techs := []model.TechStack{}
	err := h.db.WithContext(c.UserContext()).
		Joins("JOIN user_techstacks ON user_techstacks.tech_stack_id = tech_stacks.id").
		Where("user_techstacks.user_id = ?", user.ID).
		Order("tech_stacks.name ASC").
		Find(&techs).Error
	return techs, err
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
