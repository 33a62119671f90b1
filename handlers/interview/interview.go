package interview

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

// InterviewHandler handles interview question generation and browsing
type InterviewHandler struct {
	interviewService *services.InterviewService
	validator        *validation.Validator
	log              *zap.Logger
}

// NewInterviewHandler creates a new interview handler
func NewInterviewHandler(interviewService *services.InterviewService, log *zap.Logger) *InterviewHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &InterviewHandler{
		interviewService: interviewService,
		validator:        validation.NewValidator(),
		log:              log,
	}
}

// GenerateQuestionsRequest represents the request to generate questions
type GenerateQuestionsRequest struct {
	YearsOfExperience *int     `json:"years_of_experience" validate:"required,gte=0,lte=50"`
	TargetRole        string   `json:"target_role" validate:"required,min=1,max=255"`
	FocusAreas        []string `json:"focus_areas" validate:"omitempty,max=10,dive,min=1,max=100"`
	NumQuestions      *int     `json:"num_questions" validate:"omitempty,gte=1,lte=20"`
}

// Generate handles POST /api/interview/generate
func (h *InterviewHandler) Generate(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	var req GenerateQuestionsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	req.TargetRole = validation.SanitizeString(req.TargetRole)
	for i, area := range req.FocusAreas {
		req.FocusAreas[i] = validation.SanitizeString(area)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	numQuestions := services.DefaultNumQuestions
	if req.NumQuestions != nil {
		numQuestions = *req.NumQuestions
	}

	set, err := h.interviewService.Generate(c.UserContext(), user, services.GenerateRequest{
		YearsOfExperience: *req.YearsOfExperience,
		TargetRole:        req.TargetRole,
		FocusAreas:        req.FocusAreas,
		NumQuestions:      numQuestions,
	})
	if err != nil {
		return h.serviceError(c, err, "Failed to generate interview questions")
	}
	return response.Success(c, set)
}

// PracticeSet handles POST /api/interview/practice-set
func (h *InterviewHandler) PracticeSet(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	set, err := h.interviewService.PracticeSet(c.UserContext(), user)
	if err != nil {
		return h.serviceError(c, err, "Failed to generate practice set")
	}
	return response.Success(c, set)
}

// Saved handles GET /api/interview/saved
func (h *InterviewHandler) Saved(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(services.DefaultSavedLimit)))
	if err != nil || limit < 1 || limit > services.MaxSavedLimit {
		return response.BadRequest(c, "limit must be between 1 and 100")
	}

	questions, err := h.interviewService.Saved(c.UserContext(), services.SavedFilter{
		Category:        c.Query("category"),
		DifficultyLevel: c.Query("difficulty_level"),
		TechStack:       c.Query("tech_stack"),
		Limit:           limit,
	})
	if err != nil {
		return h.serviceError(c, err, "Failed to fetch interview questions")
	}
	return response.Success(c, questions)
}

// Categories handles GET /api/interview/categories
func (h *InterviewHandler) Categories(c *fiber.Ctx) error {
	categories, err := h.interviewService.Categories(c.UserContext())
	if err != nil {
		return h.serviceError(c, err, "Failed to fetch categories")
	}
	return response.Success(c, categories)
}

// DifficultyLevels handles GET /api/interview/difficulty-levels
func (h *InterviewHandler) DifficultyLevels(c *fiber.Ctx) error {
	return response.Success(c, model.DifficultyLevels)
}

// Stats handles GET /api/interview/stats
func (h *InterviewHandler) Stats(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok {
		return response.Unauthorized(c, middleware.CredentialsErrorMessage)
	}

	stats, err := h.interviewService.Stats(c.UserContext(), user)
	if err != nil {
		return h.serviceError(c, err, "Failed to fetch interview stats")
	}
	return response.Success(c, stats)
}

func (h *InterviewHandler) serviceError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, services.ErrInvalidInterviewRequest) {
		return response.BadRequest(c, err.Error())
	}
	h.log.Error(fallback, zap.String("path", c.Path()), zap.Error(err))
	return response.InternalServerError(c, fallback)
}
