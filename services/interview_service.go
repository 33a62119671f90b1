package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services/llm"
	"github.com/sahilchouksey/devpilot-api/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultNumQuestions    = 5
	MaxNumQuestions        = 20
	MaxYearsOfExperience   = 50
	MaxDefaultFocusAreas   = 5
	PracticeSetSize        = 10
	DefaultPracticeYears   = 3
	DefaultPracticeRole    = "Software Engineer"
	DefaultSavedLimit      = 20
	MaxSavedLimit          = 100
	generalTechStack       = "General software engineering"
	generalFocusAreas      = "General technical and behavioral"
	interviewUserDirective = "Generate the interview questions now."
)

var (
	ErrInvalidInterviewRequest = errors.New("invalid interview request")
	ErrMalformedQuestions      = errors.New("malformed interview questions")
)

// ExperienceLevel maps years of experience to a difficulty tier
func ExperienceLevel(years int) string {
	switch {
	case years <= 2:
		return model.DifficultyJunior
	case years <= 5:
		return model.DifficultyMid
	case years <= 10:
		return model.DifficultySenior
	default:
		return model.DifficultyLead
	}
}

// GenerateRequest describes a batch of questions to generate
type GenerateRequest struct {
	YearsOfExperience int
	TargetRole        string
	FocusAreas        []string
	NumQuestions      int
}

// UserContext echoes the inputs a batch was generated for
type UserContext struct {
	YearsOfExperience int      `json:"years_of_experience"`
	TargetRole        string   `json:"target_role"`
	TechStack         []string `json:"tech_stack"`
	FocusAreas        []string `json:"focus_areas"`
	CurrentRole       string   `json:"current_role"`
	Username          string   `json:"username"`
}

// QuestionSet is a generated batch in generation order
type QuestionSet struct {
	Questions   []model.InterviewQuestion `json:"questions"`
	UserContext UserContext               `json:"user_context"`
}

// GeneratedQuestion is one element of the model's JSON reply
type GeneratedQuestion struct {
	Question        string  `json:"question"`
	Category        string  `json:"category"`
	DifficultyLevel string  `json:"difficulty_level"`
	TechStack       *string `json:"tech_stack"`
	ExpectedAnswer  *string `json:"expected_answer"`
}

// InterviewService generates, stores and queries interview questions
type InterviewService struct {
	db       *gorm.DB
	provider llm.Provider
	log      *zap.Logger
}

// NewInterviewService creates a new interview service
func NewInterviewService(db *gorm.DB, provider llm.Provider, log *zap.Logger) *InterviewService {
	if log == nil {
		log = zap.NewNop()
	}
	return &InterviewService{db: db, provider: provider, log: log}
}

// Generate produces req.NumQuestions questions for the user's profile.
// A failed or malformed model reply falls back to a fixed template set.
func (s *InterviewService) Generate(ctx context.Context, user *model.User, req GenerateRequest) (*QuestionSet, error) {
	req.TargetRole = strings.TrimSpace(req.TargetRole)
	if req.NumQuestions == 0 {
		req.NumQuestions = DefaultNumQuestions
	}
	if err := validateGenerateRequest(req); err != nil {
		return nil, err
	}

	techs, err := loadUserTechStacks(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	techStack := techNames(techs)

	focusAreas := req.FocusAreas
	if len(focusAreas) == 0 {
		focusAreas = techStack
		if len(focusAreas) > MaxDefaultFocusAreas {
			focusAreas = focusAreas[:MaxDefaultFocusAreas]
		}
	}

	level := ExperienceLevel(req.YearsOfExperience)

	drafts, err := s.generate(ctx, req, level, techStack, focusAreas)
	if err != nil {
		s.log.Warn("interview generation failed, using fallback questions",
			zap.String("provider", s.provider.Name()),
			zap.Int("requested", req.NumQuestions),
			zap.Error(err),
		)
		drafts = FallbackQuestions(level, techStack, req.NumQuestions)
	}

	questions := make([]model.InterviewQuestion, 0, len(drafts))
	for _, d := range drafts {
		q, err := s.save(ctx, d)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}

	return &QuestionSet{
		Questions: questions,
		UserContext: UserContext{
			YearsOfExperience: req.YearsOfExperience,
			TargetRole:        req.TargetRole,
			TechStack:         techStack,
			FocusAreas:        focusAreas,
			CurrentRole:       user.CurrentRole,
			Username:          user.Username,
		},
	}, nil
}

// PracticeSet generates a batch from the user's own profile
func (s *InterviewService) PracticeSet(ctx context.Context, user *model.User) (*QuestionSet, error) {
	years := user.YearsOfExperience
	if years <= 0 {
		years = DefaultPracticeYears
	}
	if years > MaxYearsOfExperience {
		years = MaxYearsOfExperience
	}
	role := strings.TrimSpace(user.CurrentRole)
	if role == "" {
		role = DefaultPracticeRole
	}

	return s.Generate(ctx, user, GenerateRequest{
		YearsOfExperience: years,
		TargetRole:        role,
		NumQuestions:      PracticeSetSize,
	})
}

func validateGenerateRequest(req GenerateRequest) error {
	switch {
	case req.YearsOfExperience < 0 || req.YearsOfExperience > MaxYearsOfExperience:
		return fmt.Errorf("%w: years_of_experience must be between 0 and %d", ErrInvalidInterviewRequest, MaxYearsOfExperience)
	case req.TargetRole == "":
		return fmt.Errorf("%w: target_role is required", ErrInvalidInterviewRequest)
	case req.NumQuestions < 1 || req.NumQuestions > MaxNumQuestions:
		return fmt.Errorf("%w: num_questions must be between 1 and %d", ErrInvalidInterviewRequest, MaxNumQuestions)
	}
	return nil
}

func (s *InterviewService) generate(ctx context.Context, req GenerateRequest, level string, techStack, focusAreas []string) ([]GeneratedQuestion, error) {
	prompt := BuildInterviewPrompt(req.NumQuestions, req.TargetRole, level, req.YearsOfExperience, techStack, focusAreas)

	reply, err := s.provider.Complete(ctx, prompt, []llm.Message{{Role: llm.RoleUser, Content: interviewUserDirective}})
	if err != nil {
		return nil, err
	}
	return ParseGeneratedQuestions(reply, req.NumQuestions, level)
}

// ParseGeneratedQuestions decodes a model reply strictly. Every element must
// carry a question, a known category and a known difficulty; extra elements
// beyond n are dropped. Each difficulty is replaced by level, the tier
// derived from the request.
func ParseGeneratedQuestions(reply string, n int, level string) ([]GeneratedQuestion, error) {
	var parsed []GeneratedQuestion
	if err := utils.DecodeStrictJSON(reply, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedQuestions, err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", ErrMalformedQuestions)
	}

	for i := range parsed {
		q := &parsed[i]
		q.Question = strings.TrimSpace(q.Question)
		switch {
		case q.Question == "":
			return nil, fmt.Errorf("%w: question %d is empty", ErrMalformedQuestions, i)
		case !model.IsValidCategory(q.Category):
			return nil, fmt.Errorf("%w: question %d has unknown category %q", ErrMalformedQuestions, i, q.Category)
		case !model.IsValidDifficulty(q.DifficultyLevel):
			return nil, fmt.Errorf("%w: question %d has unknown difficulty %q", ErrMalformedQuestions, i, q.DifficultyLevel)
		}
		q.DifficultyLevel = level
		if q.TechStack != nil && strings.TrimSpace(*q.TechStack) == "" {
			q.TechStack = nil
		}
	}

	if len(parsed) > n {
		parsed = parsed[:n]
	}
	return parsed, nil
}

// BuildInterviewPrompt renders the generation instructions
func BuildInterviewPrompt(n int, role, level string, years int, techStack, focusAreas []string) string {
	techStr := generalTechStack
	if len(techStack) > 0 {
		techStr = strings.Join(techStack, ", ")
	}
	focusStr := generalFocusAreas
	if len(focusAreas) > 0 {
		focusStr = strings.Join(focusAreas, ", ")
	}

	return fmt.Sprintf(`You are an expert technical interviewer who creates realistic interview questions for software engineering positions.

Generate exactly %d interview questions for:
- Target Role: %s
- Experience Level: %s (%d years)
- Tech Stack: %s
- Focus Areas: %s

For each question, provide:
1. The question text
2. Category (Technical, System Design, Behavioral, Coding, or Problem Solving)
3. Difficulty level appropriate for %s
4. A brief expected answer or key points to look for

Questions should be:
- Appropriate for the experience level
- Relevant to the target role and tech stack
- Mix of technical and behavioral questions
- Realistic and commonly asked in actual interviews
- Progressively challenging within the experience level

Format your response as a JSON array where each question is an object with these fields:
- "question": the question text
- "category": one of "Technical", "System Design", "Behavioral", "Coding", "Problem Solving"
- "difficulty_level": "%s"
- "tech_stack": relevant technology (or null if general)
- "expected_answer": brief guidance on what to look for in answers

Respond ONLY with valid JSON, no additional text.`, n, role, level, years, techStr, focusStr, level, level)
}

// FallbackQuestions returns the fixed template set truncated to n
func FallbackQuestions(level string, techStack []string, n int) []GeneratedQuestion {
	techStr := generalTechStack
	if len(techStack) > 0 {
		techStr = strings.Join(techStack, ", ")
	}
	str := func(s string) *string { return &s }

	questions := []GeneratedQuestion{
		{
			Question:        fmt.Sprintf("Tell me about a challenging %s project you worked on.", techStr),
			Category:        model.CategoryBehavioral,
			DifficultyLevel: level,
			TechStack:       str(techStr),
			ExpectedAnswer:  str("Look for specific examples, problem-solving approach, and lessons learned."),
		},
		{
			Question:        fmt.Sprintf("How would you optimize the performance of a %s application?", techStr),
			Category:        model.CategoryTechnical,
			DifficultyLevel: level,
			TechStack:       str(techStr),
			ExpectedAnswer:  str("Performance monitoring, caching strategies, database optimization, code profiling."),
		},
		{
			Question:        "Describe your approach to code review and maintaining code quality.",
			Category:        model.CategoryBehavioral,
			DifficultyLevel: level,
			ExpectedAnswer:  str("Code standards, testing practices, constructive feedback, knowledge sharing."),
		},
	}
	if n < len(questions) {
		questions = questions[:n]
	}
	return questions
}

// save inserts the question unless identical text is already stored, in
// which case the stored row is returned unchanged
func (s *InterviewService) save(ctx context.Context, d GeneratedQuestion) (*model.InterviewQuestion, error) {
	hash := model.HashQuestion(d.Question)

	q := model.InterviewQuestion{
		Question:        d.Question,
		Category:        d.Category,
		DifficultyLevel: d.DifficultyLevel,
		TechStack:       d.TechStack,
		ExpectedAnswer:  d.ExpectedAnswer,
	}
	err := s.db.WithContext(ctx).Where(model.InterviewQuestion{QuestionHash: hash}).FirstOrCreate(&q).Error
	if err == nil {
		return &q, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, fmt.Errorf("failed to save interview question: %w", err)
	}

	// a concurrent request inserted the same text first
	var existing model.InterviewQuestion
	if err := s.db.WithContext(ctx).Where("question_hash = ?", hash).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load interview question: %w", err)
	}
	return &existing, nil
}

// SavedFilter narrows Saved
type SavedFilter struct {
	Category        string
	DifficultyLevel string
	TechStack       string
	Limit           int
}

// Saved lists stored questions, newest first
func (s *InterviewService) Saved(ctx context.Context, filter SavedFilter) ([]model.InterviewQuestion, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultSavedLimit
	}
	if filter.Limit > MaxSavedLimit {
		filter.Limit = MaxSavedLimit
	}

	query := s.db.WithContext(ctx).Model(&model.InterviewQuestion{})
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.DifficultyLevel != "" {
		query = query.Where("difficulty_level = ?", filter.DifficultyLevel)
	}
	if filter.TechStack != "" {
		query = query.Where("tech_stack LIKE ?", "%"+filter.TechStack+"%")
	}

	var questions []model.InterviewQuestion
	if err := query.Order("created_at DESC").Order("id DESC").Limit(filter.Limit).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch interview questions: %w", err)
	}
	return questions, nil
}

// Categories returns the distinct categories present in storage
func (s *InterviewService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := s.db.WithContext(ctx).
		Model(&model.InterviewQuestion{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	return categories, nil
}

// InterviewStats summarises stored questions for a user
type InterviewStats struct {
	TotalQuestions          int64            `json:"total_questions"`
	Categories              map[string]int64 `json:"categories"`
	DifficultyLevels        map[string]int64 `json:"difficulty_levels"`
	RelevantToUserTechStack int64            `json:"relevant_to_user_tech_stack"`
	UserTechStack           []string         `json:"user_tech_stack"`
}

type groupCount struct {
	Name  string
	Total int64
}

// Stats counts stored questions overall, per category, per difficulty and
// per technology of the user's stack. A question matching several of the
// user's technologies is counted once per match.
func (s *InterviewService) Stats(ctx context.Context, user *model.User) (*InterviewStats, error) {
	db := s.db.WithContext(ctx)
	stats := &InterviewStats{
		Categories:       map[string]int64{},
		DifficultyLevels: map[string]int64{},
	}

	if err := db.Model(&model.InterviewQuestion{}).Count(&stats.TotalQuestions).Error; err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	for column, into := range map[string]map[string]int64{
		"category":         stats.Categories,
		"difficulty_level": stats.DifficultyLevels,
	} {
		var rows []groupCount
		if err := db.Model(&model.InterviewQuestion{}).
			Select(column + " AS name, COUNT(*) AS total").
			Group(column).
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to group questions by %s: %w", column, err)
		}
		for _, r := range rows {
			into[r.Name] = r.Total
		}
	}

	techs, err := loadUserTechStacks(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	stats.UserTechStack = techNames(techs)

	for _, name := range stats.UserTechStack {
		var n int64
		if err := db.Model(&model.InterviewQuestion{}).
			Where("tech_stack LIKE ?", "%"+name+"%").
			Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to count questions for %s: %w", name, err)
		}
		stats.RelevantToUserTechStack += n
	}
	return stats, nil
}
