package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services/llm"
	"github.com/sahilchouksey/devpilot-api/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func questionsJSON(t *testing.T, qs ...map[string]interface{}) string {
	t.Helper()
	raw, err := json.Marshal(qs)
	require.NoError(t, err)
	return string(raw)
}

func question(text, category, level string) map[string]interface{} {
	return map[string]interface{}{
		"question":         text,
		"category":         category,
		"difficulty_level": level,
		"tech_stack":       "Go",
		"expected_answer":  "key points",
	}
}

func newInterviewFixture(t *testing.T, reply string) (*InterviewService, *testutil.FakeProvider, *gorm.DB, *model.User) {
	t.Helper()
	db := testutil.NewTestDB(t)
	goLang := testutil.CreateTechStack(t, db, "Go", "Language")
	redis := testutil.CreateTechStack(t, db, "Redis", "Database")
	user := testutil.CreateUser(t, db, "carol", "password123", goLang, redis)

	provider := &testutil.FakeProvider{Reply: reply}
	return NewInterviewService(db, provider, nil), provider, db, user
}

func TestExperienceLevel(t *testing.T) {
	tests := []struct {
		years int
		want  string
	}{
		{0, "Junior"},
		{2, "Junior"},
		{3, "Mid-level"},
		{5, "Mid-level"},
		{6, "Senior"},
		{10, "Senior"},
		{11, "Lead/Principal"},
		{50, "Lead/Principal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExperienceLevel(tt.years), "years=%d", tt.years)
	}
}

func TestInterviewService_Generate(t *testing.T) {
	reply := "```json\n" + questionsJSON(t,
		question("Explain Go's scheduler.", "Technical", "Senior"),
		question("Design a rate limiter.", "System Design", "Senior"),
	) + "\n```"
	svc, provider, _, user := newInterviewFixture(t, reply)

	set, err := svc.Generate(context.Background(), user, GenerateRequest{
		YearsOfExperience: 6,
		TargetRole:        "Backend Engineer",
		NumQuestions:      2,
	})
	require.NoError(t, err)

	require.Len(t, set.Questions, 2)
	assert.Equal(t, "Explain Go's scheduler.", set.Questions[0].Question)
	assert.Equal(t, "Design a rate limiter.", set.Questions[1].Question)
	assert.NotZero(t, set.Questions[0].ID)

	assert.Equal(t, UserContext{
		YearsOfExperience: 6,
		TargetRole:        "Backend Engineer",
		TechStack:         []string{"Go", "Redis"},
		FocusAreas:        []string{"Go", "Redis"},
		Username:          "carol",
	}, set.UserContext)

	calls := provider.CompleteCalls()
	require.Len(t, calls, 1)
	prompt := calls[0].SystemPrompt
	assert.Contains(t, prompt, "Generate exactly 2 interview questions")
	assert.Contains(t, prompt, "- Experience Level: Senior (6 years)")
	assert.Contains(t, prompt, "- Tech Stack: Go, Redis")
	assert.Contains(t, prompt, "- Focus Areas: Go, Redis")
}

func TestInterviewService_DuplicateTextReusesRow(t *testing.T) {
	reply := questionsJSON(t, question("What is a goroutine?", "Technical", "Junior"))
	svc, _, db, user := newInterviewFixture(t, reply)
	ctx := context.Background()

	req := GenerateRequest{YearsOfExperience: 1, TargetRole: "Developer", NumQuestions: 1}
	first, err := svc.Generate(ctx, user, req)
	require.NoError(t, err)
	second, err := svc.Generate(ctx, user, req)
	require.NoError(t, err)

	assert.Equal(t, first.Questions[0].ID, second.Questions[0].ID)

	var count int64
	require.NoError(t, db.Model(&model.InterviewQuestion{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInterviewService_ConcurrentDuplicates(t *testing.T) {
	reply := questionsJSON(t, question("What is a channel?", "Technical", "Junior"))
	svc, _, db, user := newInterviewFixture(t, reply)

	var wg sync.WaitGroup
	ids := make([]uint, 4)
	errs := make([]error, 4)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := svc.Generate(context.Background(), user, GenerateRequest{YearsOfExperience: 1, TargetRole: "Dev", NumQuestions: 1})
			errs[i] = err
			if err == nil {
				ids[i] = set.Questions[0].ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	var count int64
	require.NoError(t, db.Model(&model.InterviewQuestion{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestInterviewService_FallbackOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
	}{
		{"provider error", "", &llm.ProviderError{Provider: "fake", Code: llm.ErrCodeServiceDown, Message: "down"}},
		{"not json", "Sorry, I can't do that.", nil},
		{"empty array", "[]", nil},
		{"unknown field", `[{"question":"q","category":"Technical","difficulty_level":"Junior","score":1}]`, nil},
		{"bad category", `[{"question":"q","category":"Trivia","difficulty_level":"Junior"}]`, nil},
		{"bad difficulty", `[{"question":"q","category":"Technical","difficulty_level":"Expert"}]`, nil},
		{"empty question", `[{"question":"  ","category":"Technical","difficulty_level":"Junior"}]`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, provider, _, user := newInterviewFixture(t, "")
			provider.CompleteFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
				return tt.reply, tt.err
			}

			set, err := svc.Generate(context.Background(), user, GenerateRequest{
				YearsOfExperience: 4,
				TargetRole:        "Engineer",
				NumQuestions:      5,
			})
			require.NoError(t, err)

			require.Len(t, set.Questions, 3)
			assert.Equal(t, "Tell me about a challenging Go, Redis project you worked on.", set.Questions[0].Question)
			assert.Equal(t, "How would you optimize the performance of a Go, Redis application?", set.Questions[1].Question)
			assert.Equal(t, "Describe your approach to code review and maintaining code quality.", set.Questions[2].Question)
			assert.Nil(t, set.Questions[2].TechStack)
			for _, q := range set.Questions {
				assert.Equal(t, "Mid-level", q.DifficultyLevel)
			}
		})
	}
}

func TestFallbackQuestions_TruncatedAndGeneral(t *testing.T) {
	qs := FallbackQuestions("Junior", nil, 1)
	require.Len(t, qs, 1)
	assert.Equal(t, "Tell me about a challenging General software engineering project you worked on.", qs[0].Question)
	assert.Equal(t, model.CategoryBehavioral, qs[0].Category)
}

func TestParseGeneratedQuestions_TruncatesExtra(t *testing.T) {
	var items []map[string]interface{}
	for i := 0; i < 4; i++ {
		items = append(items, question(fmt.Sprintf("Q%d", i), "Coding", "Junior"))
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	parsed, err := ParseGeneratedQuestions(string(raw), 2, model.DifficultyJunior)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "Q0", parsed[0].Question)
	assert.Equal(t, "Q1", parsed[1].Question)
}

func TestInterviewService_DifficultyFollowsExperience(t *testing.T) {
	reply := questionsJSON(t,
		question("What is a slice?", "Technical", "Junior"),
		question("Describe a hard bug you fixed.", "Behavioral", "Lead/Principal"),
	)
	svc, _, db, user := newInterviewFixture(t, reply)

	set, err := svc.Generate(context.Background(), user, GenerateRequest{
		YearsOfExperience: 6,
		TargetRole:        "Backend Engineer",
		NumQuestions:      2,
	})
	require.NoError(t, err)

	require.Len(t, set.Questions, 2)
	for _, q := range set.Questions {
		assert.Equal(t, model.DifficultySenior, q.DifficultyLevel)
	}

	var stored []string
	require.NoError(t, db.Model(&model.InterviewQuestion{}).Pluck("difficulty_level", &stored).Error)
	assert.Equal(t, []string{model.DifficultySenior, model.DifficultySenior}, stored)
}

func TestInterviewService_ValidatesRequest(t *testing.T) {
	svc, provider, _, user := newInterviewFixture(t, "[]")
	ctx := context.Background()

	bad := []GenerateRequest{
		{YearsOfExperience: -1, TargetRole: "Dev", NumQuestions: 5},
		{YearsOfExperience: 51, TargetRole: "Dev", NumQuestions: 5},
		{YearsOfExperience: 3, TargetRole: "  ", NumQuestions: 5},
		{YearsOfExperience: 3, TargetRole: "Dev", NumQuestions: 21},
		{YearsOfExperience: 3, TargetRole: "Dev", NumQuestions: -2},
	}
	for _, req := range bad {
		_, err := svc.Generate(ctx, user, req)
		assert.ErrorIs(t, err, ErrInvalidInterviewRequest, "%+v", req)
	}
	assert.Empty(t, provider.CompleteCalls())
}

func TestInterviewService_DefaultsAndFocusAreas(t *testing.T) {
	svc, provider, db, user := newInterviewFixture(t, "")
	for _, name := range []string{"Docker", "Kafka", "Kubernetes", "PostgreSQL"} {
		tech := testutil.CreateTechStack(t, db, name, "Tools")
		require.NoError(t, db.Model(user).Association("TechStacks").Append(&tech))
	}
	provider.CompleteFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
		return "", errors.New("down")
	}

	set, err := svc.Generate(context.Background(), user, GenerateRequest{YearsOfExperience: 3, TargetRole: "Dev"})
	require.NoError(t, err)
	assert.Len(t, set.UserContext.TechStack, 6)
	assert.Equal(t, []string{"Docker", "Go", "Kafka", "Kubernetes", "PostgreSQL"}, set.UserContext.FocusAreas)
	assert.Contains(t, provider.CompleteCalls()[0].SystemPrompt, "Generate exactly 5 interview questions")

	set, err = svc.Generate(context.Background(), user, GenerateRequest{YearsOfExperience: 3, TargetRole: "Dev", FocusAreas: []string{"APIs"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"APIs"}, set.UserContext.FocusAreas)
}

func TestInterviewService_PracticeSet(t *testing.T) {
	svc, provider, _, user := newInterviewFixture(t, "")
	provider.CompleteFunc = func(ctx context.Context, systemPrompt string, messages []llm.Message) (string, error) {
		return "", errors.New("down")
	}

	set, err := svc.PracticeSet(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, DefaultPracticeYears, set.UserContext.YearsOfExperience)
	assert.Equal(t, DefaultPracticeRole, set.UserContext.TargetRole)

	prompt := provider.CompleteCalls()[0].SystemPrompt
	assert.Contains(t, prompt, "Generate exactly 10 interview questions")
	assert.Contains(t, prompt, "Mid-level (3 years)")
}

func seedQuestions(t *testing.T, db *gorm.DB) {
	t.Helper()
	str := func(s string) *string { return &s }
	for _, q := range []model.InterviewQuestion{
		{Question: "q1", Category: "Technical", DifficultyLevel: "Junior", TechStack: str("Go")},
		{Question: "q2", Category: "Technical", DifficultyLevel: "Senior", TechStack: str("Go, Redis")},
		{Question: "q3", Category: "Behavioral", DifficultyLevel: "Senior"},
		{Question: "q4", Category: "Coding", DifficultyLevel: "Junior", TechStack: str("Python")},
	} {
		q := q
		require.NoError(t, db.Create(&q).Error)
	}
}

func TestInterviewService_Saved(t *testing.T) {
	svc, _, db, _ := newInterviewFixture(t, "")
	seedQuestions(t, db)
	ctx := context.Background()

	all, err := svc.Saved(ctx, SavedFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "q4", all[0].Question)

	technical, err := svc.Saved(ctx, SavedFilter{Category: "Technical"})
	require.NoError(t, err)
	assert.Len(t, technical, 2)

	seniorGo, err := svc.Saved(ctx, SavedFilter{DifficultyLevel: "Senior", TechStack: "Redis"})
	require.NoError(t, err)
	require.Len(t, seniorGo, 1)
	assert.Equal(t, "q2", seniorGo[0].Question)

	limited, err := svc.Saved(ctx, SavedFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInterviewService_CategoriesAndStats(t *testing.T) {
	svc, _, db, user := newInterviewFixture(t, "")
	seedQuestions(t, db)
	ctx := context.Background()

	cats, err := svc.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Behavioral", "Coding", "Technical"}, cats)

	stats, err := svc.Stats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalQuestions)
	assert.Equal(t, map[string]int64{"Technical": 2, "Behavioral": 1, "Coding": 1}, stats.Categories)
	assert.Equal(t, map[string]int64{"Junior": 2, "Senior": 2}, stats.DifficultyLevels)
	// Go matches q1 and q2, Redis matches q2
	assert.Equal(t, int64(3), stats.RelevantToUserTechStack)
	assert.Equal(t, []string{"Go", "Redis"}, stats.UserTechStack)
}

func TestBuildInterviewPrompt_Defaults(t *testing.T) {
	prompt := BuildInterviewPrompt(3, "SRE", "Junior", 1, nil, nil)
	assert.Contains(t, prompt, "- Tech Stack: General software engineering")
	assert.Contains(t, prompt, "- Focus Areas: General technical and behavioral")
	assert.True(t, strings.HasSuffix(prompt, "Respond ONLY with valid JSON, no additional text."))
}
