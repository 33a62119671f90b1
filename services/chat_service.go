package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services/llm"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// HistoryWindow is the number of prior messages sent with each completion
	HistoryWindow = 10
	// TitleWordLimit is the number of words kept when naming a session
	TitleWordLimit = 6
	// DefaultSessionListLimit caps ListSessions when no limit is given
	DefaultSessionListLimit = 20
	// DefaultHistoryLimit caps History when no limit is given
	DefaultHistoryLimit = 50
	// MaxHistoryLimit is the largest History limit accepted
	MaxHistoryLimit = 100
	// DefaultSearchLimit caps SearchSimilar when no limit is given
	DefaultSearchLimit = 5
)

var (
	ErrSessionNotFound      = errors.New("chat session not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrGenerationFailed     = errors.New("failed to generate response")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
)

// ChatServiceConfig tunes a ChatService
type ChatServiceConfig struct {
	// EmbeddingDimensions is the expected vector length; 0 accepts any length
	EmbeddingDimensions int
	Logger              *zap.Logger
	// Now overrides the clock used for session timestamps
	Now func() time.Time
}

// ChatService orchestrates the chat pipeline: session lookup, persistence,
// context assembly, classification, completion and session bookkeeping
type ChatService struct {
	db            *gorm.DB
	provider      llm.Provider
	embeddingDims int
	log           *zap.Logger
	now           func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(db *gorm.DB, provider llm.Provider, config ChatServiceConfig) *ChatService {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &ChatService{
		db:            db,
		provider:      provider,
		embeddingDims: config.EmbeddingDimensions,
		log:           config.Logger,
		now:           config.Now,
	}
}

// SendMessageResult is the outcome of one chat exchange
type SendMessageResult struct {
	SessionID        string
	Reply            string
	InDomain         bool
	TechContext      model.TechContext
	Title            string
	UserMessage      *model.ChatMessage
	AssistantMessage *model.ChatMessage
}

// CreateSession starts a new active session for the user
func (s *ChatService) CreateSession(ctx context.Context, userID uint, title string) (*model.ChatSession, error) {
	session := model.ChatSession{
		UserID:   userID,
		Title:    strings.TrimSpace(title),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&session).Error; err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &session, nil
}

// ListSessions returns the user's active sessions, most recently updated first
func (s *ChatService) ListSessions(ctx context.Context, userID uint, limit int) ([]model.ChatSession, error) {
	if limit <= 0 {
		limit = DefaultSessionListLimit
	}

	var sessions []model.ChatSession
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("updated_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// activeSession resolves an external session id scoped to the owner.
// Foreign, unknown and deactivated sessions are indistinguishable.
func (s *ChatService) activeSession(ctx context.Context, userID uint, sessionID string) (*model.ChatSession, error) {
	var session model.ChatSession
	err := s.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}
	return &session, nil
}

// GetSessionMessages returns every message of the session in chronological order
func (s *ChatService) GetSessionMessages(ctx context.Context, userID uint, sessionID string) ([]model.ChatMessage, error) {
	session, err := s.activeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	var messages []model.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", session.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

// DeactivateSession hides the session from every read path. Messages are kept.
func (s *ChatService) DeactivateSession(ctx context.Context, userID uint, sessionID string) error {
	result := s.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("session_id = ? AND user_id = ? AND is_active = ?", sessionID, userID, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": s.now()})
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SendMessage runs one exchange. The user message is committed before any
// model call; the assistant reply and session update commit together or not at all.
func (s *ChatService) SendMessage(ctx context.Context, user *model.User, sessionID, content string) (*SendMessageResult, error) {
	session, err := s.activeSession(ctx, user.ID, sessionID)
	if err != nil {
		return nil, err
	}

	userMessage := model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleUser,
		Content:   content,
	}
	s.attachEmbedding(ctx, &userMessage)

	if err := s.db.WithContext(ctx).Create(&userMessage).Error; err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	techs, err := loadUserTechStacks(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	history, err := s.recentHistory(ctx, session.ID, userMessage.ID)
	if err != nil {
		return nil, err
	}

	result := &SendMessageResult{
		SessionID:   session.SessionID,
		InDomain:    s.classify(ctx, content),
		UserMessage: &userMessage,
	}

	if result.InDomain {
		messages := make([]llm.Message, 0, len(history)+1)
		for _, m := range history {
			messages = append(messages, llm.Message{Role: string(m.Role), Content: m.Content})
		}
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: content})

		reply, err := s.provider.Complete(ctx, llm.BuildChatSystemPrompt(techItems(techs)), messages)
		if err != nil {
			s.log.Error("chat completion failed",
				zap.String("session_id", session.SessionID),
				zap.String("provider", s.provider.Name()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
		result.Reply = reply
	} else {
		result.Reply = llm.RedirectMessage
	}

	result.TechContext = model.TechContext{TechStack: techNames(techs)}
	assistantMessage := model.ChatMessage{
		SessionID: session.ID,
		Role:      model.MessageRoleAssistant,
		Content:   result.Reply,
	}
	if err := assistantMessage.SetTechContext(result.TechContext); err != nil {
		return nil, fmt.Errorf("failed to encode tech context: %w", err)
	}
	s.attachEmbedding(ctx, &assistantMessage)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// serializes concurrent replies to one session so exactly one sees itself as first
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").First(&model.ChatSession{}, session.ID).Error; err != nil {
			return fmt.Errorf("failed to lock session: %w", err)
		}
		if err := tx.Create(&assistantMessage).Error; err != nil {
			return fmt.Errorf("failed to save assistant message: %w", err)
		}

		var replies int64
		if err := tx.Model(&model.ChatMessage{}).
			Where("session_id = ? AND role = ?", session.ID, model.MessageRoleAssistant).
			Count(&replies).Error; err != nil {
			return fmt.Errorf("failed to count messages: %w", err)
		}

		updates := map[string]interface{}{"updated_at": s.now()}
		if replies == 1 {
			session.Title = SessionTitle(content)
			updates["title"] = session.Title
		}
		if err := tx.Model(session).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Title = session.Title
	result.AssistantMessage = &assistantMessage
	return result, nil
}

// classify fails open: an unreachable classifier never blocks the user
func (s *ChatService) classify(ctx context.Context, content string) bool {
	inDomain, err := s.provider.Classify(ctx, content)
	if err != nil {
		s.log.Warn("classification failed, treating query as in-domain",
			zap.String("provider", s.provider.Name()),
			zap.Error(err),
		)
		return true
	}
	return inDomain
}

// attachEmbedding stores a vector on msg when one of the expected size is available
func (s *ChatService) attachEmbedding(ctx context.Context, msg *model.ChatMessage) {
	vec, err := s.embed(ctx, msg.Content)
	if err != nil {
		s.log.Warn("embedding skipped", zap.String("role", string(msg.Role)), zap.Error(err))
		return
	}
	msg.Embedding = vec
}

func (s *ChatService) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if s.embeddingDims > 0 && len(vec) != s.embeddingDims {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", ErrDimensionMismatch, len(vec), s.embeddingDims)
	}
	return vec, nil
}

// loadUserTechStacks returns the user's tech stacks ordered by name
func loadUserTechStacks(ctx context.Context, db *gorm.DB, userID uint) ([]model.TechStack, error) {
	var techs []model.TechStack
	if err := db.WithContext(ctx).
		Joins("JOIN user_techstacks ON user_techstacks.tech_stack_id = tech_stacks.id").
		Where("user_techstacks.user_id = ?", userID).
		Order("tech_stacks.name ASC").
		Find(&techs).Error; err != nil {
		return nil, fmt.Errorf("failed to load tech stack: %w", err)
	}
	return techs, nil
}

// recentHistory returns up to HistoryWindow messages before the given one, oldest first
func (s *ChatService) recentHistory(ctx context.Context, sessionID, beforeID uint) ([]model.ChatMessage, error) {
	var recent []model.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ? AND id < ?", sessionID, beforeID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(HistoryWindow).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch conversation history: %w", err)
	}

	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// SessionTitle names a session after the first words of its opening message
func SessionTitle(content string) string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return model.DefaultSessionTitle
	}
	if len(words) > TitleWordLimit {
		return strings.Join(words[:TitleWordLimit], " ") + "..."
	}
	return strings.Join(words, " ")
}

func techItems(techs []model.TechStack) []llm.TechItem {
	items := make([]llm.TechItem, 0, len(techs))
	for _, t := range techs {
		items = append(items, llm.TechItem{Name: t.Name, Category: t.Category, Description: t.Description})
	}
	return items
}

func techNames(techs []model.TechStack) []string {
	names := make([]string, 0, len(techs))
	for _, t := range techs {
		names = append(names, t.Name)
	}
	return names
}

// HistoryRequest selects sessions for History
type HistoryRequest struct {
	Username  string
	SessionID string
	Limit     int
}

// HistoryResult groups messages by external session id
type HistoryResult struct {
	Sessions []model.ChatSession           `json:"sessions"`
	Messages map[string][]model.ChatMessage `json:"messages"`
}

// History returns active sessions with their messages. The requested
// username must be the caller's; anything else reads as an unknown user.
func (s *ChatService) History(ctx context.Context, caller *model.User, req HistoryRequest) (*HistoryResult, error) {
	if req.Username != caller.Username {
		return nil, ErrUserNotFound
	}
	if req.Limit <= 0 {
		req.Limit = DefaultHistoryLimit
	}
	if req.Limit > MaxHistoryLimit {
		req.Limit = MaxHistoryLimit
	}

	query := s.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", caller.ID, true)
	if req.SessionID != "" {
		query = query.Where("session_id = ?", req.SessionID)
	}

	var sessions []model.ChatSession
	if err := query.Order("updated_at DESC").Order("id DESC").Limit(req.Limit).Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	result := &HistoryResult{
		Sessions: sessions,
		Messages: make(map[string][]model.ChatMessage, len(sessions)),
	}
	if len(sessions) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(sessions))
	external := make(map[uint]string, len(sessions))
	for _, session := range sessions {
		ids = append(ids, session.ID)
		external[session.ID] = session.SessionID
		result.Messages[session.SessionID] = []model.ChatMessage{}
	}

	var messages []model.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id IN ?", ids).
		Order("created_at ASC").
		Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	for _, m := range messages {
		key := external[m.SessionID]
		result.Messages[key] = append(result.Messages[key], m)
	}
	return result, nil
}

// SimilarMessage is a search hit
type SimilarMessage struct {
	SessionID string            `json:"session_id"`
	Message   model.ChatMessage `json:"message"`
	Score     float64           `json:"score"`
}

// SearchSimilar ranks the user's stored messages against query by cosine
// similarity with a linear scan over every embedded message
func (s *ChatService) SearchSimilar(ctx context.Context, userID uint, query string, limit int) ([]SimilarMessage, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	type row struct {
		model.ChatMessage
		ExternalID string
	}
	var rows []row
	if err := s.db.WithContext(ctx).
		Model(&model.ChatMessage{}).
		Select("chat_messages.*, chat_sessions.session_id AS external_id").
		Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
		Where("chat_sessions.user_id = ? AND chat_sessions.is_active = ?", userID, true).
		Where("chat_messages.embedding IS NOT NULL").
		Order("chat_messages.id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to scan messages: %w", err)
	}

	candidates := make([][]float32, len(rows))
	for i, r := range rows {
		candidates[i] = r.Embedding
	}

	ranked := topK(vec, candidates, limit)
	hits := make([]SimilarMessage, 0, len(ranked))
	for _, r := range ranked {
		hits = append(hits, SimilarMessage{
			SessionID: rows[r.index].ExternalID,
			Message:   rows[r.index].ChatMessage,
			Score:     r.score,
		})
	}
	return hits, nil
}

// PurgeInactiveSessions physically deletes sessions deactivated before
// cutoff together with their messages and returns the number removed
func (s *ChatService) PurgeInactiveSessions(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale := tx.Model(&model.ChatSession{}).
			Select("id").
			Where("is_active = ? AND updated_at < ?", false, cutoff)

		if err := tx.Where("session_id IN (?)", stale).Delete(&model.ChatMessage{}).Error; err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}

		result := tx.Where("is_active = ? AND updated_at < ?", false, cutoff).Delete(&model.ChatSession{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete sessions: %w", result.Error)
		}
		purged = result.RowsAffected
		return nil
	})
	return purged, err
}
