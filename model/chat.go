package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// MessageRole represents the role of the message sender
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// Valid reports whether the role belongs to the closed set of message roles
func (r MessageRole) Valid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// TechContext is the tech-stack snapshot stored alongside assistant replies
type TechContext struct {
	TechStack []string `json:"tech_stack"`
}

// Vector is an embedding stored as a JSON array. An empty vector is stored as NULL.
type Vector []float32

// Value implements driver.Valuer
func (v Vector) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return datatypes.NewJSONSlice([]float32(v)).Value()
}

// Scan implements sql.Scanner
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	var s datatypes.JSONSlice[float32]
	if err := s.Scan(value); err != nil {
		return err
	}
	*v = Vector(s)
	return nil
}

// GormDataType gorm common data type
func (Vector) GormDataType() string {
	return "json"
}

// GormDBDataType gorm db data type
func (Vector) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	return datatypes.JSONSlice[float32](nil).GormDBDataType(db, field)
}

// ChatMessage is an append-only entry in a chat session
type ChatMessage struct {
	ID          uint                         `gorm:"primaryKey" json:"id"`
	SessionID   uint                         `gorm:"not null;index" json:"-"`
	Role        MessageRole                  `gorm:"type:varchar(20);not null" json:"role"`
	Content     string                       `gorm:"type:text;not null" json:"content"`
	TechContext datatypes.JSON               `json:"tech_context,omitempty"`
	Embedding   Vector                       `json:"-"`
	CreatedAt   time.Time                    `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for ChatMessage
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// BeforeCreate rejects roles outside the closed set
func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid message role %q", m.Role)
	}
	return nil
}

// SetTechContext stores the snapshot as JSON
func (m *ChatMessage) SetTechContext(ctx TechContext) error {
	if ctx.TechStack == nil {
		ctx.TechStack = []string{}
	}
	raw, err := json.Marshal(ctx)
	if err != nil {
		return err
	}
	m.TechContext = datatypes.JSON(raw)
	return nil
}

// GetTechContext decodes the stored snapshot. ok is false when none was recorded.
func (m *ChatMessage) GetTechContext() (ctx TechContext, ok bool) {
	if len(m.TechContext) == 0 {
		return TechContext{}, false
	}
	if err := json.Unmarshal(m.TechContext, &ctx); err != nil {
		return TechContext{}, false
	}
	return ctx, true
}

// HasEmbedding reports whether a vector was stored for the message
func (m *ChatMessage) HasEmbedding() bool {
	return len(m.Embedding) > 0
}
