package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultSessionTitle is assigned to every new session until the first exchange names it
const DefaultSessionTitle = "New Chat"

// ChatSession is a conversation owned by a single user. SessionID is the
// opaque external identifier; ID never leaves the service.
type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	SessionID string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"session_id"`
	UserID    uint      `gorm:"not null;index" json:"-"`
	Title     string    `gorm:"type:varchar(255);default:'New Chat'" json:"title"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	User     User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Messages []ChatMessage `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

// TableName specifies the table name for ChatSession
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// BeforeCreate assigns the external identifier and default title
func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.SessionID == "" {
		s.SessionID = uuid.New().String()
	}
	if s.Title == "" {
		s.Title = DefaultSessionTitle
	}
	return nil
}
