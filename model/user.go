package model

import (
	"time"
)

// User represents a registered user in the system
type User struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Username          string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	Email             string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash      string    `gorm:"not null" json:"-"` // Never expose password in JSON
	FullName          string    `gorm:"type:varchar(255)" json:"full_name"`
	YearsOfExperience int       `gorm:"default:0" json:"years_of_experience"`
	CurrentRole       string    `gorm:"type:varchar(255)" json:"current_role"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Relationships
	TechStacks   []TechStack      `gorm:"many2many:user_techstacks;constraint:OnDelete:CASCADE" json:"tech_stacks"`
	ChatSessions []ChatSession    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Preferences  []UserPreference `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// TechStackNames returns the names of the user's tech stacks in load order
func (u *User) TechStackNames() []string {
	names := make([]string, 0, len(u.TechStacks))
	for _, tech := range u.TechStacks {
		names = append(names, tech.Name)
	}
	return names
}
