package model

import (
	"time"

	"gorm.io/datatypes"
)

// UserPreference is a free-form key/value setting. (UserID, PreferenceKey)
// uniqueness is kept by the preference handlers, not by a constraint.
type UserPreference struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"-"`
	PreferenceKey   string         `gorm:"type:varchar(100);not null;index" json:"key"`
	PreferenceValue datatypes.JSON `json:"value"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName specifies the table name for UserPreference
func (UserPreference) TableName() string {
	return "user_preferences"
}
