package model

import "time"

// TechStack is a catalogue entry users attach to their profile
type TechStack struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Category    string    `gorm:"type:varchar(100);index" json:"category"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for TechStack
func (TechStack) TableName() string {
	return "tech_stacks"
}
