package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"gorm.io/gorm"
)

// Interview question categories
const (
	CategoryTechnical      = "Technical"
	CategorySystemDesign   = "System Design"
	CategoryBehavioral     = "Behavioral"
	CategoryCoding         = "Coding"
	CategoryProblemSolving = "Problem Solving"
)

// QuestionCategories lists every accepted category
var QuestionCategories = []string{
	CategoryTechnical,
	CategorySystemDesign,
	CategoryBehavioral,
	CategoryCoding,
	CategoryProblemSolving,
}

// Experience tiers used as difficulty levels
const (
	DifficultyJunior = "Junior"
	DifficultyMid    = "Mid-level"
	DifficultySenior = "Senior"
	DifficultyLead   = "Lead/Principal"
)

// DifficultyLevels lists the tiers from least to most senior
var DifficultyLevels = []string{DifficultyJunior, DifficultyMid, DifficultySenior, DifficultyLead}

// InterviewQuestion is a generated question shared by all users.
// QuestionHash is the dedup key: identical question text maps to one row.
type InterviewQuestion struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Question        string    `gorm:"type:text;not null" json:"question"`
	QuestionHash    string    `gorm:"type:char(64);uniqueIndex;not null" json:"-"`
	Category        string    `gorm:"type:varchar(50);index" json:"category"`
	DifficultyLevel string    `gorm:"type:varchar(50);index" json:"difficulty_level"`
	TechStack       *string   `gorm:"type:varchar(255)" json:"tech_stack"`
	ExpectedAnswer  *string   `gorm:"type:text" json:"expected_answer"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for InterviewQuestion
func (InterviewQuestion) TableName() string {
	return "interview_questions"
}

// BeforeCreate fills the dedup hash from the question text
func (q *InterviewQuestion) BeforeCreate(tx *gorm.DB) error {
	q.QuestionHash = HashQuestion(q.Question)
	return nil
}

// HashQuestion returns the dedup key for a question text
func HashQuestion(question string) string {
	sum := sha256.Sum256([]byte(question))
	return hex.EncodeToString(sum[:])
}

// IsValidCategory reports whether category is one of QuestionCategories
func IsValidCategory(category string) bool {
	for _, c := range QuestionCategories {
		if c == category {
			return true
		}
	}
	return false
}

// IsValidDifficulty reports whether level is one of DifficultyLevels
func IsValidDifficulty(level string) bool {
	for _, l := range DifficultyLevels {
		if l == level {
			return true
		}
	}
	return false
}
