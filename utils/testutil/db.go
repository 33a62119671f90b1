// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sahilchouksey/devpilot-api/database"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/utils/auth"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB creates an isolated in-memory SQLite database with every model migrated.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// shared-cache sqlite locks whole tables; one connection keeps tests deterministic
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.NewGORMStore(db, nil).Init(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts an active user with the given password.
func CreateUser(t *testing.T, db *gorm.DB, username, password string, techs ...model.TechStack) *model.User {
	t.Helper()

	hash, err := auth.HashPasswordWithCost(password, auth.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FullName:     strings.ToUpper(username[:1]) + username[1:],
		IsActive:     true,
		TechStacks:   techs,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return user
}

// CreateTechStack inserts a catalogue entry.
func CreateTechStack(t *testing.T, db *gorm.DB, name, category string) model.TechStack {
	t.Helper()

	tech := model.TechStack{Name: name, Category: category, Description: name + " description"}
	if err := db.Create(&tech).Error; err != nil {
		t.Fatalf("failed to create tech stack %s: %v", name, err)
	}
	return tech
}
