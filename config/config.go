package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is not set")

// LoadENV loads variables from .env when GO_ENV is unset or "development".
// A missing .env file is not an error; the process environment is used as is.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	return nil
}

type EnvironmentVariable struct {
	GO_ENV    string
	PORT      int
	LOG_LEVEL string
	DEBUG     bool
	// Database
	DATABASE_URL string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	// JWT
	JWT_SECRET                  string
	JWT_ISSUER                  string
	ACCESS_TOKEN_EXPIRE_MINUTES int
	// Redis
	REDIS_URL string
	// Language model provider
	AI_PROVIDER             string
	OPENAI_API_KEY          string
	OPENAI_BASE_URL         string
	OPENAI_CHAT_MODEL       string
	OPENAI_CLASSIFIER_MODEL string
	OPENAI_EMBEDDING_MODEL  string
	GEMINI_API_KEY          string
	GEMINI_CHAT_MODEL       string
	GEMINI_EMBEDDING_MODEL  string
	EMBEDDING_DIMENSIONS    int
	// HTTP
	ALLOWED_ORIGINS      string
	RATE_LIMIT_DEFAULT   int
	RATE_LIMIT_CHAT      int
	RATE_LIMIT_INTERVIEW int
	// Scheduled jobs
	CRON_ENABLED             bool
	SESSION_PURGE_AFTER_DAYS int
}

// IsProduction reports whether the service runs with GO_ENV=production
func (e *EnvironmentVariable) IsProduction() bool {
	return e.GO_ENV == "production"
}

// Get reads the environment and fails when a variable the server cannot run without is missing
func Get() (*EnvironmentVariable, error) {
	env := Read()
	if env.JWT_SECRET == "" {
		return nil, ErrMissingJWTSecret
	}
	return env, nil
}

// Read reads the environment with defaults applied and no validation
func Read() *EnvironmentVariable {
	aiProvider := strings.ToLower(getString("AI_PROVIDER", "openai"))

	defaultDims := 1536
	if aiProvider == "gemini" {
		defaultDims = 768
	}

	return &EnvironmentVariable{
		GO_ENV:    os.Getenv("GO_ENV"),
		PORT:      getInt("PORT", 8080),
		LOG_LEVEL: getString("LOG_LEVEL", "info"),
		DEBUG:     getBool("DEBUG", false),
		// Database
		DATABASE_URL: os.Getenv("DATABASE_URL"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      getString("DB_HOST", "localhost"),
		DB_PORT:      getString("DB_PORT", "5432"),
		DB_SSL_MODE:  getString("DB_SSL_MODE", "disable"),
		// JWT
		JWT_SECRET:                  os.Getenv("JWT_SECRET"),
		JWT_ISSUER:                  getString("JWT_ISSUER", "devpilot-api"),
		ACCESS_TOKEN_EXPIRE_MINUTES: getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Language model provider
		AI_PROVIDER:             aiProvider,
		OPENAI_API_KEY:          os.Getenv("OPENAI_API_KEY"),
		OPENAI_BASE_URL:         getString("OPENAI_BASE_URL", "https://api.openai.com"),
		OPENAI_CHAT_MODEL:       getString("OPENAI_CHAT_MODEL", "gpt-4-turbo-preview"),
		OPENAI_CLASSIFIER_MODEL: getString("OPENAI_CLASSIFIER_MODEL", "gpt-3.5-turbo"),
		OPENAI_EMBEDDING_MODEL:  getString("OPENAI_EMBEDDING_MODEL", "text-embedding-ada-002"),
		GEMINI_API_KEY:          os.Getenv("GEMINI_API_KEY"),
		GEMINI_CHAT_MODEL:       getString("GEMINI_CHAT_MODEL", "gemini-1.5-flash"),
		GEMINI_EMBEDDING_MODEL:  getString("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		EMBEDDING_DIMENSIONS:    getInt("EMBEDDING_DIMENSIONS", defaultDims),
		// HTTP
		ALLOWED_ORIGINS:      getString("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001"),
		RATE_LIMIT_DEFAULT:   getInt("RATE_LIMIT_DEFAULT", 100),
		RATE_LIMIT_CHAT:      getInt("RATE_LIMIT_CHAT", 20),
		RATE_LIMIT_INTERVIEW: getInt("RATE_LIMIT_INTERVIEW", 10),
		// Scheduled jobs
		CRON_ENABLED:             getBool("CRON_ENABLED", true),
		SESSION_PURGE_AFTER_DAYS: getInt("SESSION_PURGE_AFTER_DAYS", 0),
	}
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
