package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sahilchouksey/devpilot-api/config"
	"github.com/sahilchouksey/devpilot-api/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage defines the lifecycle and access surface of the relational store
type Storage interface {
	Init() error
	Close() error
	HealthCheck(ctx context.Context) error
	GetDB() *gorm.DB
}

// GORMStore is the PostgreSQL-backed Storage
type GORMStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// BuildDSN returns DATABASE_URL when set, otherwise a key/value DSN from the DB_* variables
func BuildDSN(env *config.EnvironmentVariable) string {
	if env.DATABASE_URL != "" {
		return env.DATABASE_URL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		env.DB_SSL_MODE,
	)
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(env *config.EnvironmentVariable, log *zap.Logger) (*GORMStore, error) {
	gormLogger := logger.Default.LogMode(logger.Info)
	if env.IsProduction() {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(BuildDSN(env)), &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		log.Error("unable to connect to PostgreSQL", zap.Error(err))
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("connected to PostgreSQL", zap.String("host", env.DB_HOST), zap.String("database", env.DB_NAME))

	return &GORMStore{db: db, log: log}, nil
}

// NewGORMStore wraps an already opened connection
func NewGORMStore(db *gorm.DB, log *zap.Logger) *GORMStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &GORMStore{db: db, log: log}
}

// Models lists every table managed by AutoMigrate, parents first
func Models() []interface{} {
	return []interface{}{
		&model.TechStack{},
		&model.User{},
		&model.ChatSession{},
		&model.ChatMessage{},
		&model.InterviewQuestion{},
		&model.UserPreference{},
		&model.CronJobLog{},
	}
}

// Init runs AutoMigrate for all models
func (s *GORMStore) Init() error {
	s.log.Info("running AutoMigrate")

	if err := s.db.AutoMigrate(Models()...); err != nil {
		s.log.Error("AutoMigrate failed", zap.Error(err))
		return err
	}

	s.log.Info("AutoMigrate completed")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	s.log.Info("closing database connection")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for use in services and handlers
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
