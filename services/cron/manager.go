package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Job names as recorded in cron_job_logs
const (
	JobSweepRateLimiter      = "sweep_rate_limiter"
	JobPurgeInactiveSessions = "purge_inactive_sessions"
	JobCleanupCronLogs       = "cleanup_cron_logs"
)

// DefaultLogRetention is how long cron job logs are kept
const DefaultLogRetention = 30 * 24 * time.Hour

const jobTimeout = 10 * time.Minute

// Config wires the manager to the components its jobs maintain
type Config struct {
	Limiter *middleware.SlidingWindowLimiter
	Chat    *services.ChatService
	// SessionPurgeAfter enables the purge job when positive
	SessionPurgeAfter time.Duration
	LogRetention      time.Duration
	Logger            *zap.Logger
	Now               func() time.Time
}

// CronManager manages all scheduled cron jobs
type CronManager struct {
	cron *cron.Cron
	db   *gorm.DB
	log  *zap.Logger

	limiter      *middleware.SlidingWindowLimiter
	chat         *services.ChatService
	purgeAfter   time.Duration
	logRetention time.Duration
	now          func() time.Time
}

// NewCronManager creates a new cron manager
func NewCronManager(db *gorm.DB, config Config) *CronManager {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.LogRetention <= 0 {
		config.LogRetention = DefaultLogRetention
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CronManager{
		// seconds precision, overlapping runs of the same job are skipped
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		db:           db,
		log:          config.Logger,
		limiter:      config.Limiter,
		chat:         config.Chat,
		purgeAfter:   config.SessionPurgeAfter,
		logRetention: config.LogRetention,
		now:          config.Now,
	}
}

// Start registers and starts all cron jobs
func (m *CronManager) Start() error {
	m.log.Info("starting cron jobs")

	if err := m.registerJobs(); err != nil {
		return err
	}
	m.cron.Start()

	m.log.Info("cron jobs started", zap.Int("jobs", len(m.cron.Entries())))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (m *CronManager) Stop() {
	m.log.Info("stopping cron jobs")
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.log.Info("cron jobs stopped")
}

// registerJobs registers all cron jobs with their schedules
func (m *CronManager) registerJobs() error {
	type schedule struct {
		spec string
		name string
		run  func(ctx context.Context) (string, error)
	}

	jobs := []schedule{
		// every minute: evict idle rate-limit windows
		{"0 * * * * *", JobSweepRateLimiter, m.SweepRateLimiter},
		// weekly on Sunday at 4 AM
		{"0 0 4 * * 0", JobCleanupCronLogs, m.CleanupCronLogs},
	}
	if m.purgeAfter > 0 {
		// daily at 3 AM
		jobs = append(jobs, schedule{"0 0 3 * * *", JobPurgeInactiveSessions, m.PurgeInactiveSessions})
	}

	for _, job := range jobs {
		job := job
		if _, err := m.cron.AddFunc(job.spec, func() { m.RunJob(job.name, job.run) }); err != nil {
			return fmt.Errorf("failed to register %s: %w", job.name, err)
		}
	}
	return nil
}

// RunJob executes fn and records the run in cron_job_logs
func (m *CronManager) RunJob(name string, fn func(ctx context.Context) (string, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	start := m.now()
	entry := model.CronJobLog{
		JobName:   name,
		Status:    model.CronStatusRunning,
		StartedAt: start,
		Metadata:  datatypes.JSON("{}"),
	}
	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		m.log.Error("failed to record cron job start", zap.String("job", name), zap.Error(err))
	}

	message, err := fn(ctx)

	completed := m.now()
	updates := map[string]interface{}{
		"completed_at": completed,
		"duration":     completed.Sub(start).Milliseconds(),
	}
	if err != nil {
		m.log.Error("cron job failed", zap.String("job", name), zap.Error(err))
		updates["status"] = model.CronStatusFailed
		updates["error_msg"] = err.Error()
	} else {
		m.log.Debug("cron job completed", zap.String("job", name), zap.String("message", message))
		updates["status"] = model.CronStatusCompleted
		updates["message"] = message
	}

	if entry.ID == 0 {
		return
	}
	if err := m.db.WithContext(ctx).Model(&entry).Updates(updates).Error; err != nil {
		m.log.Error("failed to record cron job result", zap.String("job", name), zap.Error(err))
	}
}
