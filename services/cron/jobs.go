package cron

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/devpilot-api/model"
)

var errNotConfigured = errors.New("job dependency not configured")

// SweepRateLimiter evicts rate-limit windows that saw no traffic in the last window
func (m *CronManager) SweepRateLimiter(ctx context.Context) (string, error) {
	if m.limiter == nil {
		return "", fmt.Errorf("%s: %w", JobSweepRateLimiter, errNotConfigured)
	}
	removed := m.limiter.Sweep(m.now())
	return fmt.Sprintf("evicted %d idle windows, %d tracked", removed, m.limiter.Size()), nil
}

// PurgeInactiveSessions deletes sessions deactivated longer than the purge age
func (m *CronManager) PurgeInactiveSessions(ctx context.Context) (string, error) {
	if m.chat == nil {
		return "", fmt.Errorf("%s: %w", JobPurgeInactiveSessions, errNotConfigured)
	}
	cutoff := m.now().Add(-m.purgeAfter)
	purged, err := m.chat.PurgeInactiveSessions(ctx, cutoff)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("purged %d sessions deactivated before %s", purged, cutoff.Format("2006-01-02")), nil
}

// CleanupCronLogs removes job logs older than the retention period
func (m *CronManager) CleanupCronLogs(ctx context.Context) (string, error) {
	cutoff := m.now().Add(-m.logRetention)
	result := m.db.WithContext(ctx).Where("started_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		return "", fmt.Errorf("failed to clean cron logs: %w", result.Error)
	}
	return fmt.Sprintf("cleaned %d old cron logs", result.RowsAffected), nil
}
