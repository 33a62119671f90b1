package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sahilchouksey/devpilot-api/model"
	"github.com/sahilchouksey/devpilot-api/services"
	"github.com/sahilchouksey/devpilot-api/utils/middleware"
	"github.com/sahilchouksey/devpilot-api/utils/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRunJob_RecordsOutcome(t *testing.T) {
	db := testutil.NewTestDB(t)
	m := NewCronManager(db, Config{Now: func() time.Time { return now }})

	m.RunJob("ok_job", func(ctx context.Context) (string, error) { return "did things", nil })
	m.RunJob("bad_job", func(ctx context.Context) (string, error) { return "", errors.New("boom") })

	var ok model.CronJobLog
	require.NoError(t, db.Where("job_name = ?", "ok_job").First(&ok).Error)
	assert.Equal(t, model.CronStatusCompleted, ok.Status)
	assert.Equal(t, "did things", ok.Message)
	require.NotNil(t, ok.CompletedAt)

	var bad model.CronJobLog
	require.NoError(t, db.Where("job_name = ?", "bad_job").First(&bad).Error)
	assert.Equal(t, model.CronStatusFailed, bad.Status)
	assert.Equal(t, "boom", bad.ErrorMsg)
}

func TestSweepRateLimiter(t *testing.T) {
	db := testutil.NewTestDB(t)
	limiter := middleware.NewSlidingWindowLimiter(time.Minute, nil)
	limiter.Allow("idle", middleware.RouteClassDefault, now.Add(-5*time.Minute))
	limiter.Allow("busy", middleware.RouteClassDefault, now.Add(-10*time.Second))

	m := NewCronManager(db, Config{Limiter: limiter, Now: func() time.Time { return now }})
	msg, err := m.SweepRateLimiter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "evicted 1 idle windows, 1 tracked", msg)
	assert.Equal(t, 1, limiter.Size())
}

func TestSweepRateLimiter_NotConfigured(t *testing.T) {
	m := NewCronManager(testutil.NewTestDB(t), Config{})
	_, err := m.SweepRateLimiter(context.Background())
	assert.ErrorIs(t, err, errNotConfigured)
}

func TestPurgeInactiveSessions(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.CreateUser(t, db, "dave", "password123")
	clock := func() time.Time { return now }
	chat := services.NewChatService(db, &testutil.FakeProvider{}, services.ChatServiceConfig{Now: clock})

	ctx := context.Background()
	session, err := chat.CreateSession(ctx, user.ID, "")
	require.NoError(t, err)
	require.NoError(t, chat.DeactivateSession(ctx, user.ID, session.SessionID))

	m := NewCronManager(db, Config{Chat: chat, SessionPurgeAfter: 24 * time.Hour, Now: clock})
	msg, err := m.PurgeInactiveSessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg, "purged 0 sessions")

	later := NewCronManager(db, Config{
		Chat:              chat,
		SessionPurgeAfter: 24 * time.Hour,
		Now:               func() time.Time { return now.Add(48 * time.Hour) },
	})
	msg, err = later.PurgeInactiveSessions(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg, "purged 1 sessions")
}

func TestCleanupCronLogs(t *testing.T) {
	db := testutil.NewTestDB(t)
	old := model.CronJobLog{JobName: "x", Status: model.CronStatusCompleted, StartedAt: now.Add(-40 * 24 * time.Hour)}
	recent := model.CronJobLog{JobName: "x", Status: model.CronStatusCompleted, StartedAt: now.Add(-time.Hour)}
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, db.Create(&recent).Error)

	m := NewCronManager(db, Config{Now: func() time.Time { return now }})
	msg, err := m.CleanupCronLogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cleaned 1 old cron logs", msg)

	var remaining []model.CronJobLog
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, recent.ID, remaining[0].ID)
}

func TestStartRegistersPurgeOnlyWhenEnabled(t *testing.T) {
	db := testutil.NewTestDB(t)

	m := NewCronManager(db, Config{})
	require.NoError(t, m.Start())
	assert.Len(t, m.cron.Entries(), 2)
	m.Stop()

	withPurge := NewCronManager(db, Config{SessionPurgeAfter: time.Hour})
	require.NoError(t, withPurge.Start())
	assert.Len(t, withPurge.cron.Entries(), 3)
	withPurge.Stop()
}
