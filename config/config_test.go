package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Get()
	assert.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestGet_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("PORT", "")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("CRON_ENABLED", "")

	env, err := Get()
	require.NoError(t, err)
	assert.Equal(t, 8080, env.PORT)
	assert.Equal(t, "openai", env.AI_PROVIDER)
	assert.Equal(t, 1536, env.EMBEDDING_DIMENSIONS)
	assert.Equal(t, 30, env.ACCESS_TOKEN_EXPIRE_MINUTES)
	assert.Equal(t, 20, env.RATE_LIMIT_CHAT)
	assert.True(t, env.CRON_ENABLED)
	assert.Equal(t, 0, env.SESSION_PURGE_AFTER_DAYS)
}

func TestRead_Overrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "Gemini")
	t.Setenv("EMBEDDING_DIMENSIONS", "")
	t.Setenv("PORT", "not-a-number")
	t.Setenv("CRON_ENABLED", "false")
	t.Setenv("GO_ENV", "production")

	env := Read()
	assert.Equal(t, "gemini", env.AI_PROVIDER)
	assert.Equal(t, 768, env.EMBEDDING_DIMENSIONS)
	assert.Equal(t, 8080, env.PORT)
	assert.False(t, env.CRON_ENABLED)
	assert.True(t, env.IsProduction())
}
