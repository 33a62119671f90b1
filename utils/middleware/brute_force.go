package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/utils/cache"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"go.uber.org/zap"
)

const (
	bruteForceAttemptWindow = 15 * time.Minute
	bruteForceDefaultRetry  = 60
)

// BruteForceProtection locks out client IPs after repeated failed logins.
// Redis errors fail open so a cache outage never blocks legitimate users.
type BruteForceProtection struct {
	redisCache *cache.RedisCache
	log        *zap.Logger
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache, log *zap.Logger) *BruteForceProtection {
	if log == nil {
		log = zap.NewNop()
	}
	return &BruteForceProtection{
		redisCache: redisCache,
		log:        log,
	}
}

func attemptKey(ip string) string { return fmt.Sprintf("brute_force:attempts:%s", ip) }
func lockKey(ip string) string    { return fmt.Sprintf("brute_force:lock:%s", ip) }

// CheckLockout middleware rejects requests from locked IPs with 429
func (b *BruteForceProtection) CheckLockout() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		ip := c.IP()

		locked, err := b.redisCache.Exists(ctx, lockKey(ip))
		if err != nil {
			b.log.Warn("brute force check skipped", zap.Error(err))
			return c.Next()
		}

		if locked {
			retryAfter := bruteForceDefaultRetry
			if ttl, err := b.redisCache.TTL(ctx, lockKey(ip)); err == nil && ttl > 0 {
				retryAfter = int(ttl.Seconds())
			}

			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
		}

		return c.Next()
	}
}

// RecordFailedAttempt records a failed login attempt and applies progressive lockouts
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip, username string) {
	attempts, err := b.redisCache.Increment(ctx, attemptKey(ip))
	if err != nil {
		b.log.Warn("failed to record login attempt", zap.Error(err))
		return
	}

	if attempts == 1 {
		if err := b.redisCache.Expire(ctx, attemptKey(ip), bruteForceAttemptWindow); err != nil {
			b.log.Warn("failed to set attempt window", zap.Error(err))
		}
	}

	lockDuration := LockoutDuration(attempts)
	if lockDuration == 0 {
		return
	}

	b.log.Warn("locking out client after failed logins",
		zap.String("ip", ip),
		zap.String("username", username),
		zap.Int64("attempts", attempts),
		zap.Duration("lockout", lockDuration),
	)
	if err := b.redisCache.Set(ctx, lockKey(ip), "locked", lockDuration); err != nil {
		b.log.Warn("failed to apply lockout", zap.Error(err))
	}
}

// RecordSuccessfulAttempt clears failed attempts on successful login
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip string) {
	if err := b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip)); err != nil {
		b.log.Warn("failed to clear login attempts", zap.Error(err))
	}
}

// IsLocked reports whether ip is currently locked out
func (b *BruteForceProtection) IsLocked(ctx context.Context, ip string) (bool, error) {
	return b.redisCache.Exists(ctx, lockKey(ip))
}

// LockoutDuration maps a failed attempt count to a lockout; zero means none yet
func LockoutDuration(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	default:
		return 0
	}
}
