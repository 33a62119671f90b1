package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/devpilot-api/utils/metrics"
	"github.com/sahilchouksey/devpilot-api/utils/response"
	"go.uber.org/zap"
)

// RouteClass groups routes that share a request budget
type RouteClass string

const (
	RouteClassDefault             RouteClass = "default"
	RouteClassChatMessage         RouteClass = "chat_message"
	RouteClassInterviewGeneration RouteClass = "interview_generation"
)

// DefaultRateLimitWindow is the sliding window length
const DefaultRateLimitWindow = 60 * time.Second

// DefaultRouteLimits are the per-window thresholds for each class
var DefaultRouteLimits = map[RouteClass]int{
	RouteClassDefault:             100,
	RouteClassChatMessage:         20,
	RouteClassInterviewGeneration: 10,
}

// RateLimitDecision is the outcome of one admission check
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type rateLimitKey struct {
	client string
	class  RouteClass
}

// slidingWindow holds admitted request timestamps in arrival order
type slidingWindow struct {
	mu      sync.Mutex
	hits    []time.Time
	evicted bool // set by Sweep once the window is unlinked from the map
}

// SlidingWindowLimiter admits at most limit(class) requests per client and
// class within any trailing window. It never blocks; callers reject on deny.
type SlidingWindowLimiter struct {
	window time.Duration
	limits map[RouteClass]int

	mu      sync.Mutex // guards windows, not their contents
	windows map[rateLimitKey]*slidingWindow
}

// NewSlidingWindowLimiter creates a limiter; classes missing from limits use the default class threshold
func NewSlidingWindowLimiter(window time.Duration, limits map[RouteClass]int) *SlidingWindowLimiter {
	if window <= 0 {
		window = DefaultRateLimitWindow
	}

	merged := make(map[RouteClass]int, len(DefaultRouteLimits))
	for class, limit := range DefaultRouteLimits {
		merged[class] = limit
	}
	for class, limit := range limits {
		if limit > 0 {
			merged[class] = limit
		}
	}

	return &SlidingWindowLimiter{
		window:  window,
		limits:  merged,
		windows: make(map[rateLimitKey]*slidingWindow),
	}
}

// Limit returns the threshold applied to class
func (l *SlidingWindowLimiter) Limit(class RouteClass) int {
	if limit, ok := l.limits[class]; ok {
		return limit
	}
	return l.limits[RouteClassDefault]
}

// Window returns the sliding window length
func (l *SlidingWindowLimiter) Window() time.Duration {
	return l.window
}

func (l *SlidingWindowLimiter) windowFor(key rateLimitKey) *slidingWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &slidingWindow{}
		l.windows[key] = w
	}
	return w
}

// Allow trims timestamps that fell out of the window ending at now, then
// admits and records the request if fewer than the class limit remain.
func (l *SlidingWindowLimiter) Allow(client string, class RouteClass, now time.Time) RateLimitDecision {
	limit := l.Limit(class)
	key := rateLimitKey{client: client, class: class}

	w := l.windowFor(key)
	w.mu.Lock()
	for w.evicted {
		w.mu.Unlock()
		w = l.windowFor(key)
		w.mu.Lock()
	}
	defer w.mu.Unlock()

	w.hits = trimBefore(w.hits, now.Add(-l.window))

	if len(w.hits) >= limit {
		return RateLimitDecision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			RetryAfter: l.window,
		}
	}

	w.hits = append(w.hits, now)
	return RateLimitDecision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(w.hits),
	}
}

// trimBefore drops the prefix of hits at or before cutoff. hits is time ordered.
func trimBefore(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return hits
	}
	// copy down so the backing array does not grow without bound
	n := copy(hits, hits[i:])
	return hits[:n]
}

// Sweep evicts windows with no hits inside the window ending at now and
// returns how many were removed
func (l *SlidingWindowLimiter) Sweep(now time.Time) int {
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		w.mu.Lock()
		w.hits = trimBefore(w.hits, cutoff)
		if len(w.hits) == 0 {
			w.evicted = true
			delete(l.windows, key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Size returns the number of tracked (client, class) windows
func (l *SlidingWindowLimiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// RouteRule assigns a route class to an exact method and path
type RouteRule struct {
	Method string
	Path   string
	Class  RouteClass
}

// RouteClassifier maps requests to route classes; unmatched requests are default
type RouteClassifier struct {
	rules []RouteRule
}

// NewRouteClassifier creates a classifier from rules
func NewRouteClassifier(rules ...RouteRule) *RouteClassifier {
	normalized := make([]RouteRule, 0, len(rules))
	for _, r := range rules {
		r.Method = strings.ToUpper(r.Method)
		r.Path = normalizePath(r.Path)
		normalized = append(normalized, r)
	}
	return &RouteClassifier{rules: normalized}
}

// Classify returns the class for method and path
func (rc *RouteClassifier) Classify(method, path string) RouteClass {
	method = strings.ToUpper(method)
	path = normalizePath(path)
	for _, r := range rc.rules {
		if r.Method == method && r.Path == path {
			return r.Class
		}
	}
	return RouteClassDefault
}

func normalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// RateLimitConfig configures the rate limiting middleware
type RateLimitConfig struct {
	Limiter    *SlidingWindowLimiter
	Classifier *RouteClassifier
	// KeyFunc identifies the client; defaults to the remote IP
	KeyFunc func(c *fiber.Ctx) string
	// Now overrides the clock; nil means time.Now
	Now    func() time.Time
	Logger *zap.Logger
}

// RateLimit rejects requests over their class budget with 429 and retry_after
func RateLimit(config RateLimitConfig) fiber.Handler {
	if config.Classifier == nil {
		config.Classifier = NewRouteClassifier()
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		class := config.Classifier.Classify(c.Method(), c.Path())
		client := config.KeyFunc(c)

		decision := config.Limiter.Allow(client, class, config.Now())

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			metrics.RecordRateLimitRejection(string(class))
			config.Logger.Warn("rate limit exceeded",
				zap.String("client", client),
				zap.String("route_class", string(class)),
				zap.String("path", c.Path()),
			)
			return response.RateLimited(c, int(decision.RetryAfter/time.Second))
		}

		return c.Next()
	}
}
