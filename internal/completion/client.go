// ABOUTME: Resilient client for an expensive upstream completion service
// ABOUTME: Content-addressed caching plus bounded exponential-backoff retry

package completion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ErrInvalidRequest marks a validation-shaped upstream failure (malformed
// request). Upstreams wrap it; the client never retries it.
var ErrInvalidRequest = errors.New("invalid completion request")

// Message is one turn of a completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tune a single invocation.
type Options struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`

	// CacheKey overrides the content-derived cache key when set.
	CacheKey string `json:"-"`
}

// Result is the outcome of one Invoke call. AttemptNumber is 0 for cache
// hits, otherwise the attempt that succeeded (1-based).
type Result struct {
	Content       string
	Cached        bool
	AttemptNumber int
	Latency       time.Duration
}

// Upstream is the completion service being wrapped.
type Upstream interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// RetryPolicy bounds the retry loop. The delay after failed attempt n
// (n >= 1) is min(InitialDelay * Multiplier^(n-1), MaxDelay).
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy retries up to 3 attempts with 1s initial delay
// doubling to a 30s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Delay returns the backoff delay after the nth failed attempt (n >= 1).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ClientConfig holds configuration for the Client.
type ClientConfig struct {
	Upstream   Upstream
	Policy     RetryPolicy
	CacheTTL   time.Duration
	CacheSize  int
	Clock      Clock        // nil means the real clock
	Logger     *slog.Logger // nil means slog.Default
}

// Client wraps an Upstream with caching and retry. Each Client owns its
// cache exclusively; construct one per process at the composition root.
type Client struct {
	upstream Upstream
	cache    *Cache
	policy   RetryPolicy
	clock    Clock
	logger   *slog.Logger
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Upstream == nil {
		return nil, errors.New("upstream is required")
	}
	if cfg.Policy.MaxAttempts < 1 {
		return nil, errors.New("retry policy needs at least one attempt")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = 256
	}
	return &Client{
		upstream: cfg.Upstream,
		cache:    NewCache(ttl, size),
		policy:   cfg.Policy,
		clock:    clock,
		logger:   logger,
	}, nil
}

// Invoke completes the message sequence, consulting the cache first. On a
// miss the upstream is attempted under the retry policy; transient
// failures back off exponentially, validation failures propagate on the
// first attempt. Successful results are stored unconditionally.
func (c *Client) Invoke(ctx context.Context, messages []Message, opts Options) (*Result, error) {
	start := c.clock.Now()

	key := opts.CacheKey
	if key == "" {
		key = contentKey(messages)
	}

	if payload, ok := c.cache.Get(key); ok {
		c.logger.Debug("completion cache hit", "key", key)
		return &Result{
			Content:       payload,
			Cached:        true,
			AttemptNumber: 0,
			Latency:       c.clock.Now().Sub(start),
		}, nil
	}

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		content, err := c.upstream.Complete(ctx, messages, opts)
		if err == nil {
			c.cache.Put(key, content)
			return &Result{
				Content:       content,
				Cached:        false,
				AttemptNumber: attempt,
				Latency:       c.clock.Now().Sub(start),
			}, nil
		}

		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		lastErr = err

		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn("transient completion failure, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(delay):
		}
	}

	return nil, fmt.Errorf("completion failed after %d attempts: %w", c.policy.MaxAttempts, lastErr)
}

// CacheLen reports the current cache entry count.
func (c *Client) CacheLen() int { return c.cache.Len() }

// contentKey derives a deterministic cache key from the serialized message
// sequence.
func contentKey(messages []Message) string {
	data, err := json.Marshal(messages)
	if err != nil {
		// Message is plain strings; Marshal cannot realistically fail.
		data = []byte(fmt.Sprint(messages))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
