// ABOUTME: Tests for the resilient completion client
// ABOUTME: Validates caching, retry/backoff with a fake clock, and error classification

package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock delivers After immediately and records requested delays.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) totalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.slept {
		total += d
	}
	return total
}

// scriptedUpstream fails a fixed number of times before succeeding.
type scriptedUpstream struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
}

func (u *scriptedUpstream) Complete(_ context.Context, messages []Message, _ Options) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.calls <= u.failures {
		return "", u.err
	}
	return "completion for: " + messages[len(messages)-1].Content, nil
}

func (u *scriptedUpstream) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func newTestClient(t *testing.T, upstream Upstream, clock Clock) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		Upstream: upstream,
		Policy: RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     30 * time.Second,
			Multiplier:   2,
		},
		CacheTTL:  time.Hour,
		CacheSize: 16,
		Clock:     clock,
	})
	require.NoError(t, err)
	return client
}

func TestClient_FirstAttemptSuccess(t *testing.T) {
	upstream := &scriptedUpstream{}
	client := newTestClient(t, upstream, newFakeClock())

	result, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "hello"}}, Options{})
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 1, result.AttemptNumber)
	assert.Equal(t, "completion for: hello", result.Content)
}

func TestClient_CacheHitSkipsUpstream(t *testing.T) {
	upstream := &scriptedUpstream{}
	client := newTestClient(t, upstream, newFakeClock())
	messages := []Message{{Role: "user", Content: "same question"}}

	first, err := client.Invoke(context.Background(), messages, Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := client.Invoke(context.Background(), messages, Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 0, second.AttemptNumber)
	assert.Equal(t, first.Content, second.Content)
	assert.Equal(t, 1, upstream.callCount(), "cache hit must not touch the upstream")
}

func TestClient_DifferentMessagesDifferentKeys(t *testing.T) {
	upstream := &scriptedUpstream{}
	client := newTestClient(t, upstream, newFakeClock())

	_, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "a"}}, Options{})
	require.NoError(t, err)
	result, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "b"}}, Options{})
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 2, upstream.callCount())
}

func TestClient_ExplicitCacheKey(t *testing.T) {
	upstream := &scriptedUpstream{}
	client := newTestClient(t, upstream, newFakeClock())

	_, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "a"}}, Options{CacheKey: "shared"})
	require.NoError(t, err)
	result, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "entirely different"}}, Options{CacheKey: "shared"})
	require.NoError(t, err)

	assert.True(t, result.Cached)
	assert.Equal(t, 1, upstream.callCount())
}

func TestClient_RetryBackoff(t *testing.T) {
	clock := newFakeClock()
	upstream := &scriptedUpstream{failures: 2, err: errors.New("upstream overloaded")}
	client := newTestClient(t, upstream, clock)

	result, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "retry me"}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.AttemptNumber)
	assert.Equal(t, 3, upstream.callCount())
	// Delays: 1s after attempt 1, 2s after attempt 2.
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.slept)
	assert.Equal(t, 3*time.Second, clock.totalSlept())
}

func TestClient_RetryExhaustion(t *testing.T) {
	clock := newFakeClock()
	upstream := &scriptedUpstream{failures: 10, err: errors.New("upstream down")}
	client := newTestClient(t, upstream, clock)

	_, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "doomed"}}, Options{})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.ErrorContains(t, err, "upstream down")
	assert.Equal(t, 3, upstream.callCount())
}

func TestClient_ValidationErrorNotRetried(t *testing.T) {
	clock := newFakeClock()
	upstream := &scriptedUpstream{
		failures: 10,
		err:      fmt.Errorf("%w: messages must not be empty", ErrInvalidRequest),
	}
	client := newTestClient(t, upstream, clock)

	_, err := client.Invoke(context.Background(), []Message{{Role: "user", Content: "bad"}}, Options{})
	require.ErrorIs(t, err, ErrInvalidRequest)

	assert.Equal(t, 1, upstream.callCount(), "validation failures propagate on the first attempt")
	assert.Empty(t, clock.slept, "no backoff for non-retryable failures")
}

func TestClient_SuccessStoredForNextCaller(t *testing.T) {
	upstream := &scriptedUpstream{failures: 2, err: errors.New("flaky")}
	client := newTestClient(t, upstream, newFakeClock())
	messages := []Message{{Role: "user", Content: "eventually"}}

	_, err := client.Invoke(context.Background(), messages, Options{})
	require.NoError(t, err)

	result, err := client.Invoke(context.Background(), messages, Options{})
	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, 3, upstream.callCount())
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	upstream := &scriptedUpstream{failures: 10, err: errors.New("down")}
	client, err := NewClient(ClientConfig{
		Upstream: upstream,
		Policy:   RetryPolicy{MaxAttempts: 3, InitialDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 2},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Invoke(ctx, []Message{{Role: "user", Content: "x"}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Multiplier: 2}

	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4), "capped at MaxDelay")
	assert.Equal(t, 5*time.Second, p.Delay(10))
}
