// ABOUTME: Tests for the HTTP completion upstream
// ABOUTME: Validates request shape and status-code error classification

package completion

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPUpstream_Complete(t *testing.T) {
	var gotAuth string
	var gotReq completionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "hello back"}},
			},
		})
	}))
	defer srv.Close()

	u, err := NewHTTPUpstream(HTTPUpstreamConfig{BaseURL: srv.URL, APIKey: "key-123", Model: "tutor-large"})
	require.NoError(t, err)

	content, err := u.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "hello back", content)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "tutor-large", gotReq.Model, "default model applied")
}

func TestHTTPUpstream_BadRequestNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"messages must not be empty"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	u, err := NewHTTPUpstream(HTTPUpstreamConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = u.Complete(context.Background(), nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestHTTPUpstream_ServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	u, err := NewHTTPUpstream(HTTPUpstreamConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = u.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest, "5xx failures stay retryable")
}

func TestHTTPUpstream_RateLimitRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	u, err := NewHTTPUpstream(HTTPUpstreamConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = u.Complete(context.Background(), []Message{{Role: "user", Content: "x"}}, Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidRequest)
}

func TestHTTPUpstream_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPUpstream(HTTPUpstreamConfig{})
	assert.Error(t, err)
}
