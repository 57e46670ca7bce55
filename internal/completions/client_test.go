package completions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revofy/revofy-backend/pkg/config"
)

func newTestClient(url, key string) *Client {
	return NewClient(config.OpenAIConfig{APIKey: key, BaseURL: url + "/", Model: "gpt-4o-mini", Timeout: 5 * time.Second})
}

func TestCompleteSendsModelAndReturnsFirstChoice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body apiRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		assert.Len(t, body.Messages, 1)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cmpl-1","model":"gpt-4o-mini","choices":[{"message":{"role":"assistant","content":"hi"}}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`))
	}))
	defer server.Close()

	got, err := newTestClient(server.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", got.Message.Content)
	assert.Equal(t, "assistant", got.Message.Role)
	assert.Equal(t, int64(4), got.Usage.TotalTokens)
}

func TestCompleteReportsProviderStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "overloaded")
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, "sk-test").Complete(context.Background(), []Message{{Role: "user", Content: "x"}})
	assert.Error(t, err)
}

func TestCompleteWithoutKey(t *testing.T) {
	_, err := newTestClient("http://unused", "").Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
