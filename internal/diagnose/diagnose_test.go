package diagnose

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"syscall"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	refused := &url.Error{
		Op:  "Post",
		URL: "http://localhost:9000/openai/v1/chat/completions",
		Err: &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED},
	}

	tests := []struct {
		name       string
		err        error
		category   Category
		statusCode int
		message    string
	}{
		{
			name:     "nil error",
			err:      nil,
			category: CategoryNone,
			message:  "",
		},
		{
			name:       "openai rate limit",
			err:        &openai.APIError{HTTPStatusCode: 429, Message: "slow down", Type: "rate_limit_error"},
			category:   CategoryRateLimit,
			statusCode: 429,
			message:    "Rate limit exceeded: ",
		},
		{
			name:       "openai authentication",
			err:        &openai.APIError{HTTPStatusCode: 401, Message: "bad key"},
			category:   CategoryAuthentication,
			statusCode: 401,
			message:    "Authentication failed (Check API Key?): ",
		},
		{
			name:       "openai api status",
			err:        &openai.APIError{HTTPStatusCode: 500, Message: "upstream exploded", Type: "server_error"},
			category:   CategoryAPIStatus,
			statusCode: 500,
			message:    "API returned an error status:\n  Status Code: 500\n  Response: upstream exploded (server_error)",
		},
		{
			name:       "openai request error",
			err:        &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")},
			category:   CategoryAPIStatus,
			statusCode: 502,
			message:    "API returned an error status:\n  Status Code: 502\n  Response: bad gateway",
		},
		{
			name:       "wrapped api error",
			err:        fmt.Errorf("stream: %w", &openai.APIError{HTTPStatusCode: 401, Message: "nope"}),
			category:   CategoryAuthentication,
			statusCode: 401,
			message:    "Authentication failed",
		},
		{
			name:     "connection refused",
			err:      refused,
			category: CategoryConnection,
			message:  "Connection error: dial tcp: connection refused",
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			category: CategoryUnexpected,
			message:  "An unexpected error occurred: context canceled",
		},
		{
			name:     "anything else",
			err:      errors.New("boom"),
			category: CategoryUnexpected,
			message:  "An unexpected error occurred: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(tt.err)
			assert.Equal(t, tt.category, d.Category)
			assert.Equal(t, tt.statusCode, d.StatusCode)
			if tt.message == "" {
				assert.Empty(t, d.Message())
			} else {
				assert.Contains(t, d.Message(), tt.message)
			}
		})
	}
}

func TestClassify_ConnectionCause(t *testing.T) {
	d := Classify(&url.Error{Op: "Post", URL: "http://x", Err: syscall.ECONNREFUSED})
	require.Equal(t, CategoryConnection, d.Category)
	assert.Equal(t, syscall.ECONNREFUSED, d.Cause)
}

func TestClassify_AnthropicErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		category Category
	}{
		{
			name:     "authentication",
			status:   http.StatusUnauthorized,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			category: CategoryAuthentication,
		},
		{
			name:     "rate limit",
			status:   http.StatusTooManyRequests,
			body:     `{"type":"error","error":{"type":"rate_limit_error","message":"too many"}}`,
			category: CategoryRateLimit,
		},
		{
			name:     "overloaded",
			status:   529,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"busy"}}`,
			category: CategoryAPIStatus,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := anthropic.NewClient(
				option.WithAPIKey("test-key"),
				option.WithBaseURL(server.URL),
				option.WithMaxRetries(0),
			)
			_, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
				Model:     anthropic.Model("claude-3-haiku-20240307"),
				MaxTokens: 10,
				Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock("hi"))},
			})
			require.Error(t, err)

			d := Classify(err)
			assert.Equal(t, tt.category, d.Category)
			assert.Equal(t, tt.status, d.StatusCode)
			if tt.category == CategoryAPIStatus {
				assert.Contains(t, d.Message(), "overloaded_error")
			}
		})
	}
}
