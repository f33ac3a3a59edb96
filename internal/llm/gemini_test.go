package llm

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
)

func TestGeminiClient_GenerateText(t *testing.T) {
	var gotPath, gotKey, gotPrompt string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotPrompt = req.Contents[0].Parts[0].Text

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Big launch today!  "}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("test-key", "gemini-2.5-flash", server.URL, 5*time.Second)

	text, err := client.GenerateText(context.Background(), "write a post")
	require.NoError(t, err)

	assert.Equal(t, "Big launch today!", text)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "write a post", gotPrompt)
	assert.Equal(t, "gemini-2.5-flash", client.Model())
}

func TestGeminiClient_Errors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantPermanent bool
		wantMsg       string
	}{
		{
			name:          "invalid key",
			status:        http.StatusForbidden,
			body:          `{"error":{"message":"API key not valid","status":"PERMISSION_DENIED"}}`,
			wantPermanent: true,
			wantMsg:       "API key not valid",
		},
		{
			name:          "overloaded",
			status:        http.StatusServiceUnavailable,
			body:          `{"error":{"message":"The model is overloaded","status":"UNAVAILABLE"}}`,
			wantPermanent: false,
			wantMsg:       "overloaded",
		},
		{
			name:          "blocked prompt",
			status:        http.StatusOK,
			body:          `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantPermanent: true,
			wantMsg:       "SAFETY",
		},
		{
			name:          "empty candidates",
			status:        http.StatusOK,
			body:          `{"candidates":[]}`,
			wantPermanent: false,
			wantMsg:       "no text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewGeminiClient("test-key", "gemini-2.5-flash", server.URL, 5*time.Second)
			_, err := client.GenerateText(context.Background(), "prompt")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.Equal(t, tt.wantPermanent, errors.Is(err, ErrPermanent))
		})
	}
}

func TestGeminiClient_MissingKey(t *testing.T) {
	client := NewGeminiClient("", "gemini-2.5-flash", "", time.Second)

	_, err := client.GenerateText(context.Background(), "prompt")
	assert.ErrorIs(t, err, ErrPermanent)
}
