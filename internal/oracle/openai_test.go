package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatServer(t *testing.T, answer string, seen *chatRequest) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": answer}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenAIOracle_Classify(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "age", &seen)
	o := NewOpenAIOracle(OpenAIConfig{BaseURL: srv.URL, APIKey: "key", Model: "m", MaxValues: 2})

	raw, err := o.Classify(context.Background(), "Age_Years", []string{"1", "2", "3"}, []string{"age", "gender"})
	require.NoError(t, err)
	assert.Equal(t, "age", raw)

	assert.Equal(t, "m", seen.Model)
	assert.Equal(t, float64(0), seen.Temperature)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Contains(t, seen.Messages[0].Content, "<feature>gender</feature>")
	assert.Equal(t, "user", seen.Messages[1].Role)
	assert.Contains(t, seen.Messages[1].Content, "<name>Age_Years</name>")
	assert.Contains(t, seen.Messages[1].Content, `["1", "2", ...]`)
}

func TestOpenAIOracle_RetryAppendsReminder(t *testing.T) {
	var calls atomic.Int32
	var lastUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		lastUser = req.Messages[1].Content
		answer := "I think age"
		if calls.Add(1) > 1 {
			answer = "age"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": answer}}},
		})
	}))
	defer srv.Close()

	o := NewOpenAIOracle(OpenAIConfig{BaseURL: srv.URL})
	v, err := Resolve(context.Background(), o, "Age_Years", nil, []string{"age"}, PolicyRetry)
	require.NoError(t, err)
	assert.Equal(t, "age", v.Name)
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, strings.Contains(lastUser, "<reminder>"))
}

func TestOpenAIOracle_Unavailable(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"bad json", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			o := NewOpenAIOracle(OpenAIConfig{BaseURL: srv.URL})
			_, err := o.Classify(context.Background(), "x", nil, []string{"a"})
			assert.ErrorIs(t, err, ErrOracleUnavailable)
		})
	}
}

func TestOpenAIOracle_RateLimitHonorsContext(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, "NAN", &seen)
	o := NewOpenAIOracle(OpenAIConfig{BaseURL: srv.URL, APIKey: "key", RequestsPerSecond: 0.001})

	_, err := o.Classify(context.Background(), "x", nil, []string{"a"})
	require.NoError(t, err, "first request uses the burst")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.Classify(ctx, "x", nil, []string{"a"})
	assert.Error(t, err)
}
