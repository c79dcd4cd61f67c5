package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPAnalyzer_RequiresBaseURL(t *testing.T) {
	_, err := NewHTTPAnalyzer(Config{})
	assert.Error(t, err)
}

func TestHTTPAnalyzer_Analyze(t *testing.T) {
	var got chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = w.Write([]byte(`{
			"model": "gpt-test",
			"choices": [{"message": {"role": "assistant", "content": "salaries rose modestly"}}]
		}`))
	}))
	defer server.Close()

	analyzer, err := NewHTTPAnalyzer(Config{BaseURL: server.URL, APIKey: "secret", Model: "gpt-test"})
	require.NoError(t, err)

	analysis, err := analyzer.Analyze(context.Background(), AnalysisRequest{
		SystemPrompt: "you summarize salary stats",
		Payload:      map[string]int{"count": 42},
	})

	require.NoError(t, err)
	assert.Equal(t, "salaries rose modestly", analysis.Text)
	assert.Equal(t, "gpt-test", analysis.Model)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.JSONEq(t, `{"count":42}`, got.Messages[1].Content)
}

func TestHTTPAnalyzer_ProviderErrorWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	analyzer, err := NewHTTPAnalyzer(Config{BaseURL: server.URL})
	require.NoError(t, err)

	_, err = analyzer.Analyze(context.Background(), AnalysisRequest{SystemPrompt: "p", Payload: 1})
	assert.ErrorIs(t, err, ErrAnalysisFailed)
}

func TestHTTPAnalyzer_HonorsContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	analyzer, err := NewHTTPAnalyzer(Config{BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = analyzer.Analyze(ctx, AnalysisRequest{SystemPrompt: "p", Payload: 1})
	assert.Error(t, err)
}
