package intent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newChatCompletionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, "user", req.Messages[1].Role)

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			}},
		})
	}))
}

func TestLLMClientParseIntent(t *testing.T) {
	reply := "```json\n" + `{"operation": "count_videos"}` + "\n```"
	srv := newChatCompletionServer(t, reply, http.StatusOK)
	defer srv.Close()

	client, err := NewLLMClient(LLMConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	parsed, err := client.ParseIntent(context.Background(), "Сколько всего видео есть в системе?")
	require.NoError(t, err)
	require.Equal(t, OperationCountVideos, parsed.Operation)
}

func TestLLMClientRejectsInvalidReply(t *testing.T) {
	srv := newChatCompletionServer(t, `{"operation": "unsupported"}`, http.StatusOK)
	defer srv.Close()

	client, err := NewLLMClient(LLMConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ParseIntent(context.Background(), "что-нибудь")
	require.Error(t, err)
}

func TestLLMClientSurfacesAPIStatus(t *testing.T) {
	srv := newChatCompletionServer(t, "", http.StatusTooManyRequests)
	defer srv.Close()

	client, err := NewLLMClient(LLMConfig{APIKey: "test-key", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.ParseIntent(context.Background(), "вопрос")
	require.ErrorContains(t, err, "status 429")
}

func TestNewLLMClientRequiresAPIKey(t *testing.T) {
	_, err := NewLLMClient(LLMConfig{})
	require.Error(t, err)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bare json untouched", `{"a": 1}`, `{"a": 1}`},
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"anonymous fence", "```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounding whitespace", "  {\"a\": 1}\n", `{"a": 1}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, stripCodeFences(tc.input))
		})
	}
}

func TestParserFallsBackToRules(t *testing.T) {
	// LLM endpoint that always fails; the rule grammar must still answer.
	srv := newChatCompletionServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	parser, err := NewParser(LLMConfig{
		Enabled: true,
		APIKey:  "test-key",
		BaseURL: srv.URL,
	}, nil)
	require.NoError(t, err)

	parsed, err := parser.Parse(context.Background(), "Сколько всего видео есть в системе?")
	require.NoError(t, err)
	require.Equal(t, OperationCountVideos, parsed.Operation)
}

func TestParserWithoutLLMUsesRules(t *testing.T) {
	parser, err := NewParser(LLMConfig{}, nil)
	require.NoError(t, err)
	require.Nil(t, parser.llm)

	parsed, err := parser.Parse(context.Background(), "Сколько всего видео есть в системе?")
	require.NoError(t, err)
	require.Equal(t, OperationCountVideos, parsed.Operation)
}
