package intent

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

//go:embed prompt.txt
var compilerPrompt string

const (
	defaultChatCompletionsURL = "https://api.openai.com/v1/chat/completions"
	defaultModel              = "gpt-4o-mini"
	defaultRequestTimeout     = 20 * time.Second
)

// LLMConfig configures the optional LLM compilation path.
type LLMConfig struct {
	Enabled     bool
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
}

// LLMClient compiles user text into an Intent via the OpenAI chat
// completions REST API, called directly over net/http. The model is asked
// for a bare JSON object; the reply goes through the same FromJSON
// validation as any other structured input, so a confused model cannot
// produce an intent the rest of the system would not accept.
//
// LLMClient is safe for concurrent use.
type LLMClient struct {
	httpClient  *http.Client
	apiKey      string
	model       string
	baseURL     string
	temperature float32
}

// NewLLMClient builds a client from config, filling in defaults for the
// model, endpoint and timeout.
func NewLLMClient(cfg LLMConfig) (*LLMClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultChatCompletionsURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &LLMClient{
		httpClient:  &http.Client{Timeout: timeout},
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: cfg.Temperature,
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *chatError   `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ParseIntent sends the user text to the model and decodes the reply into
// a validated Intent.
func (client *LLMClient) ParseIntent(ctx context.Context, text string) (Intent, error) {
	reply, err := client.complete(ctx, text)
	if err != nil {
		return Intent{}, err
	}

	payload := stripCodeFences(reply)
	intent, err := FromJSON([]byte(payload))
	if err != nil {
		return Intent{}, fmt.Errorf("llm: decoding model reply: %w", err)
	}
	return intent, nil
}

func (client *LLMClient) complete(ctx context.Context, text string) (string, error) {
	payload := chatRequest{
		Model: client.model,
		Messages: []chatMessage{
			{Role: "system", Content: compilerPrompt},
			{Role: "user", Content: text},
		},
		Temperature: &client.temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("llm: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm: api returned status %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("llm: parsing response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("llm: api error %s: %s", decoded.Error.Type, decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("llm: api returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// stripCodeFences unwraps a ```json ... ``` fenced block if the model
// ignored the bare-JSON instruction.
func stripCodeFences(reply string) string {
	trimmed := strings.TrimSpace(reply)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		first := strings.TrimSpace(trimmed[:newline])
		if first == "json" || first == "" {
			trimmed = trimmed[newline+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
