package providers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/c360studio/specforge/llm"
)

// anthropicVersion is the API version to use.
const anthropicVersion = "2023-06-01"

// anthropicMessagesPath is appended to base URLs that lack it.
const anthropicMessagesPath = "/v1/messages"

// AnthropicProvider implements the Anthropic messages API.
type AnthropicProvider struct{}

// NewAnthropic returns the Anthropic adapter.
func NewAnthropic() *AnthropicProvider {
	return &AnthropicProvider{}
}

// Name returns the provider identifier.
func (a *AnthropicProvider) Name() string {
	return "anthropic"
}

// BuildURL constructs the Anthropic messages endpoint.
func (a *AnthropicProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(baseURL, anthropicMessagesPath) {
		return baseURL
	}
	return baseURL + anthropicMessagesPath
}

// SetHeaders adds Anthropic-specific authentication headers.
func (a *AnthropicProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

// anthropicRequest is the Anthropic API request format.
type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildRequestBody creates the Anthropic API request body.
func (a *AnthropicProvider) BuildRequestBody(r llm.Request) ([]byte, error) {
	// The system message travels in its own field.
	var apiMessages []anthropicMessage
	for _, msg := range r.Messages {
		if msg.Role == llm.RoleSystem {
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return json.Marshal(anthropicRequest{
		Model:       r.Model,
		MaxTokens:   maxTokens,
		Temperature: r.Temperature,
		System:      r.System(),
		Messages:    apiMessages,
	})
}

// ParseResponse reads content[0].text, falling back to a top-level string
// "content" and then "completion".
func (a *AnthropicProvider) ParseResponse(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", llm.NewParseError(a.Name(), "invalid JSON", err)
	}

	if blocks, ok := raw["content"].([]any); ok {
		if len(blocks) == 0 {
			return "", llm.NewParseError(a.Name(), "empty content array", nil)
		}
		first, ok := blocks[0].(map[string]any)
		if !ok {
			return "", llm.NewParseError(a.Name(), "content block is not an object", nil)
		}
		text, ok := first["text"].(string)
		if !ok {
			return "", llm.NewParseError(a.Name(), "missing text in content block", nil)
		}
		return text, nil
	}

	if content, ok := raw["content"].(string); ok {
		return content, nil
	}
	if completion, ok := raw["completion"].(string); ok {
		return completion, nil
	}

	return "", llm.NewParseError(a.Name(), "no content in response", nil)
}
