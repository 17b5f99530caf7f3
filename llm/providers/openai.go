// Package providers implements LLM provider adapters.
//
// Two wire families are supported. The chat-completions family (OpenAI,
// Azure OpenAI, Mistral, Together, Ollama) sends a system and a user message
// with bearer authentication. The Anthropic messages family sends a separate
// system field and authenticates with x-api-key plus a version header.
package providers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/c360studio/specforge/llm"
	openai "github.com/sashabaranov/go-openai"
)

// chatCompletionsPath is appended to base URLs that lack it.
const chatCompletionsPath = "/chat/completions"

// OpenAIProvider implements the chat-completions wire format. It serves
// OpenAI directly and, through its Name and DefaultURL, every compatible
// service.
type OpenAIProvider struct {
	// ProviderName is the registry key this adapter answers to.
	ProviderName string

	// DefaultURL is used when the endpoint has no URL. Empty means the
	// endpoint must be configured.
	DefaultURL string
}

// NewOpenAI returns the adapter for api.openai.com.
func NewOpenAI() *OpenAIProvider {
	return &OpenAIProvider{
		ProviderName: "openai",
		DefaultURL:   "https://api.openai.com/v1",
	}
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return o.ProviderName
}

// BuildURL constructs the chat completions endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = o.DefaultURL
	}
	if baseURL == "" {
		return ""
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	// Azure deployment URLs carry the path before an api-version query.
	if strings.Contains(baseURL, chatCompletionsPath) {
		return baseURL
	}

	return baseURL + chatCompletionsPath
}

// SetHeaders adds bearer authentication.
func (o *OpenAIProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

// BuildRequestBody creates the chat-completions request body.
func (o *OpenAIProvider) BuildRequestBody(r llm.Request) ([]byte, error) {
	messages := make([]openai.ChatCompletionMessage, len(r.Messages))
	for i, msg := range r.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       r.Model,
		Messages:    messages,
		Temperature: float32(r.Temperature),
		MaxTokens:   r.MaxTokens,
	}

	return json.Marshal(req)
}

// ParseResponse reads choices[0].message.content. When that path is not a
// plain string the body is decoded again with the typed response model, which
// also accepts content given as an array of text parts. A choice without any
// message text is a parse error.
func (o *OpenAIProvider) ParseResponse(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", llm.NewParseError(o.Name(), "invalid JSON", err)
	}

	if content, ok := choiceContent(raw); ok {
		return content, nil
	}

	var resp openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", llm.NewParseError(o.Name(), "unexpected response shape", err)
	}
	if len(resp.Choices) == 0 {
		return "", llm.NewParseError(o.Name(), "no choices in response", nil)
	}

	msg := resp.Choices[0].Message
	if msg.Content != "" {
		return msg.Content, nil
	}
	var parts []string
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText && part.Text != "" {
			parts = append(parts, part.Text)
		}
	}
	if len(parts) == 0 {
		return "", llm.NewParseError(o.Name(), "missing message content", nil)
	}
	return strings.Join(parts, ""), nil
}

// choiceContent walks choices[0].message.content in a generic JSON value.
func choiceContent(raw map[string]any) (string, bool) {
	choices, ok := raw["choices"].([]any)
	if !ok || len(choices) == 0 {
		return "", false
	}
	choice, ok := choices[0].(map[string]any)
	if !ok {
		return "", false
	}
	message, ok := choice["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"].(string)
	return content, ok
}
