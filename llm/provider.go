package llm

import "net/http"

// Chat roles used in request messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the provider-neutral input for building a request body.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// System returns the content of the first system message, or "".
func (r Request) System() string {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return m.Content
		}
	}
	return ""
}

// Provider defines the interface for LLM provider implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string

	// BuildURL constructs the full API endpoint URL from a configured base.
	// An empty base selects the provider default; "" means there is none.
	BuildURL(baseURL string) string

	// SetHeaders adds provider-specific authentication headers.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for the provider.
	BuildRequestBody(req Request) ([]byte, error)

	// ParseResponse extracts the answer text from provider-specific JSON.
	// Failures should be returned as *ParseError.
	ParseResponse(body []byte) (string, error)
}
