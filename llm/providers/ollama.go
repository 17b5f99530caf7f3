package providers

// OllamaProvider implements the OpenAI-compatible API used by Ollama, vLLM, etc.
// Local servers usually run without authentication; a key is still sent when
// one is configured.
type OllamaProvider struct {
	OpenAIProvider // Embed for shared request/response format
}

// NewOllama returns the adapter for a local Ollama server.
func NewOllama() *OllamaProvider {
	return &OllamaProvider{
		OpenAIProvider: OpenAIProvider{
			ProviderName: "ollama",
			DefaultURL:   "http://localhost:11434/v1",
		},
	}
}
