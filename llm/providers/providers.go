package providers

import "github.com/c360studio/specforge/llm"

// Default returns an adapter for every supported provider.
func Default() []llm.Provider {
	return []llm.Provider{
		NewOpenAI(),
		NewAnthropic(),
		NewAzure(),
		NewMistral(),
		NewTogether(),
		NewOllama(),
	}
}
