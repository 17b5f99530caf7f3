package providers

// NewAzure returns the adapter for Azure OpenAI. Azure has no shared default
// host, so the deployment URL must come from configuration.
func NewAzure() *OpenAIProvider {
	return &OpenAIProvider{ProviderName: "azure"}
}

// NewMistral returns the adapter for the Mistral platform.
func NewMistral() *OpenAIProvider {
	return &OpenAIProvider{
		ProviderName: "mistral",
		DefaultURL:   "https://api.mistral.ai/v1",
	}
}

// NewTogether returns the adapter for Together AI.
func NewTogether() *OpenAIProvider {
	return &OpenAIProvider{
		ProviderName: "together",
		DefaultURL:   "https://api.together.xyz/v1",
	}
}
