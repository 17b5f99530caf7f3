// Package model declares the language-model endpoints the gateway can talk to.
// A Registry is an ordered, immutable list of endpoints keyed by provider name;
// its order is the fallback order used during provider selection.
package model

import (
	"encoding/json"
	"slices"
	"strings"
)

// Default request parameters shared by every built-in endpoint.
const (
	DefaultTemperature = 0.2
	DefaultMaxTokens   = 4096
)

// Provider names of the built-in endpoints.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderAzure     = "azure"
	ProviderMistral   = "mistral"
	ProviderTogether  = "together"
	ProviderOllama    = "ollama"
)

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the provider family name (openai, anthropic, azure, ...).
	Provider string `json:"provider" yaml:"provider" validate:"required"`

	// URL is the API endpoint. Empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the response token budget.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"gte=0"`

	// Temperature controls sampling randomness.
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`

	// CredentialEnv names the environment variable holding the API key.
	// Empty means <PROVIDER>_API_KEY.
	CredentialEnv string `json:"credential_env,omitempty" yaml:"credential_env,omitempty"`

	// Keyless endpoints (local servers) are selectable without a credential.
	Keyless bool `json:"keyless,omitempty" yaml:"keyless,omitempty"`
}

// CredentialVar returns the environment variable consulted for this endpoint.
func (e EndpointConfig) CredentialVar() string {
	if e.CredentialEnv != "" {
		return e.CredentialEnv
	}
	return strings.ToUpper(e.Provider) + "_API_KEY"
}

// merge overlays the non-zero fields of o onto e.
func (e EndpointConfig) merge(o EndpointConfig) EndpointConfig {
	if o.URL != "" {
		e.URL = o.URL
	}
	if o.Model != "" {
		e.Model = o.Model
	}
	if o.MaxTokens > 0 {
		e.MaxTokens = o.MaxTokens
	}
	if o.Temperature > 0 {
		e.Temperature = o.Temperature
	}
	if o.CredentialEnv != "" {
		e.CredentialEnv = o.CredentialEnv
	}
	if o.Keyless {
		e.Keyless = true
	}
	return e
}

// Registry is an ordered set of endpoints. It is never mutated after
// construction, so it can be shared freely between goroutines.
type Registry struct {
	endpoints []EndpointConfig
}

// NewRegistry creates a registry from endpoints in fallback order.
// A later entry for an already listed provider is merged into the first one.
func NewRegistry(endpoints ...EndpointConfig) *Registry {
	r := &Registry{}
	for _, ep := range endpoints {
		r.endpoints = upsert(r.endpoints, ep)
	}
	return r
}

// DefaultRegistry returns the built-in endpoints: openai, anthropic, azure,
// mistral, together, in that order.
func DefaultRegistry() *Registry {
	return NewRegistry(
		EndpointConfig{
			Provider:    ProviderOpenAI,
			URL:         "https://api.openai.com/v1/chat/completions",
			Model:       "gpt-4o",
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		EndpointConfig{
			Provider:    ProviderAnthropic,
			URL:         "https://api.anthropic.com/v1/messages",
			Model:       "claude-3-sonnet-20240229",
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		EndpointConfig{
			// Azure deployments have no public default URL; it must be configured.
			Provider:      ProviderAzure,
			Model:         "gpt-4",
			MaxTokens:     DefaultMaxTokens,
			Temperature:   DefaultTemperature,
			CredentialEnv: "AZURE_OPENAI_API_KEY",
		},
		EndpointConfig{
			Provider:    ProviderMistral,
			URL:         "https://api.mistral.ai/v1/chat/completions",
			Model:       "mistral-large-latest",
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		EndpointConfig{
			Provider:    ProviderTogether,
			URL:         "https://api.together.xyz/v1/chat/completions",
			Model:       "llama-3-70b-instruct",
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
	)
}

// With returns a new registry with overrides applied. Overrides for known
// providers are merged in place; unknown providers are appended.
func (r *Registry) With(overrides ...EndpointConfig) *Registry {
	out := &Registry{endpoints: slices.Clone(r.endpoints)}
	for _, ep := range overrides {
		out.endpoints = upsert(out.endpoints, ep)
	}
	return out
}

// Map returns a new registry with fn applied to every endpoint.
func (r *Registry) Map(fn func(EndpointConfig) EndpointConfig) *Registry {
	out := &Registry{endpoints: make([]EndpointConfig, len(r.endpoints))}
	for i, ep := range r.endpoints {
		out.endpoints[i] = fn(ep)
	}
	return out
}

// Endpoint returns the endpoint configured for a provider.
func (r *Registry) Endpoint(provider string) (EndpointConfig, bool) {
	i := r.index(provider)
	if i < 0 {
		return EndpointConfig{}, false
	}
	return r.endpoints[i], true
}

// Providers returns provider names in fallback order.
func (r *Registry) Providers() []string {
	names := make([]string, len(r.endpoints))
	for i, ep := range r.endpoints {
		names[i] = ep.Provider
	}
	return names
}

// Endpoints returns a copy of all endpoints in fallback order.
func (r *Registry) Endpoints() []EndpointConfig {
	return slices.Clone(r.endpoints)
}

// Len returns the number of endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// MarshalJSON implements json.Marshaler for the registry.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Endpoints []EndpointConfig `json:"endpoints"`
	}{Endpoints: r.endpoints})
}

func (r *Registry) index(provider string) int {
	return slices.IndexFunc(r.endpoints, func(ep EndpointConfig) bool {
		return ep.Provider == provider
	})
}

func upsert(list []EndpointConfig, ep EndpointConfig) []EndpointConfig {
	for i := range list {
		if list[i].Provider == ep.Provider {
			list[i] = list[i].merge(ep)
			return list
		}
	}
	return append(list, ep)
}
