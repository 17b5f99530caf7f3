package llm

import (
	"fmt"
	"os"

	"github.com/c360studio/specforge/model"
)

// CredentialSource looks up the secret for a provider.
type CredentialSource interface {
	Lookup(provider string) (secret string, ok bool)
}

// CredentialFunc adapts a function to CredentialSource.
type CredentialFunc func(provider string) (string, bool)

// Lookup implements CredentialSource.
func (f CredentialFunc) Lookup(provider string) (string, bool) {
	return f(provider)
}

// EnvCredentials resolves credentials from an explicit config value and the
// process environment.
type EnvCredentials struct {
	// Registry supplies the per-provider environment variable names.
	Registry *model.Registry

	// Preferred is the provider ConfigKey belongs to.
	Preferred string

	// ConfigKey is an API key from configuration. It takes precedence over
	// the environment for the preferred provider only.
	ConfigKey string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Lookup implements CredentialSource.
func (c EnvCredentials) Lookup(provider string) (string, bool) {
	if provider == c.Preferred && c.ConfigKey != "" {
		return c.ConfigKey, true
	}

	getenv := c.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	envVar := model.EndpointConfig{Provider: provider}.CredentialVar()
	if c.Registry != nil {
		if ep, ok := c.Registry.Endpoint(provider); ok {
			envVar = ep.CredentialVar()
		}
	}

	if v := getenv(envVar); v != "" {
		return v, true
	}
	return "", false
}

// Selection is the outcome of provider selection.
type Selection struct {
	Endpoint model.EndpointConfig
	APIKey   string
}

// SelectProvider picks the endpoint to call: the preferred provider when it
// has a credential, otherwise the first registry entry that does. Keyless
// endpoints are always eligible.
func SelectProvider(reg *model.Registry, creds CredentialSource, preferred string) (Selection, error) {
	try := func(ep model.EndpointConfig) (Selection, bool) {
		if key, ok := creds.Lookup(ep.Provider); ok {
			return Selection{Endpoint: ep, APIKey: key}, true
		}
		if ep.Keyless {
			return Selection{Endpoint: ep}, true
		}
		return Selection{}, false
	}

	if preferred != "" {
		if ep, ok := reg.Endpoint(preferred); ok {
			if sel, ok := try(ep); ok {
				return sel, nil
			}
		}
	}

	for _, ep := range reg.Endpoints() {
		if ep.Provider == preferred {
			continue
		}
		if sel, ok := try(ep); ok {
			return sel, nil
		}
	}

	return Selection{}, fmt.Errorf("%w (tried %v)", ErrNoCredential, reg.Providers())
}
