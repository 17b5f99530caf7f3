package llm

import (
	"testing"

	"github.com/c360studio/specforge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestEnvCredentials_Lookup(t *testing.T) {
	creds := EnvCredentials{
		Registry:  model.DefaultRegistry(),
		Preferred: "anthropic",
		ConfigKey: "from-config",
		Getenv: envFrom(map[string]string{
			"ANTHROPIC_API_KEY":    "from-env",
			"AZURE_OPENAI_API_KEY": "azure-env",
			"MISTRAL_API_KEY":      "mistral-env",
		}),
	}

	tests := []struct {
		provider string
		want     string
		ok       bool
	}{
		{"anthropic", "from-config", true},
		{"azure", "azure-env", true},
		{"mistral", "mistral-env", true},
		{"openai", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			got, ok := creds.Lookup(tt.provider)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvCredentials_ConfigKeyOnlyForPreferred(t *testing.T) {
	creds := EnvCredentials{Preferred: "openai", ConfigKey: "cfg", Getenv: envFrom(nil)}

	_, ok := creds.Lookup("mistral")
	assert.False(t, ok)

	key, ok := creds.Lookup("openai")
	assert.True(t, ok)
	assert.Equal(t, "cfg", key)
}

func TestEnvCredentials_UsesProcessEnv(t *testing.T) {
	t.Setenv("TOGETHER_API_KEY", "tg")
	key, ok := EnvCredentials{}.Lookup("together")
	assert.True(t, ok)
	assert.Equal(t, "tg", key)
}

func TestSelectProvider(t *testing.T) {
	reg := model.DefaultRegistry()

	tests := []struct {
		name      string
		available map[string]string
		preferred string
		want      string
	}{
		{
			name:      "preferred wins when available",
			available: map[string]string{"openai": "a", "anthropic": "b"},
			preferred: "anthropic",
			want:      "anthropic",
		},
		{
			name:      "falls back in declaration order",
			available: map[string]string{"together": "t", "mistral": "m"},
			preferred: "anthropic",
			want:      "mistral",
		},
		{
			name:      "no preference uses first available",
			available: map[string]string{"azure": "z", "together": "t"},
			want:      "azure",
		},
		{
			name:      "unknown preferred provider ignored",
			available: map[string]string{"openai": "o"},
			preferred: "bedrock",
			want:      "openai",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := CredentialFunc(func(p string) (string, bool) {
				v, ok := tt.available[p]
				return v, ok
			})
			sel, err := SelectProvider(reg, creds, tt.preferred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Endpoint.Provider)
			assert.Equal(t, tt.available[tt.want], sel.APIKey)
		})
	}
}

func TestSelectProvider_NoneAvailable(t *testing.T) {
	creds := CredentialFunc(func(string) (string, bool) { return "", false })

	_, err := SelectProvider(model.DefaultRegistry(), creds, "openai")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewNetworkError("openai", assert.AnError)))
	assert.True(t, IsTransient(&HTTPError{Status: 429}))
	assert.True(t, IsTransient(&HTTPError{Status: 502}))
	assert.False(t, IsTransient(&HTTPError{Status: 400}))
	assert.False(t, IsTransient(NewParseError("openai", "bad", nil)))
	assert.True(t, IsFatal(ErrNoCredential))
	assert.False(t, IsFatal(nil))
}

func TestHTTPError_TruncatesBody(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	err := &HTTPError{Provider: "openai", Status: 500, Body: string(long)}
	assert.Len(t, err.Body, 500, "body is kept whole")
	assert.Contains(t, err.Error(), "...")
	assert.Less(t, len(err.Error()), 300)
}
