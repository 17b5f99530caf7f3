// Package config provides configuration loading and management for specforge.
package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/specforge/llm"
	"github.com/c360studio/specforge/model"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/repair"
	"github.com/c360studio/specforge/spec"
	"github.com/c360studio/specforge/storage"
	"github.com/c360studio/specforge/telemetry"
)

var validate = validator.New()

// NotationAuto selects the notation recommended for the request's domain.
const NotationAuto = "auto"

// Config represents the complete specforge configuration
type Config struct {
	Model     ModelConfig            `yaml:"model"`
	Providers []model.EndpointConfig `yaml:"providers,omitempty" validate:"dive"`
	Templates TemplatesConfig        `yaml:"templates"`
	Pipeline  PipelineConfig         `yaml:"pipeline"`
	Storage   StorageConfig          `yaml:"storage"`
	Telemetry TelemetryConfig        `yaml:"telemetry"`
	// Domains adds or overrides domain guidance, keyed by domain name
	Domains map[string]DomainConfig `yaml:"domains,omitempty"`
}

// ModelConfig configures the model gateway
type ModelConfig struct {
	// Preferred is the provider tried first (default: openai)
	Preferred string `yaml:"preferred" validate:"required"`
	// APIKey is used for the preferred provider ahead of the environment
	APIKey string `yaml:"api_key,omitempty"`
	// Model overrides the model identifier of the preferred provider
	Model string `yaml:"model,omitempty"`
	// Endpoint overrides the URL of the preferred provider
	Endpoint string `yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// Temperature applies to every endpoint (0.0-2.0, default: 0.2)
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	// MaxTokens applies to every endpoint (default: 4096)
	MaxTokens int `yaml:"max_tokens" validate:"gt=0"`
	// Timeout is the maximum time to wait for a model response
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	// RequestsPerSecond throttles outgoing calls (0 = unlimited)
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
	// SystemPrompt replaces the system message sent with every call
	SystemPrompt string `yaml:"system_prompt,omitempty"`
}

// TemplatesConfig configures prompt templates
type TemplatesConfig struct {
	// Dir holds *.tmpl overrides (empty = built-in templates only)
	Dir string `yaml:"dir,omitempty"`
}

// PipelineConfig configures generation and repair
type PipelineConfig struct {
	MaxRepairAttempts int `yaml:"max_repair_attempts" validate:"gte=1,lte=10"`
	Workers           int `yaml:"workers" validate:"gte=1"`
	// Notation is a notation name or "auto" (default) to follow the domain
	Notation string `yaml:"notation" validate:"required"`
	Depth    string `yaml:"depth" validate:"required"`
}

// StorageConfig configures persistence
type StorageConfig struct {
	// ProjectsDir is the root of project directories
	ProjectsDir string `yaml:"projects_dir"`
	// NATSURL enables the JetStream KV store when set
	NATSURL string `yaml:"nats_url,omitempty"`
}

// TelemetryConfig configures span export
type TelemetryConfig struct {
	// TraceExporter is none, stdout or otlp (default: none)
	TraceExporter string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	// OTLPEndpoint is the collector address for the otlp exporter
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure bool   `yaml:"otlp_insecure,omitempty"`
}

// DomainConfig adds or overrides the guidance for one domain. Empty fields
// keep the built-in values.
type DomainConfig struct {
	Description      string   `yaml:"description,omitempty"`
	CommonProperties []string `yaml:"common_properties,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	Advice           string   `yaml:"advice,omitempty"`
	// Notation is used for this domain when no notation is requested
	Notation string `yaml:"notation,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Preferred:   model.ProviderOpenAI,
			Temperature: model.DefaultTemperature,
			MaxTokens:   model.DefaultMaxTokens,
			Timeout:     llm.DefaultTimeout,
		},
		Pipeline: PipelineConfig{
			MaxRepairAttempts: repair.DefaultMaxAttempts,
			Workers:           4,
			Notation:          NotationAuto,
			Depth:             spec.DepthBasic.String(),
		},
		Storage: StorageConfig{
			ProjectsDir: storage.DefaultProjectsDir,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: telemetry.ExporterNone,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Depth(); err != nil {
		return fmt.Errorf("invalid config: pipeline.depth: %w", err)
	}
	return nil
}

// Registry returns the built-in endpoints with configured overrides applied.
func (c *Config) Registry() *model.Registry {
	reg := model.DefaultRegistry().With(c.Providers...)

	preferred := model.EndpointConfig{Provider: c.Model.Preferred, Model: c.Model.Model, URL: c.Model.Endpoint}
	if _, known := reg.Endpoint(c.Model.Preferred); known || preferred.URL != "" {
		reg = reg.With(preferred)
	}

	return reg.Map(func(ep model.EndpointConfig) model.EndpointConfig {
		if c.Model.Temperature > 0 {
			ep.Temperature = c.Model.Temperature
		}
		if c.Model.MaxTokens > 0 {
			ep.MaxTokens = c.Model.MaxTokens
		}
		return ep
	})
}

// Credentials returns the credential source for reg.
func (c *Config) Credentials(reg *model.Registry) llm.EnvCredentials {
	return llm.EnvCredentials{
		Registry:  reg,
		Preferred: c.Model.Preferred,
		ConfigKey: c.Model.APIKey,
	}
}

// Depth returns the configured validation depth.
func (c *Config) Depth() (spec.Depth, error) {
	return spec.ParseDepth(c.Pipeline.Depth)
}

// NotationFor returns the default notation for domain d. A domain override
// wins over pipeline.notation, and "auto" falls back to the notation
// recommended for d.
func (c *Config) NotationFor(d spec.Domain) spec.Notation {
	if dc, ok := c.domain(d); ok && dc.Notation != "" {
		return spec.ParseNotation(dc.Notation)
	}
	if c.Pipeline.Notation != "" && c.Pipeline.Notation != NotationAuto {
		return spec.ParseNotation(c.Pipeline.Notation)
	}
	return spec.RecommendedNotation(d)
}

func (c *Config) domain(d spec.Domain) (DomainConfig, bool) {
	for name, dc := range c.Domains {
		if spec.ParseDomain(name) == d {
			return dc, true
		}
	}
	return DomainConfig{}, false
}

// DomainContexts returns the built-in domain guidance with the configured
// overrides applied.
func (c *Config) DomainContexts() map[spec.Domain]prompt.DomainContext {
	table := maps.Clone(prompt.DomainContexts)
	for name, dc := range c.Domains {
		d := spec.ParseDomain(name)
		ctx := table[d]
		if dc.Description != "" {
			ctx.Description = dc.Description
		}
		if len(dc.CommonProperties) > 0 {
			ctx.CommonProperties = dc.CommonProperties
		}
		if len(dc.Examples) > 0 {
			ctx.ExampleSnippets = dc.Examples
		}
		if dc.Advice != "" {
			ctx.Advice = dc.Advice
		}
		table[d] = ctx
	}
	return table
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	overlay, err := readFile(path)
	if err != nil {
		return nil, err
	}
	config := DefaultConfig()
	config.Merge(overlay)
	return config, nil
}

// readFile parses a YAML file without applying defaults, so that only the
// keys present in the file take part in a merge.
func readFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Never persist a secret.
	out := *c
	out.Model.APIKey = ""

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Preferred != "" {
		c.Model.Preferred = other.Model.Preferred
	}
	if other.Model.APIKey != "" {
		c.Model.APIKey = other.Model.APIKey
	}
	if other.Model.Model != "" {
		c.Model.Model = other.Model.Model
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.MaxTokens != 0 {
		c.Model.MaxTokens = other.Model.MaxTokens
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}
	if other.Model.RequestsPerSecond != 0 {
		c.Model.RequestsPerSecond = other.Model.RequestsPerSecond
	}
	if other.Model.SystemPrompt != "" {
		c.Model.SystemPrompt = other.Model.SystemPrompt
	}

	// Providers are merged per provider name by the registry.
	if len(other.Providers) > 0 {
		c.Providers = append(c.Providers, other.Providers...)
	}

	// Templates
	if other.Templates.Dir != "" {
		c.Templates.Dir = other.Templates.Dir
	}

	// Pipeline
	if other.Pipeline.MaxRepairAttempts != 0 {
		c.Pipeline.MaxRepairAttempts = other.Pipeline.MaxRepairAttempts
	}
	if other.Pipeline.Workers != 0 {
		c.Pipeline.Workers = other.Pipeline.Workers
	}
	if other.Pipeline.Notation != "" {
		c.Pipeline.Notation = other.Pipeline.Notation
	}
	if other.Pipeline.Depth != "" {
		c.Pipeline.Depth = other.Pipeline.Depth
	}

	// Storage
	if other.Storage.ProjectsDir != "" {
		c.Storage.ProjectsDir = other.Storage.ProjectsDir
	}
	if other.Storage.NATSURL != "" {
		c.Storage.NATSURL = other.Storage.NATSURL
	}

	// Telemetry
	if other.Telemetry.TraceExporter != "" {
		c.Telemetry.TraceExporter = other.Telemetry.TraceExporter
	}
	if other.Telemetry.OTLPEndpoint != "" {
		c.Telemetry.OTLPEndpoint = other.Telemetry.OTLPEndpoint
	}
	if other.Telemetry.OTLPInsecure {
		c.Telemetry.OTLPInsecure = true
	}

	// Domains are replaced per key.
	for name, dc := range other.Domains {
		if c.Domains == nil {
			c.Domains = make(map[string]DomainConfig)
		}
		c.Domains[name] = dc
	}
}
