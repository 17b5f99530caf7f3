package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/specforge/model"
	"github.com/c360studio/specforge/prompt"
	"github.com/c360studio/specforge/spec"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model.Preferred != "openai" {
		t.Errorf("expected preferred provider openai, got %s", cfg.Model.Preferred)
	}
	if cfg.Model.Temperature != 0.2 {
		t.Errorf("expected default temperature 0.2, got %f", cfg.Model.Temperature)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("expected default max tokens 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Model.Timeout != 120*time.Second {
		t.Errorf("expected default timeout 120s, got %v", cfg.Model.Timeout)
	}
	if cfg.Pipeline.MaxRepairAttempts != 3 {
		t.Errorf("expected 3 repair attempts, got %d", cfg.Pipeline.MaxRepairAttempts)
	}
	if cfg.Pipeline.Notation != NotationAuto {
		t.Errorf("expected default notation auto, got %s", cfg.Pipeline.Notation)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "missing preferred provider",
			modify:  func(c *Config) { c.Model.Preferred = "" },
			wantErr: "Preferred",
		},
		{
			name:    "temperature too low",
			modify:  func(c *Config) { c.Model.Temperature = -0.1 },
			wantErr: "Temperature",
		},
		{
			name:    "temperature too high",
			modify:  func(c *Config) { c.Model.Temperature = 2.1 },
			wantErr: "Temperature",
		},
		{
			name:    "endpoint is not a URL",
			modify:  func(c *Config) { c.Model.Endpoint = "not a url" },
			wantErr: "Endpoint",
		},
		{
			name:    "zero repair attempts",
			modify:  func(c *Config) { c.Pipeline.MaxRepairAttempts = 0 },
			wantErr: "MaxRepairAttempts",
		},
		{
			name:    "unknown depth",
			modify:  func(c *Config) { c.Pipeline.Depth = "deep" },
			wantErr: "pipeline.depth",
		},
		{
			name:    "unknown trace exporter",
			modify:  func(c *Config) { c.Telemetry.TraceExporter = "zipkin" },
			wantErr: "TraceExporter",
		},
		{
			name:    "otlp without endpoint",
			modify:  func(c *Config) { c.Telemetry.TraceExporter = "otlp" },
			wantErr: "OTLPEndpoint",
		},
		{
			name: "otlp with endpoint",
			modify: func(c *Config) {
				c.Telemetry.TraceExporter = "otlp"
				c.Telemetry.OTLPEndpoint = "localhost:4317"
			},
		},
		{
			name:    "provider override without name",
			modify:  func(c *Config) { c.Providers = []model.EndpointConfig{{URL: "http://localhost:11434"}} },
			wantErr: "Provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
model:
  preferred: anthropic
  model: claude-3-opus-20240229
  temperature: 0.5
  timeout: 10m
  requests_per_second: 2
providers:
  - provider: ollama
    url: http://localhost:11434/v1/chat/completions
    model: llama3
    keyless: true
pipeline:
  max_repair_attempts: 5
  notation: dafny
  depth: typecheck
storage:
  nats_url: nats://test:4222
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Model.Preferred != "anthropic" {
		t.Errorf("expected preferred anthropic, got %s", cfg.Model.Preferred)
	}
	if cfg.Model.Temperature != 0.5 {
		t.Errorf("expected temperature 0.5, got %f", cfg.Model.Temperature)
	}
	if cfg.Model.Timeout != 10*time.Minute {
		t.Errorf("expected timeout 10m, got %v", cfg.Model.Timeout)
	}
	if cfg.Model.MaxTokens != 4096 {
		t.Errorf("expected max tokens to keep default 4096, got %d", cfg.Model.MaxTokens)
	}
	if cfg.Pipeline.MaxRepairAttempts != 5 {
		t.Errorf("expected 5 repair attempts, got %d", cfg.Pipeline.MaxRepairAttempts)
	}
	if n := cfg.NotationFor(spec.DomainDistributedSystems); n != spec.NotationDafny {
		t.Errorf("expected notation dafny, got %s", n)
	}
	if d, err := cfg.Depth(); err != nil || d != spec.DepthTypeCheck {
		t.Errorf("expected typecheck depth, got %v (%v)", d, err)
	}
	if cfg.Storage.NATSURL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.Storage.NATSURL)
	}
	if len(cfg.Providers) != 1 || !cfg.Providers[0].Keyless {
		t.Errorf("expected one keyless provider override, got %+v", cfg.Providers)
	}
}

func TestConfigNotationFor(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		domain spec.Domain
		want   spec.Notation
	}{
		{spec.DomainCryptography, spec.NotationFStar},
		{spec.DomainDistributedSystems, spec.NotationTLA},
		{spec.DomainWebSecurity, spec.NotationDafny},
		{spec.DomainBlockchain, spec.NotationFStar},
	}
	for _, tt := range tests {
		if got := cfg.NotationFor(tt.domain); got != tt.want {
			t.Errorf("auto notation for %s: expected %s, got %s", tt.domain, tt.want, got)
		}
	}

	cfg.Pipeline.Notation = "coq"
	if got := cfg.NotationFor(spec.DomainDistributedSystems); got != spec.NotationCoq {
		t.Errorf("expected pipeline notation coq, got %s", got)
	}

	cfg.Domains = map[string]DomainConfig{"Distributed-Systems": {Notation: "lean"}}
	if got := cfg.NotationFor(spec.DomainDistributedSystems); got != spec.NotationLean {
		t.Errorf("expected domain override lean, got %s", got)
	}
	if got := cfg.NotationFor(spec.DomainCryptography); got != spec.NotationCoq {
		t.Errorf("expected pipeline notation coq for other domains, got %s", got)
	}
}

func TestConfigDomainContexts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Domains = map[string]DomainConfig{
		"cryptography": {Advice: "Prefer constant-time primitives."},
		"robotics":     {Description: "Robot controllers.", CommonProperties: []string{"Bounded velocity"}},
	}

	table := cfg.DomainContexts()

	crypto := table[spec.DomainCryptography]
	if crypto.Advice != "Prefer constant-time primitives." {
		t.Errorf("expected advice override, got %q", crypto.Advice)
	}
	if crypto.Description != prompt.DomainContexts[spec.DomainCryptography].Description {
		t.Errorf("expected built-in description to be kept, got %q", crypto.Description)
	}
	if prompt.DomainContexts[spec.DomainCryptography].Advice == crypto.Advice {
		t.Error("built-in table must not be modified")
	}

	robotics, ok := table[spec.Domain("robotics")]
	if !ok || robotics.Description != "Robot controllers." || len(robotics.CommonProperties) != 1 {
		t.Errorf("expected new robotics domain, got %+v", robotics)
	}
}

func TestConfigRegistry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Preferred = "anthropic"
	cfg.Model.Model = "claude-3-opus-20240229"
	cfg.Model.Temperature = 0.7
	cfg.Providers = []model.EndpointConfig{{Provider: "ollama", URL: "http://localhost:11434/v1/chat/completions", Model: "llama3", Keyless: true}}

	reg := cfg.Registry()

	ep, ok := reg.Endpoint("anthropic")
	if !ok {
		t.Fatal("anthropic endpoint missing")
	}
	if ep.Model != "claude-3-opus-20240229" {
		t.Errorf("expected model override, got %s", ep.Model)
	}
	if ep.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %f", ep.Temperature)
	}

	openai, _ := reg.Endpoint("openai")
	if openai.Temperature != 0.7 {
		t.Errorf("temperature should apply to every endpoint, got %f", openai.Temperature)
	}

	providers := reg.Providers()
	if providers[len(providers)-1] != "ollama" {
		t.Errorf("expected ollama appended last, got %v", providers)
	}
}

func TestConfigCredentials(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.APIKey = "from-config"

	creds := cfg.Credentials(cfg.Registry())
	creds.Getenv = func(string) string { return "" }

	if key, ok := creds.Lookup("openai"); !ok || key != "from-config" {
		t.Errorf("expected config key for preferred provider, got %q %v", key, ok)
	}
	if _, ok := creds.Lookup("anthropic"); ok {
		t.Error("config key must not apply to other providers")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Model: ModelConfig{
			Preferred:    "mistral",
			SystemPrompt: "You write TLA+ only.",
		},
		Storage: StorageConfig{
			ProjectsDir: "/override/projects",
		},
		Domains: map[string]DomainConfig{"web_security": {Notation: "fstar"}},
	}

	base.Merge(override)

	if base.Model.SystemPrompt != "You write TLA+ only." {
		t.Errorf("expected system prompt override, got %q", base.Model.SystemPrompt)
	}
	if base.Domains["web_security"].Notation != "fstar" {
		t.Errorf("expected web_security domain override, got %+v", base.Domains)
	}

	if base.Model.Preferred != "mistral" {
		t.Errorf("expected preferred mistral, got %s", base.Model.Preferred)
	}
	// Temperature should remain from base since override didn't set it
	if base.Model.Temperature != 0.2 {
		t.Errorf("expected temperature to remain default, got %f", base.Model.Temperature)
	}
	if base.Storage.ProjectsDir != "/override/projects" {
		t.Errorf("expected projects dir /override/projects, got %s", base.Storage.ProjectsDir)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Model.Preferred = "together"
	cfg.Model.APIKey = "secret"

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("config file was not created: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("api key must not be written to disk")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Model.Preferred != "together" {
		t.Errorf("expected preferred together, got %s", loaded.Model.Preferred)
	}
}

func TestLoaderLayering(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()
	nested := filepath.Join(work, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	userDir := filepath.Join(home, UserConfigDir)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	user := "model:\n  preferred: anthropic\n  temperature: 0.4\n"
	if err := os.WriteFile(filepath.Join(userDir, UserConfigFile), []byte(user), 0644); err != nil {
		t.Fatal(err)
	}
	project := "model:\n  temperature: 0.1\ntemplates:\n  dir: prompts\n"
	if err := os.WriteFile(filepath.Join(work, ProjectConfigFile), []byte(project), 0644); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg, err := NewLoader(logger).WithDirs(home, nested).Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Model.Preferred != "anthropic" {
		t.Errorf("user config should set preferred, got %s", cfg.Model.Preferred)
	}
	if cfg.Model.Temperature != 0.1 {
		t.Errorf("project config should win over user config, got %f", cfg.Model.Temperature)
	}
	if cfg.Templates.Dir != filepath.Join(work, "prompts") {
		t.Errorf("templates dir should resolve against the project file, got %s", cfg.Templates.Dir)
	}
}

func TestLoaderExplicitFileMustExist(t *testing.T) {
	l := NewLoader(nil).WithDirs(t.TempDir(), t.TempDir())
	if _, err := l.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestEnsureUserConfig(t *testing.T) {
	home := t.TempDir()
	l := NewLoader(nil).WithDirs(home, t.TempDir())

	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, UserConfigDir, UserConfigFile)); err != nil {
		t.Errorf("user config not created: %v", err)
	}
}
