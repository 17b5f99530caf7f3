// Package llm provides a provider-agnostic language-model gateway.
//
// The Gateway turns a prompt into answer text: it selects a provider by
// credential availability, builds the provider-specific request, performs a
// single HTTP round trip and normalizes the response. It never retries;
// failures are returned as *NetworkError, *HTTPError or *ParseError.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/specforge/model"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// maxResponseSize limits the LLM response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// DefaultTimeout bounds a single model request.
const DefaultTimeout = 120 * time.Second

// DefaultSystemPrompt is sent as the system message when none is configured.
const DefaultSystemPrompt = "You are a formal verification expert who creates precise, detailed formal specifications."

// Model is anything that can answer a prompt.
type Model interface {
	Call(ctx context.Context, prompt string) (string, error)
}

// Gateway is the HTTP implementation of Model.
type Gateway struct {
	registry   *model.Registry
	creds      CredentialSource
	providers  map[string]Provider
	preferred  string
	system     string
	httpClient *http.Client
	limiter    *rate.Limiter
	recorder   CallRecorder
	logger     *slog.Logger
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = c
	}
}

// WithTimeout sets the client-side timeout for each request.
func WithTimeout(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		c := *g.httpClient
		c.Timeout = d
		g.httpClient = &c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithPreferredProvider sets the provider tried before the registry order.
func WithPreferredProvider(name string) GatewayOption {
	return func(g *Gateway) {
		g.preferred = name
	}
}

// WithSystemPrompt overrides the system message.
func WithSystemPrompt(s string) GatewayOption {
	return func(g *Gateway) {
		g.system = s
	}
}

// WithRateLimit caps outgoing requests per second. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) GatewayOption {
	return func(g *Gateway) {
		if rps <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCallRecorder records every call, successful or not.
func WithCallRecorder(r CallRecorder) GatewayOption {
	return func(g *Gateway) {
		g.recorder = r
	}
}

// NewGateway creates a gateway over the given registry and provider adapters.
func NewGateway(registry *model.Registry, creds CredentialSource, providers []Provider, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry:  registry,
		creds:     creds,
		providers: make(map[string]Provider, len(providers)),
		system:    DefaultSystemPrompt,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: slog.Default(),
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Call sends prompt to the selected provider and returns the answer text.
func (g *Gateway) Call(ctx context.Context, prompt string) (string, error) {
	requestID := uuid.New().String()

	sel, err := SelectProvider(g.registry, g.creds, g.preferred)
	if err != nil {
		requestsTotal.WithLabelValues("none", OutcomeConfigError).Inc()
		g.logger.Warn("No model provider available", "request_id", requestID, "error", err)
		return "", err
	}

	ep := sel.Endpoint
	record := &CallRecord{
		RequestID:   requestID,
		Provider:    ep.Provider,
		Model:       ep.Model,
		PromptChars: len(prompt),
		StartedAt:   time.Now(),
	}

	content, err := g.do(ctx, record, sel, prompt)

	record.CompletedAt = time.Now()
	record.DurationMs = record.CompletedAt.Sub(record.StartedAt).Milliseconds()
	requestsTotal.WithLabelValues(ep.Provider, outcomeOf(err)).Inc()
	requestDuration.WithLabelValues(ep.Provider).Observe(record.CompletedAt.Sub(record.StartedAt).Seconds())

	if err != nil {
		record.Status = CallStatusError
		record.Error = err.Error()
		g.logger.Warn("LLM request failed",
			"request_id", requestID,
			"provider", ep.Provider,
			"model", ep.Model,
			"transient", IsTransient(err),
			"error", err)
	} else {
		record.Status = CallStatusSuccess
		record.ResponseChars = len(content)
		g.logger.Info("LLM request completed",
			"request_id", requestID,
			"provider", ep.Provider,
			"model", ep.Model,
			"duration_ms", record.DurationMs)
	}
	g.recordCall(ctx, record)

	return content, err
}

// recordCall stores a call record if a recorder is configured.
// Failures are logged but don't affect the call itself.
func (g *Gateway) recordCall(ctx context.Context, record *CallRecord) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Record(ctx, record); err != nil {
		g.logger.Warn("Failed to record LLM call",
			"request_id", record.RequestID,
			"error", err)
	}
}

// do executes a single HTTP request to the selected endpoint.
func (g *Gateway) do(ctx context.Context, record *CallRecord, sel Selection, prompt string) (string, error) {
	ep := sel.Endpoint

	provider, ok := g.providers[ep.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, ep.Provider)
	}

	url := provider.BuildURL(ep.URL)
	if url == "" {
		return "", fmt.Errorf("%w: %s", ErrNoEndpoint, ep.Provider)
	}
	record.URL = url

	body, err := provider.BuildRequestBody(Request{
		Model: ep.Model,
		Messages: []Message{
			{Role: RoleSystem, Content: g.system},
			{Role: RoleUser, Content: prompt},
		},
		Temperature: ep.Temperature,
		MaxTokens:   ep.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("build request body: %w", err)
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", NewNetworkError(ep.Provider, fmt.Errorf("rate limit wait: %w", err))
		}
	}

	g.logger.Debug("Sending LLM request",
		"request_id", record.RequestID,
		"provider", ep.Provider,
		"model", ep.Model,
		"url", url,
		"prompt_chars", len(prompt))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, sel.APIKey)

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", NewNetworkError(ep.Provider, err)
	}
	defer httpResp.Body.Close()

	// Read response body with size limit to prevent memory exhaustion
	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return "", NewNetworkError(ep.Provider, fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return "", &HTTPError{Provider: ep.Provider, Status: httpResp.StatusCode, Body: string(respBody)}
	}

	g.logger.Debug("Received LLM response",
		"request_id", record.RequestID,
		"status", httpResp.StatusCode,
		"bytes", len(respBody))

	content, err := provider.ParseResponse(respBody)
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			return "", err
		}
		return "", NewParseError(ep.Provider, "unexpected response", err)
	}
	return content, nil
}
