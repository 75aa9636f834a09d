// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package oracle is the resilient completion client the coverage pipeline
// talks to. Every phase that needs generated text (dependency discovery,
// test synthesis, error diagnosis, repair) goes through Client.Complete,
// which layers per-call credential refresh, optional request pacing and
// circuit breaking, and classified exponential-backoff retry over a
// chat-completion endpoint.
package oracle

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/covgen/pkg/logging"
)

// =============================================================================
// MESSAGES
// =============================================================================

// Message roles. Values match the chat-completion wire protocol.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one element of a completion request. The pipeline sends
// exactly two per call: a system instruction and a user payload.
type Message struct {
	// Role is the speaker role, RoleSystem or RoleUser.
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// System builds a system-role message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user-role message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// Config holds completion client settings. The config is immutable after
// NewClient; the only per-call value is the credential, fetched fresh from
// the CredentialSource on every attempt.
type Config struct {
	// Endpoint is the base URL of the completion API.
	// Empty uses the SDK default.
	Endpoint string

	// IntegrationID identifies this pipeline to the endpoint, sent as
	// the X-Integration-Id header on every request when set.
	IntegrationID string

	// Scope is the auth scope forwarded as the X-Auth-Scope header
	// when set.
	Scope string

	// Model is the completion model name.
	// Default: "gpt-4o-mini"
	Model string

	// Timeout is the per-attempt HTTP budget.
	// Default: 5m
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt, so a
	// call makes at most MaxRetries+1 attempts.
	// Default: 3
	MaxRetries int

	// BackoffFactor is the wait before the first retry; each subsequent
	// wait doubles. No jitter is applied.
	// Default: 1s
	BackoffFactor time.Duration

	// RequestsPerMinute paces outgoing calls. Zero disables pacing.
	// Default: 0
	RequestsPerMinute int

	// EnableBreaker guards calls with a circuit breaker, shedding load
	// once the endpoint fails persistently.
	// Default: false
	EnableBreaker bool

	// Breaker configures the circuit breaker when enabled. The zero
	// value uses DefaultBreakerConfig.
	Breaker BreakerConfig
}

// DefaultConfig returns a Config with sensible defaults.
//
// Outputs:
//
//	*Config - Configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Model:         "gpt-4o-mini",
		Timeout:       5 * time.Minute,
		MaxRetries:    3,
		BackoffFactor: 1 * time.Second,
	}
}

// Validate checks that the configuration is valid.
//
// Outputs:
//
//	error - Non-nil if configuration is invalid
func (c *Config) Validate() error {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout < time.Second {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 3
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 1 * time.Second
	}
	if c.RequestsPerMinute < 0 {
		c.RequestsPerMinute = 0
	}
	return nil
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithEndpoint sets the completion API base URL.
func WithEndpoint(url string) Option {
	return func(c *Config) {
		c.Endpoint = url
	}
}

// WithIntegrationID sets the integration identity header value.
func WithIntegrationID(id string) Option {
	return func(c *Config) {
		c.IntegrationID = id
	}
}

// WithScope sets the auth scope header value.
func WithScope(scope string) Option {
	return func(c *Config) {
		c.Scope = scope
	}
}

// WithModel sets the completion model.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the per-attempt HTTP budget.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithMaxRetries sets the retry budget after the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Config) {
		c.MaxRetries = n
	}
}

// WithBackoffFactor sets the first retry delay.
func WithBackoffFactor(d time.Duration) Option {
	return func(c *Config) {
		c.BackoffFactor = d
	}
}

// WithRequestsPerMinute enables request pacing.
func WithRequestsPerMinute(n int) Option {
	return func(c *Config) {
		c.RequestsPerMinute = n
	}
}

// WithBreaker enables the circuit breaker with the given settings.
func WithBreaker(bc BreakerConfig) Option {
	return func(c *Config) {
		c.EnableBreaker = true
		c.Breaker = bc
	}
}

// NewConfig creates a Config with the given options applied.
//
// Inputs:
//
//	opts - Options to apply to the default config
//
// Outputs:
//
//	*Config - Configuration with options applied
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	_ = cfg.Validate()
	return cfg
}

// =============================================================================
// CLIENT
// =============================================================================

// Client is a resilient chat-completion client.
//
// Description:
//
//	Complete sends a message list and returns the first choice's content.
//	Transient failures (the closed set: HTTP 429/500/502/503/504, request
//	timeout, connection failure) are retried with a deterministic doubling
//	backoff; everything else fails the call on its first occurrence. The
//	bearer credential is fetched from the CredentialSource immediately
//	before every attempt, so rotation needs no client restart.
//
// Thread Safety: Safe for concurrent use; the pipeline itself calls it
// sequentially.
type Client struct {
	cfg        *Config
	creds      CredentialSource
	log        *logging.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *Breaker
	calls      atomic.Int64
}

// NewClient creates a completion client.
//
// Inputs:
//
//	cfg - Client configuration. Nil uses DefaultConfig.
//	creds - Credential source. Nil uses DefaultCredentials.
//	log - Logger. Nil uses the default logger.
//
// Outputs:
//
//	*Client - The configured client.
//	error - Non-nil if the configuration is unusable.
func NewClient(cfg *Config, creds CredentialSource, log *logging.Logger) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if creds == nil {
		creds = DefaultCredentials()
	}
	if log == nil {
		log = logging.Default()
	}

	headers := make(map[string]string)
	if cfg.IntegrationID != "" {
		headers["X-Integration-Id"] = cfg.IntegrationID
	}
	if cfg.Scope != "" {
		headers["X-Auth-Scope"] = cfg.Scope
	}

	c := &Client{
		cfg:   cfg,
		creds: creds,
		log:   log,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &headerTransport{base: http.DefaultTransport, headers: headers},
		},
	}
	if cfg.RequestsPerMinute > 0 {
		burst := cfg.RequestsPerMinute / 6
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60.0), burst)
	}
	if cfg.EnableBreaker {
		bc := cfg.Breaker
		if bc == (BreakerConfig{}) {
			bc = DefaultBreakerConfig()
		}
		c.breaker = NewBreaker(bc)
	}
	return c, nil
}

// Complete sends the messages and returns the completion text.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	messages - Ordered messages; the pipeline sends [system, user].
//
// Outputs:
//
//	string - The first choice's message content. A well-formed 200
//	response with no choices yields "" and no error.
//	error - *RetryExhaustedError once the retry budget is spent on
//	transient failures; the classified *OracleError directly for
//	terminal ones; ErrCircuitOpen when the breaker is shedding.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if ctx == nil {
		return "", ErrNilContext
	}
	if len(messages) == 0 {
		return "", ErrEmptyRequest
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	call := c.calls.Add(1)

	var content string
	attempt := func(ctx context.Context, attempt int) error {
		token, err := c.creds.Token(ctx)
		if err != nil {
			// Classifies as KindInvalid: credential failures abort.
			return err
		}
		resp, err := c.api(token).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    c.cfg.Model,
			Messages: toChatMessages(messages),
		})
		if err != nil {
			cerr := Classify(err)
			c.log.Warn("oracle attempt failed",
				slog.Int64("call", call),
				slog.Int("attempt", attempt),
				slog.String("kind", cerr.Kind.String()),
				slog.Int("status", cerr.StatusCode))
			return cerr
		}
		if len(resp.Choices) == 0 {
			content = ""
			return nil
		}
		content = resp.Choices[0].Message.Content
		return nil
	}

	var (
		result RetryResult
		err    error
	)
	if c.breaker != nil {
		result, err = RetryWithBreaker(ctx, c.breaker, c.retryConfig(), attempt)
	} else {
		result, err = Retry(ctx, c.retryConfig(), attempt)
	}
	if err != nil {
		c.log.Error("oracle call failed",
			slog.Int64("call", call),
			slog.Int("attempts", result.Attempts),
			slog.Any("error", err))
		return "", err
	}

	c.log.Debug("oracle call complete",
		slog.Int64("call", call),
		slog.Int("attempts", result.Attempts),
		slog.Duration("elapsed", result.TotalDuration),
		slog.Int("chars", len(content)))
	return content, nil
}

// Calls returns the number of completion calls made so far.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// BreakerState returns the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// retryConfig maps the client settings onto the retry schedule:
// MaxRetries+1 attempts, first wait BackoffFactor, doubling, no jitter.
func (c *Client) retryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    c.cfg.MaxRetries + 1,
		InitialBackoff: c.cfg.BackoffFactor,
		BackoffFactor:  2.0,
	}
}

// api builds the per-call SDK client carrying the fresh token. SDK client
// construction is cheap; the HTTP client and transport are shared.
func (c *Client) api(token string) *openai.Client {
	ocfg := openai.DefaultConfig(token)
	if c.cfg.Endpoint != "" {
		ocfg.BaseURL = c.cfg.Endpoint
	}
	ocfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(ocfg)
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// =============================================================================
// HEADER TRANSPORT
// =============================================================================

// headerTransport stamps fixed identity headers onto every request.
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		clone.Header.Set(k, v)
	}
	return t.base.RoundTrip(clone)
}
