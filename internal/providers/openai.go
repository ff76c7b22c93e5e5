package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nextlevelbuilder/parrot/internal/ratelimit"
	"github.com/nextlevelbuilder/parrot/internal/tracing"
)

const (
	openaiDefaultBase = "https://api.openai.com/v1"
	defaultTimeoutMs  = 60000
)

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	name    string
	apiKey  string
	apiBase string
	client  *resty.Client
	limiter *ratelimit.Limiter
}

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	Name      string
	APIKey    string
	APIBase   string
	TimeoutMs int
	Limiter   *ratelimit.Limiter
}

// NewOpenAIProvider creates a provider. Name defaults to "openai".
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = openaiDefaultBase
	}
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = defaultTimeoutMs
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBase, "/")).
		SetTimeout(time.Duration(cfg.TimeoutMs) * time.Millisecond).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	tracing.InstrumentResty(client)

	return &OpenAIProvider{
		name:    cfg.Name,
		apiKey:  cfg.APIKey,
		apiBase: cfg.APIBase,
		client:  client,
		limiter: cfg.Limiter,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

type openaiChoice struct {
	Index   int `json:"index"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
	Usage   Usage          `json:"usage"`
}

// Complete issues one POST {apiBase}/chat/completions with n = req.N.
func (p *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.apiKey == "" {
		return nil, &setupError{provider: p.name, err: ErrNoAPIKey}
	}
	if err := p.limiter.Wait(ctx, p.name); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", p.name, err)
	}
	if req.N <= 0 {
		req.N = 1
	}

	slog.Debug("provider request", "provider", p.name, "model", req.Model, "n", req.N, "messages", len(req.Messages))

	res, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if res.IsError() {
		return nil, &APIError{Provider: p.name, Status: res.StatusCode(), Body: res.String()}
	}

	var out openaiResponse
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", p.name, ErrEmptyResponse)
	}

	choices := make([]string, len(out.Choices))
	for i, c := range out.Choices {
		choices[i] = c.Message.Content
	}
	return &CompletionResponse{Choices: choices, Usage: out.Usage}, nil
}
