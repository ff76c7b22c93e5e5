package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/nextlevelbuilder/parrot/internal/ratelimit"
)

// GeminiProvider uses the Gemini API through google.golang.org/genai.
type GeminiProvider struct {
	apiKey  string
	limiter *ratelimit.Limiter

	once    sync.Once
	client  *genai.Client
	initErr error
}

func NewGeminiProvider(apiKey string, limiter *ratelimit.Limiter) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, limiter: limiter}
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) init(ctx context.Context) error {
	p.once.Do(func() {
		if p.apiKey == "" {
			p.initErr = &setupError{provider: "gemini", err: ErrNoAPIKey}
			return
		}
		p.client, p.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if p.initErr != nil {
			p.initErr = fmt.Errorf("gemini: create client: %w", p.initErr)
		}
	})
	return p.initErr
}

// Complete maps system messages to the system instruction and asks for
// CandidateCount = N.
func (p *GeminiProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}
	if err := p.limiter.Wait(ctx, "gemini"); err != nil {
		return nil, fmt.Errorf("gemini: rate limit wait: %w", err)
	}

	system, contents := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{
		Temperature:    genai.Ptr(float32(req.Temperature)),
		CandidateCount: int32(max(req.N, 1)),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &APIError{Provider: "gemini", Status: apiErr.Code, Body: apiErr.Message}
		}
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	out := &CompletionResponse{}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range c.Content.Parts {
			if part != nil {
				sb.WriteString(part.Text)
			}
		}
		out.Choices = append(out.Choices, sb.String())
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// toGeminiContents joins system messages into one instruction and keeps the
// remaining turns in order, mapping assistant to the model role.
func toGeminiContents(msgs []Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			system = append(system, m.Content)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
