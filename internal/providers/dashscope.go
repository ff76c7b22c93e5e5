package providers

import (
	"context"
	"log/slog"
)

const dashscopeDefaultBase = "https://dashscope-intl.aliyuncs.com/compatible-mode/v1"

// DashScopeProvider wraps OpenAIProvider for DashScope's compatible mode.
// DashScope ignores n > 1 for most models, so a batch request is split into
// N sequential single-choice requests.
type DashScopeProvider struct {
	*OpenAIProvider
}

func NewDashScopeProvider(cfg OpenAIConfig) *DashScopeProvider {
	if cfg.APIBase == "" {
		cfg.APIBase = dashscopeDefaultBase
	}
	cfg.Name = "dashscope"
	return &DashScopeProvider{OpenAIProvider: NewOpenAIProvider(cfg)}
}

func (p *DashScopeProvider) Name() string { return "dashscope" }

func (p *DashScopeProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if req.N <= 1 {
		return p.OpenAIProvider.Complete(ctx, req)
	}

	slog.Debug("dashscope: splitting batch into single requests", "n", req.N)
	n := req.N
	req.N = 1
	out := &CompletionResponse{Choices: make([]string, 0, n)}
	for i := 0; i < n; i++ {
		resp, err := p.OpenAIProvider.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		out.Choices = append(out.Choices, resp.Choices[0])
		out.Usage.PromptTokens += resp.Usage.PromptTokens
		out.Usage.CompletionTokens += resp.Usage.CompletionTokens
		out.Usage.TotalTokens += resp.Usage.TotalTokens
	}
	return out, nil
}
