package providers

import (
	"fmt"

	"github.com/nextlevelbuilder/parrot/internal/config"
	"github.com/nextlevelbuilder/parrot/internal/ratelimit"
)

// Names lists the providers New understands.
var Names = []string{"openai", "dashscope", "gemini"}

// New builds the named provider from config. Each provider gets its own
// limiter keyed by provider name.
func New(name string, cfg config.ProvidersConfig) (Completer, error) {
	switch name {
	case "openai", "":
		pc := cfg.OpenAI
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:    pc.APIKey,
			APIBase:   pc.APIBase,
			TimeoutMs: pc.TimeoutMs,
			Limiter:   ratelimit.New(pc.RPM, 1),
		}), nil
	case "dashscope":
		pc := cfg.DashScope
		return NewDashScopeProvider(OpenAIConfig{
			APIKey:    pc.APIKey,
			APIBase:   pc.APIBase,
			TimeoutMs: pc.TimeoutMs,
			Limiter:   ratelimit.New(pc.RPM, 1),
		}), nil
	case "gemini":
		pc := cfg.Gemini
		return NewGeminiProvider(pc.APIKey, ratelimit.New(pc.RPM, 1)), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}
