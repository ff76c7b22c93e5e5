// Package providers wraps the chat-completion services used to generate
// and score candidate posts.
package providers

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest asks for N independent completions of the same prompt.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	N           int       `json:"n"`
	Messages    []Message `json:"messages"`
}

// Usage reports token consumption when the service returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse holds the completion texts in service order.
type CompletionResponse struct {
	Choices []string
	Usage   Usage
}

// Completer is implemented by every provider.
type Completer interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
