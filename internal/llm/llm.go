// Package llm defines the narrow interfaces the rest of the service uses
// to talk to a chat-completion and an embedding provider, plus the
// OpenAI-wire-compatible HTTP client that implements both.
package llm

import "context"

// Message is one role-tagged turn of a chat request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat-completion call.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting a provider reports per call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is the completed reply.
type Response struct {
	Content string
	Usage   Usage
}

// ChatCompleter produces a completion for a prompt package.
type ChatCompleter interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
