package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/haneul-labs/saju-engine/internal/apperr"
	"github.com/haneul-labs/saju-engine/internal/metrics"
)

const (
	defaultTimeout     = 25 * time.Second
	defaultMaxTokens   = 1600
	defaultTemperature = 0.85
)

// OpenAIClient talks to any OpenAI-wire-compatible endpoint. One client
// serves both chat completions and embeddings; a shared circuit breaker
// stops hammering a provider that is already failing.
type OpenAIClient struct {
	apiKey     string
	model      string
	embedModel string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// OpenAIConfig configures the client; zero fields take defaults.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
	BaseURL    string
	Timeout    time.Duration
}

// NewOpenAIClient builds a client for an OpenAI-compatible API.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "openai",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && counts.TotalFailures*2 > counts.Requests
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("llm breaker state change")
		},
	})

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		embedModel: cfg.EmbedModel,
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
	}
}

var _ ChatCompleter = (*OpenAIClient)(nil)
var _ Embedder = (*OpenAIClient)(nil)

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete sends a chat-completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (*Response, error) {
	messages := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.Messages...)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}

	body := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		var out chatCompletionResponse
		if err := c.post(ctx, "/chat/completions", body, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("chat", "error").Inc()
		return nil, classifyUpstream("chat completion", err)
	}

	out := result.(*chatCompletionResponse)
	if out.Error != nil {
		metrics.LLMCalls.WithLabelValues("chat", "error").Inc()
		return nil, apperr.Newf(apperr.KindUpstreamUnavailable, "chat completion: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		metrics.LLMCalls.WithLabelValues("chat", "error").Inc()
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "chat completion returned no choices")
	}

	metrics.LLMCalls.WithLabelValues("chat", "ok").Inc()
	metrics.LLMLatency.Observe(time.Since(start).Seconds())
	metrics.LLMTokens.WithLabelValues("prompt").Add(float64(out.Usage.PromptTokens))
	metrics.LLMTokens.WithLabelValues("completion").Add(float64(out.Usage.CompletionTokens))

	return &Response{Content: out.Choices[0].Message.Content, Usage: out.Usage}, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding vector for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		var out embeddingResponse
		if err := c.post(ctx, "/embeddings", embeddingRequest{Model: c.embedModel, Input: text}, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		metrics.LLMCalls.WithLabelValues("embed", "error").Inc()
		return nil, classifyUpstream("embedding", err)
	}

	out := result.(*embeddingResponse)
	if out.Error != nil {
		metrics.LLMCalls.WithLabelValues("embed", "error").Inc()
		return nil, apperr.Newf(apperr.KindUpstreamUnavailable, "embedding: %s", out.Error.Message)
	}
	if len(out.Data) == 0 {
		metrics.LLMCalls.WithLabelValues("embed", "error").Inc()
		return nil, apperr.New(apperr.KindUpstreamUnavailable, "embedding returned no data")
	}
	metrics.LLMCalls.WithLabelValues("embed", "ok").Inc()
	return out.Data[0].Embedding, nil
}

func (c *OpenAIClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("upstream %s: status %d", path, resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return nil
}

// classifyUpstream tags transport failures by kind: deadline errors map to
// timeout, breaker-open and everything else to unavailable.
func classifyUpstream(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstreamTimeout, op+" timed out", err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.KindUpstreamUnavailable, op+" circuit open", err)
	}
	return apperr.Wrap(apperr.KindUpstreamUnavailable, op+" failed", err)
}
