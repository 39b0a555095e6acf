package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Completer is the hosted completion API as seen by the insight generator.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// ErrLLMNotConfigured is returned when no API key is available.
var ErrLLMNotConfigured = errors.New("completion service API key is not set")

// NewCompleter builds the completion client selected by cfg.LLMProvider.
func NewCompleter(cfg Config) (Completer, error) {
	if cfg.LLMAPIKey == "" {
		return nil, ErrLLMNotConfigured
	}
	httpClient := &http.Client{Timeout: cfg.LLMTimeout}
	switch cfg.LLMProvider {
	case "", "kit":
		return &kitCompleter{client: llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
			llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
			llm.WithMaxTokens(cfg.LLMMaxTokens),
			llm.WithTemperature(cfg.LLMTemperature),
			llm.WithHTTPClient(httpClient),
		)}, nil
	case "openai":
		opts := []option.RequestOption{
			option.WithAPIKey(cfg.LLMAPIKey),
			option.WithHTTPClient(httpClient),
		}
		if cfg.LLMAPIBase != "" {
			opts = append(opts, option.WithBaseURL(cfg.LLMAPIBase))
		}
		return &openAICompleter{
			model:       cfg.LLMModel,
			temperature: cfg.LLMTemperature,
			maxTokens:   cfg.LLMMaxTokens,
			opts:        opts,
		}, nil
	default:
		return nil, fmt.Errorf("llm provider %q not supported", cfg.LLMProvider)
	}
}

// kitCompleter adapts the go-kit OpenAI-compatible client.
type kitCompleter struct {
	client *llm.Client
}

func (k *kitCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return k.client.Complete(ctx, system, prompt)
}

// openAICompleter uses the official openai-go SDK (chat completions).
type openAICompleter struct {
	model       string
	temperature float64
	maxTokens   int
	opts        []option.RequestOption
}

func (o *openAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	client := openai.NewClient(o.opts...)

	var msgs []openai.ChatCompletionMessageParamUnion
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		Temperature: openai.Float(o.temperature),
	}
	if o.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(o.maxTokens))
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// StripFences removes markdown code fences from LLM output.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		// drop the language tag line ("json", "JSON", ...)
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		return strings.TrimSpace(rest)
	}
	return s
}

// CallLLM sends one prompt through c, counting calls and errors.
func CallLLM(ctx context.Context, c Completer, system, prompt string) (string, error) {
	IncrLLMCalls()
	resp, err := c.Complete(ctx, system, prompt)
	if err != nil {
		IncrLLMErrors()
		return "", err
	}
	return resp, nil
}
