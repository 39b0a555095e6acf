package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
// Components receive it (or the subset they need) through their constructors.
type Config struct {
	APIPort  string
	MCPPort  string // empty = MCP transport disabled
	Version  string
	LogLevel string

	LLMProvider        string // "kit" (go-kit/llm) or "openai" (openai-go SDK)
	LLMAPIKey          string
	LLMAPIKeyFallbacks []string // tried in order when the primary key is rate limited
	LLMAPIBase         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxTokens       int
	LLMTimeout         time.Duration

	MinTranscriptChars int
	MaxTranscriptChars int

	FetchAttemptTimeout time.Duration
	CaptionLangs        []string
	YtDlpPath           string
	YtDlpCookiesFile    string // optional; enables authenticated mode of the fallback strategy

	RateLimitRPS   float64 // 0 = unlimited
	RateLimitBurst int
	CORSOrigins    []string

	HTTPClient *http.Client
}

// DefaultConfig returns the configuration used when no environment overrides are set.
func DefaultConfig() Config {
	return Config{
		APIPort:             "8000",
		Version:             "dev",
		LogLevel:            "info",
		LLMProvider:         "kit",
		LLMAPIBase:          "https://api.groq.com/openai/v1",
		LLMModel:            "llama-3.3-70b-versatile",
		LLMTemperature:      0.7,
		LLMMaxTokens:        4096,
		LLMTimeout:          90 * time.Second,
		MinTranscriptChars:  100,
		MaxTranscriptChars:  15000,
		FetchAttemptTimeout: 25 * time.Second,
		CaptionLangs:        []string{"en", "en-US", "en-GB"},
		YtDlpPath:           "yt-dlp",
		RateLimitBurst:      10,
		CORSOrigins:         []string{"*"},
		HTTPClient:          NewHTTPClient(20 * time.Second),
	}
}

// NewHTTPClient builds the shared outbound client. The transport is safe for
// concurrent use; no per-request state is kept on it.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     60 * time.Second,
		},
	}
}
