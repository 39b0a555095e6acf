// go_transcribai turns a video URL into a transcript, AI-extracted excerpts,
// and downloadable PDF or PNG exports.
//
// Serves a JSON REST API and, when MCP_PORT is set, the same three operations
// as MCP tools: fetch_transcript, generate_insights, render_export.
// The transcript, insights and render subcommands run one operation locally.
package main

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"

	"github.com/anatolykoptev/go_transcribai/internal/apiserver"
	"github.com/anatolykoptev/go_transcribai/internal/engine"
	"github.com/anatolykoptev/go_transcribai/internal/engine/export"
	"github.com/anatolykoptev/go_transcribai/internal/engine/insights"
	"github.com/anatolykoptev/go_transcribai/internal/engine/sources"
)

const serviceName = "go_transcribai"

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not load .env", slog.Any("error", err))
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() engine.Config {
	d := engine.DefaultConfig()
	return engine.Config{
		APIPort:             env.Str("API_PORT", d.APIPort),
		MCPPort:             env.Str("MCP_PORT", ""),
		Version:             version,
		LogLevel:            env.Str("LOG_LEVEL", d.LogLevel),
		LLMProvider:         env.Str("LLM_PROVIDER", d.LLMProvider),
		LLMAPIKey:           env.Str("LLM_API_KEY", env.Str("GROQ_API_KEY", "")),
		LLMAPIKeyFallbacks:  env.List("LLM_API_KEY_FALLBACKS", ""),
		LLMAPIBase:          env.Str("LLM_API_BASE", d.LLMAPIBase),
		LLMModel:            env.Str("LLM_MODEL", d.LLMModel),
		LLMTemperature:      env.Float("LLM_TEMPERATURE", d.LLMTemperature),
		LLMMaxTokens:        env.Int("LLM_MAX_TOKENS", d.LLMMaxTokens),
		LLMTimeout:          env.Duration("LLM_TIMEOUT", d.LLMTimeout),
		MinTranscriptChars:  env.Int("MIN_TRANSCRIPT_CHARS", d.MinTranscriptChars),
		MaxTranscriptChars:  env.Int("MAX_TRANSCRIPT_CHARS", d.MaxTranscriptChars),
		FetchAttemptTimeout: env.Duration("FETCH_ATTEMPT_TIMEOUT", d.FetchAttemptTimeout),
		CaptionLangs:        env.List("CAPTION_LANGS", strings.Join(d.CaptionLangs, ",")),
		YtDlpPath:           env.Str("YTDLP_PATH", d.YtDlpPath),
		YtDlpCookiesFile:    env.Str("YTDLP_COOKIES_FILE", ""),
		RateLimitRPS:        env.Float("RATE_LIMIT_RPS", 0),
		RateLimitBurst:      env.Int("RATE_LIMIT_BURST", d.RateLimitBurst),
		CORSOrigins:         env.List("CORS_ORIGINS", "*"),
		HTTPClient:          engine.NewHTTPClient(env.Duration("HTTP_TIMEOUT", 20*time.Second)),
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if strings.EqualFold(env.Str("LOG_FORMAT", "text"), "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

// newService wires the three components. A missing LLM key is not fatal:
// transcript and render keep working and generate reports the configuration error.
func newService(cfg engine.Config) *apiserver.Service {
	completer, err := engine.NewCompleter(cfg)
	if err != nil {
		slog.Warn("llm client unavailable, insight generation disabled", slog.Any("error", err))
	} else {
		slog.Info("llm client initialized",
			slog.String("provider", cfg.LLMProvider),
			slog.String("model", cfg.LLMModel),
		)
	}
	if cfg.YtDlpCookiesFile != "" {
		slog.Info("yt-dlp cookie file configured", slog.String("path", cfg.YtDlpCookiesFile))
	}
	return apiserver.NewService(
		sources.NewFetcher(cfg),
		insights.New(completer, cfg),
		export.NewRenderer(),
		cfg,
	)
}
