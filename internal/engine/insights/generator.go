// Package insights turns a transcript into titled excerpts through a hosted
// completion API.
package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// slowCompletion is the completion latency above which a warning is logged.
const slowCompletion = 30 * time.Second

// Generator builds the insight prompt, calls the completer, and parses its answer.
// It keeps no state between calls.
type Generator struct {
	completer engine.Completer
	maxChars  int
}

// New creates a Generator. A nil completer is allowed; every call then fails
// with UpstreamUnavailable so the rest of the service still starts without a key.
func New(c engine.Completer, cfg engine.Config) *Generator {
	return &Generator{completer: c, maxChars: cfg.MaxTranscriptChars}
}

// Generate returns the excerpts in the order the model produced them.
func (g *Generator) Generate(ctx context.Context, text string) ([]engine.Excerpt, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &engine.GenerationError{Kind: engine.KindInvalidInput, Err: errors.New("transcript is empty")}
	}
	if g.completer == nil {
		return nil, &engine.GenerationError{Kind: engine.KindUpstreamUnavailable, Err: engine.ErrLLMNotConfigured}
	}
	if g.maxChars > 0 {
		text = engine.TruncateRunes(text, g.maxChars, "")
	}

	start := time.Now()
	var raw string
	err := engine.TrackOperation(ctx, "insights: completion", slowCompletion, func(ctx context.Context) error {
		var err error
		raw, err = engine.CallLLM(ctx, g.completer, engine.InsightSystemPrompt, fmt.Sprintf(engine.InsightPrompt, text))
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Warn("insights: completion failed", slog.Any("error", err))
		return nil, &engine.GenerationError{Kind: engine.KindUpstreamUnavailable, Err: err}
	}

	excerpts, fixes, err := Parse(raw)
	if err != nil {
		slog.Warn("insights: unparseable completion",
			slog.Int("response_len", len(raw)),
			slog.String("head", engine.TruncateRunes(raw, 200, "...")),
			slog.Any("error", err))
		return nil, &engine.GenerationError{Kind: engine.KindMalformedResponse, Err: err}
	}
	if len(fixes) > 0 {
		engine.IncrParseRecoveries()
		slog.Warn("insights: recovered malformed completion", slog.Any("fixes", fixes))
	}
	slog.Info("insights generated",
		slog.Int("count", len(excerpts)),
		slog.Int("transcript_chars", len([]rune(text))),
		slog.Duration("took", time.Since(start)))
	return excerpts, nil
}
