package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// CaptionSource is one link of the fetch chain.
type CaptionSource interface {
	Fetch(ctx context.Context, ref engine.VideoReference) (Captions, error)
}

// Strategy binds a CaptionSource to its position in the chain.
type Strategy struct {
	Name   string
	Source engine.SourceStrategy
	CaptionSource
}

// Fetcher runs strategies in order and stops at the first usable transcript.
// It holds no per-request state and is safe for concurrent use.
type Fetcher struct {
	strategies     []Strategy
	attemptTimeout time.Duration
}

// NewFetcher wires the production chain: YouTube endpoints first, yt-dlp second.
func NewFetcher(cfg engine.Config) *Fetcher {
	return NewFetcherWith(cfg.FetchAttemptTimeout,
		Strategy{
			Name:          "youtube-captions",
			Source:        engine.SourcePrimary,
			CaptionSource: NewYouTubeCaptions(cfg.HTTPClient, cfg.CaptionLangs),
		},
		Strategy{
			Name:          "yt-dlp",
			Source:        engine.SourceFallback,
			CaptionSource: NewYtDlpCaptions(cfg.YtDlpPath, cfg.YtDlpCookiesFile, cfg.CaptionLangs, cfg.HTTPClient, nil),
		},
	)
}

// NewFetcherWith builds a chain from explicit strategies.
// attemptTimeout bounds each attempt; 0 leaves attempts bounded only by the caller.
func NewFetcherWith(attemptTimeout time.Duration, strategies ...Strategy) *Fetcher {
	return &Fetcher{strategies: strategies, attemptTimeout: attemptTimeout}
}

// Fetch returns the normalized transcript for ref.
// A strategy is only attempted after the previous one has failed or timed out.
// If the caller's context ends, the chain is abandoned and ctx.Err() is returned.
func (f *Fetcher) Fetch(ctx context.Context, ref engine.VideoReference) (engine.TranscriptResult, error) {
	engine.IncrTranscriptRequests()

	var attempts []engine.StrategyError
	for _, s := range f.strategies {
		if err := ctx.Err(); err != nil {
			return engine.TranscriptResult{}, err
		}

		start := time.Now()
		caps, err := f.attempt(ctx, s, ref)
		if err == nil {
			text := engine.NormalizeText(caps.Segments...)
			if text != "" {
				engine.IncrTranscriptSource(s.Source)
				slog.Info("transcript fetched",
					slog.String("id", ref.CanonicalID),
					slog.String("strategy", s.Name),
					slog.String("lang", caps.Language),
					slog.Int("chars", len(text)),
					slog.Duration("took", time.Since(start)))
				return engine.TranscriptResult{
					VideoID:        ref.CanonicalID,
					Text:           text,
					SourceStrategy: s.Source,
					Language:       caps.Language,
					TrackKind:      caps.Kind,
				}, nil
			}
			err = fmt.Errorf("%w: track is empty after normalization", engine.ErrNoCaptions)
		}
		if ctx.Err() != nil {
			return engine.TranscriptResult{}, ctx.Err()
		}

		attempts = append(attempts, engine.StrategyError{Strategy: s.Name, Err: err})
		if errors.Is(err, engine.ErrNotApplicable) {
			slog.Debug("transcript strategy skipped",
				slog.String("id", ref.CanonicalID), slog.String("strategy", s.Name))
			continue
		}
		slog.Warn("transcript strategy failed",
			slog.String("id", ref.CanonicalID),
			slog.String("strategy", s.Name),
			slog.Duration("took", time.Since(start)),
			slog.Any("err", err))
	}

	engine.IncrFetchFailures()
	return engine.TranscriptResult{}, &engine.FetchError{
		Kind:     failureKind(attempts),
		VideoID:  ref.CanonicalID,
		Attempts: attempts,
	}
}

func (f *Fetcher) attempt(ctx context.Context, s Strategy, ref engine.VideoReference) (Captions, error) {
	if f.attemptTimeout <= 0 {
		return s.Fetch(ctx, ref)
	}
	actx, cancel := context.WithTimeout(ctx, f.attemptTimeout)
	defer cancel()
	caps, err := s.Fetch(actx, ref)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return Captions{}, fmt.Errorf("timed out after %s: %w", f.attemptTimeout, err)
	}
	return caps, err
}

// failureKind reduces attempt causes to one boundary kind. Skipped strategies
// do not count. The outcome is NoCaptionsAvailable or VideoUnavailable only
// when every attempted strategy gave that definitive answer.
func failureKind(attempts []engine.StrategyError) engine.ErrorKind {
	attempted, noCaptions, unavailable := 0, 0, 0
	for _, a := range attempts {
		switch {
		case errors.Is(a.Err, engine.ErrNotApplicable):
			continue
		case errors.Is(a.Err, engine.ErrBlocked):
		case errors.Is(a.Err, engine.ErrVideoUnavailable):
			unavailable++
		case errors.Is(a.Err, engine.ErrNoCaptions):
			noCaptions++
		}
		attempted++
	}
	switch {
	case attempted == 0:
		return engine.KindAllStrategiesExhausted
	case unavailable == attempted:
		return engine.KindVideoUnavailable
	case noCaptions+unavailable == attempted && noCaptions > 0:
		return engine.KindNoCaptionsAvailable
	default:
		return engine.KindAllStrategiesExhausted
	}
}
