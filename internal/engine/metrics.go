package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
// Counters are observational only; no request path reads them.
var metrics struct {
	TranscriptRequests atomic.Int64
	PrimarySuccess     atomic.Int64
	FallbackSuccess    atomic.Int64
	FetchFailures      atomic.Int64
	LLMCalls           atomic.Int64
	LLMErrors          atomic.Int64
	ParseRecoveries    atomic.Int64
	RendersPDF         atomic.Int64
	RendersImage       atomic.Int64
	RenderErrors       atomic.Int64
}

var metricKeys = []string{
	"transcript_requests", "transcript_primary_success", "transcript_fallback_success", "transcript_failures",
	"llm_calls", "llm_errors", "llm_parse_recoveries",
	"renders_pdf", "renders_image", "render_errors",
}

// GetMetrics returns a snapshot of all metrics.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"transcript_requests":         metrics.TranscriptRequests.Load(),
		"transcript_primary_success":  metrics.PrimarySuccess.Load(),
		"transcript_fallback_success": metrics.FallbackSuccess.Load(),
		"transcript_failures":         metrics.FetchFailures.Load(),
		"llm_calls":                   metrics.LLMCalls.Load(),
		"llm_errors":                  metrics.LLMErrors.Load(),
		"llm_parse_recoveries":        metrics.ParseRecoveries.Load(),
		"renders_pdf":                 metrics.RendersPDF.Load(),
		"renders_image":               metrics.RendersImage.Load(),
		"render_errors":               metrics.RenderErrors.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// Incrementors for sub-packages.
func IncrTranscriptRequests() { metrics.TranscriptRequests.Add(1) }
func IncrFetchFailures()      { metrics.FetchFailures.Add(1) }
func IncrLLMCalls()           { metrics.LLMCalls.Add(1) }
func IncrLLMErrors()          { metrics.LLMErrors.Add(1) }
func IncrParseRecoveries()    { metrics.ParseRecoveries.Add(1) }
func IncrRenderErrors()       { metrics.RenderErrors.Add(1) }

// IncrTranscriptSource counts a successful fetch by the strategy that produced it.
func IncrTranscriptSource(s SourceStrategy) {
	if s == SourceFallback {
		metrics.FallbackSuccess.Add(1)
		return
	}
	metrics.PrimarySuccess.Add(1)
}

// IncrRender counts a successful render by format.
func IncrRender(f ExportFormat) {
	if f == FormatImage {
		metrics.RendersImage.Add(1)
		return
	}
	metrics.RendersPDF.Add(1)
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)
	if elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
