// Package apiserver exposes the transcript, insight and export operations
// over REST and MCP. It validates input, delegates to the engine components,
// and maps their errors to stable codes.
package apiserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// TranscriptFetcher is the transcript fetch chain.
type TranscriptFetcher interface {
	Fetch(ctx context.Context, ref engine.VideoReference) (engine.TranscriptResult, error)
}

// InsightGenerator extracts excerpts from transcript text.
type InsightGenerator interface {
	Generate(ctx context.Context, text string) ([]engine.Excerpt, error)
}

// ExportRenderer encodes one excerpt.
type ExportRenderer interface {
	Render(title, content string, format engine.ExportFormat) (engine.ExportArtifact, error)
}

// --- Wire types (shared by REST and MCP) ---

type TranscriptRequest struct {
	URL string `json:"url" jsonschema:"Video URL (YouTube, Instagram, LinkedIn or TikTok)"`
}

type TranscriptResponse struct {
	Transcript string           `json:"transcript"`
	VideoID    string           `json:"video_id"`
	Platform   engine.Platform  `json:"platform"`
	Source     string           `json:"source"`
	Language   string           `json:"language,omitempty"`
	TrackKind  engine.TrackKind `json:"track_kind,omitempty"`
}

type GenerateRequest struct {
	Transcript string `json:"transcript" jsonschema:"Transcript text to extract insights from"`
}

type GenerateResponse struct {
	Insights []engine.Excerpt `json:"insights"`
}

type RenderRequest struct {
	Title   string `json:"title" jsonschema:"Excerpt title"`
	Content string `json:"content" jsonschema:"Excerpt body text"`
	Format  string `json:"format,omitempty" jsonschema:"Output format: pdf (default) or image"`
}

type RenderResponse struct {
	Data        string `json:"data"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// Service implements the three operations. It holds only immutable
// collaborators, so one instance serves all concurrent requests.
type Service struct {
	fetcher   TranscriptFetcher
	generator InsightGenerator
	renderer  ExportRenderer
	minChars  int
}

// NewService wires the operations to their components.
func NewService(f TranscriptFetcher, g InsightGenerator, r ExportRenderer, cfg engine.Config) *Service {
	return &Service{fetcher: f, generator: g, renderer: r, minChars: cfg.MinTranscriptChars}
}

// FetchTranscript classifies the URL and runs the fetch chain.
func (s *Service) FetchTranscript(ctx context.Context, req TranscriptRequest) (TranscriptResponse, error) {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return TranscriptResponse{}, &engine.InputError{Field: "url", Message: "URL is required"}
	}
	ref, err := engine.Classify(raw)
	if err != nil {
		return TranscriptResponse{}, err
	}
	res, err := s.fetcher.Fetch(ctx, ref)
	if err != nil {
		return TranscriptResponse{}, err
	}
	return TranscriptResponse{
		Transcript: res.Text,
		VideoID:    res.VideoID,
		Platform:   ref.Platform,
		Source:     string(res.SourceStrategy),
		Language:   res.Language,
		TrackKind:  res.TrackKind,
	}, nil
}

// GenerateInsights validates the transcript length and asks the generator for excerpts.
func (s *Service) GenerateInsights(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	text := strings.TrimSpace(req.Transcript)
	if text == "" {
		return GenerateResponse{}, &engine.InputError{Field: "transcript", Message: "Transcript is required"}
	}
	if utf8.RuneCountInString(text) < s.minChars {
		return GenerateResponse{}, &engine.InputError{Field: "transcript", Message: "Transcript is too short to generate insights."}
	}
	excerpts, err := s.generator.Generate(ctx, text)
	if err != nil {
		return GenerateResponse{}, err
	}
	return GenerateResponse{Insights: excerpts}, nil
}

// RenderExport renders one excerpt and base64-encodes the artifact.
// Any title and content are accepted, empty ones included.
func (s *Service) RenderExport(ctx context.Context, req RenderRequest) (RenderResponse, error) {
	format, err := parseFormat(req.Format)
	if err != nil {
		return RenderResponse{}, err
	}
	if err := ctx.Err(); err != nil {
		return RenderResponse{}, err
	}
	art, err := s.renderer.Render(req.Title, req.Content, format)
	if err != nil {
		return RenderResponse{}, err
	}
	return RenderResponse{
		Data:        base64.StdEncoding.EncodeToString(art.Data),
		Filename:    art.Filename,
		ContentType: art.ContentType,
	}, nil
}

func parseFormat(s string) (engine.ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pdf":
		return engine.FormatPDF, nil
	case "image", "png":
		return engine.FormatImage, nil
	default:
		return "", &engine.InputError{Field: "format", Message: fmt.Sprintf("Unsupported format %q (use pdf or image)", s)}
	}
}

// --- Error mapping ---

// APIError is the client-visible form of any operation failure.
type APIError struct {
	Code    engine.ErrorKind `json:"code"`
	Message string           `json:"detail"`
	Status  int              `json:"-"`
}

func (e *APIError) Error() string { return string(e.Code) + ": " + e.Message }

// ToAPIError maps a component error to a code, message and HTTP status.
// Internal error text is never copied into the message except for input errors.
func ToAPIError(err error) *APIError {
	kind := engine.KindOf(err)
	e := &APIError{Code: kind}
	switch kind {
	case engine.KindInvalidInput:
		e.Status = http.StatusBadRequest
		var ie *engine.InputError
		if errors.As(err, &ie) {
			e.Message = ie.Message
		} else {
			e.Message = "Invalid input."
		}
	case engine.KindUnsupportedPlatform:
		e.Status = http.StatusBadRequest
		e.Message = "Unsupported platform. Use a YouTube, Instagram, LinkedIn or TikTok link."
	case engine.KindMalformedURL:
		e.Status = http.StatusBadRequest
		e.Message = "Invalid URL: could not find a video ID."
	case engine.KindNoCaptionsAvailable:
		e.Status = http.StatusUnprocessableEntity
		e.Message = "This video has no captions available."
	case engine.KindVideoUnavailable:
		e.Status = http.StatusNotFound
		e.Message = "Video is unavailable. It may be private or removed."
	case engine.KindAllStrategiesExhausted:
		e.Status = http.StatusServiceUnavailable
		var fe *engine.FetchError
		if errors.As(err, &fe) && fe.Blocked() {
			e.Message = "The video platform is currently blocking automated access. Please try again later."
		} else {
			e.Message = "Could not fetch the transcript right now. Please try again later."
		}
	case engine.KindUpstreamUnavailable:
		e.Status = http.StatusBadGateway
		if errors.Is(err, engine.ErrLLMNotConfigured) {
			e.Status = http.StatusServiceUnavailable
			e.Message = "AI service is not configured."
		} else {
			e.Message = "AI service is unavailable. Please try again later."
		}
	case engine.KindMalformedResponse:
		e.Status = http.StatusBadGateway
		e.Message = "AI service returned an unexpected response. Please try again."
	case engine.KindEncodingFailure:
		e.Status = http.StatusInternalServerError
		e.Message = "Could not render the file."
	case engine.KindTimeout:
		e.Status = http.StatusGatewayTimeout
		e.Message = "Request timed out."
	default:
		e.Code = engine.KindInternal
		e.Status = http.StatusInternalServerError
		e.Message = "Internal error."
	}
	return e
}
