package apiserver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterTools registers the MCP tools on the given server:
// fetch_transcript, generate_insights, render_export.
func RegisterTools(server *mcp.Server, svc *Service) {
	registerFetchTranscript(server, svc)
	registerGenerateInsights(server, svc)
	registerRenderExport(server, svc)
}

func registerFetchTranscript(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "fetch_transcript",
		Description: "Fetch the caption transcript of a video. Accepts YouTube, Instagram, LinkedIn and TikTok URLs. Tries YouTube captions first, then yt-dlp. Returns normalized plain text with the video ID, strategy used, language and track kind.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input TranscriptRequest) (*mcp.CallToolResult, TranscriptResponse, error) {
		out, err := svc.FetchTranscript(ctx, input)
		if err != nil {
			return nil, TranscriptResponse{}, toolError("fetch_transcript", err)
		}
		return nil, out, nil
	})
}

func registerGenerateInsights(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_insights",
		Description: "Extract titled excerpts (3-4 insights with full verbatim content) from a transcript using an LLM.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input GenerateRequest) (*mcp.CallToolResult, GenerateResponse, error) {
		out, err := svc.GenerateInsights(ctx, input)
		if err != nil {
			return nil, GenerateResponse{}, toolError("generate_insights", err)
		}
		return nil, out, nil
	})
}

func registerRenderExport(server *mcp.Server, svc *Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "render_export",
		Description: "Render one excerpt as a PDF document or PNG image. Returns base64 data, a download filename and the content type. Output is byte-identical for identical input.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input RenderRequest) (*mcp.CallToolResult, RenderResponse, error) {
		out, err := svc.RenderExport(ctx, input)
		if err != nil {
			return nil, RenderResponse{}, toolError("render_export", err)
		}
		return nil, out, nil
	})
}

// toolError logs the full cause and returns only the client-safe form.
func toolError(tool string, err error) error {
	apiErr := ToAPIError(err)
	slog.Warn(tool+": failed", slog.String("code", string(apiErr.Code)), slog.Any("error", err))
	return fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message)
}
