package apiserver

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

func connectTools(t *testing.T, svc *Service) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "go_transcribai", Version: "test"}, nil)
	RegisterTools(server, svc)

	st, ct := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestMCP_ListTools(t *testing.T) {
	cs := connectTools(t, newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{}))
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"fetch_transcript", "generate_insights", "render_export"}, names)
}

func TestMCP_GenerateInsightsDescriptionMatchesPrompt(t *testing.T) {
	cs := connectTools(t, newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{}))
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	for _, tool := range res.Tools {
		if tool.Name != "generate_insights" {
			continue
		}
		assert.Contains(t, tool.Description, "3-4 insights")
		assert.Contains(t, engine.InsightPrompt, "Extract 3-4 key insights")
		return
	}
	t.Fatal("generate_insights not registered")
}

func TestMCP_CallTools(t *testing.T) {
	f := &fakeFetcher{res: engine.TranscriptResult{Text: "hello", SourceStrategy: engine.SourcePrimary}}
	cs := connectTools(t, newTestService(f, &fakeGenerator{}, fakeRenderer{}))
	ctx := context.Background()

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "fetch_transcript",
		Arguments: map[string]any{"url": "https://www.youtube.com/shorts/abc12345678"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "abc12345678", f.got.CanonicalID)

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "render_export",
		Arguments: map[string]any{"title": "t", "content": "c", "format": "docx"},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "InvalidInput")
}
