package apiserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

func newTestHandler(svc *Service, opts Options) http.Handler {
	if opts.Name == "" {
		opts.Name = "go_transcribai"
	}
	return NewHandler(svc, opts)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestREST_Transcript(t *testing.T) {
	f := &fakeFetcher{res: engine.TranscriptResult{Text: "hello world", SourceStrategy: engine.SourceFallback, Language: "en", TrackKind: engine.TrackAuto}}
	h := newTestHandler(newTestService(f, &fakeGenerator{}, fakeRenderer{}), Options{})

	rec := do(t, h, http.MethodPost, "/api/transcript", `{"url":"https://youtu.be/abc12345678"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	out := decode[TranscriptResponse](t, rec)
	assert.Equal(t, "hello world", out.Transcript)
	assert.Equal(t, "abc12345678", out.VideoID)
	assert.Equal(t, "fallback", out.Source)
	assert.Equal(t, engine.TrackAuto, out.TrackKind)
}

func TestREST_ErrorBody(t *testing.T) {
	f := &fakeFetcher{err: &engine.FetchError{Kind: engine.KindNoCaptionsAvailable}}
	h := newTestHandler(newTestService(f, &fakeGenerator{}, fakeRenderer{}), Options{})

	rec := do(t, h, http.MethodPost, "/api/transcript", `{"url":"https://youtu.be/abc12345678"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.Equal(t, "NoCaptionsAvailable", body["code"])
	assert.NotEmpty(t, body["detail"])

	rec = do(t, h, http.MethodPost, "/api/transcript", `{"url":"https://vimeo.com/1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UnsupportedPlatform", decode[map[string]string](t, rec)["code"])
}

func TestREST_BadJSON(t *testing.T) {
	h := newTestHandler(newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{}), Options{})
	rec := do(t, h, http.MethodPost, "/api/generate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidInput", decode[map[string]string](t, rec)["code"])
}

func TestREST_GenerateAndDownload(t *testing.T) {
	g := &fakeGenerator{out: []engine.Excerpt{{Title: "A", Content: "a"}, {Title: "B", Content: "b"}}}
	h := newTestHandler(newTestService(&fakeFetcher{}, g, fakeRenderer{}), Options{})

	body, err := json.Marshal(GenerateRequest{Transcript: longTranscript})
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/generate", string(body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[GenerateResponse](t, rec)
	require.Len(t, out.Insights, 2)
	assert.Equal(t, "A", out.Insights[0].Title)
	assert.Equal(t, "B", out.Insights[1].Title)

	for _, path := range []string{"/api/download", "/api/render"} {
		rec = do(t, h, http.MethodPost, path, `{"title":"A","content":"a","format":"image"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "A.image", decode[RenderResponse](t, rec).Filename)
	}
}

func TestREST_HealthAndDescriptor(t *testing.T) {
	h := newTestHandler(newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{}), Options{Version: "1.2.3"})

	rec := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	desc := decode[map[string]any](t, rec)
	assert.Equal(t, "1.2.3", desc["version"])
	assert.Equal(t, "running", desc["status"])

	rec = do(t, h, http.MethodGet, "/api/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "transcript_requests")

	rec = do(t, h, http.MethodGet, "/api/transcript", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestREST_CORS(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{})

	h := newTestHandler(svc, Options{CORSOrigins: []string{"https://app.example"}})
	req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	h = newTestHandler(svc, Options{CORSOrigins: []string{"*"}})
	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://any.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestREST_RateLimit(t *testing.T) {
	h := newTestHandler(newTestService(&fakeFetcher{}, &fakeGenerator{}, fakeRenderer{}), Options{RateLimitRPS: 0.001, RateLimitBurst: 2})
	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/health", "").Code)
	}
	rec := do(t, h, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RateLimited", decode[map[string]string](t, rec)["code"])
}

func TestREST_RecoversPanics(t *testing.T) {
	h := newTestHandler(newTestService(&fakeFetcher{}, panicGenerator{}, fakeRenderer{}), Options{})
	body, err := json.Marshal(GenerateRequest{Transcript: longTranscript})
	require.NoError(t, err)
	rec := do(t, h, http.MethodPost, "/api/generate", string(body))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal", decode[map[string]string](t, rec)["code"])
}

type panicGenerator struct{}

func (panicGenerator) Generate(context.Context, string) ([]engine.Excerpt, error) {
	panic("generator exploded")
}
