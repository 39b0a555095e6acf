package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

const timedTextXML = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0" dur="1.5">Hello &amp;amp; welcome</text>` +
	`<text start="1.5" dur="2">to the &amp;#39;show&amp;#39;</text>` +
	`</transcript>`

type ytFake struct {
	srv         *httptest.Server
	pageCalls   atomic.Int32
	playerCalls atomic.Int32
	// playerJSON is the ytInitialPlayerResponse embedded in the page;
	// androidJSON is what /player answers.
	playerJSON  string
	androidJSON string
	timedText   string
}

func newYTFake(t *testing.T) *ytFake {
	t.Helper()
	f := &ytFake{timedText: timedTextXML}
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		f.pageCalls.Add(1)
		fmt.Fprintf(w, `<html><head><title>video</title></head><body>`+
			`<script>var ytcfg = {};</script>`+
			`<script>var ytInitialPlayerResponse = %s;var meta = {"a":"}"};</script>`+
			`</body></html>`, f.playerJSON)
	})
	mux.HandleFunc("/player", func(w http.ResponseWriter, r *http.Request) {
		f.playerCalls.Add(1)
		assert.Equal(t, "3", r.Header.Get("X-Youtube-Client-Name"))
		fmt.Fprint(w, f.androidJSON)
	})
	mux.HandleFunc("/timedtext", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.timedText)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *ytFake) source() *YouTubeCaptions {
	return NewYouTubeCaptions(f.srv.Client(), []string{"en", "en-US"},
		WithYouTubeEndpoints(f.srv.URL+"/watch?v=", f.srv.URL+"/player"))
}

func (f *ytFake) tracksJSON(tracks ...string) string {
	return `{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[` +
		joinComma(tracks) + `]}}}`
}

func (f *ytFake) track(lang, kind string) string {
	return fmt.Sprintf(`{"baseUrl":"%s/timedtext?lang=%s","languageCode":"%s","kind":"%s"}`, f.srv.URL, lang, lang, kind)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return out
}

func TestYouTubeCaptions_PageScrape(t *testing.T) {
	f := newYTFake(t)
	f.playerJSON = f.tracksJSON(f.track("de", ""), f.track("en", "asr"))

	caps, err := f.source().Fetch(context.Background(), ytRef)
	require.NoError(t, err)
	assert.Equal(t, "en", caps.Language)
	assert.Equal(t, engine.TrackAuto, caps.Kind)
	assert.Equal(t, "Hello & welcome to the 'show'", engine.NormalizeText(caps.Segments...))
	assert.EqualValues(t, 0, f.playerCalls.Load())
}

func TestYouTubeCaptions_PlayerWhenPageHasNoResponse(t *testing.T) {
	f := newYTFake(t)
	f.playerJSON = `"not an object"`
	f.androidJSON = f.tracksJSON(f.track("en", ""))

	caps, err := f.source().Fetch(context.Background(), ytRef)
	require.NoError(t, err)
	assert.Equal(t, engine.TrackManual, caps.Kind)
	assert.EqualValues(t, 1, f.playerCalls.Load())
}

func TestYouTubeCaptions_NoCaptionsIsDefinitive(t *testing.T) {
	f := newYTFake(t)
	f.playerJSON = `{"playabilityStatus":{"status":"OK"}}`

	_, err := f.source().Fetch(context.Background(), ytRef)
	assert.ErrorIs(t, err, engine.ErrNoCaptions)
	assert.EqualValues(t, 0, f.playerCalls.Load())
}

func TestYouTubeCaptions_Playability(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   error
	}{
		{"bot check", `{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm you're not a bot"}`, engine.ErrBlocked},
		{"private", `{"status":"LOGIN_REQUIRED","reason":"This video is private"}`, engine.ErrVideoUnavailable},
		{"removed", `{"status":"ERROR","reason":"Video unavailable"}`, engine.ErrVideoUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newYTFake(t)
			f.playerJSON = `{"playabilityStatus":` + tt.status + `}`
			f.androidJSON = f.playerJSON

			_, err := f.source().Fetch(context.Background(), ytRef)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestYouTubeCaptions_EmptyTimedTextIsBlocked(t *testing.T) {
	f := newYTFake(t)
	f.playerJSON = f.tracksJSON(f.track("en", ""))
	f.androidJSON = f.playerJSON
	f.timedText = ""

	_, err := f.source().Fetch(context.Background(), ytRef)
	assert.ErrorIs(t, err, engine.ErrBlocked)
}

func TestYouTubeCaptions_NotApplicable(t *testing.T) {
	f := newYTFake(t)
	ref := engine.VideoReference{Platform: engine.PlatformTikTok, CanonicalID: "123", RawURL: "https://www.tiktok.com/@u/video/123"}

	_, err := f.source().Fetch(context.Background(), ref)
	assert.ErrorIs(t, err, engine.ErrNotApplicable)
	assert.EqualValues(t, 0, f.pageCalls.Load())
}

func TestPickBestTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1&exp=xpe", LanguageCode: "en"},
		{BaseURL: "u2", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u3", LanguageCode: "en-GB"},
		{BaseURL: "u4", LanguageCode: "fr"},
	}
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"manual preferred beats auto", []string{"en", "en-GB"}, "u3"},
		{"auto in first language", []string{"en"}, "u2"},
		{"any english", []string{"de"}, "u2"},
		{"no preference falls back to english", nil, "u2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tracks, tt.langs)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.BaseURL)
		})
	}

	_, ok := pickBestTrack([]captionTrack{{BaseURL: "x&exp=xpe"}}, []string{"en"})
	assert.False(t, ok)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1};var x`, `{"a":1}`},
		{`{"a":"}\"{"};rest`, `{"a":"}\"{"}`},
		{`{"a":{"b":"\\"}}tail`, `{"a":{"b":"\\"}}`},
		{`[1]`, ``},
		{`{"open":`, ``},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, string(extractJSON([]byte(tt.in))), tt.in)
	}
}

func TestParseTimedTextXML_KeepsEscapedBrackets(t *testing.T) {
	body := `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
		`<text start="0" dur="2">if x &amp;lt; 10 and y &amp;gt; 3</text>` +
		`<text start="2" dur="2">we stop &lt;font color="#fff"&gt;here&lt;/font&gt;</text>` +
		`</transcript>`
	segments, err := parseTimedTextXML([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "if x < 10 and y > 3 we stop here", engine.NormalizeText(segments...))
}
