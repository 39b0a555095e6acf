package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

const json3Body = `{"events":[` +
	`{"tStartMs":0,"segs":[{"utf8":"first "},{"utf8":"line"}]},` +
	`{"tStartMs":900,"segs":[{"utf8":"\n"}]},` +
	`{"tStartMs":1200,"segs":[{"utf8":"second &amp; last"}]},` +
	`{"tStartMs":2000}` +
	`]}`

// fakeRunner records the command line and returns canned output.
type fakeRunner struct {
	args   []string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	f.args = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func captionServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sub.json3":
			fmt.Fprint(w, json3Body)
		case "/sub.vtt":
			fmt.Fprint(w, "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nvtt text\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYtDlpCaptions_Fetch(t *testing.T) {
	srv := captionServer(t)
	runner := &fakeRunner{stdout: fmt.Sprintf(`{
		"id":"dQw4w9WgXcQ",
		"subtitles":{},
		"automatic_captions":{
			"en":[{"ext":"vtt","url":"%[1]s/sub.vtt"},{"ext":"json3","url":"%[1]s/sub.json3"}],
			"fr":[{"ext":"json3","url":"%[1]s/missing"}]
		}}`, srv.URL)}

	y := NewYtDlpCaptions("yt-dlp", "", []string{"en"}, srv.Client(), runner.run)
	caps, err := y.Fetch(context.Background(), ytRef)
	require.NoError(t, err)
	assert.Equal(t, "en", caps.Language)
	assert.Equal(t, engine.TrackAuto, caps.Kind)
	assert.Equal(t, "first line second & last", engine.NormalizeText(caps.Segments...))
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", runner.args[len(runner.args)-1])
	assert.NotContains(t, runner.args, "--cookies")
}

func TestYtDlpCaptions_CookieFile(t *testing.T) {
	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	runner := &fakeRunner{stdout: `{"subtitles":{},"automatic_captions":{}}`}
	y := NewYtDlpCaptions("yt-dlp", cookies, []string{"en"}, nil, runner.run)
	_, err := y.Fetch(context.Background(), ytRef)
	assert.ErrorIs(t, err, engine.ErrNoCaptions)
	assert.Contains(t, runner.args, "--cookies")
	assert.Contains(t, runner.args, cookies)

	missing := NewYtDlpCaptions("yt-dlp", filepath.Join(t.TempDir(), "nope.txt"), nil, nil, runner.run)
	_, _ = missing.Fetch(context.Background(), ytRef)
	assert.NotContains(t, runner.args, "--cookies")
}

func TestYtDlpCaptions_NonYouTubeUsesRawURL(t *testing.T) {
	runner := &fakeRunner{stdout: `{}`}
	ref := engine.VideoReference{Platform: engine.PlatformInstagram, RawURL: "https://www.instagram.com/reel/Cx1/", CanonicalID: "Cx1"}
	_, err := NewYtDlpCaptions("", "", nil, nil, runner.run).Fetch(context.Background(), ref)
	assert.ErrorIs(t, err, engine.ErrNoCaptions)
	assert.Equal(t, ref.RawURL, runner.args[len(runner.args)-1])
}

func TestClassifyYtDlpError(t *testing.T) {
	exitErr := errors.New("exit status 1")
	tests := []struct {
		name   string
		err    error
		stderr string
		want   error
	}{
		{"bot check", exitErr, "ERROR: [youtube] x: Sign in to confirm you're not a bot", engine.ErrBlocked},
		{"rate limit", exitErr, "ERROR: unable to download: HTTP Error 429: Too Many Requests", engine.ErrBlocked},
		{"private", exitErr, "ERROR: [youtube] x: Private video", engine.ErrVideoUnavailable},
		{"gone", exitErr, "ERROR: [youtube] x: Video unavailable", engine.ErrVideoUnavailable},
		{"not installed", exec.ErrNotFound, "", exec.ErrNotFound},
		{"other", exitErr, "ERROR: something else", exitErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classifyYtDlpError(tt.err, []byte(tt.stderr)), tt.want)
		})
	}
}

func TestSelectSubtitleTrack(t *testing.T) {
	sub := func(ext string) []ytDlpSubtitle { return []ytDlpSubtitle{{Ext: ext, URL: "u-" + ext}} }
	tests := []struct {
		name     string
		info     ytDlpInfo
		langs    []string
		wantLang string
		wantKind engine.TrackKind
		wantExt  string
	}{
		{
			name:     "manual preferred over auto",
			info:     ytDlpInfo{Subtitles: map[string][]ytDlpSubtitle{"en": sub("vtt")}, AutomaticCaptions: map[string][]ytDlpSubtitle{"en": sub("json3")}},
			langs:    []string{"en"},
			wantLang: "en", wantKind: engine.TrackManual, wantExt: "vtt",
		},
		{
			name:     "preferred language order",
			info:     ytDlpInfo{AutomaticCaptions: map[string][]ytDlpSubtitle{"en-GB": sub("srt"), "en-US": sub("srt")}},
			langs:    []string{"en", "en-US", "en-GB"},
			wantLang: "en-US", wantKind: engine.TrackAuto, wantExt: "srt",
		},
		{
			name:     "other manual language before translations",
			info:     ytDlpInfo{Subtitles: map[string][]ytDlpSubtitle{"es": sub("vtt"), "live_chat": sub("json")}, AutomaticCaptions: map[string][]ytDlpSubtitle{"ab": sub("json3")}},
			langs:    []string{"en"},
			wantLang: "es", wantKind: engine.TrackManual, wantExt: "vtt",
		},
		{
			name:     "original language auto track",
			info:     ytDlpInfo{AutomaticCaptions: map[string][]ytDlpSubtitle{"ab": sub("json3"), "de-orig": sub("json3")}},
			langs:    []string{"en"},
			wantLang: "de", wantKind: engine.TrackAuto, wantExt: "json3",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := selectSubtitleTrack(tt.info, tt.langs)
			require.True(t, ok)
			assert.Equal(t, tt.wantLang, got.Lang)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantExt, got.Ext)
		})
	}

	_, ok := selectSubtitleTrack(ytDlpInfo{Subtitles: map[string][]ytDlpSubtitle{"live_chat": sub("json")}}, []string{"en"})
	assert.False(t, ok)
}
