package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// Runner executes an external command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs the command as a child process bound to ctx.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// subtitleExtPreference orders caption formats from easiest to parse to hardest.
var subtitleExtPreference = []string{"json3", "srv3", "vtt", "ttml", "srv1", "srv2", "xml", "srt"}

// YtDlpCaptions asks yt-dlp for the caption track list, then downloads the
// chosen track directly. It serves every platform yt-dlp can extract.
type YtDlpCaptions struct {
	path        string
	cookiesFile string
	langs       []string
	client      *http.Client
	run         Runner
}

// NewYtDlpCaptions creates the fallback caption strategy.
// cookiesFile is optional; when set and readable it is passed as --cookies.
func NewYtDlpCaptions(path, cookiesFile string, langs []string, client *http.Client, run Runner) *YtDlpCaptions {
	if path == "" {
		path = "yt-dlp"
	}
	if run == nil {
		run = ExecRunner
	}
	return &YtDlpCaptions{path: path, cookiesFile: cookiesFile, langs: langs, client: client, run: run}
}

type ytDlpInfo struct {
	ID                string                     `json:"id"`
	Title             string                     `json:"title"`
	Subtitles         map[string][]ytDlpSubtitle `json:"subtitles"`
	AutomaticCaptions map[string][]ytDlpSubtitle `json:"automatic_captions"`
}

type ytDlpSubtitle struct {
	URL  string `json:"url"`
	Ext  string `json:"ext"`
	Name string `json:"name"`
}

type ytDlpTrack struct {
	ytDlpSubtitle
	Lang string
	Kind engine.TrackKind
}

// Fetch runs yt-dlp in metadata mode and parses the selected caption track.
func (y *YtDlpCaptions) Fetch(ctx context.Context, ref engine.VideoReference) (Captions, error) {
	stdout, stderr, err := y.run(ctx, y.path, y.args(ref)...)
	if err != nil {
		return Captions{}, classifyYtDlpError(err, stderr)
	}

	var info ytDlpInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return Captions{}, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	track, ok := selectSubtitleTrack(info, y.langs)
	if !ok {
		return Captions{}, engine.ErrNoCaptions
	}

	payload, err := engine.FetchCaptionPayload(ctx, y.client, track.URL)
	if err != nil {
		return Captions{}, fmt.Errorf("download %s %s track: %w", track.Lang, track.Ext, err)
	}
	segments, err := parseCaptionPayload(track.Ext, payload)
	if err != nil {
		return Captions{}, err
	}
	return Captions{Segments: segments, Language: track.Lang, Kind: track.Kind}, nil
}

func (y *YtDlpCaptions) args(ref engine.VideoReference) []string {
	args := []string{
		"--dump-single-json",
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		"--quiet",
	}
	if y.cookiesFile != "" {
		if _, err := os.Stat(y.cookiesFile); err == nil {
			args = append(args, "--cookies", y.cookiesFile)
		} else {
			slog.Warn("yt-dlp: cookie file not readable, continuing anonymously",
				slog.String("path", y.cookiesFile), slog.Any("err", err))
		}
	}
	return append(args, "--", ref.WatchURL())
}

// classifyYtDlpError maps the tool's stderr onto sentinel causes.
func classifyYtDlpError(err error, stderr []byte) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("yt-dlp not installed: %w", err)
	}
	msg := strings.TrimSpace(string(stderr))
	low := strings.ToLower(msg)
	snippet := engine.Truncate(msg, 300)
	switch {
	case strings.Contains(low, "sign in to confirm"),
		strings.Contains(low, "http error 429"),
		strings.Contains(low, "too many requests"),
		strings.Contains(low, "http error 403"),
		strings.Contains(low, "rate-limit"):
		return fmt.Errorf("%w: yt-dlp: %s", engine.ErrBlocked, snippet)
	case strings.Contains(low, "video unavailable"),
		strings.Contains(low, "private video"),
		strings.Contains(low, "has been removed"),
		strings.Contains(low, "does not exist"),
		strings.Contains(low, "http error 404"):
		return fmt.Errorf("%w: yt-dlp: %s", engine.ErrVideoUnavailable, snippet)
	}
	if snippet == "" {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	return fmt.Errorf("yt-dlp: %w: %s", err, snippet)
}

// selectSubtitleTrack picks a track: preferred languages first (manual before
// automatic), then remaining manual languages, then original-language
// automatic captions, then the rest in lexical order.
func selectSubtitleTrack(info ytDlpInfo, langs []string) (ytDlpTrack, bool) {
	for _, lang := range langs {
		if t, ok := bestFormat(info.Subtitles[lang], lang, engine.TrackManual); ok {
			return t, true
		}
		if t, ok := bestFormat(info.AutomaticCaptions[lang], lang, engine.TrackAuto); ok {
			return t, true
		}
	}
	for _, lang := range sortedLangs(info.Subtitles) {
		if t, ok := bestFormat(info.Subtitles[lang], lang, engine.TrackManual); ok {
			return t, true
		}
	}
	auto := sortedLangs(info.AutomaticCaptions)
	for _, lang := range auto {
		if strings.HasSuffix(lang, "-orig") {
			if t, ok := bestFormat(info.AutomaticCaptions[lang], strings.TrimSuffix(lang, "-orig"), engine.TrackAuto); ok {
				return t, true
			}
		}
	}
	for _, lang := range auto {
		if t, ok := bestFormat(info.AutomaticCaptions[lang], lang, engine.TrackAuto); ok {
			return t, true
		}
	}
	return ytDlpTrack{}, false
}

func sortedLangs(m map[string][]ytDlpSubtitle) []string {
	langs := make([]string, 0, len(m))
	for lang := range m {
		if lang == "live_chat" {
			continue
		}
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func bestFormat(subs []ytDlpSubtitle, lang string, kind engine.TrackKind) (ytDlpTrack, bool) {
	for _, ext := range subtitleExtPreference {
		for _, s := range subs {
			if s.Ext == ext && s.URL != "" {
				return ytDlpTrack{ytDlpSubtitle: s, Lang: lang, Kind: kind}, true
			}
		}
	}
	for _, s := range subs {
		if s.URL != "" {
			return ytDlpTrack{ytDlpSubtitle: s, Lang: lang, Kind: kind}, true
		}
	}
	return ytDlpTrack{}, false
}
