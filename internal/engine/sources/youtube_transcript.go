package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// YouTube caption fetching (primary strategy).
// 1. scrape watch page ytInitialPlayerResponse → caption track → timedtext XML
// 2. ANDROID Innertube /player → caption track → timedtext XML

// ytInitialPlayerResponseMarker marks the start of the player response JSON in watch page HTML.
const ytInitialPlayerResponseMarker = "ytInitialPlayerResponse = "

// YouTubeCaptions reads caption tracks straight from YouTube's own endpoints.
// It only serves YouTube references.
type YouTubeCaptions struct {
	client    *http.Client
	langs     []string
	watchURL  string
	playerURL string
}

// YouTubeOption customizes a YouTubeCaptions.
type YouTubeOption func(*YouTubeCaptions)

// WithYouTubeEndpoints overrides the watch page and /player URLs.
func WithYouTubeEndpoints(watchURL, playerURL string) YouTubeOption {
	return func(y *YouTubeCaptions) {
		y.watchURL = watchURL
		y.playerURL = playerURL
	}
}

// NewYouTubeCaptions creates the primary caption strategy.
func NewYouTubeCaptions(client *http.Client, langs []string, opts ...YouTubeOption) *YouTubeCaptions {
	y := &YouTubeCaptions{
		client:    client,
		langs:     langs,
		watchURL:  ytWatchURL,
		playerURL: ytInnertubeURL,
	}
	for _, o := range opts {
		o(y)
	}
	return y
}

// Fetch returns the raw caption segments of the best track.
// The watch page is tried first; the ANDROID player answer is authoritative when both fail.
func (y *YouTubeCaptions) Fetch(ctx context.Context, ref engine.VideoReference) (Captions, error) {
	if ref.Platform != engine.PlatformYouTube {
		return Captions{}, engine.ErrNotApplicable
	}

	caps, scrapeErr := y.viaPageScrape(ctx, ref.CanonicalID)
	if scrapeErr == nil {
		return caps, nil
	}
	if isDefinitive(scrapeErr) || ctx.Err() != nil {
		return Captions{}, fmt.Errorf("watch page: %w", scrapeErr)
	}
	slog.Debug("youtube: page scrape failed, trying player",
		slog.String("id", ref.CanonicalID), slog.Any("err", scrapeErr))

	caps, err := y.viaPlayer(ctx, ref.CanonicalID)
	if err != nil {
		return Captions{}, fmt.Errorf("player: %w (watch page: %v)", err, scrapeErr)
	}
	return caps, nil
}

// isDefinitive reports whether err settles the outcome for this video.
func isDefinitive(err error) bool {
	if errors.Is(err, engine.ErrBlocked) {
		return false
	}
	return errors.Is(err, engine.ErrNoCaptions) || errors.Is(err, engine.ErrVideoUnavailable)
}

func (y *YouTubeCaptions) viaPageScrape(ctx context.Context, videoID string) (Captions, error) {
	body, err := engine.DoRequest(ctx, y.client, engine.Request{
		URL:   y.watchURL + videoID,
		Limit: 6 << 20,
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	})
	if err != nil {
		return Captions{}, err
	}

	jsonData, err := extractPlayerResponse(body)
	if err != nil {
		return Captions{}, err
	}
	var resp playerResponse
	if err := json.Unmarshal(jsonData, &resp); err != nil {
		return Captions{}, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return y.fromPlayer(ctx, &resp)
}

func (y *YouTubeCaptions) viaPlayer(ctx context.Context, videoID string) (Captions, error) {
	resp, err := postPlayer(ctx, y, videoID)
	if err != nil {
		return Captions{}, err
	}
	return y.fromPlayer(ctx, resp)
}

func (y *YouTubeCaptions) fromPlayer(ctx context.Context, resp *playerResponse) (Captions, error) {
	tracks, err := resp.tracks()
	if err != nil {
		return Captions{}, err
	}
	track, ok := pickBestTrack(tracks, y.langs)
	if !ok {
		return Captions{}, fmt.Errorf("%w: all caption tracks require PoToken", engine.ErrBlocked)
	}
	segments, err := y.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return Captions{}, err
	}
	return Captions{Segments: segments, Language: track.LanguageCode, Kind: track.trackKind()}, nil
}

// extractPlayerResponse finds the inline <script> carrying ytInitialPlayerResponse.
func extractPlayerResponse(page []byte) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse watch page: %w", err)
	}
	var found []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.Text()
		idx := strings.Index(src, ytInitialPlayerResponseMarker)
		if idx < 0 {
			return true
		}
		found = extractJSON([]byte(src[idx+len(ytInitialPlayerResponseMarker):]))
		return found == nil
	})
	if found != nil {
		return found, nil
	}
	if looksLikeConsentWall(doc) {
		return nil, fmt.Errorf("%w: consent or captcha page served", engine.ErrBlocked)
	}
	return nil, errors.New("ytInitialPlayerResponse not found in watch page")
}

func looksLikeConsentWall(doc *goquery.Document) bool {
	if doc.Find("form[action*='consent']").Length() > 0 || doc.Find("#recaptcha, .g-recaptcha").Length() > 0 {
		return true
	}
	title := strings.ToLower(doc.Find("title").Text())
	return strings.Contains(title, "before you continue")
}

// extractJSON returns the balanced {...} object at the start of b.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// needsPoToken reports whether a caption track URL requires a PoToken (browser-only).
// Tracks with &exp=xpe cannot be fetched server-side.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences.
// Skips tracks that require PoToken; those only work in a browser.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	// 1. Manual track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	// 2. Auto-generated track in preferred language
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	// 3. Any English track
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// fetchTimedText fetches a timedtext caption URL and returns its text segments.
func (y *YouTubeCaptions) fetchTimedText(ctx context.Context, baseURL string) ([]string, error) {
	body, err := engine.DoRequest(ctx, y.client, engine.Request{URL: baseURL, Limit: 2 << 20})
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// YouTube answers 200 with an empty body when the track needs a session.
		return nil, fmt.Errorf("%w: empty timedtext response", engine.ErrBlocked)
	}
	return parseTimedTextXML(body)
}

// parseTimedTextXML handles srv1 (<transcript><text>) and srv3 (<timedtext><body><p>) payloads.
func parseTimedTextXML(body []byte) ([]string, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	lines := tt.Texts
	if len(lines) == 0 {
		lines = tt.Paragraphs
	}
	segments := make([]string, 0, len(lines))
	for _, l := range lines {
		if s := strings.TrimSpace(l.text()); s != "" {
			segments = append(segments, s)
		}
	}
	return segments, nil
}
