package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// YouTube Innertube API: low-level constants, types, and HTTP primitives.
// Track selection and the strategy itself live in youtube_transcript.go.

const (
	ytWatchURL       = "https://www.youtube.com/watch?v="
	ytInnertubeURL   = "https://www.youtube.com/youtubei/v1/player"
	ytAndroidVersion = "20.10.38"
	ytAndroidUA      = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// --- ANDROID client types (/player endpoint) ---

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *playabilityStatus `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

func (t captionTrack) trackKind() engine.TrackKind {
	if t.Kind == "asr" {
		return engine.TrackAuto
	}
	return engine.TrackManual
}

// tracks returns the caption tracks, or a cause explaining why there are none.
func (p *playerResponse) tracks() ([]captionTrack, error) {
	if err := p.playability(); err != nil {
		return nil, err
	}
	if p.Captions == nil || len(p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		return nil, engine.ErrNoCaptions
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// playability maps a non-OK playabilityStatus to a sentinel cause.
func (p *playerResponse) playability() error {
	ps := p.PlayabilityStatus
	if ps == nil || ps.Status == "" || ps.Status == "OK" {
		return nil
	}
	reason := strings.ToLower(ps.Reason)
	switch {
	case strings.Contains(reason, "not a bot"), strings.Contains(reason, "sign in to confirm"):
		return fmt.Errorf("%w: %s", engine.ErrBlocked, ps.Reason)
	case strings.Contains(reason, "private"),
		strings.Contains(reason, "unavailable"),
		strings.Contains(reason, "removed"),
		strings.Contains(reason, "does not exist"):
		return fmt.Errorf("%w: %s", engine.ErrVideoUnavailable, ps.Reason)
	case ps.Status == "LOGIN_REQUIRED":
		return fmt.Errorf("%w: login required: %s", engine.ErrBlocked, ps.Reason)
	case ps.Status == "ERROR":
		return fmt.Errorf("%w: %s", engine.ErrVideoUnavailable, ps.Reason)
	default:
		return fmt.Errorf("playability %s: %s", ps.Status, ps.Reason)
	}
}

// --- Timedtext XML types ---

type ytTimedText struct {
	Texts []ytLine `xml:"text"`
	// srv3 format: <timedtext><body><p>...</p></body></timedtext>
	Paragraphs []ytLine `xml:"body>p"`
}

type ytLine struct {
	Text string `xml:",chardata"`
	Segs []struct {
		Text string `xml:",chardata"`
	} `xml:"s"`
}

func (l ytLine) text() string {
	if len(l.Segs) == 0 {
		return l.Text
	}
	var sb strings.Builder
	sb.WriteString(l.Text)
	for _, s := range l.Segs {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// postPlayer POSTs an ANDROID client /player request and decodes the response.
func postPlayer(ctx context.Context, y *YouTubeCaptions, videoID string) (*playerResponse, error) {
	reqBody, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     ytAndroidVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	body, err := engine.DoRequest(ctx, y.client, engine.Request{
		Method: "POST",
		URL:    y.playerURL + "?prettyPrint=false",
		Body:   reqBody,
		Headers: map[string]string{
			"Content-Type":             "application/json",
			"User-Agent":               ytAndroidUA,
			"X-Youtube-Client-Name":    "3",
			"X-Youtube-Client-Version": ytAndroidVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("android innertube: %w", err)
	}

	var resp playerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return &resp, nil
}
