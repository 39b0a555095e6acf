package engine

// --- Classification ---

// Platform identifies the video-sharing service a URL belongs to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTikTok    Platform = "tiktok"
)

// VideoReference is the immutable result of classifying a raw URL.
// CanonicalID is non-empty iff classification succeeded.
type VideoReference struct {
	Platform    Platform `json:"platform"`
	RawURL      string   `json:"raw_url"`
	CanonicalID string   `json:"canonical_id"`
}

// WatchURL returns the URL handed to external extraction tools.
// YouTube references are rebuilt from the id so playlist/timestamp decoration is dropped.
func (r VideoReference) WatchURL() string {
	if r.Platform == PlatformYouTube {
		return "https://www.youtube.com/watch?v=" + r.CanonicalID
	}
	return r.RawURL
}

// --- Transcript ---

// SourceStrategy names which link of the fetch chain produced a transcript.
type SourceStrategy string

const (
	SourcePrimary  SourceStrategy = "primary"
	SourceFallback SourceStrategy = "fallback"
)

// TrackKind distinguishes manually authored caption tracks from automatic ones.
type TrackKind string

const (
	TrackManual  TrackKind = "manual"
	TrackAuto    TrackKind = "auto"
	TrackUnknown TrackKind = ""
)

// TranscriptResult is produced once per fetch request and never cached.
type TranscriptResult struct {
	VideoID        string         `json:"video_id"`
	Text           string         `json:"text"`
	SourceStrategy SourceStrategy `json:"source_strategy"`
	Language       string         `json:"language,omitempty"`
	TrackKind      TrackKind      `json:"track_kind,omitempty"`
}

// --- Insights ---

// Excerpt is one AI-extracted thematic unit; the atomic unit of export.
type Excerpt struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// --- Export ---

// ExportFormat selects the artifact encoding.
type ExportFormat string

const (
	FormatPDF   ExportFormat = "pdf"
	FormatImage ExportFormat = "image"
)

const (
	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

// ExportArtifact is derived deterministically from one Excerpt and a format.
type ExportArtifact struct {
	Data        []byte `json:"-"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}
