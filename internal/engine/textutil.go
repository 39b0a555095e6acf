package engine

import (
	"html"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
)

// UserAgentChrome is sent on plain caption downloads.
const UserAgentChrome = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var (
	htmlTagRe = regexp.MustCompile(`<[^>]+>`)
	// WebVTT/SRT cue timings ("00:00:01.000 --> 00:00:04.000 align:start") and
	// inline karaoke timestamps ("<00:00:01.500>").
	cueTimingRe  = regexp.MustCompile(`(?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3}\s*-->\s*(?:\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{1,3}[^\n]*`)
	inlineTimeRe = regexp.MustCompile(`<\d{1,2}:\d{2}(?::\d{2})?[.,]\d{1,3}>`)
)

// UnescapeEntities decodes HTML entities, including the double-encoded
// form ("&amp;#39;") that timedtext endpoints sometimes emit.
func UnescapeEntities(s string) string {
	for range 2 {
		if !strings.Contains(s, "&") {
			break
		}
		s = html.UnescapeString(s)
	}
	return s
}

// NormalizeText turns caption segments into one transcript string:
// timing markers and tags dropped, then entities decoded, segments joined by
// a single space, whitespace collapsed and trimmed.
func NormalizeText(segments ...string) string {
	var sb strings.Builder
	for _, seg := range segments {
		// Markup is stripped while literal "<" and ">" are still encoded.
		seg = inlineTimeRe.ReplaceAllString(seg, "")
		seg = cueTimingRe.ReplaceAllString(seg, " ")
		seg = htmlTagRe.ReplaceAllString(seg, " ")
		seg = UnescapeEntities(seg)
		for _, w := range strings.Fields(seg) {
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(w)
		}
	}
	return sb.String()
}

// Truncate returns the first n bytes of s.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// TruncateRunes caps s at limit runes, appending suffix if truncated.
// Pass suffix="" for no suffix. Safe for UTF-8 (Cyrillic, CJK, emoji).
func TruncateRunes(s string, limit int, suffix string) string {
	return strutil.TruncateWith(s, limit, suffix)
}
