package sources

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/asticode/go-astisub"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// Captions is the raw output of one strategy before normalization.
type Captions struct {
	Segments []string
	Language string
	Kind     engine.TrackKind
}

// --- json3 (YouTube) ---

type json3Payload struct {
	Events []struct {
		TStartMs int `json:"tStartMs"`
		Segs     []struct {
			UTF8 string `json:"utf8"`
		} `json:"segs"`
	} `json:"events"`
}

func parseJSON3(data []byte) ([]string, error) {
	var p json3Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse json3: %w", err)
	}
	segments := make([]string, 0, len(p.Events))
	for _, ev := range p.Events {
		var sb strings.Builder
		for _, s := range ev.Segs {
			sb.WriteString(s.UTF8)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			segments = append(segments, text)
		}
	}
	return segments, nil
}

// --- WebVTT / SRT / TTML ---

func parseSubtitles(ext string, data []byte) ([]string, error) {
	var (
		subs *astisub.Subtitles
		err  error
	)
	r := bytes.NewReader(data)
	switch ext {
	case "vtt":
		subs, err = astisub.ReadFromWebVTT(r)
	case "srt":
		subs, err = astisub.ReadFromSRT(r)
	case "ttml":
		subs, err = astisub.ReadFromTTML(r)
	default:
		return nil, fmt.Errorf("unsupported subtitle format %q", ext)
	}
	if err != nil {
		if ext == "ttml" {
			return nil, fmt.Errorf("parse %s: %w", ext, err)
		}
		// Auto-generated tracks often trip strict cue parsing; fall back to a line scan.
		return scanCueText(data), nil
	}
	var lines []string
	for _, item := range subs.Items {
		for _, line := range item.Lines {
			lines = append(lines, line.String())
		}
	}
	return dedupeRolling(lines), nil
}

var (
	cueTimingRe = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?[.,]\d{3}\s*-->`)
	cueIDRe     = regexp.MustCompile(`^\d+$`)
	cueMetaRe   = regexp.MustCompile(`^(WEBVTT|Kind:|Language:|NOTE|STYLE|REGION)`)
)

// scanCueText extracts text lines from VTT or SRT without validating cue structure.
func scanCueText(data []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || cueMetaRe.MatchString(line) || cueTimingRe.MatchString(line) || cueIDRe.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return dedupeRolling(lines)
}

// dedupeRolling drops lines that repeat the previous one, as rolling
// auto-captions carry each line into the next cue.
func dedupeRolling(lines []string) []string {
	out := make([]string, 0, len(lines))
	prev := ""
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" || l == prev {
			continue
		}
		out = append(out, l)
		prev = l
	}
	return out
}

// parseCaptionPayload decodes a downloaded caption file by its extension,
// sniffing the content when the extension is unknown.
func parseCaptionPayload(ext string, data []byte) ([]string, error) {
	switch ext {
	case "json3":
		return parseJSON3(data)
	case "srv1", "srv2", "srv3", "xml":
		return parseTimedTextXML(data)
	case "vtt", "srt", "ttml":
		return parseSubtitles(ext, data)
	}
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.HasPrefix(trimmed, []byte("WEBVTT")):
		return parseSubtitles("vtt", data)
	case bytes.HasPrefix(trimmed, []byte("{")):
		return parseJSON3(data)
	case bytes.HasPrefix(trimmed, []byte("<")):
		if bytes.Contains(trimmed[:min(len(trimmed), 512)], []byte("<tt")) {
			return parseSubtitles("ttml", data)
		}
		return parseTimedTextXML(data)
	default:
		return scanCueText(data), nil
	}
}
