package insights

import (
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

// ErrNoExcerpts means nothing resembling a {title, content} list was found.
var ErrNoExcerpts = errors.New("no excerpts found in completion")

var (
	titleKeys   = []string{"title", "heading", "name", "headline"}
	contentKeys = []string{"content", "text", "body", "excerpt", "insight"}

	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// Parse extracts excerpts from a completion. The strict shape is
// {"insights":[{"title":..,"content":..}]}; deviations are repaired where
// possible and reported in fixes. Elements missing a title or content are dropped.
func Parse(raw string) (excerpts []engine.Excerpt, fixes []string, err error) {
	s := engine.StripFences(raw)
	if s != strings.TrimSpace(raw) {
		fixes = append(fixes, "stripped markdown fence")
	}

	candidates := []string{s}
	if v := firstJSONValue(s); v != "" && v != s {
		candidates = append(candidates, v)
	}
	for i, c := range candidates {
		for j, text := range []string{c, repairJSON(c)} {
			if j == 1 && text == c {
				continue
			}
			items, shapeFix, ok := decodeItems(text)
			if !ok {
				continue
			}
			if i > 0 {
				fixes = append(fixes, "extracted JSON from surrounding prose")
			}
			if j > 0 {
				fixes = append(fixes, "repaired invalid JSON")
			}
			if shapeFix != "" {
				fixes = append(fixes, shapeFix)
			}
			return collect(items, fixes)
		}
	}

	if items := headingPairs(s); len(items) > 0 {
		fixes = append(fixes, "parsed heading/paragraph layout")
		return collect(items, fixes)
	}
	return nil, fixes, ErrNoExcerpts
}

func collect(items []map[string]any, fixes []string) ([]engine.Excerpt, []string, error) {
	out := make([]engine.Excerpt, 0, len(items))
	dropped := 0
	for _, it := range items {
		title := strings.TrimSpace(pick(it, titleKeys))
		content := strings.TrimSpace(pick(it, contentKeys))
		if title == "" || content == "" {
			dropped++
			continue
		}
		out = append(out, engine.Excerpt{Title: title, Content: content})
	}
	if dropped > 0 {
		fixes = append(fixes, "dropped incomplete elements")
	}
	if len(out) == 0 {
		return nil, fixes, ErrNoExcerpts
	}
	return out, fixes, nil
}

func pick(m map[string]any, keys []string) string {
	for _, k := range keys {
		for mk, v := range m {
			if !strings.EqualFold(mk, k) {
				continue
			}
			switch val := v.(type) {
			case string:
				return val
			case []any:
				parts := make([]string, 0, len(val))
				for _, p := range val {
					if s, ok := p.(string); ok {
						parts = append(parts, s)
					}
				}
				return strings.Join(parts, "\n\n")
			}
		}
	}
	return ""
}

// decodeItems accepts the canonical object, an object with a different
// array-valued key, or a bare array.
func decodeItems(s string) (items []map[string]any, fix string, ok bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		if raw, found := obj["insights"]; found {
			if err := json.Unmarshal(raw, &items); err == nil {
				return items, "", true
			}
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := json.Unmarshal(obj[k], &items); err == nil && len(items) > 0 {
				return items, "used array under key " + k, true
			}
		}
		var single map[string]any
		if err := json.Unmarshal([]byte(s), &single); err == nil && pick(single, titleKeys) != "" {
			return []map[string]any{single}, "wrapped single object", true
		}
		return nil, "", false
	}
	if err := json.Unmarshal([]byte(s), &items); err == nil {
		return items, "top-level array", true
	}
	return nil, "", false
}

// firstJSONValue returns the first balanced {...} or [...] in s.
func firstJSONValue(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	depth := 0
	inStr, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
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
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// repairJSON escapes raw control characters inside strings and drops trailing commas.
func repairJSON(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inStr, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			case c == '\n':
				sb.WriteString(`\n`)
				continue
			case c == '\r':
				continue
			case c == '\t':
				sb.WriteString(`\t`)
				continue
			}
		} else if c == '"' {
			inStr = true
		}
		sb.WriteByte(c)
	}
	return trailingCommaRe.ReplaceAllString(sb.String(), "$1")
}

var (
	headingRe     = regexp.MustCompile(`^\s*(?:#{1,6}\s+|\d+[.)]\s+)?(?:\*\*|__)?(?:(?i:title|insight(?:\s*\d+)?)\s*:\s*)?(.+?)(?:\*\*|__)?:?\s*$`)
	contentPrefix = regexp.MustCompile(`^(?i:content|excerpt|text)\s*:\s*`)
)

// headingPairs reads "## Title\nparagraph..." or "**Title**\nparagraph..." layouts.
func headingPairs(s string) []map[string]any {
	var (
		items   []map[string]any
		title   string
		content []string
	)
	flush := func() {
		if title != "" && len(content) > 0 {
			items = append(items, map[string]any{"title": title, "content": strings.Join(content, "\n")})
		}
		title, content = "", nil
	}
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isHeading(trimmed) {
			flush()
			m := headingRe.FindStringSubmatch(trimmed)
			title = strings.Trim(strings.TrimSpace(m[1]), `"*_`)
			continue
		}
		if title != "" {
			content = append(content, contentPrefix.ReplaceAllString(trimmed, ""))
		}
	}
	flush()
	return items
}

func isHeading(line string) bool {
	switch {
	case strings.HasPrefix(line, "#"):
		return true
	case strings.HasPrefix(line, "**") && strings.HasSuffix(strings.TrimSuffix(line, ":"), "**"):
		return true
	}
	low := strings.ToLower(line)
	return strings.HasPrefix(low, "title:")
}
