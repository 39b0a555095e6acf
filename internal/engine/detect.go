package engine

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Classify determines platform and canonical id of a video URL.
// Pure string matching, no IO.
func Classify(rawURL string) (VideoReference, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return VideoReference{}, &ClassificationError{Kind: KindMalformedURL, URL: rawURL, Err: errors.New("empty url")}
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		if err == nil {
			err = errors.New("missing host")
		}
		return VideoReference{}, &ClassificationError{Kind: KindMalformedURL, URL: rawURL, Err: err}
	}

	host := normalizeHost(u.Hostname())
	var (
		platform Platform
		id       string
	)
	switch {
	case host == "youtu.be" || hostIn(host, "youtube.com", "youtube-nocookie.com"):
		platform, id = PlatformYouTube, youTubeID(host, u)
	case hostIn(host, "instagram.com", "instagr.am"):
		platform, id = PlatformInstagram, instagramID(u)
	case hostIn(host, "tiktok.com"):
		platform, id = PlatformTikTok, tikTokID(host, u)
	case hostIn(host, "linkedin.com"):
		platform, id = PlatformLinkedIn, linkedInID(u)
	default:
		return VideoReference{}, &ClassificationError{Kind: KindUnsupportedPlatform, URL: rawURL}
	}

	if id == "" {
		return VideoReference{}, &ClassificationError{
			Kind: KindMalformedURL,
			URL:  rawURL,
			Err:  errors.New("no " + string(platform) + " content id in url"),
		}
	}
	return VideoReference{Platform: platform, RawURL: rawURL, CanonicalID: id}, nil
}

var (
	youTubeIDRe    = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	shortcodeRe    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	numericIDRe    = regexp.MustCompile(`^[0-9]+$`)
	linkedInURNRe  = regexp.MustCompile(`urn:li:(?:activity|ugcPost|share):([0-9]+)`)
	linkedInSlugRe = regexp.MustCompile(`-(?:activity|ugcPost|share)-([0-9]+)`)
)

// normalizeHost lowercases and strips common subdomain prefixes.
func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSuffix(h, "."))
	for _, p := range []string{"www.", "m.", "music.", "mobile."} {
		h = strings.TrimPrefix(h, p)
	}
	return h
}

// hostIn reports whether host equals or is a subdomain of any of the domains.
func hostIn(host string, domains ...string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func pathSegments(u *url.URL) []string {
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}

// youTubeID handles watch?v=, youtu.be/, /shorts/, /embed/, /live/ and /v/ shapes.
// Extra query parameters (list, t, si, feature) never affect the result.
func youTubeID(host string, u *url.URL) string {
	segs := pathSegments(u)
	var candidate string
	switch {
	case host == "youtu.be":
		if len(segs) > 0 {
			candidate = segs[0]
		}
	case u.Query().Get("v") != "":
		candidate = u.Query().Get("v")
	case len(segs) >= 2:
		switch segs[0] {
		case "shorts", "embed", "live", "v", "e":
			candidate = segs[1]
		}
	}
	if youTubeIDRe.MatchString(candidate) {
		return candidate
	}
	return ""
}

// instagramID handles /p/, /reel/, /reels/ and /tv/ shortcodes, with or without a username prefix.
func instagramID(u *url.URL) string {
	segs := pathSegments(u)
	for i := 0; i+1 < len(segs); i++ {
		switch segs[i] {
		case "p", "reel", "reels", "tv":
			if shortcodeRe.MatchString(segs[i+1]) {
				return segs[i+1]
			}
		}
	}
	return ""
}

// tikTokID handles /@user/video/<n>, /v/<n>.html, /embed/v2/<n> and vm./vt. short links.
func tikTokID(host string, u *url.URL) string {
	segs := pathSegments(u)
	if strings.HasPrefix(host, "vm.") || strings.HasPrefix(host, "vt.") {
		if len(segs) > 0 && shortcodeRe.MatchString(segs[0]) {
			return segs[0]
		}
		return ""
	}
	for i := 0; i+1 < len(segs); i++ {
		switch segs[i] {
		case "video", "v", "v2", "photo":
			id := strings.TrimSuffix(segs[i+1], ".html")
			if numericIDRe.MatchString(id) {
				return id
			}
		}
	}
	// /t/<code> share links
	if len(segs) == 2 && segs[0] == "t" && shortcodeRe.MatchString(segs[1]) {
		return segs[1]
	}
	return ""
}

// linkedInID extracts the numeric activity/ugcPost id from feed URNs or post slugs.
func linkedInID(u *url.URL) string {
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		path = u.Path
	}
	if m := linkedInURNRe.FindStringSubmatch(path); len(m) == 2 {
		return m[1]
	}
	if m := linkedInSlugRe.FindStringSubmatch(path); len(m) == 2 {
		return m[1]
	}
	return ""
}
