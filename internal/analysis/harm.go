package analysis

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// DefaultHarmMarkers are the description terms that disqualify a generated image
var DefaultHarmMarkers = []string{
	"nsfw",
	"nude",
	"nudity",
	"naked",
	"explicit",
	"sexual",
	"pornographic",
	"violence",
	"violent",
	"blood",
	"gore",
	"weapon",
	"harmful",
	"self-harm",
	"disturbing",
	"unsafe",
}

// HarmScanner finds harm markers in free-text descriptions in a single pass
type HarmScanner struct {
	markers []string
	matcher *ahocorasick.Matcher
}

// NewHarmScanner builds a scanner over markers (DefaultHarmMarkers if empty)
func NewHarmScanner(markers []string) *HarmScanner {
	if len(markers) == 0 {
		markers = DefaultHarmMarkers
	}

	normalized := make([]string, 0, len(markers))
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" {
			normalized = append(normalized, m)
		}
	}

	return &HarmScanner{
		markers: normalized,
		matcher: ahocorasick.NewStringMatcher(normalized),
	}
}

// Scan returns the distinct markers present in text
func (s *HarmScanner) Scan(text string) []string {
	if len(s.markers) == 0 || text == "" {
		return nil
	}

	hits := s.matcher.MatchThreadSafe([]byte(strings.ToLower(text)))
	found := make([]string, 0, len(hits))
	for _, idx := range hits {
		if idx < len(s.markers) {
			found = append(found, s.markers[idx])
		}
	}
	return found
}

// Harmful reports whether any marker appears in text
func (s *HarmScanner) Harmful(text string) bool {
	return len(s.Scan(text)) > 0
}
