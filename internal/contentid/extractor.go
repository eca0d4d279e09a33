package contentid

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Extractor derives an upstream content ID from a remote asset URL.
type Extractor interface {
	Extract(rawURL string) (id string, ok bool)
}

// Func adapts a plain function to the Extractor interface.
type Func func(rawURL string) (string, bool)

func (f Func) Extract(rawURL string) (string, bool) { return f(rawURL) }

var uuidPattern = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// UUIDExtractor finds the last 36-character UUID token in the URL path.
// Query strings and fragments are ignored so signed CDN URLs still map to the
// same ID.
type UUIDExtractor struct{}

func (UUIDExtractor) Extract(rawURL string) (string, bool) {
	path := pathOf(rawURL)
	matches := uuidPattern.FindAllString(path, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		parsed, err := uuid.Parse(matches[i])
		if err != nil {
			continue
		}
		return parsed.String(), true
	}
	return "", false
}

// RegexExtractor returns the first capture group of Pattern matched against the URL path.
type RegexExtractor struct {
	Pattern *regexp.Regexp
}

// NewRegexExtractor compiles pattern, which must contain exactly one capture group.
func NewRegexExtractor(pattern string) (*RegexExtractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile content id pattern: %w", err)
	}
	if re.NumSubexp() != 1 {
		return nil, fmt.Errorf("content id pattern %q must have exactly one capture group", pattern)
	}
	return &RegexExtractor{Pattern: re}, nil
}

func (r *RegexExtractor) Extract(rawURL string) (string, bool) {
	if r == nil || r.Pattern == nil {
		return "", false
	}
	m := r.Pattern.FindStringSubmatch(pathOf(rawURL))
	if len(m) != 2 || strings.TrimSpace(m[1]) == "" {
		return "", false
	}
	return m[1], true
}

// Chain tries each extractor in order; the first match wins.
type Chain []Extractor

func (c Chain) Extract(rawURL string) (string, bool) {
	for _, extractor := range c {
		if extractor == nil {
			continue
		}
		if id, ok := extractor.Extract(rawURL); ok {
			return id, true
		}
	}
	return "", false
}

// Default returns the extractor used when no source-specific rule applies.
func Default() Extractor {
	return UUIDExtractor{}
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Path == "" {
		return rawURL
	}
	return parsed.Path
}
