package tags

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tag is one normalized entry from a free-form tag string.
type Tag struct {
	// Name is the trimmed, title-cased display form.
	Name string
	// Slug identifies the tag for comparison: ASCII-folded, lower-case,
	// with runs of other characters collapsed to a single hyphen.
	Slug string
}

// Normalize splits a comma-separated tag string and returns the tags in
// input order, deduplicated by slug with the first occurrence kept.
func Normalize(tagString string) []Tag {
	caser := cases.Title(language.Und)
	seen := make(map[string]struct{})
	var out []Tag
	for _, raw := range strings.Split(tagString, ",") {
		name := strings.Join(strings.Fields(raw), " ")
		if name == "" {
			continue
		}
		name = caser.String(name)
		slug := Slugify(name)
		if slug == "" {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		out = append(out, Tag{Name: name, Slug: slug})
	}
	return out
}

// Names returns the display names of tags.
func Names(tags []Tag) []string {
	names := make([]string, 0, len(tags))
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

// Slugify reduces value to its comparison identity.
func Slugify(value string) string {
	stripper := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripper, value)
	if err != nil {
		folded = value
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	pendingDash := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
