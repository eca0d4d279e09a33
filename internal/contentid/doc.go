// Package contentid derives upstream content IDs from remote asset URLs.
//
// The ID is the deduplication key of the content-addressed store: two URLs
// that yield the same ID resolve to the same local file. Sources whose URLs
// do not embed a UUID can register a RegexExtractor or a Func and combine
// them with the default through Chain.
package contentid
