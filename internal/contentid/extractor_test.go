package contentid_test

import (
	"strings"
	"testing"

	"trackline/internal/contentid"
)

func TestUUIDExtractor(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{
			name:   "audio url",
			url:    "https://cdn1.example.test/11111111-1111-1111-1111-111111111111.mp3",
			wantID: "11111111-1111-1111-1111-111111111111",
			wantOK: true,
		},
		{
			name:   "upper case normalized",
			url:    "https://cdn.example.test/AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE.jpg",
			wantID: "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			wantOK: true,
		},
		{
			name:   "last token wins",
			url:    "https://cdn.example.test/00000000-0000-0000-0000-000000000001/covers/22222222-2222-2222-2222-222222222222.png",
			wantID: "22222222-2222-2222-2222-222222222222",
			wantOK: true,
		},
		{
			name:   "query ignored",
			url:    "https://cdn.example.test/track.mp3?id=33333333-3333-3333-3333-333333333333",
			wantOK: false,
		},
		{
			name:   "no id",
			url:    "https://cdn.example.test/song.mp3",
			wantOK: false,
		},
		{
			name:   "empty",
			url:    "",
			wantOK: false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := contentid.UUIDExtractor{}.Extract(tc.url)
			if ok != tc.wantOK || id != tc.wantID {
				t.Fatalf("Extract(%q) = %q, %v; want %q, %v", tc.url, id, ok, tc.wantID, tc.wantOK)
			}
		})
	}
}

func TestRegexExtractorAndChain(t *testing.T) {
	if _, err := contentid.NewRegexExtractor(`/tracks/\d+`); err == nil {
		t.Fatal("expected error for pattern without capture group")
	}
	re, err := contentid.NewRegexExtractor(`/tracks/(\d+)/`)
	if err != nil {
		t.Fatalf("NewRegexExtractor: %v", err)
	}

	custom := contentid.Func(func(raw string) (string, bool) {
		if strings.HasSuffix(raw, "#special") {
			return "special", true
		}
		return "", false
	})
	chain := contentid.Chain{re, nil, custom, contentid.Default()}

	tests := []struct {
		url    string
		wantID string
	}{
		{"https://music.example.test/tracks/123/audio.mp3", "123"},
		{"https://music.example.test/other#special", "special"},
		{"https://cdn.example.test/44444444-4444-4444-4444-444444444444.mp3", "44444444-4444-4444-4444-444444444444"},
		{"https://cdn.example.test/unknown.mp3", ""},
	}
	for _, tc := range tests {
		id, _ := chain.Extract(tc.url)
		if id != tc.wantID {
			t.Fatalf("chain.Extract(%q) = %q, want %q", tc.url, id, tc.wantID)
		}
	}
}
