package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trackline/internal/fetch"
	"trackline/internal/services"
	"trackline/internal/testsupport"
)

func TestFetchReturnsBodyAndContentType(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-data"))
	}))
	defer server.Close()

	f := fetch.New(time.Second, fetch.WithUserAgent("trackline/test"))
	asset, err := f.Fetch(context.Background(), server.URL+"/a.mp3")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(asset.Body) != "ID3-data" || asset.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if gotUA != "trackline/test" {
		t.Fatalf("expected user agent header, got %q", gotUA)
	}
}

func TestFetchClassifiesStatusCodes(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	f := fetch.New(time.Second)

	tests := []struct {
		name          string
		status        int
		wantNotFound  bool
		wantTransient bool
	}{
		{"not found", http.StatusNotFound, true, false},
		{"gone", http.StatusGone, true, false},
		{"server error", http.StatusBadGateway, false, true},
		{"forbidden", http.StatusForbidden, false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			url := origin.Fail("/"+strings.ReplaceAll(tc.name, " ", "-"), tc.status)
			_, err := f.Fetch(context.Background(), url)
			var dlErr *fetch.DownloadError
			if !errors.As(err, &dlErr) {
				t.Fatalf("expected DownloadError, got %T %v", err, err)
			}
			if dlErr.StatusCode != tc.status || dlErr.URL != url {
				t.Fatalf("unexpected error fields: %+v", dlErr)
			}
			if errors.Is(err, services.ErrNotFound) != tc.wantNotFound {
				t.Fatalf("ErrNotFound match = %v, want %v", !tc.wantNotFound, tc.wantNotFound)
			}
			if errors.Is(err, services.ErrTransient) != tc.wantTransient {
				t.Fatalf("ErrTransient match = %v, want %v", !tc.wantTransient, tc.wantTransient)
			}
			if tc.wantNotFound && !strings.Contains(err.Error(), "not found") {
				t.Fatalf("expected permanent signature in %q", err.Error())
			}
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	f := fetch.New(50 * time.Millisecond)
	_, err := f.Fetch(context.Background(), server.URL+"/slow")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
	if errors.Is(err, services.ErrNotFound) {
		t.Fatal("timeout must not be permanent")
	}
}

func TestFetchEnforcesMaxBytes(t *testing.T) {
	origin := testsupport.NewOrigin(t)
	url := origin.Serve("/big.jpg", []byte(strings.Repeat("x", 64)))

	_, err := fetch.New(time.Second, fetch.WithMaxBytes(16)).Fetch(context.Background(), url)
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size limit error, got %v", err)
	}
	asset, err := fetch.New(time.Second, fetch.WithMaxBytes(64)).Fetch(context.Background(), url)
	if err != nil || len(asset.Body) != 64 {
		t.Fatalf("expected body at limit to pass, got %v", err)
	}
}
