package storage

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

var contentTypeExt = map[string]string{
	"audio/mpeg":      ".mp3",
	"audio/mp3":       ".mp3",
	"audio/mp4":       ".m4a",
	"audio/aac":       ".aac",
	"audio/wav":       ".wav",
	"audio/x-wav":     ".wav",
	"audio/ogg":       ".ogg",
	"audio/flac":      ".flac",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/x-m4v":     ".m4v",
	"video/webm":      ".webm",
	"video/x-msvideo": ".avi",
}

var kindDefaultExt = map[Kind]string{
	KindAudio: ".mp3",
	KindImage: ".jpg",
	KindVideo: ".mp4",
}

// extensionFor picks the file extension from the URL path, then the response
// content type, then the kind's default.
func extensionFor(kind Kind, rawURL, contentType string) string {
	if parsed, err := url.Parse(rawURL); err == nil {
		ext := strings.ToLower(path.Ext(parsed.Path))
		if validExt(ext) {
			if ext == ".jpeg" {
				return ".jpg"
			}
			return ext
		}
	}
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := contentTypeExt[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	return kindDefaultExt[kind]
}

func validExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
