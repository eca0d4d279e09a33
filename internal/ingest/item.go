package ingest

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Item is the source-agnostic description of one track to ingest.
//
// Source URLs are not required here: a record with a missing or malformed
// URL is still created and is failed by the worker's validation stage, so the
// problem is visible on the record itself.
type Item struct {
	Title      string `json:"title" yaml:"title" validate:"max=500"`
	AudioURL   string `json:"audio_url" yaml:"audio_url" validate:"max=2048"`
	ImageURL   string `json:"image_url" yaml:"image_url" validate:"max=2048"`
	TagString  string `json:"tag_string" yaml:"tag_string" validate:"max=1000"`
	UpstreamID string `json:"upstream_id,omitempty" yaml:"upstream_id,omitempty" validate:"omitempty,max=128,printascii"`
}

var itemValidator = validator.New(validator.WithRequiredStructEnabled())

func (i Item) normalized() Item {
	return Item{
		Title:      strings.TrimSpace(i.Title),
		AudioURL:   strings.TrimSpace(i.AudioURL),
		ImageURL:   strings.TrimSpace(i.ImageURL),
		TagString:  strings.TrimSpace(i.TagString),
		UpstreamID: strings.TrimSpace(i.UpstreamID),
	}
}

func (i Item) validate() error {
	return itemValidator.Struct(i)
}
