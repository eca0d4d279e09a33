package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"trackline/internal/services"
	"trackline/internal/tracks"
)

type sourceURLs struct {
	Audio string `validate:"required,http_url"`
	Image string `validate:"required,http_url"`
}

var sourceValidator = validator.New(validator.WithRequiredStructEnabled())

// validate rejects tracks whose source URLs are missing or not http(s)
// before any network call is made.
func (p *Pipeline) validate(_ context.Context, track *tracks.Track) error {
	err := sourceValidator.Struct(sourceURLs{
		Audio: strings.TrimSpace(track.AudioSourceURL),
		Image: strings.TrimSpace(track.ImageSourceURL),
	})
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return services.Wrap(services.ErrValidation, tracks.StageValidate, "", "", err)
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := strings.ToLower(fe.Field()) + " url"
		if fe.Tag() == "required" {
			problems = append(problems, name+" missing")
			continue
		}
		problems = append(problems, fmt.Sprintf("%s %q is not an http(s) URL", name, fe.Value()))
	}
	return services.Wrap(services.ErrValidation, tracks.StageValidate, "", strings.Join(problems, "; "), nil)
}
