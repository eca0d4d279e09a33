package workflow

import (
	"context"
	"errors"

	"trackline/internal/logging"
	"trackline/internal/storage"
	"trackline/internal/tracks"
)

// onCompleted runs the downstream hooks for a finished track. Failures are
// logged only; the track is already durably completed.
func (p *Pipeline) onCompleted(ctx context.Context, track *tracks.Track) {
	logger := logging.WithContext(ctx, p.logger)
	if key, err := p.mirror.Publish(ctx, storage.KindVideo, track.VideoPath); err != nil {
		logging.WarnWithContext(logger, "mirror upload failed", "mirror_upload_failed",
			logging.String("video_path", track.VideoPath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check mirror endpoint and credentials"),
			logging.String(logging.FieldImpact, "video is only available locally"),
		)
	} else if key != "" {
		logger.Debug("video mirrored", logging.String("key", key))
	}

	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyTrackCompleted(ctx, track.DisplayTitle(), track.VideoPath); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not send completion notification")
		} else {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	}
}

func (p *Pipeline) notifyFailure(ctx context.Context, track *tracks.Track) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.NotifyTrackFailed(ctx, track.ID, track.DisplayTitle(), track.ErrorMessage); err != nil {
		if errors.Is(err, context.Canceled) {
			logging.WithContext(ctx, p.logger).Debug("shutting down, could not send error notification")
		} else {
			logging.WithContext(ctx, p.logger).Debug("failure notification failed", logging.Error(err))
		}
	}
}
