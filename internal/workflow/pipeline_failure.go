package workflow

import (
	"context"
	"errors"
	"strings"

	"trackline/internal/events"
	"trackline/internal/logging"
	"trackline/internal/services"
	"trackline/internal/tracks"
)

// fail records stageErr on the track, persists the failed state, and
// returns the classified error. Progress is left where the failure happened.
func (p *Pipeline) fail(ctx context.Context, track *tracks.Track, stageName string, stageErr error) error {
	classified := classifyStageFailure(stageName, stageErr)
	track.SetFailed(classified.Error())

	details := services.Details(classified)
	logger := logging.WithContext(ctx, p.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String("error_message", track.ErrorMessage),
		logging.Int("progress", track.Progress),
		logging.Int("attempts", track.Attempts),
		logging.String(logging.FieldErrorKind, string(details.Kind)),
		logging.String(logging.FieldErrorOp, details.Operation),
		logging.String(logging.FieldErrorHint, details.Hint),
	}
	if details.Cause != nil {
		attrs = append(attrs, logging.Error(details.Cause))
	}
	logger.Error("stage failed", logging.Args(attrs...)...)

	if err := p.store.Update(ctx, track); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not persist stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
		return errors.Join(classified, err)
	}
	events.Publish(ctx, p.publisher, p.logger, events.FromTrack(events.TypeFailed, "worker", track))
	p.notifyFailure(ctx, track)
	return classified
}

// classifyStageFailure tags err with its stage and a marker so the stored
// message starts with the failure class ("invalid source", "not found",
// "transient failure", ...). The monitor matches permanent failures on that
// prefix.
func classifyStageFailure(stageName string, err error) error {
	if err == nil {
		return services.Wrap(services.ErrTransient, stageName, "", "failed without error detail", nil)
	}
	var se *services.Error
	if errors.As(err, &se) && strings.TrimSpace(se.Stage) != "" {
		return err
	}
	return services.Wrap(markerFor(services.Classify(err)), stageName, "", "", err)
}

func markerFor(kind services.ErrorKind) error {
	switch kind {
	case services.KindValidation:
		return services.ErrValidation
	case services.KindNotFound:
		return services.ErrNotFound
	case services.KindConfiguration:
		return services.ErrConfiguration
	case services.KindTimeout:
		return services.ErrTimeout
	case services.KindExternalTool:
		return services.ErrExternalTool
	default:
		return services.ErrTransient
	}
}
