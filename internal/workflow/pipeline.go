package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"trackline/internal/events"
	"trackline/internal/logging"
	"trackline/internal/mirror"
	"trackline/internal/notifications"
	"trackline/internal/services"
	"trackline/internal/storage"
	"trackline/internal/tags"
	"trackline/internal/tracks"
)

// Synthesizer produces a video from a still image and an audio track.
type Synthesizer interface {
	Synthesize(ctx context.Context, imagePath, audioPath, outputPath string) (string, error)
}

// PipelineDeps bundles the collaborators a Pipeline drives. Publisher,
// Mirror, Notifier, and Logger are optional.
type PipelineDeps struct {
	Store     *tracks.Store
	Assets    *storage.Store
	Encoder   Synthesizer
	Publisher events.Publisher
	Mirror    mirror.Publisher
	Notifier  notifications.Service
	Logger    *slog.Logger
}

// Pipeline runs one claimed track through validation, asset resolution,
// video synthesis, and tag derivation. The record is persisted after every
// stage so observers see live progress and a crash leaves an inspectable
// state.
type Pipeline struct {
	store     *tracks.Store
	assets    *storage.Store
	encoder   Synthesizer
	publisher events.Publisher
	mirror    mirror.Publisher
	notifier  notifications.Service
	logger    *slog.Logger
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		store:     deps.Store,
		assets:    deps.Assets,
		encoder:   deps.Encoder,
		publisher: deps.Publisher,
		mirror:    deps.Mirror,
		notifier:  deps.Notifier,
		logger:    logging.NewComponentLogger(deps.Logger, "pipeline"),
	}
	if p.publisher == nil {
		p.publisher = events.Noop{}
	}
	if p.mirror == nil {
		p.mirror = mirror.Noop{}
	}
	return p
}

type pipelineStage struct {
	name     string
	progress int
	run      func(context.Context, *tracks.Track) error
}

func (p *Pipeline) stages() []pipelineStage {
	return []pipelineStage{
		{name: tracks.StageValidate, progress: tracks.ProgressStart, run: p.validate},
		{name: tracks.StageAudio, progress: tracks.ProgressAudio, run: p.fetchAudio},
		{name: tracks.StageImage, progress: tracks.ProgressImage, run: p.fetchImage},
		{name: tracks.StageVideo, progress: tracks.ProgressVideo, run: p.synthesize},
		{name: tracks.StageTags, progress: tracks.ProgressVideo, run: p.deriveTags},
	}
}

// Process drives a track already claimed as processing to completed or
// failed. A stage error marks the track failed and is returned after the
// failure is persisted. Cancellation leaves the record in processing for the
// monitor to reclaim.
func (p *Pipeline) Process(ctx context.Context, track *tracks.Track) error {
	if track == nil {
		return fmt.Errorf("process: track is nil")
	}
	if track.Status != tracks.StatusProcessing {
		return fmt.Errorf("process track %d: status is %s, want %s", track.ID, track.Status, tracks.StatusProcessing)
	}
	ctx = services.WithTrackID(ctx, track.ID)
	started := time.Now()

	for _, stage := range p.stages() {
		stageCtx := services.WithStage(ctx, stage.name)
		stageStart := time.Now()
		if err := stage.run(stageCtx, track); err != nil {
			if ctx.Err() != nil {
				logging.WithContext(stageCtx, p.logger).Debug("stage interrupted by shutdown")
				return ctx.Err()
			}
			return p.fail(stageCtx, track, stage.name, err)
		}
		track.SetProgress(stage.name, stage.progress)
		if err := p.persist(stageCtx, track); err != nil {
			return err
		}
		logging.WithContext(stageCtx, p.logger).Debug("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Int("progress", track.Progress),
			logging.Duration("stage_duration", time.Since(stageStart)),
		)
	}

	if err := track.SetCompleted(); err != nil {
		return p.fail(services.WithStage(ctx, tracks.StageCompleted), track, tracks.StageCompleted, err)
	}
	if err := p.persist(ctx, track); err != nil {
		return err
	}
	logging.WithContext(ctx, p.logger).Info("track completed",
		logging.String(logging.FieldEventType, "track_complete"),
		logging.String("title", track.DisplayTitle()),
		logging.String("video_path", track.VideoPath),
		logging.Duration("duration", time.Since(started)),
	)
	p.onCompleted(ctx, track)
	return nil
}

func (p *Pipeline) persist(ctx context.Context, track *tracks.Track) error {
	if err := p.store.Update(ctx, track); err != nil {
		return fmt.Errorf("persist track %d at %s: %w", track.ID, track.ProgressStage, err)
	}
	events.Publish(ctx, p.publisher, p.logger, events.FromTrack(events.ForStatus(track), "worker", track))
	return nil
}

func (p *Pipeline) fetchAudio(ctx context.Context, track *tracks.Track) error {
	path, err := p.resolve(ctx, storage.KindAudio, track.AudioSourceURL, track.AudioPath)
	if err != nil {
		return err
	}
	track.AudioPath = path
	return nil
}

func (p *Pipeline) fetchImage(ctx context.Context, track *tracks.Track) error {
	path, err := p.resolve(ctx, storage.KindImage, track.ImageSourceURL, track.ImagePath)
	if err != nil {
		return err
	}
	track.ImagePath = path
	return nil
}

// resolve keeps a still-valid path from an earlier attempt so redelivered
// jobs never download twice, even for assets without a content ID.
func (p *Pipeline) resolve(ctx context.Context, kind storage.Kind, rawURL, current string) (string, error) {
	if current != "" && p.assets.Exists(current) {
		return current, nil
	}
	return p.assets.ResolveOrFetch(ctx, kind, rawURL, "")
}

// synthesize names the video after the audio/image pair, so a stored video
// for the same pair is reused instead of re-encoded.
func (p *Pipeline) synthesize(ctx context.Context, track *tracks.Track) error {
	if track.VideoPath != "" && p.assets.Exists(track.VideoPath) {
		return nil
	}
	contentID := p.assets.VideoContentID(track.AudioSourceURL, track.ImageSourceURL)
	if contentID != "" {
		existing, ok, err := p.assets.Lookup(storage.KindVideo, contentID)
		if err != nil {
			return err
		}
		if ok {
			track.VideoPath = existing
			return nil
		}
	}

	output, err := p.assets.PathFor(storage.KindVideo, contentID, ".mp4")
	if err != nil {
		return err
	}
	// Encode under a dot-prefixed name so lookups and orphan scans never
	// see a half-written video.
	scratch := filepath.Join(filepath.Dir(output), ".encoding-"+filepath.Base(output))
	if _, err := p.encoder.Synthesize(ctx, track.ImagePath, track.AudioPath, scratch); err != nil {
		_ = os.Remove(scratch)
		return err
	}
	if err := os.Rename(scratch, output); err != nil {
		_ = os.Remove(scratch)
		return fmt.Errorf("finalize video: %w", err)
	}
	track.VideoPath = output
	return nil
}

func (p *Pipeline) deriveTags(_ context.Context, track *tracks.Track) error {
	track.Tags = tags.Names(tags.Normalize(track.TagString))
	return nil
}
