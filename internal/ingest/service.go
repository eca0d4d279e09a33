package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"trackline/internal/config"
	"trackline/internal/contentid"
	"trackline/internal/events"
	"trackline/internal/jobs"
	"trackline/internal/logging"
	"trackline/internal/services"
	"trackline/internal/tracks"
)

// Result describes the outcome of ingesting one item.
type Result struct {
	Track    *tracks.Track
	Created  bool
	Skipped  bool
	Enqueued bool
}

// Summary aggregates an IngestAll run.
type Summary struct {
	Seen     int
	Created  int
	Skipped  int
	Failed   int
	Enqueued int
	Errors   []error
}

// Service turns raw items into pending track records.
type Service struct {
	store     *tracks.Store
	queue     jobs.Queue
	publisher events.Publisher
	extractor contentid.Extractor
	logger    *slog.Logger
	batchSize int
	pause     time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithExtractor sets the rule that derives an upstream ID from the audio URL
// when an item carries none. It should match the asset store's extractor.
func WithExtractor(extractor contentid.Extractor) Option {
	return func(s *Service) {
		if extractor != nil {
			s.extractor = extractor
		}
	}
}

// NewService wires the ingestion service. queue and publisher may be nil.
func NewService(cfg *config.Config, store *tracks.Store, queue jobs.Queue, publisher events.Publisher, logger *slog.Logger, opts ...Option) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	batch := cfg.Ingest.BatchSize
	if batch <= 0 {
		batch = 1
	}
	s := &Service{
		store:     store,
		queue:     queue,
		publisher: publisher,
		extractor: contentid.Default(),
		logger:    logging.NewComponentLogger(logger, "ingest"),
		batchSize: batch,
		pause:     cfg.BatchPause(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest creates a pending record for item, or reports a skip when its
// upstream ID is already known. Items without an explicit upstream ID are
// keyed by the content ID embedded in their audio URL. enqueue schedules new
// records for processing; an enqueue failure is logged and left to the
// monitor's backlog check.
func (s *Service) Ingest(ctx context.Context, item Item, enqueue bool) (Result, error) {
	item = item.normalized()
	if err := item.validate(); err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "ingest", "validate item", item.Title, err)
	}
	if item.UpstreamID == "" && item.AudioURL != "" {
		if id, ok := s.extractor.Extract(item.AudioURL); ok {
			item.UpstreamID = id
		}
	}

	if item.UpstreamID != "" {
		existing, err := s.store.FindByUpstreamID(ctx, item.UpstreamID)
		if err != nil {
			return Result{}, fmt.Errorf("lookup upstream %s: %w", item.UpstreamID, err)
		}
		if existing != nil {
			s.logger.Debug("item already ingested",
				logging.String("upstream_id", item.UpstreamID),
				logging.TrackID(existing.ID),
			)
			return Result{Track: existing, Skipped: true}, nil
		}
	}

	created, err := s.store.Create(ctx, &tracks.Track{
		UpstreamID:     item.UpstreamID,
		Title:          item.Title,
		AudioSourceURL: item.AudioURL,
		ImageSourceURL: item.ImageURL,
		TagString:      item.TagString,
	})
	if errors.Is(err, tracks.ErrDuplicateUpstream) {
		existing, lookupErr := s.store.FindByUpstreamID(ctx, item.UpstreamID)
		if lookupErr != nil {
			return Result{}, fmt.Errorf("lookup upstream %s: %w", item.UpstreamID, lookupErr)
		}
		return Result{Track: existing, Skipped: true}, nil
	}
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("track ingested",
		logging.TrackID(created.ID),
		logging.String("title", created.DisplayTitle()),
		logging.String("upstream_id", created.UpstreamID),
	)
	events.Publish(ctx, s.publisher, s.logger, events.FromTrack(events.TypeIngested, "ingest", created))

	result := Result{Track: created, Created: true}
	if enqueue && s.queue != nil {
		if err := s.queue.Enqueue(ctx, created.ID); err != nil {
			logging.WarnWithContext(s.logger, "enqueue failed", "ingest_enqueue_failed",
				logging.TrackID(created.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "track stays pending until the backlog check re-enqueues it"),
			)
		} else {
			result.Enqueued = true
		}
	}
	return result, nil
}

// IngestAll drains source in batches, pausing between batches. A failing
// item is counted and recorded; only source and context errors end the run.
func (s *Service) IngestAll(ctx context.Context, source Source, enqueue bool) (Summary, error) {
	var summary Summary
	first := true
	for {
		batch, err := source.Next(ctx, s.batchSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, err
		}
		if !first && s.pause > 0 {
			if err := sleep(ctx, s.pause); err != nil {
				return summary, err
			}
		}
		first = false

		for _, item := range batch {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			summary.Seen++
			result, err := s.Ingest(ctx, item, enqueue)
			switch {
			case err != nil:
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Errorf("item %d (%s): %w", summary.Seen, item.Title, err))
				logging.WarnWithContext(s.logger, "item rejected", "ingest_item_rejected",
					logging.Int("index", summary.Seen),
					logging.Error(err),
				)
			case result.Skipped:
				summary.Skipped++
			default:
				summary.Created++
				if result.Enqueued {
					summary.Enqueued++
				}
			}
		}
	}

	s.logger.Info("ingestion finished",
		logging.Int("seen", summary.Seen),
		logging.Int("created", summary.Created),
		logging.Int("skipped", summary.Skipped),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
