package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"trackline/internal/config"
	"trackline/internal/contentid"
	"trackline/internal/encoder"
	"trackline/internal/events"
	"trackline/internal/fetch"
	"trackline/internal/ingest"
	"trackline/internal/jobs"
	"trackline/internal/mirror"
	"trackline/internal/monitor"
	"trackline/internal/notifications"
	"trackline/internal/storage"
	"trackline/internal/tracks"
	"trackline/internal/workflow"
)

// Runtime holds the fully wired service graph shared by the daemon and the
// one-shot CLI commands.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     *tracks.Store
	Queue     jobs.Queue
	Assets    *storage.Store
	Publisher events.Publisher
	Mirror    mirror.Publisher
	Notifier  notifications.Service
	Pipeline  *workflow.Pipeline
	Workflow  *workflow.Manager
	Monitor   *monitor.Monitor
	Ingest    *ingest.Service
}

// Build opens the stores and constructs every service from cfg. Close must
// be called on the returned runtime.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...workflow.ManagerOption) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close()
			rt = nil
		}
	}()

	if rt.Store, err = tracks.Open(cfg); err != nil {
		return nil, fmt.Errorf("open track store: %w", err)
	}
	if rt.Queue, err = jobs.Open(ctx, cfg); err != nil {
		return nil, fmt.Errorf("open work queue: %w", err)
	}
	if rt.Assets, err = storage.New(cfg, fetch.NewFromConfig(cfg), storage.WithLogger(logger)); err != nil {
		return nil, err
	}
	if rt.Publisher, err = events.NewFromConfig(cfg, logger); err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	if rt.Mirror, err = mirror.NewFromConfig(cfg, logger); err != nil {
		return nil, fmt.Errorf("mirror: %w", err)
	}
	rt.Notifier = notifications.NewService(cfg)

	rt.Pipeline = workflow.NewPipeline(workflow.PipelineDeps{
		Store:     rt.Store,
		Assets:    rt.Assets,
		Encoder:   encoder.NewFromConfig(cfg, logger),
		Publisher: rt.Publisher,
		Mirror:    rt.Mirror,
		Notifier:  rt.Notifier,
		Logger:    logger,
	})
	rt.Workflow = workflow.NewManager(cfg, rt.Store, rt.Queue, rt.Pipeline, logger, opts...)
	rt.Monitor = monitor.New(cfg, rt.Store, rt.Assets, rt.Queue,
		monitor.WithPublisher(rt.Publisher),
		monitor.WithNotifier(rt.Notifier),
		monitor.WithLogger(logger),
	)
	rt.Ingest = ingest.NewService(cfg, rt.Store, rt.Queue, rt.Publisher, logger,
		ingest.WithExtractor(contentid.Func(rt.Assets.ContentID)),
	)
	return rt, nil
}

// Close releases the queue, the event publisher, and the track store.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	if rt.Publisher != nil {
		errs = append(errs, rt.Publisher.Close())
	}
	if rt.Queue != nil {
		errs = append(errs, rt.Queue.Close())
	}
	if rt.Store != nil {
		errs = append(errs, rt.Store.Close())
	}
	return errors.Join(errs...)
}
