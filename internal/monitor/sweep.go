package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"trackline/internal/events"
	"trackline/internal/logging"
	"trackline/internal/storage"
	"trackline/internal/tracks"
)

const (
	actionReset        = "reset to pending"
	actionWouldReset   = "would reset to pending"
	actionChanged      = "skipped (changed concurrently)"
	actionPermanent    = "left alone (permanent failure)"
	actionExhausted    = "left alone (retry cap reached)"
	actionDeleted      = "deleted"
	actionWouldDelete  = "would delete"
	actionCapReached   = "kept (delete cap reached)"
	actionEnqueued     = "enqueued"
	actionWouldEnqueue = "would enqueue"
	actionError        = "error"
)

// Sweep runs the enabled checks once. A failure on one record is counted
// and logged but never stops the sweep; the returned error joins the
// failures of checks that could not run at all.
func (m *Monitor) Sweep(ctx context.Context, opts Options) (*Report, error) {
	started := m.now()
	report := newReport(started, opts)
	logger := m.logger.With(logging.Bool("dry_run", opts.DryRun))

	checks := []struct {
		category Category
		run      func(context.Context, *Report, bool) error
	}{
		{CategoryStuck, m.checkStuck},
		{CategoryFailed, m.checkFailed},
		{CategoryMissing, m.checkMissing},
		{CategoryOrphans, m.checkOrphans},
		{CategoryBacklog, m.checkBacklog},
	}
	var errs []error
	for _, check := range checks {
		if !opts.enabled(check.category) {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := check.run(ctx, report, opts.DryRun); err != nil {
			report.category(check.category).Errors++
			errs = append(errs, fmt.Errorf("%s check: %w", check.category, err))
			logging.WarnWithContext(logger, "sweep check failed", "sweep_check_failed",
				logging.String("check", string(check.category)),
				logging.Error(err),
			)
		}
	}
	report.Duration = m.now().Sub(started)

	total := report.Totals()
	logger.Info("sweep finished",
		logging.String(logging.FieldEventType, "sweep_complete"),
		logging.Int("found", total.Found),
		logging.Int("fixed", total.Fixed),
		logging.Int("skipped", total.Skipped),
		logging.Int("errors", total.Errors),
		logging.Duration("duration", report.Duration),
	)
	if m.notifier != nil && !opts.DryRun {
		if err := m.notifier.NotifySweep(ctx, report.Summary()); err != nil {
			logger.Warn("sweep notification failed", logging.Error(err))
		}
	}
	return report, errors.Join(errs...)
}

func (m *Monitor) checkStuck(ctx context.Context, report *Report, dryRun bool) error {
	cutoff := m.now().Add(-m.thresholds.StuckAfter)
	stale, err := m.store.ListStale(ctx, tracks.StatusProcessing, cutoff)
	if err != nil {
		return err
	}
	for _, track := range stale {
		detail := fmt.Sprintf("no update since %s at %d%% (%s)",
			track.UpdatedAt.UTC().Format(time.RFC3339), track.Progress, track.ProgressStage)
		m.reset(ctx, report, CategoryStuck, track, false, dryRun, detail)
	}
	return nil
}

func (m *Monitor) checkFailed(ctx context.Context, report *Report, dryRun bool) error {
	cutoff := m.now().Add(-m.thresholds.FailedRetryAfter)
	failed, err := m.store.ListStale(ctx, tracks.StatusFailed, cutoff)
	if err != nil {
		return err
	}
	entry := report.category(CategoryFailed)
	for _, track := range failed {
		if tracks.MatchesAny(track.ErrorMessage, m.thresholds.PermanentPatterns) {
			entry.Skipped++
			report.add(Issue{Category: CategoryFailed, TrackID: track.ID, Action: actionPermanent, Detail: track.ErrorMessage})
			continue
		}
		if m.thresholds.MaxAttempts > 0 && track.Attempts >= m.thresholds.MaxAttempts {
			entry.Skipped++
			report.add(Issue{
				Category: CategoryFailed,
				TrackID:  track.ID,
				Action:   actionExhausted,
				Detail:   fmt.Sprintf("%d attempts: %s", track.Attempts, track.ErrorMessage),
			})
			continue
		}
		m.reset(ctx, report, CategoryFailed, track, false, dryRun, track.ErrorMessage)
	}
	return nil
}

func (m *Monitor) checkMissing(ctx context.Context, report *Report, dryRun bool) error {
	completed, err := m.store.List(ctx, tracks.StatusCompleted)
	if err != nil {
		return err
	}
	for _, track := range completed {
		var missing []string
		for _, path := range []string{track.AudioPath, track.ImagePath, track.VideoPath} {
			if path == "" || !m.assets.Exists(path) {
				missing = append(missing, path)
			}
		}
		if len(missing) == 0 {
			continue
		}
		m.reset(ctx, report, CategoryMissing, track, true, dryRun, fmt.Sprintf("missing %q", missing))
	}
	return nil
}

// reset returns one track to pending under the optimistic guard and
// enqueues it.
func (m *Monitor) reset(ctx context.Context, report *Report, category Category, track *tracks.Track, clearPaths, dryRun bool, detail string) {
	entry := report.category(category)
	entry.Found++
	if dryRun {
		report.add(Issue{Category: category, TrackID: track.ID, Action: actionWouldReset, Detail: detail})
		return
	}
	logger := m.logger.With(logging.TrackID(track.ID), logging.String("check", string(category)))

	ok, err := m.store.ResetToPending(ctx, track.ID, track.Status, track.UpdatedAt, clearPaths)
	if err != nil {
		entry.Errors++
		report.add(Issue{Category: category, TrackID: track.ID, Action: actionError, Detail: err.Error()})
		logger.Error("reset failed", logging.Error(err))
		return
	}
	if !ok {
		entry.Skipped++
		report.add(Issue{Category: category, TrackID: track.ID, Action: actionChanged, Detail: detail})
		logger.Debug("track changed since it was read; reset skipped")
		return
	}

	previous := track.Status
	track.ResetToPending(clearPaths)
	if err := m.queue.Enqueue(ctx, track.ID); err != nil {
		// The record is pending; the backlog check re-enqueues it.
		entry.Errors++
		report.add(Issue{Category: category, TrackID: track.ID, Action: actionError, Detail: "enqueue: " + err.Error()})
		logging.WarnWithContext(logger, "reset track could not be enqueued", "monitor_enqueue_failed", logging.Error(err))
		return
	}
	entry.Fixed++
	report.add(Issue{Category: category, TrackID: track.ID, Action: actionReset, Detail: detail})
	logger.Info("track reset to pending",
		logging.String(logging.FieldEventType, "track_reset"),
		logging.String("previous_status", string(previous)),
		logging.Bool("paths_cleared", clearPaths),
		logging.String("detail", detail),
	)
	events.Publish(ctx, m.publisher, m.logger, events.FromTrack(events.TypeReset, "monitor", track))
}

func (m *Monitor) checkOrphans(ctx context.Context, report *Report, dryRun bool) error {
	referenced, err := m.store.ReferencedPaths(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(referenced))
	for path := range referenced {
		known[cleanPath(path)] = struct{}{}
	}

	wanted, err := m.wantedContentIDs(ctx)
	if err != nil {
		return err
	}

	entry := report.category(CategoryOrphans)
	graceCutoff := m.now().Add(-m.thresholds.OrphanGrace)
	deleted := 0
	for _, kind := range storage.Kinds() {
		files, err := m.assets.ListManaged(kind)
		if err != nil {
			entry.Errors++
			report.add(Issue{Category: CategoryOrphans, Path: m.assets.Dir(kind), Action: actionError, Detail: err.Error()})
			continue
		}
		for _, file := range files {
			if _, ok := known[cleanPath(file.Path)]; ok {
				continue
			}
			if file.ModTime.After(graceCutoff) {
				continue
			}
			if id, ok := m.assets.ContentIDOf(kind, file.Path); ok && wanted[kind][id] {
				continue
			}
			entry.Found++
			detail := fmt.Sprintf("%s, %d bytes, modified %s", kind, file.Size, file.ModTime.UTC().Format(time.RFC3339))
			switch {
			case dryRun:
				report.add(Issue{Category: CategoryOrphans, Path: file.Path, Action: actionWouldDelete, Detail: detail})
			case m.thresholds.OrphanDeleteCap > 0 && deleted >= m.thresholds.OrphanDeleteCap:
				entry.Skipped++
				report.add(Issue{Category: CategoryOrphans, Path: file.Path, Action: actionCapReached, Detail: detail})
			default:
				if err := m.assets.Remove(file.Path); err != nil {
					entry.Errors++
					report.add(Issue{Category: CategoryOrphans, Path: file.Path, Action: actionError, Detail: err.Error()})
					continue
				}
				deleted++
				entry.Fixed++
				report.add(Issue{Category: CategoryOrphans, Path: file.Path, Action: actionDeleted, Detail: detail})
				m.logger.Info("orphaned file deleted",
					logging.String(logging.FieldEventType, "orphan_deleted"),
					logging.String("path", file.Path),
					logging.Int64("size_bytes", file.Size),
				)
			}
		}
	}
	return nil
}

// wantedContentIDs collects, per kind, the content IDs that pending or
// processing tracks will resolve. Their files are reused by the next run even
// while no record references them, for example right after a missing-file
// reset cleared the paths.
func (m *Monitor) wantedContentIDs(ctx context.Context) (map[storage.Kind]map[string]bool, error) {
	active, err := m.store.List(ctx, tracks.StatusPending, tracks.StatusProcessing)
	if err != nil {
		return nil, err
	}
	wanted := make(map[storage.Kind]map[string]bool, len(storage.Kinds()))
	for _, kind := range storage.Kinds() {
		wanted[kind] = make(map[string]bool)
	}
	for _, track := range active {
		if id, ok := m.assets.ContentID(track.AudioSourceURL); ok {
			wanted[storage.KindAudio][id] = true
		}
		if id, ok := m.assets.ContentID(track.ImageSourceURL); ok {
			wanted[storage.KindImage][id] = true
		}
		if id := m.assets.VideoContentID(track.AudioSourceURL, track.ImageSourceURL); id != "" {
			wanted[storage.KindVideo][id] = true
		}
	}
	return wanted, nil
}

func cleanPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// checkBacklog re-enqueues pending tracks the queue has lost. When the queue
// holds fewer jobs than there are pending tracks, every pending track idle for
// longer than BacklogAfter is enqueued again; Enqueue ignores tracks that are
// already queued. With an empty queue and no live worker nothing will pick the
// work up, so every pending track is enqueued regardless of age.
func (m *Monitor) checkBacklog(ctx context.Context, report *Report, dryRun bool) error {
	pending, err := m.store.List(ctx, tracks.StatusPending)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	depth, err := m.queue.Depth(ctx)
	if err != nil {
		return fmt.Errorf("queue depth: %w", err)
	}
	live, err := m.queue.Workers(ctx)
	if err != nil {
		return fmt.Errorf("worker presence: %w", err)
	}
	if depth >= len(pending) {
		m.logger.Debug("backlog healthy",
			logging.Int("pending", len(pending)),
			logging.Int("queue_depth", depth),
			logging.Int("live_workers", live),
		)
		return nil
	}

	idle := depth == 0 && live == 0
	cutoff := m.now().Add(-m.thresholds.BacklogAfter)
	entry := report.category(CategoryBacklog)
	for _, track := range pending {
		if !idle && track.UpdatedAt.After(cutoff) {
			continue
		}
		entry.Found++
		if dryRun {
			report.add(Issue{Category: CategoryBacklog, TrackID: track.ID, Action: actionWouldEnqueue})
			continue
		}
		if err := m.queue.Enqueue(ctx, track.ID); err != nil {
			entry.Errors++
			report.add(Issue{Category: CategoryBacklog, TrackID: track.ID, Action: actionError, Detail: err.Error()})
			continue
		}
		entry.Fixed++
		report.add(Issue{Category: CategoryBacklog, TrackID: track.ID, Action: actionEnqueued})
	}
	if entry.Found > 0 {
		logging.WarnWithContext(m.logger, "pending tracks missing from the queue", "backlog_requeued",
			logging.Int("pending", len(pending)),
			logging.Int("queue_depth", depth),
			logging.Int("live_workers", live),
			logging.Int("enqueued", entry.Fixed),
		)
	}
	return nil
}
