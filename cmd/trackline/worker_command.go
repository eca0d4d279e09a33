package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trackline/internal/daemonrun"
	"trackline/internal/workflow"
)

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	var workers int
	var drain bool
	var trackID int64

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued tracks in the foreground",
		Long: "Worker runs the processing pipeline without the daemon's monitor or API.\n" +
			"By default it runs until interrupted; --drain exits once the queue is empty,\n" +
			"and --track processes a single pending track by ID.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []workflow.ManagerOption
			if workers > 0 {
				opts = append(opts, workflow.WithWorkers(workers))
			}
			return ctx.withRuntime(cmd, func(rt *daemonrun.Runtime) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				var err error
				switch {
				case trackID > 0:
					err = rt.Workflow.ProcessTrack(runCtx, trackID)
				case drain:
					err = drainQueue(runCtx, rt.Workflow)
				default:
					if err = rt.Workflow.Start(runCtx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Processing with %d worker(s); press Ctrl+C to stop\n", rt.Workflow.Status(runCtx).Workers)
					<-runCtx.Done()
					rt.Workflow.Stop()
				}

				status := rt.Workflow.Status(context.WithoutCancel(runCtx))
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %d track(s), %d failed\n", status.Processed, status.Failed)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}, opts...)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Number of concurrent workers (defaults to workflow.workers)")
	cmd.Flags().BoolVar(&drain, "drain", false, "Exit once the queue is empty")
	cmd.Flags().Int64Var(&trackID, "track", 0, "Process only this pending track")
	return cmd
}

// drainQueue processes jobs one at a time until a dequeue wait elapses with
// nothing to do. Per-track failures are recorded on the track and do not stop
// the drain.
func drainQueue(ctx context.Context, mgr *workflow.Manager) error {
	for {
		handled, err := mgr.ProcessNext(ctx)
		if !handled {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
