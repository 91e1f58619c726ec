package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supaconnect/internal/queue"
	"supaconnect/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued previews and snapshot maintenance",
	Args:  cobra.NoArgs,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := loadDeps(ctx, true)
	if err != nil {
		return err
	}
	defer d.Close()

	q := queue.NewClient(d.redisOpt())
	defer q.Close()
	schedulePrune(ctx, q, d)

	w := worker.NewWorker(d.redisOpt(), d.cfg.WorkerConcurrency, worker.Deps{
		Previews:  d.previews,
		Jobs:      d.jobs,
		Sealer:    d.sealer,
		Notifier:  d.notifier,
		Snapshots: d.snapshots,
		Scheduler: q,
	})
	return w.Start(ctx)
}
