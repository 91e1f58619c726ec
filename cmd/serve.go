package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supaconnect/internal/auth"
	"supaconnect/internal/handlers"
	"supaconnect/internal/queue"
	"supaconnect/internal/server"
	"supaconnect/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := loadDeps(ctx, false)
	if err != nil {
		return err
	}
	defer d.Close()
	cfg := d.cfg

	h := &handlers.Handlers{
		Sessions: session.NewManager(d.sessionStore(), d.sealer, session.ManagerOptions{
			Secret:       []byte(cfg.Session.Secret),
			TTL:          cfg.Session.TTL,
			CookieSecure: cfg.Session.CookieSecure,
		}),
		OAuth: auth.NewProvider(auth.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			AuthorizeURL: cfg.AuthorizeURL,
			TokenURL:     cfg.TokenURL,
		}),
		Projects: d.mgmt,
		Previews: d.previews,
		Sealer:   d.sealer,
		Notifier: d.notifier,
	}

	if d.db != nil {
		q := queue.NewClient(d.redisOpt())
		defer q.Close()

		h.Jobs = d.jobs
		h.Queue = q
		h.Snapshots = d.snapshots
		schedulePrune(ctx, q, d)
	}

	return server.NewServer(cfg.ListenAddr, h, cfg.RateLimitPerMinute).Start(ctx)
}

// schedulePrune makes sure a snapshot cleanup is queued. The worker
// reschedules it after every run.
func schedulePrune(ctx context.Context, q *queue.Client, d *deps) {
	err := q.ScheduleSnapshotPrune(ctx, queue.SnapshotPrunePayload{
		Retention: d.cfg.SnapshotRetention,
		Interval:  d.cfg.PruneInterval,
	})
	if err != nil {
		slog.Warn("Failed to schedule snapshot prune", "error", err)
	}
}
