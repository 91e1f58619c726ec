// Package worker runs asynchronous previews and snapshot maintenance queued
// through asynq.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"supaconnect/internal/category"
	"supaconnect/internal/notification"
	"supaconnect/internal/preview"
	"supaconnect/internal/queue"
	"supaconnect/internal/session"
)

type PreviewRunner interface {
	Preview(ctx context.Context, accessToken string, req preview.Request, extra ...preview.Recorder) (*preview.Response, error)
}

type JobStore interface {
	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result json.RawMessage) error
	Fail(ctx context.Context, id string, message string) error
}

type SnapshotPruner interface {
	PruneSnapshots(ctx context.Context, before time.Time) (int64, error)
}

type PruneScheduler interface {
	ScheduleSnapshotPrune(ctx context.Context, payload queue.SnapshotPrunePayload) error
}

type Deps struct {
	Previews  PreviewRunner
	Jobs      JobStore
	Sealer    session.Sealer
	Notifier  notification.Notifier
	Snapshots SnapshotPruner
	Scheduler PruneScheduler
}

type Worker struct {
	server      *asynq.Server
	concurrency int
	deps        Deps
	now         func() time.Time
}

func NewWorker(redisOpt asynq.RedisClientOpt, concurrency int, deps Deps) *Worker {
	if concurrency <= 0 {
		concurrency = 10
	}
	if deps.Notifier == nil {
		deps.Notifier = notification.NopService{}
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: concurrency,
			Queues: map[string]int{
				queue.QueuePreviews:    10,
				queue.QueueMaintenance: 1,
			},
			Logger: asynqLogger{},
		},
	)

	return &Worker{
		server:      server,
		concurrency: concurrency,
		deps:        deps,
		now:         time.Now,
	}
}

func (w *Worker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypePreviewRun, w.handlePreview)
	mux.HandleFunc(queue.TypeSnapshotPrune, w.handleSnapshotPrune)
	return mux
}

// Start processes tasks until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	slog.Info("Starting worker",
		"queues", []string{queue.QueuePreviews, queue.QueueMaintenance},
		"concurrency", w.concurrency)

	if err := w.server.Start(w.Mux()); err != nil {
		return err
	}

	slog.Info("Worker started successfully")

	<-ctx.Done()

	w.server.Shutdown()
	slog.Info("Worker stopped")
	return nil
}

func (w *Worker) handlePreview(ctx context.Context, t *asynq.Task) error {
	var payload queue.PreviewPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	logger := slog.With("job_id", payload.JobID, "source_id", payload.SourceID, "dest_id", payload.DestID)

	if err := w.deps.Jobs.MarkRunning(ctx, payload.JobID); err != nil {
		logger.Error("Failed to mark job running", "error", err)
		return err
	}

	token, err := w.deps.Sealer.Open(ctx, payload.SealedToken)
	if err != nil {
		logger.Error("Failed to unseal access token", "error", err)
		return w.fail(ctx, payload, "Session error: access token could not be read")
	}

	categories := make([]category.Category, 0, len(payload.Categories))
	for _, name := range payload.Categories {
		cat, ok := category.Lookup(name)
		if !ok {
			return w.fail(ctx, payload, fmt.Sprintf("Unknown category %q", name))
		}
		categories = append(categories, cat)
	}

	resp, err := w.deps.Previews.Preview(ctx, string(token), preview.Request{
		SourceID:   payload.SourceID,
		DestID:     payload.DestID,
		Categories: categories,
	})
	if err != nil {
		perr := preview.AsError(err)
		if perr.Kind == preview.KindUpstream && !finalAttempt(ctx) {
			logger.Warn("Preview failed, will retry", "error", err)
			return err
		}
		logger.Error("Preview failed", "error", err)
		return w.fail(ctx, payload, perr.Message)
	}

	result, err := json.Marshal(resp)
	if err != nil {
		return w.fail(ctx, payload, "Failed to encode preview result")
	}
	if err := w.deps.Jobs.Complete(ctx, payload.JobID, result); err != nil {
		logger.Error("Failed to store preview result", "error", err)
		return err
	}

	logger.Info("Successfully processed preview job", "changed", len(resp.Configs))
	w.notify(ctx, &notification.NotificationRequest{
		UserID:  payload.Owner,
		Type:    notification.TypeSuccess,
		Title:   "Migration preview ready",
		Message: fmt.Sprintf("%d configuration categories differ between %s and %s", len(resp.Configs), payload.SourceID, payload.DestID),
		Data:    map[string]interface{}{"job_id": payload.JobID, "changed": len(resp.Configs)},
	})
	return nil
}

// fail records a permanent job failure and stops asynq from retrying.
func (w *Worker) fail(ctx context.Context, payload queue.PreviewPayload, message string) error {
	if err := w.deps.Jobs.Fail(ctx, payload.JobID, message); err != nil {
		slog.Error("Failed to mark job failed", "error", err, "job_id", payload.JobID)
		return err
	}

	w.notify(ctx, &notification.NotificationRequest{
		UserID:  payload.Owner,
		Type:    notification.TypeFail,
		Title:   "Migration preview failed",
		Message: message,
		Data:    map[string]interface{}{"job_id": payload.JobID},
	})
	return fmt.Errorf("%s: %w", message, asynq.SkipRetry)
}

func (w *Worker) notify(ctx context.Context, req *notification.NotificationRequest) {
	if _, err := w.deps.Notifier.SendNotification(ctx, req); err != nil {
		slog.Warn("Failed to send notification", "error", err, "user_id", req.UserID)
	}
}

func (w *Worker) handleSnapshotPrune(ctx context.Context, t *asynq.Task) error {
	var payload queue.SnapshotPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if w.deps.Snapshots == nil {
		return fmt.Errorf("snapshot history is not configured: %w", asynq.SkipRetry)
	}

	deleted, err := w.deps.Snapshots.PruneSnapshots(ctx, w.now().Add(-payload.Retention))
	if err != nil {
		return err
	}
	slog.Info("Snapshot history pruned", "deleted", deleted, "retention", payload.Retention)

	if w.deps.Scheduler != nil {
		if err := w.deps.Scheduler.ScheduleSnapshotPrune(ctx, payload); err != nil {
			slog.Error("Failed to schedule next snapshot prune", "error", err)
		}
	}
	return nil
}

func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

// asynqLogger routes asynq's own logging through slog.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { slog.Debug(fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { slog.Info(fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { slog.Warn(fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { slog.Error(fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { slog.Error(fmt.Sprint(args...)) }
