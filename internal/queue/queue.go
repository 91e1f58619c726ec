// Package queue enqueues background work on Redis through asynq.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	QueuePreviews    = "previews"
	QueueMaintenance = "maintenance"

	TypePreviewRun    = "preview:run"
	TypeSnapshotPrune = "snapshots:prune"
)

// PreviewPayload describes one asynchronous preview. The access token is
// sealed so that it never rests in Redis in the clear.
type PreviewPayload struct {
	JobID       string   `json:"job_id"`
	Owner       string   `json:"owner"`
	SourceID    string   `json:"source_id"`
	DestID      string   `json:"dest_id"`
	Categories  []string `json:"categories"`
	SealedToken string   `json:"sealed_token"`
}

type SnapshotPrunePayload struct {
	Retention time.Duration `json:"retention"`
	Interval  time.Duration `json:"interval"`
}

type Client struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewClient(redisOpt asynq.RedisClientOpt) *Client {
	return &Client{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
	}
}

func NewPreviewTask(payload PreviewPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypePreviewRun, payloadBytes), nil
}

func NewSnapshotPruneTask(payload SnapshotPrunePayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TypeSnapshotPrune, payloadBytes), nil
}

// EnqueuePreview queues a preview run. The job id doubles as the task id so
// that a job is never queued twice.
func (c *Client) EnqueuePreview(ctx context.Context, payload PreviewPayload) (string, error) {
	task, err := NewPreviewTask(payload)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueuePreviews),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	slog.Info("Enqueued preview", "job_id", payload.JobID, "task_id", info.ID)
	return info.ID, nil
}

// ScheduleSnapshotPrune queues the next snapshot history cleanup after
// payload.Interval. The task id is derived from the interval slot the task
// runs in, so repeated scheduling within one slot queues a single task.
func (c *Client) ScheduleSnapshotPrune(ctx context.Context, payload SnapshotPrunePayload) error {
	task, err := NewSnapshotPruneTask(payload)
	if err != nil {
		return err
	}

	_, err = c.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueMaintenance),
		asynq.ProcessIn(payload.Interval),
		asynq.TaskID(pruneTaskID(time.Now(), payload.Interval)),
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
	)
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("failed to enqueue snapshot prune task: %w", err)
	}
	return nil
}

func pruneTaskID(now time.Time, interval time.Duration) string {
	if interval <= 0 {
		interval = time.Hour
	}
	return fmt.Sprintf("%s:%d", TypeSnapshotPrune, now.Add(interval).Truncate(interval).Unix())
}

// GetTaskStatus returns the current state of a preview task.
func (c *Client) GetTaskStatus(taskID string) (*asynq.TaskInfo, error) {
	info, err := c.inspector.GetTaskInfo(QueuePreviews, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task info: %w", err)
	}
	return info, nil
}

func (c *Client) Close() error {
	if err := c.inspector.Close(); err != nil {
		slog.Warn("Failed to close queue inspector", "error", err)
	}
	return c.client.Close()
}
