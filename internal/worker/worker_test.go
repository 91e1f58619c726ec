package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supaconnect/internal/diff"
	"supaconnect/internal/management"
	"supaconnect/internal/notification"
	"supaconnect/internal/preview"
	"supaconnect/internal/queue"
	"supaconnect/internal/session"
)

type fakeJobs struct {
	mu       sync.Mutex
	running  []string
	results  map[string]string
	failures map[string]string
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{results: map[string]string{}, failures: map[string]string{}}
}

func (f *fakeJobs) MarkRunning(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = append(f.running, id)
	return nil
}

func (f *fakeJobs) Complete(_ context.Context, id string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[id] = string(result)
	return nil
}

func (f *fakeJobs) Fail(_ context.Context, id string, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = message
	return nil
}

type fakePreviews struct {
	token string
	req   preview.Request
	resp  *preview.Response
	err   error
}

func (f *fakePreviews) Preview(_ context.Context, token string, req preview.Request, _ ...preview.Recorder) (*preview.Response, error) {
	f.token = token
	f.req = req
	return f.resp, f.err
}

type fakeNotifier struct {
	notification.NopService
	sent []*notification.NotificationRequest
}

func (f *fakeNotifier) SendNotification(ctx context.Context, req *notification.NotificationRequest) (*notification.Notification, error) {
	f.sent = append(f.sent, req)
	return f.NopService.SendNotification(ctx, req)
}

type fixture struct {
	worker   *Worker
	jobs     *fakeJobs
	previews *fakePreviews
	notifier *fakeNotifier
	sealer   session.Sealer
}

func newFixture() *fixture {
	f := &fixture{
		jobs:     newFakeJobs(),
		previews: &fakePreviews{},
		notifier: &fakeNotifier{},
		sealer:   session.DeriveSecretboxSealer("worker-test"),
	}
	f.worker = &Worker{
		deps: Deps{
			Previews: f.previews,
			Jobs:     f.jobs,
			Sealer:   f.sealer,
			Notifier: f.notifier,
		},
		now: time.Now,
	}
	return f
}

func (f *fixture) task(t *testing.T, payload queue.PreviewPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewPreviewTask(payload)
	require.NoError(t, err)
	return task
}

func (f *fixture) seal(t *testing.T, token string) string {
	t.Helper()
	sealed, err := f.sealer.Seal(context.Background(), []byte(token))
	require.NoError(t, err)
	return sealed
}

func TestHandlePreview_Success(t *testing.T) {
	f := newFixture()
	f.previews.resp = &preview.Response{Configs: []diff.Result{{
		Name:    "Auth",
		Changes: []diff.Change{{Path: "site_url", OldValue: "a", NewValue: "b"}},
	}}}

	err := f.worker.handlePreview(context.Background(), f.task(t, queue.PreviewPayload{
		JobID:       "job-1",
		Owner:       "session-1",
		SourceID:    "src",
		DestID:      "dst",
		Categories:  []string{"auth", "Secrets"},
		SealedToken: f.seal(t, "sbp_token"),
	}))
	require.NoError(t, err)

	assert.Equal(t, "sbp_token", f.previews.token)
	assert.Equal(t, "src", f.previews.req.SourceID)
	require.Len(t, f.previews.req.Categories, 2)
	assert.Equal(t, "Auth", f.previews.req.Categories[0].Name)
	assert.Equal(t, "Secrets", f.previews.req.Categories[1].Name)

	assert.Equal(t, []string{"job-1"}, f.jobs.running)
	assert.JSONEq(t, `{"configs":[{"name":"Auth","diffs":[{"key":"site_url","source_value":"a","dest_value":"b"}]}]}`, f.jobs.results["job-1"])

	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification.TypeSuccess, f.notifier.sent[0].Type)
	assert.Equal(t, "session-1", f.notifier.sent[0].UserID)
}

func TestHandlePreview_BadSealedToken(t *testing.T) {
	f := newFixture()

	err := f.worker.handlePreview(context.Background(), f.task(t, queue.PreviewPayload{
		JobID:       "job-2",
		Owner:       "session-1",
		SealedToken: "garbage",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Contains(t, f.jobs.failures["job-2"], "Session error")
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, notification.TypeFail, f.notifier.sent[0].Type)
}

func TestHandlePreview_UnknownCategory(t *testing.T) {
	f := newFixture()

	err := f.worker.handlePreview(context.Background(), f.task(t, queue.PreviewPayload{
		JobID:       "job-3",
		Categories:  []string{"storage"},
		SealedToken: f.seal(t, "sbp_token"),
	}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, `Unknown category "storage"`, f.jobs.failures["job-3"])
}

func TestHandlePreview_PreviewFailureIsRecorded(t *testing.T) {
	f := newFixture()
	f.previews.err = &preview.Error{
		Kind:    preview.KindUpstream,
		Message: "Failed to get auth config: HTTP request failed with status 500: boom",
		Err:     &management.APIError{StatusCode: http.StatusInternalServerError, Body: "boom"},
	}

	// outside asynq there is no retry count, so this is the final attempt
	err := f.worker.handlePreview(context.Background(), f.task(t, queue.PreviewPayload{
		JobID:       "job-4",
		Categories:  []string{"auth"},
		SealedToken: f.seal(t, "sbp_token"),
	}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Equal(t, "Failed to get auth config: HTTP request failed with status 500: boom", f.jobs.failures["job-4"])
	assert.Empty(t, f.jobs.results)
}

func TestHandlePreview_InvalidPayload(t *testing.T) {
	f := newFixture()
	err := f.worker.handlePreview(context.Background(), asynq.NewTask(queue.TypePreviewRun, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, f.jobs.running)
}

type fakePruner struct {
	before time.Time
	err    error
}

func (f *fakePruner) PruneSnapshots(_ context.Context, before time.Time) (int64, error) {
	f.before = before
	return 3, f.err
}

type fakeScheduler struct {
	scheduled []queue.SnapshotPrunePayload
}

func (f *fakeScheduler) ScheduleSnapshotPrune(_ context.Context, payload queue.SnapshotPrunePayload) error {
	f.scheduled = append(f.scheduled, payload)
	return nil
}

func TestHandleSnapshotPrune(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	pruner := &fakePruner{}
	scheduler := &fakeScheduler{}
	w := &Worker{
		deps: Deps{Snapshots: pruner, Scheduler: scheduler},
		now:  func() time.Time { return now },
	}

	payload := queue.SnapshotPrunePayload{Retention: 48 * time.Hour, Interval: 24 * time.Hour}
	task, err := queue.NewSnapshotPruneTask(payload)
	require.NoError(t, err)

	require.NoError(t, w.handleSnapshotPrune(context.Background(), task))
	assert.Equal(t, now.Add(-48*time.Hour), pruner.before)
	assert.Equal(t, []queue.SnapshotPrunePayload{payload}, scheduler.scheduled)
}

func TestHandleSnapshotPrune_Failure(t *testing.T) {
	pruner := &fakePruner{err: errors.New("db down")}
	scheduler := &fakeScheduler{}
	w := &Worker{deps: Deps{Snapshots: pruner, Scheduler: scheduler}, now: time.Now}

	task, err := queue.NewSnapshotPruneTask(queue.SnapshotPrunePayload{Retention: time.Hour, Interval: time.Hour})
	require.NoError(t, err)

	assert.Error(t, w.handleSnapshotPrune(context.Background(), task))
	assert.Empty(t, scheduler.scheduled)
}

func TestHandleSnapshotPrune_NotConfigured(t *testing.T) {
	w := &Worker{now: time.Now}
	task, err := queue.NewSnapshotPruneTask(queue.SnapshotPrunePayload{})
	require.NoError(t, err)
	assert.ErrorIs(t, w.handleSnapshotPrune(context.Background(), task), asynq.SkipRetry)
}
