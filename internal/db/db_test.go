package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supaconnect/internal/category"
	"supaconnect/internal/diff"
	"supaconnect/internal/mask"
	"supaconnect/internal/migrations"
	"supaconnect/internal/preview"
	"supaconnect/utils"
)

// testDB connects to SUPACONNECT_TEST_DATABASE_URL and applies the schema,
// skipping the test when no database is configured.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("SUPACONNECT_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("SUPACONNECT_TEST_DATABASE_URL not set")
	}

	require.NoError(t, migrations.Up(url))

	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func uniqueRef(t *testing.T) string {
	t.Helper()
	suffix, err := utils.GenerateRandomAlphaNumeric(12)
	require.NoError(t, err)
	return "test" + suffix
}

func parse(t *testing.T, doc string) any {
	t.Helper()
	v, err := diff.Parse([]byte(doc))
	require.NoError(t, err)
	return v
}

func TestSemanticHash(t *testing.T) {
	a := parse(t, `{"b": 1, "a": [true, null]}`)
	b := parse(t, `{"a":[true,null],"b":1}`)
	c := parse(t, `{"a":[true,null],"b":2}`)

	assert.Equal(t, SemanticHash(a), SemanticHash(b))
	assert.NotEqual(t, SemanticHash(a), SemanticHash(c))
	assert.Len(t, SemanticHash(a), 64)
}

func TestJobMarshalJSON(t *testing.T) {
	job := &Job{
		ID:         "0b6c4ad4-3f5e-4d55-9a59-0b5b3c1b2f7e",
		Owner:      "session-id",
		SourceRef:  "src",
		DestRef:    "dst",
		Categories: []string{"auth"},
		Status:     JobFailed,
		Result:     []byte(`{"configs":[]}`),
		Error:      sql.NullString{String: "Failed to get auth config: boom", Valid: true},
	}

	body, err := json.Marshal(job)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "src", out["source_id"])
	assert.Equal(t, "dst", out["dest_id"])
	assert.Equal(t, "failed", out["status"])
	assert.Equal(t, "Failed to get auth config: boom", out["error"])
	assert.Equal(t, map[string]any{"configs": []any{}}, out["result"])
	assert.NotContains(t, out, "owner")
}

func TestGetJob_InvalidID(t *testing.T) {
	_, err := NewJobStore(nil).GetJob(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSnapshotStore_DedupAndMask(t *testing.T) {
	db := testDB(t)
	masker, err := mask.NewMasker(nil)
	require.NoError(t, err)
	store := NewSnapshotStore(db, masker)
	ctx := context.Background()
	ref := uniqueRef(t)

	first, err := store.CreateSnapshot(ctx, ref, "Auth", parse(t, `{"smtp_pass":"hunter2hunter2","site_url":"http://a"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(first.Content), "hunter2")

	_, err = store.CreateSnapshot(ctx, ref, "Auth", parse(t, `{"site_url":"http://a","smtp_pass":"hunter2hunter2"}`))
	assert.ErrorIs(t, err, ErrIdenticalSnapshotFound)

	// a changed secret is a change even though the stored form looks the same
	second, err := store.CreateSnapshot(ctx, ref, "Auth", parse(t, `{"smtp_pass":"another-password","site_url":"http://a"}`))
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, second.Hash)

	page, err := store.ListSnapshots(ctx, ref, "Auth", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
	require.Len(t, page.Data, 2)
	assert.Equal(t, second.SnapshotID, page.Data[0].SnapshotID)

	got, err := store.GetSnapshot(ctx, first.SnapshotID)
	require.NoError(t, err)
	assert.Equal(t, ref, got.ProjectRef)
	assert.JSONEq(t, string(first.Content), string(got.Content))

	_, err = store.GetSnapshot(ctx, "s-missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotStore_RecordSnapshotIgnoresDuplicates(t *testing.T) {
	db := testDB(t)
	store := NewSnapshotStore(db, nil)
	ctx := context.Background()
	ref := uniqueRef(t)
	cat, _ := category.Lookup("Postgrest")

	snap := preview.Snapshot{ProjectRef: ref, Side: preview.SideSource, Category: cat, Value: parse(t, `{"max_rows":1000}`)}
	require.NoError(t, store.RecordSnapshot(ctx, snap))
	require.NoError(t, store.RecordSnapshot(ctx, snap))

	page, err := store.ListSnapshots(ctx, ref, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Total)
}

func TestJobStore_Lifecycle(t *testing.T) {
	db := testDB(t)
	store := NewJobStore(db)
	ctx := context.Background()

	job, err := store.CreateJob(ctx, "owner-1", "src", "dst", []string{"auth", "secrets"})
	require.NoError(t, err)
	assert.Equal(t, JobPending, job.Status)

	require.NoError(t, store.MarkRunning(ctx, job.ID))
	got, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobRunning, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.Equal(t, []string{"auth", "secrets"}, []string(got.Categories))

	require.NoError(t, store.Complete(ctx, job.ID, json.RawMessage(`{"configs":[]}`)))
	got, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCompleted, got.Status)
	assert.JSONEq(t, `{"configs":[]}`, string(got.Result))
	assert.NotNil(t, got.CompletedAt)

	other, err := store.CreateJob(ctx, "owner-1", "src", "dst", []string{"auth"})
	require.NoError(t, err)
	require.NoError(t, store.Fail(ctx, other.ID, "boom"))
	got, err = store.GetJob(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage())
	assert.Nil(t, got.Result)

	assert.ErrorIs(t, store.MarkRunning(ctx, "00000000-0000-0000-0000-000000000000"), ErrJobNotFound)
}

func TestSnapshotStore_PruneKeepsLatest(t *testing.T) {
	db := testDB(t)
	store := NewSnapshotStore(db, nil)
	ctx := context.Background()
	ref := uniqueRef(t)

	_, err := store.CreateSnapshot(ctx, ref, "Auth", parse(t, `{"v":1}`))
	require.NoError(t, err)
	latest, err := store.CreateSnapshot(ctx, ref, "Auth", parse(t, `{"v":2}`))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `UPDATE snapshots SET created_at = created_at - INTERVAL '30 days' WHERE project_ref = $1`, ref)
	require.NoError(t, err)

	_, err = store.PruneSnapshots(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)

	page, err := store.ListSnapshots(ctx, ref, "Auth", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, latest.SnapshotID, page.Data[0].SnapshotID)
}
