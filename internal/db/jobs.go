package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var ErrJobNotFound = errors.New("preview job not found")

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

type Job struct {
	ID          string          `db:"id" json:"id"`
	Owner       string          `db:"owner" json:"-"`
	SourceRef   string          `db:"source_ref" json:"source_id"`
	DestRef     string          `db:"dest_ref" json:"dest_id"`
	Categories  pq.StringArray  `db:"categories" json:"categories"`
	Status      JobStatus       `db:"status" json:"status"`
	Result      []byte          `db:"result" json:"-"`
	Error       sql.NullString  `db:"error" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// ErrorMessage returns the failure message of a failed job.
func (j *Job) ErrorMessage() string {
	if j.Error.Valid {
		return j.Error.String
	}
	return ""
}

func (j *Job) MarshalJSON() ([]byte, error) {
	type plain Job
	return json.Marshal(struct {
		*plain
		Result json.RawMessage `json:"result,omitempty"`
		Error  string          `json:"error,omitempty"`
	}{plain: (*plain)(j), Result: j.Result, Error: j.ErrorMessage()})
}

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

// CreateJob inserts a pending job for owner and returns it.
func (s *JobStore) CreateJob(ctx context.Context, owner, sourceRef, destRef string, categories []string) (*Job, error) {
	job := &Job{
		ID:         uuid.NewString(),
		Owner:      owner,
		SourceRef:  sourceRef,
		DestRef:    destRef,
		Categories: pq.StringArray(categories),
		Status:     JobPending,
	}

	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO preview_jobs (id, owner, source_ref, dest_ref, categories, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, job.ID, owner, sourceRef, destRef, job.Categories, job.Status).Scan(&job.CreatedAt)
	if err != nil {
		slog.Error("Failed to create preview job", "error", err)
		return nil, fmt.Errorf("error creating preview job: %w", err)
	}

	slog.Info("Created preview job", "job_id", job.ID, "source_id", sourceRef, "dest_id", destRef)
	return job, nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrJobNotFound
	}

	var job Job
	err := s.db.GetContext(ctx, &job, `
		SELECT id, owner, source_ref, dest_ref, categories, status, result, error,
		       created_at, started_at, completed_at
		FROM preview_jobs
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching preview job: %w", err)
	}
	return &job, nil
}

func (s *JobStore) MarkRunning(ctx context.Context, id string) error {
	return s.update(ctx, id, `
		UPDATE preview_jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1
	`, JobRunning)
}

func (s *JobStore) Complete(ctx context.Context, id string, result json.RawMessage) error {
	return s.update(ctx, id, `
		UPDATE preview_jobs
		SET status = $2, result = $3, error = NULL, completed_at = NOW()
		WHERE id = $1
	`, JobCompleted, string(result))
}

func (s *JobStore) Fail(ctx context.Context, id string, message string) error {
	return s.update(ctx, id, `
		UPDATE preview_jobs
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1
	`, JobFailed, message)
}

func (s *JobStore) update(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("error updating preview job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error updating preview job: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}
