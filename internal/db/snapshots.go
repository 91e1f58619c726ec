package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"supaconnect/internal/diff"
	"supaconnect/internal/mask"
	"supaconnect/internal/preview"
	"supaconnect/utils"
)

var (
	ErrIdenticalSnapshotFound = errors.New("snapshot with identical content already exists")
	ErrSnapshotNotFound       = errors.New("snapshot not found")
)

type Snapshot struct {
	ID         int64           `db:"id" json:"-"`
	SnapshotID string          `db:"snapshot_id" json:"id"`
	ProjectRef string          `db:"project_ref" json:"project_ref"`
	Category   string          `db:"category" json:"category"`
	Content    json.RawMessage `db:"content" json:"content"`
	Hash       string          `db:"hash" json:"hash"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type SnapshotSummary struct {
	SnapshotID string    `db:"snapshot_id" json:"id"`
	ProjectRef string    `db:"project_ref" json:"project_ref"`
	Category   string    `db:"category" json:"category"`
	Hash       string    `db:"hash" json:"hash"`
	SizeKB     int       `db:"size_kb" json:"size_kb"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type SnapshotPage struct {
	Data       []SnapshotSummary `json:"data"`
	Pagination Pagination        `json:"pagination"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// SnapshotStore keeps the history of fetched project configurations.
// Content is masked before it is written; the hash is taken over the
// unmasked canonical form so that a changed secret still counts as a change.
type SnapshotStore struct {
	db     *sqlx.DB
	masker *mask.Masker
}

func NewSnapshotStore(db *sqlx.DB, masker *mask.Masker) *SnapshotStore {
	return &SnapshotStore{db: db, masker: masker}
}

// SemanticHash returns the sha256 of the canonical form of v. Documents that
// differ only in key order or whitespace hash the same.
func SemanticHash(v any) string {
	sum := sha256.Sum256([]byte(diff.Canonical(v)))
	return hex.EncodeToString(sum[:])
}

// RecordSnapshot stores snap unless the latest snapshot of the same project
// and category has identical content.
func (s *SnapshotStore) RecordSnapshot(ctx context.Context, snap preview.Snapshot) error {
	_, err := s.CreateSnapshot(ctx, snap.ProjectRef, snap.Category.Name, snap.Value)
	if errors.Is(err, ErrIdenticalSnapshotFound) {
		return nil
	}
	return err
}

func (s *SnapshotStore) CreateSnapshot(ctx context.Context, projectRef, category string, value any) (*Snapshot, error) {
	contentHash := SemanticHash(value)

	var latestHash string
	err := s.db.QueryRowContext(ctx, `
		SELECT hash FROM snapshots
		WHERE project_ref = $1 AND category = $2
		ORDER BY created_at DESC, id DESC LIMIT 1
	`, projectRef, category).Scan(&latestHash)
	switch {
	case err == nil && latestHash == contentHash:
		slog.Debug("Snapshot with identical content already exists",
			"project_ref", projectRef,
			"category", category,
			"hash", contentHash)
		return nil, ErrIdenticalSnapshotFound
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("error checking latest snapshot: %w", err)
	}

	generatedID, err := utils.GenerateRandomAlphaNumeric(10)
	if err != nil {
		return nil, fmt.Errorf("failed to generate snapshot ID: %w", err)
	}

	masked := value
	if s.masker != nil {
		masked = s.masker.Mask(value)
	}

	snapshot := &Snapshot{
		SnapshotID: "s-" + generatedID,
		ProjectRef: projectRef,
		Category:   category,
		Content:    json.RawMessage(diff.Canonical(masked)),
		Hash:       contentHash,
	}

	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO snapshots (snapshot_id, project_ref, category, content, hash)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, snapshot.SnapshotID, projectRef, category, string(snapshot.Content), contentHash).Scan(&snapshot.ID, &snapshot.CreatedAt)
	if err != nil {
		slog.Warn("Creating snapshot failed", "error", err)
		return nil, fmt.Errorf("error creating snapshot: %w", err)
	}

	slog.Info("Created new snapshot",
		"project_ref", projectRef,
		"category", category,
		"snapshot_id", snapshot.SnapshotID,
		"hash", contentHash)
	return snapshot, nil
}

// ListSnapshots pages through a project's snapshots, newest first. An empty
// category lists every category.
func (s *SnapshotStore) ListSnapshots(ctx context.Context, projectRef, category string, page, pageSize int) (*SnapshotPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	summaries := []SnapshotSummary{}
	err := s.db.SelectContext(ctx, &summaries, `
		SELECT
			snapshot_id,
			project_ref,
			category,
			hash,
			pg_column_size(content)/1024 AS size_kb,
			created_at
		FROM snapshots
		WHERE project_ref = $1 AND ($2::text = '' OR category = $2::text)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`, projectRef, category, pageSize, (page-1)*pageSize)
	if err != nil {
		slog.Error("Failed to fetch snapshots", "error", err)
		return nil, fmt.Errorf("error listing snapshots: %w", err)
	}

	var total int
	err = s.db.GetContext(ctx, &total, `
		SELECT COUNT(*) FROM snapshots
		WHERE project_ref = $1 AND ($2::text = '' OR category = $2::text)
	`, projectRef, category)
	if err != nil {
		slog.Error("Failed to fetch total count", "error", err)
		return nil, fmt.Errorf("error counting snapshots: %w", err)
	}

	return &SnapshotPage{
		Data: summaries,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: (total + pageSize - 1) / pageSize,
		},
	}, nil
}

func (s *SnapshotStore) GetSnapshot(ctx context.Context, snapshotID string) (*Snapshot, error) {
	var snapshot Snapshot
	err := s.db.GetContext(ctx, &snapshot, `
		SELECT id, snapshot_id, project_ref, category, content, hash, created_at
		FROM snapshots
		WHERE snapshot_id = $1
	`, snapshotID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		slog.Error("Failed to fetch snapshot detail", "error", err, "snapshot_id", snapshotID)
		return nil, fmt.Errorf("error fetching snapshot: %w", err)
	}
	return &snapshot, nil
}

// PruneSnapshots deletes snapshots older than before. The latest snapshot of
// every project and category is always kept so that deduplication keeps
// working.
func (s *SnapshotStore) PruneSnapshots(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots s
		WHERE s.created_at < $1
		  AND s.id <> (
			SELECT latest.id FROM snapshots latest
			WHERE latest.project_ref = s.project_ref AND latest.category = s.category
			ORDER BY latest.created_at DESC, latest.id DESC
			LIMIT 1
		  )
	`, before)
	if err != nil {
		return 0, fmt.Errorf("error pruning snapshots: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error pruning snapshots: %w", err)
	}
	slog.Info("Pruned snapshots", "deleted", n, "before", before)
	return n, nil
}
