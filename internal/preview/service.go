// Package preview fetches the configuration of two projects from the
// management API and reports how the destination differs from the source.
package preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"supaconnect/internal/category"
	"supaconnect/internal/diff"
	"supaconnect/internal/management"
	"supaconnect/internal/metrics"
	"supaconnect/internal/security"
)

const (
	DefaultMaxSnapshotBytes = 8 << 20
	DefaultMaxDocumentDepth = 64
)

type Side string

const (
	SideSource Side = "source"
	SideDest   Side = "dest"
)

type Fetcher interface {
	FetchSnapshot(ctx context.Context, accessToken string, cat category.Category, projectRef string) ([]byte, error)
}

// Snapshot is one fetched and parsed category configuration.
type Snapshot struct {
	ProjectRef string
	Side       Side
	Category   category.Category
	Content    []byte
	Value      any
}

// Recorder receives every snapshot of a successful preview. Recording is
// best effort: errors are logged and never fail the preview.
type Recorder interface {
	RecordSnapshot(ctx context.Context, snap Snapshot) error
}

type RecorderFunc func(ctx context.Context, snap Snapshot) error

func (f RecorderFunc) RecordSnapshot(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}

type Request struct {
	SourceID   string `json:"source_id" validate:"required,projectref"`
	DestID     string `json:"dest_id" validate:"required,projectref"`
	Categories []category.Category `json:"-"`
}

type Response struct {
	Configs []diff.Result `json:"configs"`
}

type Options struct {
	MaxSnapshotBytes int64
	MaxDocumentDepth int
}

type Service struct {
	fetcher   Fetcher
	recorders []Recorder
	maxBytes  int64
	maxDepth  int
}

func NewService(fetcher Fetcher, opts Options, recorders ...Recorder) *Service {
	if opts.MaxSnapshotBytes <= 0 {
		opts.MaxSnapshotBytes = DefaultMaxSnapshotBytes
	}
	if opts.MaxDocumentDepth <= 0 {
		opts.MaxDocumentDepth = DefaultMaxDocumentDepth
	}
	return &Service{
		fetcher:   fetcher,
		recorders: recorders,
		maxBytes:  opts.MaxSnapshotBytes,
		maxDepth:  opts.MaxDocumentDepth,
	}
}

// Preview compares every requested category of the source project with the
// destination project. Results follow the order of req.Categories and
// categories without differences are left out. extra recorders run after
// the service's own, for this call only.
func (s *Service) Preview(ctx context.Context, accessToken string, req Request, extra ...Recorder) (*Response, error) {
	resp, err := s.preview(ctx, accessToken, req, extra)
	if err != nil {
		metrics.ObservePreview(AsError(err).Outcome())
		return nil, err
	}
	metrics.ObservePreview(metrics.OutcomeSuccess)
	return resp, nil
}

func (s *Service) preview(ctx context.Context, accessToken string, req Request, extra []Recorder) (*Response, error) {
	if accessToken == "" {
		return nil, &Error{Kind: KindUnauthorized, Message: "Unauthorized", Err: management.ErrUnauthorized}
	}
	if err := security.Validate.Struct(req); err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: "Invalid request: " + security.Describe(err), Err: err}
	}

	start := time.Now()
	sources := make([][]byte, len(req.Categories))
	dests := make([][]byte, len(req.Categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, cat := range req.Categories {
		g.Go(func() error {
			body, err := s.fetch(gctx, accessToken, cat, req.SourceID)
			sources[i] = body
			return err
		})
		g.Go(func() error {
			body, err := s.fetch(gctx, accessToken, cat, req.DestID)
			dests[i] = body
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &Response{Configs: []diff.Result{}}
	snapshots := make([]Snapshot, 0, 2*len(req.Categories))

	for i, cat := range req.Categories {
		source, err := s.parse(cat, req.SourceID, sources[i])
		if err != nil {
			return nil, err
		}
		dest, err := s.parse(cat, req.DestID, dests[i])
		if err != nil {
			return nil, err
		}

		if result, changed := diff.Compare(cat.Name, source, dest); changed {
			metrics.ObserveChanges(cat.Name, len(result.Changes))
			resp.Configs = append(resp.Configs, *result)
		}

		snapshots = append(snapshots,
			Snapshot{ProjectRef: req.SourceID, Side: SideSource, Category: cat, Content: sources[i], Value: source},
			Snapshot{ProjectRef: req.DestID, Side: SideDest, Category: cat, Content: dests[i], Value: dest},
		)
	}

	s.record(ctx, snapshots, extra)

	slog.Info("Preview completed",
		"source_id", req.SourceID,
		"dest_id", req.DestID,
		"categories", category.Names(req.Categories),
		"changed", len(resp.Configs),
		"duration", time.Since(start))

	return resp, nil
}

func (s *Service) fetch(ctx context.Context, accessToken string, cat category.Category, projectRef string) ([]byte, error) {
	body, err := s.fetcher.FetchSnapshot(ctx, accessToken, cat, projectRef)
	if err != nil {
		slog.Error("Failed to fetch configuration",
			"error", err,
			"category", cat.Name,
			"project_ref", projectRef)

		kind := KindUpstream
		if errors.Is(err, management.ErrBodyTooLarge) {
			kind = KindTooLarge
		}
		return nil, &Error{
			Kind:    kind,
			Message: fmt.Sprintf("Failed to get %s config: %v", cat.Label, err),
			Err:     err,
		}
	}

	if int64(len(body)) > s.maxBytes {
		return nil, &Error{
			Kind:    KindTooLarge,
			Message: fmt.Sprintf("Failed to get %s config: response exceeds %d bytes", cat.Label, s.maxBytes),
			Err:     management.ErrBodyTooLarge,
		}
	}
	return body, nil
}

func (s *Service) parse(cat category.Category, projectRef string, body []byte) (any, error) {
	v, err := diff.Parse(body)
	if err != nil {
		slog.Error("Failed to parse configuration",
			"error", err,
			"category", cat.Name,
			"project_ref", projectRef)
		return nil, &Error{Kind: KindInvalidJSON, Message: "JSON error: " + err.Error(), Err: err}
	}

	if depth := diff.Depth(v); depth > s.maxDepth {
		return nil, &Error{
			Kind:    KindTooLarge,
			Message: fmt.Sprintf("%s config of %s nests %d levels deep, limit is %d", cat.Name, projectRef, depth, s.maxDepth),
		}
	}
	return v, nil
}

func (s *Service) record(ctx context.Context, snapshots []Snapshot, extra []Recorder) {
	recorders := append(append([]Recorder{}, s.recorders...), extra...)
	for _, r := range recorders {
		for _, snap := range snapshots {
			if err := r.RecordSnapshot(ctx, snap); err != nil {
				slog.Warn("Failed to record snapshot",
					"error", err,
					"category", snap.Category.Name,
					"project_ref", snap.ProjectRef,
					"side", snap.Side)
			}
		}
	}
}
