package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"supaconnect/internal/config"
	"supaconnect/internal/db"
	"supaconnect/internal/logging"
	"supaconnect/internal/management"
	"supaconnect/internal/mask"
	"supaconnect/internal/notification"
	"supaconnect/internal/preview"
	"supaconnect/internal/session"
)

// deps holds the clients shared by the serve and worker commands.
type deps struct {
	cfg       *config.Config
	sealer    session.Sealer
	redis     *redis.Client
	db        *sqlx.DB
	snapshots *db.SnapshotStore
	jobs      *db.JobStore
	previews  *preview.Service
	mgmt      *management.Client
	notifier  notification.Notifier
	firebase  *config.FirebaseClient
}

func loadDeps(ctx context.Context, requireDB bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Setup(cfg.LogLevel)
	d := &deps{cfg: cfg}

	if d.sealer, err = newSealer(ctx, cfg.Session); err != nil {
		return nil, err
	}

	d.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	var recorders []preview.Recorder
	switch {
	case cfg.Database.Enabled():
		if d.db, err = db.Connect(ctx, cfg.Database); err != nil {
			d.Close()
			return nil, err
		}
		masker, err := mask.NewMasker(mask.DefaultConfig())
		if err != nil {
			d.Close()
			return nil, err
		}
		d.snapshots = db.NewSnapshotStore(d.db, masker)
		d.jobs = db.NewJobStore(d.db)
		recorders = append(recorders, d.snapshots)
	case requireDB:
		d.Close()
		return nil, fmt.Errorf("DB_HOST is required")
	default:
		slog.Warn("DB_HOST not set, snapshot history and preview jobs are disabled")
	}

	d.mgmt = management.NewClient(management.Options{
		BaseURL:           cfg.ManagementAPIURL,
		Timeout:           cfg.ManagementTimeout,
		RequestsPerSecond: cfg.ManagementRPS,
		MaxBodyBytes:      cfg.MaxSnapshotBytes,
	})
	d.previews = preview.NewService(d.mgmt, preview.Options{
		MaxSnapshotBytes: cfg.MaxSnapshotBytes,
		MaxDocumentDepth: cfg.MaxDocumentDepth,
	}, recorders...)

	d.notifier = notification.NopService{}
	if cfg.Firebase != nil {
		if d.firebase, err = config.NewFirebaseClient(ctx, cfg.Firebase); err != nil {
			d.Close()
			return nil, err
		}
		d.notifier = notification.NewFirestoreService(d.firebase.Firestore)
	}

	return d, nil
}

func (d *deps) redisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: d.cfg.RedisAddr}
}

func (d *deps) Close() {
	if d.firebase != nil {
		if err := d.firebase.Close(); err != nil {
			slog.Warn("Failed to close Firebase client", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			slog.Warn("Failed to close Redis client", "error", err)
		}
	}
}

// newSealer prefers KMS, then an explicit secretbox key, and finally a key
// derived from the session secret.
func newSealer(ctx context.Context, cfg config.SessionConfig) (session.Sealer, error) {
	switch {
	case cfg.KMSKeyID != "":
		client, err := config.NewKMSClient(ctx)
		if err != nil {
			return nil, err
		}
		return session.NewKMSSealer(client, cfg.KMSKeyID)
	case cfg.SealingKey != "":
		return session.NewSecretboxSealerFromBase64(cfg.SealingKey)
	default:
		slog.Warn("SESSION_SEALING_KEY not set, deriving the sealing key from SESSION_SECRET")
		return session.DeriveSecretboxSealer(cfg.Secret), nil
	}
}

func (d *deps) sessionStore() session.Store {
	if d.cfg.Session.Backend == config.SessionBackendMemory {
		return session.NewMemoryStore(d.cfg.Session.TTL)
	}
	return session.NewRedisStore(d.redis, session.DefaultRedisPrefix, d.cfg.Session.TTL)
}
