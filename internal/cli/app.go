package cli

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"orderdesk/internal/config"
	"orderdesk/internal/desk"
	"orderdesk/internal/extract"
	"orderdesk/internal/intake"
	"orderdesk/internal/mailbox/gmail"
	"orderdesk/internal/mailbox/imap"
	"orderdesk/internal/remote"
	"orderdesk/internal/session"
	"orderdesk/internal/storage"
)

// app is one process's wiring: the database, the session stores and the desk.
type app struct {
	cfg   config.Config
	db    *storage.DB
	redis *redis.Client
	desk  *desk.Service
}

func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	a := &app{cfg: cfg, db: db}

	store := &session.Resilient{
		Primary:  session.NewSQLiteStore(db),
		Fallback: a.fallbackStore(ctx),
	}
	clock := clockwork.NewRealClock()
	saver := session.NewSaver(store, clock, time.Duration(cfg.SessionDebounceMs)*time.Millisecond)

	opts := desk.Options{
		Clock:           clock,
		Saver:           saver,
		Extractor:       extract.NewClient(cfg),
		History:         db,
		OutputDir:       cfg.OutputDir,
		ExtractionSheet: cfg.ExtractionSheet,
		TintingSheet:    cfg.TintingSheet,
	}
	client := remote.NewClient(cfg)
	if strings.TrimSpace(cfg.SyncURL) != "" {
		opts.Syncer = client
	}
	opts.Templates, err = templateSource(ctx, cfg, client)
	if err != nil {
		log.Warn().Err(err).Str("source", cfg.TemplateSource).Msg("export templates unavailable")
	}

	a.desk = desk.New(opts)
	a.desk.Restore(ctx)
	return a, nil
}

// fallbackStore prefers Redis when configured and reachable, and a JSON file
// otherwise.
func (a *app) fallbackStore(ctx context.Context) session.Store {
	if a.cfg.SessionFallback == "redis" {
		client, err := session.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
		if err == nil {
			a.redis = client
			return session.NewRedisStore(client, a.cfg.SessionKey)
		}
		log.Warn().Err(err).Str("addr", a.cfg.RedisAddr).Msg("redis unavailable, using file session fallback")
	}
	return session.NewFileStore(a.cfg.SessionDir, a.cfg.SessionKey)
}

func templateSource(ctx context.Context, cfg config.Config, client *remote.Client) (remote.TemplateSource, error) {
	switch cfg.TemplateSource {
	case "sheets":
		src, err := remote.NewSheetsSource(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "local":
		return remote.NewLocalTemplates(cfg.LocalTemplateDir), nil
	default:
		if strings.TrimSpace(cfg.TemplateURL) == "" {
			return nil, errors.Wrap(remote.ErrNotConfigured, "TEMPLATE_URL")
		}
		return client, nil
	}
}

func mailConnector(ctx context.Context, cfg config.Config) (intake.Connector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailListenerProvider)) {
	case "gmail":
		conn, err := gmail.NewConnector(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "imap":
		conn, err := imap.NewConnector(cfg)
		if err != nil {
			return nil, err
		}
		return conn, nil
	default:
		return nil, errors.Errorf("unsupported mail provider: %s", cfg.MailListenerProvider)
	}
}

func (a *app) listener(ctx context.Context) (*intake.Listener, error) {
	conn, err := mailConnector(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	store := intake.NewMailStore(a.db, a.cfg.RawMailDir)
	return intake.NewListener(a.cfg, conn, store, intake.NewProcessor(a.db, a.desk)), nil
}

// Close writes any pending session snapshot and releases the backends.
func (a *app) Close(ctx context.Context) error {
	a.desk.Flush(ctx)
	var err error
	if a.redis != nil {
		err = multierr.Append(err, a.redis.Close())
	}
	return multierr.Append(err, a.db.Close())
}
