package intake

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"orderdesk/internal/config"
)

type Listener struct {
	connector Connector
	store     *MailStore
	processor *Processor
	provider  string
	label     string
	fetchMax  int
	batch     int
	interval  time.Duration
	logger    zerolog.Logger
}

func NewListener(cfg config.Config, connector Connector, store *MailStore, processor *Processor) *Listener {
	interval := time.Duration(cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Listener{
		connector: connector,
		store:     store,
		processor: processor,
		provider:  cfg.MailListenerProvider,
		label:     cfg.MailListenerLabel,
		fetchMax:  cfg.MailListenerFetchMax,
		batch:     cfg.MailListenerProcessBatch,
		interval:  interval,
		logger:    log.With().Str("component", "listener").Str("provider", cfg.MailListenerProvider).Logger(),
	}
}

type CycleResult struct {
	Fetched int
	Stored  int
	ProcessStats
}

// RunCycle fetches new mail, archives it and processes what is pending.
func (l *Listener) RunCycle(ctx context.Context) (CycleResult, error) {
	messages, err := l.connector.FetchInbox(ctx, l.label, l.fetchMax)
	if err != nil {
		return CycleResult{}, errors.Wrap(err, "fetch inbox")
	}

	res := CycleResult{Fetched: len(messages)}
	for _, msg := range messages {
		if _, err := l.store.Store(msg); err != nil {
			return res, err
		}
		res.Stored++
	}

	stats, err := l.processor.ProcessPending(ctx, l.batch, l.provider)
	res.ProcessStats = stats
	return res, err
}

// Run starts a cycle immediately and then on every interval until ctx is
// done. A cycle still running when the next is due pushes it back.
func (l *Listener) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return errors.Wrap(err, "create scheduler")
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(l.interval),
		gocron.NewTask(func() {
			res, err := l.RunCycle(ctx)
			if err != nil {
				l.logger.Error().Err(err).Msg("listener cycle failed")
			}
			l.logger.Info().
				Int("fetched", res.Fetched).
				Int("stored", res.Stored).
				Int("emails", res.Emails).
				Int("queued", res.Queued).
				Int("duplicates", res.Duplicates).
				Int("skipped", res.Skipped).
				Int("failed", res.Failed).
				Msg("listener cycle done")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return errors.Wrap(err, "schedule listener")
	}

	l.logger.Info().Dur("interval", l.interval).Str("label", l.label).Msg("mail listener started")
	scheduler.Start()
	<-ctx.Done()
	return scheduler.Shutdown()
}
