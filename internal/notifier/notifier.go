package notifier

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/engine"
	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
)

const defaultRunTimeout = 30 * time.Second

type runner interface {
	Run(ctx context.Context) models.RunSummary
}

// Notifier triggers the dispatch engine on a cron schedule. A tick that
// fires while the previous run is still busy is skipped.
type Notifier struct {
	engine  runner
	logger  zerolog.Logger
	cron    *cron.Cron
	cancel  context.CancelFunc
	m       *metrics.Metrics
	spec    string
	timeout time.Duration
}

// New constructs a Notifier for a standard five-field cron spec.
func New(
	eng runner,
	logger zerolog.Logger,
	spec string,
	timeout time.Duration,
	m *metrics.Metrics,
) *Notifier {
	logger = logger.With().Str("component", "Notifier").Logger()
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}
	n := &Notifier{
		engine:  eng,
		logger:  logger,
		m:       m,
		spec:    spec,
		timeout: timeout,
	}
	n.cron = cron.New(cron.WithChain(
		cron.Recover(cron.PrintfLogger(&n.logger)),
		cron.SkipIfStillRunning(cron.PrintfLogger(&n.logger)),
	))
	return n
}

// Start schedules the dispatch job.
func (n *Notifier) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	if _, err := n.cron.AddFunc(n.spec, func() { n.RunOnce(ctx) }); err != nil {
		cancel()
		n.logger.Error().Err(err).Str("spec", n.spec).Msg("failed to schedule dispatch job")
		n.m.Technical("cron_schedule_error")
		return err
	}

	n.cron.Start()
	n.logger.Info().Str("spec", n.spec).Msg("dispatch notifier started")
	return nil
}

// Stop cancels the running job, if any, and waits for it to return.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	stopCtx := n.cron.Stop()
	<-stopCtx.Done()
	n.logger.Info().Msg("dispatch job finished, notifier stopped")
}

// RunOnce performs one engine run bounded by the configured timeout.
func (n *Notifier) RunOnce(ctx context.Context) models.RunSummary {
	ctx, cancel := context.WithTimeout(engine.WithTrigger(ctx, engine.TriggerCron), n.timeout)
	defer cancel()

	n.logger.Debug().Dur("timeout", n.timeout).Msg("tick")
	return n.engine.Run(ctx)
}
