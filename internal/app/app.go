package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/wagslane/go-rabbitmq"
	"go.uber.org/zap"

	"github.com/hopeana/dispatcher/internal/config"
	"github.com/hopeana/dispatcher/internal/emailer"
	"github.com/hopeana/dispatcher/internal/engine"
	handler "github.com/hopeana/dispatcher/internal/handlers/http"
	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/notifier"
	"github.com/hopeana/dispatcher/internal/repository/cache"
	"github.com/hopeana/dispatcher/internal/repository/sqlite"
	"github.com/hopeana/dispatcher/internal/services/content"
	"github.com/hopeana/dispatcher/internal/services/dispatch"
	"github.com/hopeana/dispatcher/internal/services/due"
	"github.com/hopeana/dispatcher/internal/services/planner"
	"github.com/hopeana/dispatcher/internal/services/quota"
	"github.com/hopeana/dispatcher/pkg/logger"
)

const (
	timeoutDuration = 5 * time.Second
	replyToName     = "Hopeana Support"
)

type ServiceContainer struct {
	Engine      *engine.Engine
	Notificator *notifier.Notifier
	Sender      dispatch.BulkSender

	Router *gin.Engine
	Srv    *http.Server
	Db     *sql.DB
	Redis  *redis.Client
	Rabbit *rabbitmq.Conn
	pub    *rabbitmq.Publisher

	fileLogger *zap.Logger
}

// App ties together config, logger, and metrics for startup/shutdown.
type App struct {
	cfg config.Config
	l   zerolog.Logger
	m   *metrics.Metrics
}

func New(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) *App {
	logger = logger.With().Str("component", "App").Logger()
	return &App{cfg: cfg, l: logger, m: m}
}

// Start builds every component, serves HTTP and runs the cron trigger until
// ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	srvContainer, err := a.Init(ctx)
	if err != nil {
		return err
	}

	if srvContainer.Notificator != nil {
		if err := srvContainer.Notificator.Start(ctx); err != nil {
			return errors.Join(err, a.Stop(srvContainer))
		}
	} else {
		a.l.Warn().Msg("DISPATCH_CRON is empty, only manual runs are served")
	}

	errCh := make(chan error, 1)
	go func() {
		a.l.Info().Str("http_addr", a.cfg.ServerAddress()).Msg("HTTP server listening")
		if err := srvContainer.Srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.l.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			a.l.Error().Err(err).Msg("HTTP server error")
			return errors.Join(err, a.Stop(srvContainer))
		}
	}
	return a.Stop(srvContainer)
}

func (a *App) Stop(srvContainer ServiceContainer) error {
	a.l.Info().Msg("Stopping application")

	if srvContainer.Notificator != nil {
		srvContainer.Notificator.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeoutDuration)
	defer cancel()
	if err := srvContainer.Srv.Shutdown(ctx); err != nil {
		a.l.Error().Err(err).Msg("HTTP shutdown error")
	}

	if srvContainer.pub != nil {
		srvContainer.pub.Close()
	}
	if srvContainer.Rabbit != nil {
		if err := srvContainer.Rabbit.Close(); err != nil {
			a.l.Error().Err(err).Msg("RabbitMQ close error")
		}
	}
	if srvContainer.Redis != nil {
		if err := srvContainer.Redis.Close(); err != nil {
			a.l.Error().Err(err).Msg("Redis close error")
		}
	}
	if srvContainer.fileLogger != nil {
		_ = srvContainer.fileLogger.Sync()
	}

	if err := srvContainer.Db.Close(); err != nil {
		a.l.Error().Err(err).Msg("Database close error")
		return err
	}

	a.l.Info().Msg("Application shutdown complete")
	return nil
}

// Init wires storage, providers, the engine and the HTTP routes without
// starting anything.
func (a *App) Init(ctx context.Context) (ServiceContainer, error) {
	var c ServiceContainer

	openCtx, cancel := context.WithTimeout(ctx, timeoutDuration)
	defer cancel()
	db, err := sqlite.Open(openCtx, a.cfg.DB.Driver, a.cfg.DB.Source)
	if err != nil {
		return c, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.Migrate(db, a.cfg.DB.Dialect); err != nil {
		_ = db.Close()
		return c, fmt.Errorf("migrate database: %w", err)
	}
	a.m.RegisterDB(db, a.cfg.DB.Source)
	c.Db = db

	schedules := sqlite.NewScheduleRepository(db, a.l, a.m)
	contentRepo := sqlite.NewContentRepository(db, a.l, a.m)
	usage := sqlite.NewUsageRepository(db, a.l, a.m)
	deliveries := sqlite.NewDeliveryRepository(db, a.l, a.m)

	var pool interface {
		ListActive(ctx context.Context) ([]models.ContentItem, error)
	} = contentRepo
	if a.cfg.Redis.Addr != "" {
		c.Redis = redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
		redisCache := cache.NewRedisClient[[]models.ContentItem](c.Redis, a.l, a.cfg.Redis.ContentTTL)
		pool = content.NewCachedPool(contentRepo, cache.NewMetricsDecorator[[]models.ContentItem](redisCache, a.m), a.l)
		a.l.Info().Str("addr", a.cfg.Redis.Addr).Msg("content pool cached in Redis")
	}

	sender, err := a.newSender(&c)
	if err != nil {
		_ = db.Close()
		return c, err
	}
	c.Sender = emailer.NewBreakerSender(a.cfg.Dispatch.Provider, emailer.BreakerConfig{
		TimeInterval: a.cfg.Breaker.TimeInterval,
		TimeTimeOut:  a.cfg.Breaker.TimeTimeOut,
		RepeatNumber: a.cfg.Breaker.RepeatNumber,
	}, sender)

	gate := quota.NewGate(usage, a.cfg.Quota.FreeLimit, a.l)
	exec := dispatch.NewExecutor(c.Sender, deliveries, gate, a.envelope(), a.cfg.Dispatch.ChunkSize, a.l, a.m)
	plan := planner.New(planner.Config{
		TickMinutes: a.cfg.Dispatch.TickMinutes,
		WindowHours: due.SmallestWindowHours(),
		HardCap:     a.cfg.Dispatch.HardCap,
	}, nil)
	picker := content.NewSelector(deliveries, a.cfg.Content.HistoryMax, nil, a.l)

	c.Engine = engine.New(schedules, pool, plan, gate, picker, exec, a.l, a.m)
	if a.cfg.Dispatch.Cron != "" {
		c.Notificator = notifier.New(c.Engine, a.l, a.cfg.Dispatch.Cron, a.cfg.Dispatch.RunTimeout, a.m)
	}

	c.Router = gin.New()
	c.Router.Use(gin.Recovery(), a.m.HTTPMiddleware())
	handler.NewHandler(c.Engine, db, a.cfg.Server.TriggerSecret, a.cfg.Dispatch.RunTimeout, a.l).
		Register(c.Router)
	c.Router.GET("/metrics", gin.WrapH(a.m.Handler()))

	c.Srv = &http.Server{
		Addr:        a.cfg.ServerAddress(),
		Handler:     c.Router,
		ReadTimeout: time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
	}
	return c, nil
}

func (a *App) newSender(c *ServiceContainer) (dispatch.BulkSender, error) {
	switch a.cfg.Dispatch.Provider {
	case emailer.ProviderSMTP:
		return emailer.NewSMTPSender(a.cfg.SMTP.Host, a.cfg.SMTP.Port, a.cfg.SMTP.User, a.cfg.SMTP.Password, a.l)
	case emailer.ProviderRabbitMQ:
		conn, err := a.setupConn()
		if err != nil {
			return nil, err
		}
		pub, err := emailer.NewPublisher(conn, a.l)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("rabbitmq publisher: %w", err)
		}
		c.Rabbit, c.pub = conn, pub
		return emailer.NewRabbitSender(pub, a.l), nil
	default:
		c.fileLogger = logger.NewFileLogger(a.cfg.Logs.HTTPFile)
		client := &http.Client{
			Transport: emailer.NewRoundTripper(c.fileLogger),
			Timeout:   a.cfg.Dispatch.RunTimeout,
		}
		return emailer.NewHTTPSender(a.cfg.Email.APIURL, a.cfg.Email.APIKey, a.cfg.Email.RatePerSec, client, a.l), nil
	}
}

func (a *App) envelope() models.Envelope {
	env := models.Envelope{
		FromEmail:    a.cfg.Email.From,
		FromName:     a.cfg.Email.FromName,
		ReplyToEmail: a.cfg.Email.ReplyTo,
		Subject:      a.cfg.Email.Subject,
		TemplateID:   a.cfg.Email.TemplateID,
	}
	if env.ReplyToEmail != "" {
		env.ReplyToName = replyToName
	}
	return env
}
