package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"HeadlineRadar/internal/aggregation"
	"HeadlineRadar/internal/config"
	"HeadlineRadar/internal/infrastructure/natsbus"
	"HeadlineRadar/internal/infrastructure/parser"
	"HeadlineRadar/internal/infrastructure/render"
	"HeadlineRadar/internal/infrastructure/scheduler"
	"HeadlineRadar/internal/infrastructure/storage"
	"HeadlineRadar/internal/infrastructure/telegram"
	"HeadlineRadar/internal/infrastructure/webhook"
	"HeadlineRadar/internal/logging"
	"HeadlineRadar/internal/matcher"
	"HeadlineRadar/internal/ports"
	"HeadlineRadar/internal/scanner"
	"HeadlineRadar/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	closers   []func() error
}

// New connects every configured adapter and resumes the checkpointed window.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	mode, err := cfg.Report.WindowMode()
	if err != nil {
		return nil, err
	}
	loc := cfg.Scheduler.Location()

	store, pruner, err := a.historyStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	detector := aggregation.NewDetector(store, cfg.History.ContinuityHorizon, baseLogger.With("component", "detector"))
	window := aggregation.NewWindow(aggregation.Config{
		Mode:          mode,
		Location:      loc,
		PlatformOrder: cfg.PlatformOrder(),
	}, matcher.New(cfg.KeywordGroups()), detector, baseLogger.With("component", "window"))

	httpClient := &http.Client{Timeout: cfg.Fetch.Timeout}
	registry := scanner.NewRegistry(
		parser.NewNewsnowScanner(httpClient, cfg.Fetch.UserAgent),
		parser.NewRSSScanner(httpClient, cfg.Fetch.UserAgent),
		parser.NewHTMLScanner(httpClient, cfg.Fetch.UserAgent),
	)
	source := parser.NewStrategySource(registry, cfg.Platforms, cfg.Fetch, baseLogger.With("component", "source"))

	var renderer ports.Renderer
	if cfg.Report.OutputDir != "" {
		renderer = render.NewHTMLRenderer(cfg.Report.OutputDir, loc, baseLogger.With("component", "render"))
	}

	var checkpoint ports.WindowCheckpoint
	if cfg.History.CheckpointPath != "" {
		checkpoint = storage.NewFileCheckpoint(cfg.History.CheckpointPath)
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Window:     window,
		Renderer:   renderer,
		Notifiers:  a.notifiers(loc),
		Checkpoint: checkpoint,
		Pruner:     pruner,
		Retention:  cfg.History.Retention,
		Logger:     baseLogger.With("component", "pipeline"),
	})
	a.pipeline.Resume(ctx)

	a.scheduler = usecase.NewScheduler(
		scheduler.NewIntervalScheduler(cfg.Scheduler.Interval),
		a.pipeline,
		loc,
		baseLogger.With("component", "scheduler"),
	)
	return a, nil
}

// RunOnce executes a single cycle now.
func (a *Application) RunOnce(ctx context.Context) error {
	now := time.Now().In(a.cfg.Scheduler.Location())
	if _, err := a.pipeline.RunCycle(ctx, now); err != nil {
		return err
	}
	return nil
}

// Run schedules cycles every configured interval until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("scheduler started",
		"interval", a.cfg.Scheduler.Interval,
		"mode", a.cfg.Report.Mode,
		"platforms", len(a.cfg.Platforms),
		"keyword_groups", len(a.cfg.Keywords),
	)
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.scheduler.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("scheduler stopped")
	return nil
}

// Close releases database, cache and bus connections.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *Application) historyStore(ctx context.Context) (ports.HistoryStore, ports.HistoryPruner, error) {
	cfg := a.cfg
	switch cfg.History.Backend {
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.Database.DSN, a.logger.With("component", "postgres"))
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.Migrate {
			if err := storage.RunMigrations(db.DB, a.logger.With("component", "migrate")); err != nil {
				a.logger.Warn("migrations not applied, history may be unavailable", "error", err)
			}
		}
		store := storage.NewPostgresStore(db)
		return store, store, nil
	case config.BackendRedis:
		client := storage.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, a.logger.With("component", "redis"))
		a.closers = append(a.closers, client.Close)
		return storage.NewRedisStore(client, cfg.Redis.Prefix, cfg.History.Retention), nil, nil
	default:
		return storage.NewFileStore(cfg.History.Path, cfg.History.Retention), nil, nil
	}
}

// notifiers builds every configured delivery channel. A channel that cannot
// be set up is logged and skipped.
func (a *Application) notifiers(loc *time.Location) []ports.Notifier {
	cfg := a.cfg.Notifications
	var out []ports.Notifier

	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		n, err := telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, loc, a.logger.With("component", "telegram"))
		if err != nil {
			a.logger.Warn("telegram disabled", "error", err)
		} else {
			out = append(out, n)
		}
	}

	if cfg.Webhook.URL != "" {
		out = append(out, webhook.NewNotifier(cfg.Webhook.URL, loc, nil))
	}

	if cfg.NATS.URL != "" {
		nc, err := natsbus.Connect(cfg.NATS.URL, a.logger.With("component", "nats"))
		if err != nil {
			a.logger.Warn("nats disabled", "error", err)
		} else {
			a.closers = append(a.closers, nc.Drain)
			out = append(out, natsbus.NewPublisher(nc, cfg.NATS.Subject))
		}
	}
	return out
}
