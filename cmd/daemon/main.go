package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"dailywall/internal/config"
	"dailywall/internal/dedup"
	"dailywall/internal/domain"
	"dailywall/internal/engine"
	"dailywall/internal/executor"
	"dailywall/internal/fetcher"
	"dailywall/internal/monitor"
	"dailywall/internal/notify"
	"dailywall/internal/provider"
	"dailywall/internal/reveal"
	"dailywall/internal/settings"
	"dailywall/internal/storage"
	"dailywall/internal/tracker"
	"dailywall/internal/viewmodel"
)

// AppOptions is the full dependency graph, shared with the validation test
var AppOptions = fx.Options(
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		config.NewAppConfig,
		func(c *config.AppConfig) domain.Config { return c },
		newSettings,
		fx.Annotate(executor.NewExecutor, fx.As(new(domain.WallpaperSetter))),
		fx.Annotate(notify.NewDesktopNotifier, fx.As(new(domain.Notifier))),
		fx.Annotate(newFetcher, fx.As(new(domain.Fetcher))),
		fx.Annotate(monitor.NewWakeMonitor, fx.As(new(domain.Monitor))),
		newTrackers,
		engine.NewEngine,
	),

	fx.Invoke(registerHooks),
)

func main() {
	app := fx.New(AppOptions)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		panic(err)
	}
}

// newLogger creates the shared zap logger
func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

// newFetcher builds the HTTP fetcher. The client-side cap matches the
// download budget and catches connections that stall without erroring.
func newFetcher(logger *zap.Logger, cfg *config.AppConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(logger).WithTimeout(cfg.DownloadTimeout())
}

// newSettings loads the persisted user state from the content root
func newSettings(logger *zap.Logger, cfg *config.AppConfig) (*settings.Settings, error) {
	return settings.Load(logger, filepath.Join(cfg.ContentRoot(), "config.json"))
}

// newTrackers assembles the per-provider stacks: content store, dedup
// store, reveal scheduler, view model and download tracker, with the
// reveal hooks closing the tracker/view loop.
func newTrackers(
	logger *zap.Logger,
	appCfg *config.AppConfig,
	cfg domain.Config,
	sets *settings.Settings,
	fetch domain.Fetcher,
	setter domain.WallpaperSetter,
	notifier domain.Notifier,
) ([]engine.Downloader, error) {
	type providerSpec struct {
		provider domain.Provider
		opts     tracker.Options
	}

	market := "en-US"
	if langs := sets.Languages(); len(langs) > 0 {
		market = langs[0]
	}

	specs := []providerSpec{
		{
			provider: provider.NewBing(logger, market),
			opts:     tracker.Options{LookbackDays: cfg.LookbackDays()},
		},
	}

	if id, secret := appCfg.OsuCredentials(); id != "" && secret != "" {
		specs = append(specs, providerSpec{
			provider: provider.NewOsu(logger, id, secret),
			opts:     tracker.Options{HashGated: true},
		})
	} else {
		logger.Warn("osu! credentials not configured, provider disabled")
	}

	var downloaders []engine.Downloader
	for _, spec := range specs {
		name := spec.provider.Name()
		store := storage.NewStore(logger, cfg.ContentRoot(), name)
		dedupStore := dedup.NewStore(logger,
			filepath.Join(cfg.ContentRoot(), name, "processed.json"))
		scheduler := reveal.NewScheduler(logger)
		model := viewmodel.New(logger, store, sets, scheduler, setter, notifier)
		if err := model.Load(); err != nil {
			return nil, err
		}

		tr := tracker.New(logger, spec.provider, fetch, store, dedupStore,
			scheduler, model, model, cfg, spec.opts)

		scheduler.Bind(reveal.Hooks{
			Redownload: func(ctx context.Context) {
				// reload first: the fired reveal no longer holds a date, so
				// the fresh scan shows the revealed day as existing
				tr.DownloadMissing(ctx, nil, true)
			},
			Reload: model.ReloadImages,
			MoveToNewest: func() {
				model.MoveToNewest(context.Background())
			},
		})

		downloaders = append(downloaders, tr)
	}
	return downloaders, nil
}

// registerHooks ties the monitor and engine to the fx lifecycle
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, mon domain.Monitor, eng *engine.Engine) {
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Daemon starting")
			go func() {
				if err := mon.Start(monitorCtx); err != nil && monitorCtx.Err() == nil {
					logger.Error("Monitor stopped unexpectedly", zap.Error(err))
				}
			}()
			return eng.Start(monitorCtx)
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			cancelMonitor()
			if err := eng.Stop(ctx); err != nil {
				return err
			}
			return mon.Stop(ctx)
		},
	})
}
