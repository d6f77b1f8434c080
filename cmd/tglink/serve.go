package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fatih/color"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/tglink/internal/config"
	"github.com/memohai/tglink/internal/download"
	"github.com/memohai/tglink/internal/handlers"
	channelchecker "github.com/memohai/tglink/internal/healthcheck/checkers/channel"
	transferschecker "github.com/memohai/tglink/internal/healthcheck/checkers/transfers"
	"github.com/memohai/tglink/internal/leech"
	"github.com/memohai/tglink/internal/links"
	"github.com/memohai/tglink/internal/logger"
	"github.com/memohai/tglink/internal/server"
	"github.com/memohai/tglink/internal/telegram"
	"github.com/memohai/tglink/internal/version"
)

type configPath string

func runServe(path string) error {
	app := fx.New(
		fx.Supply(configPath(path)),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideLinks,
			provideTelegramClient,
			provideDownloadRelay,
			provideLeechRelay,
			provideBot,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewDownloadHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(
			startReaper,
			startBot,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	return logger.L
}

type linkSet struct {
	fx.Out
	Issuer links.Issuer
	Source links.Source
	// Registry is nil in signed mode, where nothing needs reaping.
	Registry *links.Registry
}

func provideLinks(log *slog.Logger, cfg config.Config) (linkSet, error) {
	if cfg.Links.Mode == config.LinkModeSigned {
		signer, err := links.NewSigner(cfg.Links.Secret, cfg.Links.TTLDuration())
		if err != nil {
			return linkSet{}, err
		}
		return linkSet{Issuer: signer, Source: signer}, nil
	}
	registry := links.NewRegistry(log)
	return linkSet{Issuer: registry, Source: registry, Registry: registry}, nil
}

func provideTelegramClient(log *slog.Logger, cfg config.Config) (*telegram.Client, error) {
	return telegram.NewClient(log, cfg.Telegram.BotToken, cfg.Telegram.APIEndpoint)
}

func provideDownloadRelay(log *slog.Logger, cfg config.Config, source links.Source, client *telegram.Client) *download.Relay {
	return download.NewRelay(log, source, client, download.Options{
		TTL:       cfg.Links.TTLDuration(),
		ChunkSize: cfg.Links.ChunkSize,
	})
}

func provideLeechRelay(log *slog.Logger, cfg config.Config, client *telegram.Client) *leech.Relay {
	httpClient := leech.NewHTTPClient(cfg.Leech.ResponseHeaderTimeoutDuration())
	return leech.NewRelay(log, httpClient, leech.NewSessions(), client, leech.Options{
		MaxSize:          cfg.Leech.MaxUploadBytes,
		ProgressInterval: cfg.Leech.ProgressIntervalDuration(),
		UserAgent:        cfg.Leech.UserAgent,
	})
}

func provideBot(log *slog.Logger, cfg config.Config, client *telegram.Client, issuer links.Issuer, relay *leech.Relay) *telegram.Bot {
	return telegram.NewBot(log, client, issuer, relay, telegram.BotOptions{
		PublicURL:    cfg.Server.PublicURL,
		TTL:          cfg.Links.TTLDuration(),
		AllowedUsers: cfg.Telegram.AllowedUsers,
		PollTimeout:  cfg.Telegram.PollTimeout,
	})
}

func provideHealthHandler(log *slog.Logger, bot *telegram.Bot, registry *links.Registry, relay *leech.Relay) *handlers.HealthHandler {
	// A nil *Registry must not reach the Counter interface as a typed nil.
	var live transferschecker.Counter
	if registry != nil {
		live = registry
	}
	return handlers.NewHealthHandler(log,
		channelchecker.NewChecker(log, bot),
		transferschecker.NewChecker(live, relay.Sessions()),
	)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func startReaper(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, registry *links.Registry) {
	if registry == nil {
		return
	}
	reaper := links.NewReaper(log, registry, cfg.Links.TTLDuration(), cfg.Links.ReapIntervalDuration())
	runInBackground(lc, log, "reaper", reaper.Run)
}

func startBot(lc fx.Lifecycle, log *slog.Logger, bot *telegram.Bot) {
	runInBackground(lc, log, "bot", bot.Run)
}

// runInBackground starts run on OnStart and, on OnStop, cancels its context
// and waits for it to return or for the stop deadline.
func runInBackground(lc fx.Lifecycle, log *slog.Logger, name string, run func(context.Context) error) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				if err := run(ctx); err != nil {
					log.Error(name+" stopped", slog.Any("error", err))
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return fmt.Errorf("%s stop: %w", name, stopCtx.Err())
			}
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	fmt.Printf("%s %s\n", color.New(color.FgCyan, color.Bold).Sprint("Starting tglink"), version.GetInfo())
	fmt.Printf("Public URL: %s  Link mode: %s\n", color.GreenString(cfg.Server.PublicURL), color.GreenString(cfg.Links.Mode))
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
