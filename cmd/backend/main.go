package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	audioimpl "github.com/foxseedlab/otomaze/external/audio"
	configloader "github.com/foxseedlab/otomaze/external/config"
	"github.com/foxseedlab/otomaze/external/discord"
	repositoryimpl "github.com/foxseedlab/otomaze/external/repository"
	webhookimpl "github.com/foxseedlab/otomaze/external/webhook"
	"github.com/foxseedlab/otomaze/internal/config"
	discordpkg "github.com/foxseedlab/otomaze/internal/discord"
	"github.com/foxseedlab/otomaze/internal/session"
	"github.com/samber/do/v2"
)

const (
	discordConnectTimeout = 20 * time.Second
	sessionStartTimeout   = 30 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "output", cfg.Output)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching mixer")
	run(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	// stdout carries PCM in stdout mode
	out := os.Stdout
	if cfg.Output == config.OutputStdout {
		out = os.Stderr
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	repositoryimpl.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	session.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) {
	manager, err := do.Invoke[*session.Manager](injector)
	if err != nil {
		slog.Error("failed to resolve session manager", "error", err)
		os.Exit(1)
	}

	if cfg.Output == config.OutputDiscord {
		dc := mustConnectDiscord(injector)
		defer func() {
			if err := dc.Close(); err != nil {
				slog.Error("discord close failed", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), sessionStartTimeout)
	err = manager.Start(ctx)
	cancel()
	if err != nil {
		slog.Error("failed to start session", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	if err := manager.Stop(); err != nil {
		slog.Error("session stop failed", "error", err)
	}
}

func mustConnectDiscord(injector do.Injector) discordpkg.Client {
	dc, err := do.Invoke[discordpkg.Client](injector)
	if err != nil {
		slog.Error("failed to resolve discord client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), discordConnectTimeout)
	defer cancel()

	slog.Info("startup: connecting to discord gateway")
	if err := dc.Connect(ctx); err != nil {
		slog.Error("discord connect failed", "error", err)
		os.Exit(1)
	}
	botUserID, err := dc.GetBotUserID()
	if err != nil {
		slog.Error("failed to resolve bot user id", "error", err)
		os.Exit(1)
	}
	slog.Info("startup: discord connected", "bot_user_id", botUserID)
	return dc
}
