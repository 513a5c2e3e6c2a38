package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/yourusername/kukisti/internal/commands"
	"github.com/yourusername/kukisti/internal/config"
	"github.com/yourusername/kukisti/internal/database"
	"github.com/yourusername/kukisti/internal/errors"
	"github.com/yourusername/kukisti/internal/handlers"
	"github.com/yourusername/kukisti/internal/irc"
	"github.com/yourusername/kukisti/internal/maintenance"
	"github.com/yourusername/kukisti/internal/output"
	"github.com/yourusername/kukisti/internal/ratelimit"
	"github.com/yourusername/kukisti/internal/reconnect"
	"github.com/yourusername/kukisti/internal/shutdown"
	"github.com/yourusername/kukisti/internal/upstream"
	"github.com/yourusername/kukisti/internal/urltitle"
)

func main() {
	configPath := pflag.StringP("config", "c", "config/bot.toml", "Path to the TOML or YAML configuration file")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	noReconnect := pflag.Bool("no-reconnect", false, "Exit when the connection drops instead of reconnecting")
	rollback := pflag.Bool("rollback", false, "Rollback the last applied database migration")
	stats := pflag.Bool("stats", false, "Print command usage for the last 7 days and exit")
	pflag.Parse()

	logger := output.NewColorLogger()
	logger.Info("Kukisti IRC Bot - Starting...")

	cfg, err := config.LoadOrCreate(*configPath)
	if err != nil {
		logger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	logger.SetDebug(cfg.Logging.Debug || *debug)
	logger.Success("Configuration loaded from %s", *configPath)

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to initialize database: %v", err)
		os.Exit(1)
	}
	logger.Success("Database initialized")

	if *rollback || *stats {
		code := 0
		if err := runMaintenanceFlag(db, logger, *rollback); err != nil {
			logger.Error("%v", err)
			code = 1
		}
		_ = db.Close()
		os.Exit(code)
	}

	out, err := output.NewOutput(logger, cfg.Logging.ErrorLog, cfg.Logging.MaxLogSizeMB, cfg.Logging.MaxLogFiles)
	if err != nil {
		logger.Error("Failed to initialize output: %v", err)
		_ = db.Close()
		os.Exit(1)
	}
	errHandler := errors.NewHandler(out)

	scheduler := maintenance.New(db, logger,
		cfg.Database.GetVacuumIntervalDuration(),
		cfg.Database.RetentionDays,
		cfg.APIs.GetTitleCacheTTL(),
	)
	if err := scheduler.Start(); err != nil {
		logger.Error("Failed to start maintenance scheduler: %v", err)
		_ = db.Close()
		os.Exit(1)
	}

	client := upstream.New(cfg.APIs.GetRequestTimeoutDuration(), logger)
	builtins := handlers.NewSet(cfg.APIs, client)

	var registry *commands.Registry
	registry, err = commands.NewRegistry(builtins.Entries(cfg.Bot.CommandPrefix, func() []string {
		return registry.Aliases()
	})...)
	if err != nil {
		logger.Error("Failed to build command registry: %v", err)
		os.Exit(1)
	}
	for _, c := range registry.Conflicts() {
		logger.Warning("Alias %s of %s is overridden by %s", c.Alias, c.Previous, c.Winner)
	}
	logger.Success("Registered %d commands", len(registry.Entries()))

	pool := commands.NewPool(cfg.Limits.MaxWorkers, cfg.Limits.LaneQueueSize, logger)
	dispatcher := commands.NewDispatcher(cfg, registry, pool, logger, errHandler)
	dispatcher.SetUsageRecorder(db)

	stopCleanup := make(chan struct{})
	if dispatcher.Cooldown().Enabled() {
		go dispatcher.Cooldown().StartCleanup(5*time.Minute, stopCleanup)
	}

	// Shared so reconnects keep their flood credit
	gate := ratelimit.NewFloodGate(cfg.Limits.GetSendIntervalDuration(), cfg.Limits.SendBurst)
	supervisor := reconnect.New(func() reconnect.Session {
		return irc.NewSession(cfg, logger, dispatcher, gate)
	}, logger,
		cfg.Limits.GetReconnectDelayMinDuration(),
		cfg.Limits.GetReconnectDelayMaxDuration(),
		!*noReconnect,
	)

	fetcher := urltitle.New(client, supervisor, db, cfg.APIs.GetTitleCacheTTL(), logger)
	dispatcher.SetSender(supervisor)
	dispatcher.SetLinkHandler(fetcher)
	dispatcher.SetStopper(supervisor)

	grace := cfg.Limits.GetShutdownGraceDuration()
	shutdownHandler := shutdown.NewHandler(logger, grace+10*time.Second)
	registerShutdown(shutdownHandler, pool, supervisor, grace)
	shutdownHandler.Register("cooldown cleanup", func() error {
		close(stopCleanup)
		return nil
	})
	shutdownHandler.Register("maintenance", scheduler.Stop)
	shutdownHandler.Register("database", db.Close)
	shutdownHandler.Register("error log", out.Close)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		logger.Info("Connecting to %s:%d as %s", cfg.Server.Address, cfg.Server.Port, cfg.Server.Nickname)
		runErr <- supervisor.Run(ctx)
		cancel()
	}()

	shutdownHandler.Wait(ctx)
	shutdownHandler.Stop()
	cancel()

	if err := <-runErr; err != nil {
		logger.Error("Session ended: %v", err)
		os.Exit(1)
	}
	logger.Info("Goodbye")
}

// registerShutdown adds the pool and session steps. The pool drains before
// the session closes so in-flight replies can still be written during the
// grace period.
func registerShutdown(h *shutdown.Handler, pool *commands.Pool, supervisor *reconnect.Supervisor, grace time.Duration) {
	h.Register("handler pool", func() error {
		if !pool.Shutdown(grace) {
			return fmt.Errorf("handlers still running after %v", grace)
		}
		return nil
	})
	h.Register("session", func() error {
		supervisor.Stop()
		return nil
	})
}

func runMaintenanceFlag(db *database.DB, logger output.Logger, rollback bool) error {
	if rollback {
		logger.Info("Rolling back last migration...")
		if err := db.Rollback(); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		logger.Success("Migration rolled back successfully")
		return nil
	}

	stats, err := db.GetCommandStats(context.Background(), time.Now().Add(-7*24*time.Hour))
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		logger.Info("No commands used in the last 7 days")
	}
	for _, s := range stats {
		logger.Info("%-10s %6d calls %4d failed %8.1f ms avg", s.Command, s.Count, s.Failures, s.AverageMillis)
	}
	return nil
}
