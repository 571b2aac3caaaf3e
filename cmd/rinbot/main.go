package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"rinbot/internal/bot"
	"rinbot/internal/checks"
	"rinbot/internal/config"
	"rinbot/internal/gateway"
	"rinbot/internal/health"
	"rinbot/internal/incident"
	"rinbot/internal/locale"
	"rinbot/internal/modules/antispam"
	"rinbot/internal/modules/autorole"
	"rinbot/internal/modules/welcome"
	"rinbot/internal/reconcile"
	"rinbot/internal/responder"
	"rinbot/internal/storage"
	"rinbot/internal/tasks"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	logger.Info("storage ready", zap.String("driver", store.Driver()))

	var strings *locale.Resolver
	if cfg.Locale.Dir != "" {
		strings, err = locale.NewFromDir(cfg.Locale.Dir, logger.Named("Locale"))
	} else {
		strings, err = locale.New(nil, logger.Named("Locale"))
	}
	if err != nil {
		logger.Fatal("locale init failed", zap.Error(err))
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session init failed", zap.Error(err))
	}

	discord := gateway.New(session, logger.Named("Gateway"))
	reply := responder.New(responder.NewDispatcher(session, logger.Named("Responder")), strings, logger.Named("Responder"))
	incidents := incident.NewRecorder(cfg.Logs.TracebackDir, logger.Named("Incidents"))
	spam := antispam.New(cfg.SpamFilter, store, discord, logger.Named("Antispam"))

	ownerToken := checks.NewOwnerToken()
	logger.Info("owner token generated, claim it with /owners me", zap.String("token", ownerToken.Value()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	botSvc := bot.New(bot.Deps{
		Config:     cfg,
		Logger:     logger,
		Session:    session,
		Store:      store,
		Gateway:    discord,
		Strings:    strings,
		Responder:  reply,
		Reconciler: reconcile.New(store, discord, logger.Named("Reconcile")),
		Welcome:    welcome.New(store, discord, logger.Named("Welcome")),
		AutoRole:   autorole.New(store, discord, logger.Named("AutoRole")),
		Antispam:   spam,
		Incidents:  incidents,
		OwnerToken: ownerToken,
		Shutdown:   stop,
	})
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.Strings("extensions", botSvc.Extensions().Names()))

	scheduler := tasks.NewManager(logger.Named("Tasks"))
	for _, task := range scheduledTasks(cfg, strings, discord, store, spam, logger) {
		if err := scheduler.Register(task); err != nil {
			logger.Fatal("task registration failed", zap.String("task", task.Name), zap.Error(err))
		}
	}
	scheduler.Start()
	logger.Info("tasks started", zap.Strings("tasks", scheduler.Names()))

	var server *health.Server
	if cfg.Health.Enabled {
		server = health.NewServer(cfg.Health.Addr, store, discord, logger.Named("Health"))
		server.Start()
		logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Gateway first so no new work arrives while handlers drain.
	botSvc.Close(shutdownCtx)
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("tasks did not stop in time", zap.Error(err))
	}
	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("health server shutdown failed", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

func scheduledTasks(cfg config.Config, strings *locale.Resolver, discord *gateway.Discord, store *storage.Store, spam *antispam.Module, logger *zap.Logger) []tasks.Task {
	var out []tasks.Task
	if cfg.Status.Enabled && cfg.TaskEnabled(tasks.StatusLoop) {
		statusLogger := logger.Named("Status")
		if !cfg.Status.Log {
			statusLogger = statusLogger.WithOptions(zap.IncreaseLevel(zapcore.WarnLevel))
		}
		interval := time.Duration(cfg.Status.IntervalMinutes) * time.Minute
		out = append(out, tasks.StatusRotation(strings, discord, cfg.Locale.Status, interval, cfg.Debug, statusLogger))
	}
	if cfg.TaskEnabled(tasks.BirthdayCheck) {
		out = append(out, tasks.BirthdayReminders(store, discord, strings, time.Now, logger.Named("Birthdays")))
	}
	if cfg.SpamFilter.Enabled {
		out = append(out, tasks.SpamWindowPrune(spam, logger.Named("Antispam")))
	}
	return out
}
