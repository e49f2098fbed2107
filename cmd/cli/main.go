package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachplanner/internal/config"
	"coachplanner/internal/database"
	"coachplanner/internal/events"
	"coachplanner/internal/export"
	"coachplanner/internal/logging"
	"coachplanner/internal/notify"
	"coachplanner/internal/repository"
	"coachplanner/internal/service"
	"coachplanner/internal/worker"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

// run books through the same services and database as the API. Notifications
// are only persisted here; the API's outbox worker delivers them.
func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg.Logging.Output = "stderr"
	if cfg.Logging.Level == "" || cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		return err
	}
	defer db.Close()

	if err := service.SyncSeed(ctx, db, cfg.Seed, logger); err != nil {
		return fmt.Errorf("sync seed: %w", err)
	}

	bus := events.NewEventBus()
	events.RegisterAuditLog(bus, logging.Component(logger, "audit"))

	outbox := worker.NewOutboxWorker(db, nil, worker.RetryPolicyFromConfig(cfg.Worker), cfg.Worker.PollInterval, logging.Component(logger, "outbox"))
	notifier := notify.NewNotifier(db, outbox, notify.Options{
		BaseURL:  cfg.App.BaseURL,
		Telegram: cfg.Telegram.BotToken != "",
		Sheets:   cfg.Google.CredentialsFile != "" && cfg.Google.AgendaSpreadsheetID != "",
	}, logging.Component(logger, "notify"))

	loc := cfg.Scheduling.Location()
	p := &prompter{
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
		auth:    service.NewAuthService(db, repository.NewMemorySessionStore(cfg.API.SessionTTL), cfg.API.SessionTTL, cfg.API.Login.MaxAttempts, cfg.API.Login.Window, logger),
		dir:     service.NewDirectoryService(db),
		avail:   service.NewAvailabilityService(db, cfg.Scheduling.WeekdayBase, loc, logger),
		booking: service.NewBookingService(db, notifier, bus, loc, logger),
		export:  export.NewAgendaExporter(cfg.Exports.Path, logger),
		loc:     loc,
		baseURL: cfg.App.BaseURL,
		now:     time.Now,
	}
	return p.run(ctx)
}
