package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachplanner/internal/api"
	"coachplanner/internal/config"
	"coachplanner/internal/database"
	"coachplanner/internal/domain"
	"coachplanner/internal/events"
	"coachplanner/internal/export"
	"coachplanner/internal/google"
	"coachplanner/internal/logging"
	"coachplanner/internal/metrics"
	"coachplanner/internal/models"
	"coachplanner/internal/notify"
	"coachplanner/internal/repository"
	"coachplanner/internal/service"
	"coachplanner/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logging.Component(&logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	if err := service.SyncSeed(ctx, db, cfg.Seed, &logger); err != nil {
		return fmt.Errorf("sync seed: %w", err)
	}

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer func() { _ = repository.Close(redisClient) }()
	}

	bus := events.NewEventBus()
	events.RegisterAuditLog(bus, logging.Component(&logger, "audit"))

	outbox := worker.NewOutboxWorker(db, redisClient, worker.RetryPolicyFromConfig(cfg.Worker),
		cfg.Worker.PollInterval, logging.Component(&logger, "outbox"))
	opts := registerHandlers(ctx, cfg, outbox, &logger)
	notifier := notify.NewNotifier(db, outbox, opts, logging.Component(&logger, "notify"))

	loc := cfg.Scheduling.Location()
	svc := api.Services{
		Auth:         service.NewAuthService(db, sessionStore(cfg, redisClient, &logger), cfg.API.SessionTTL, cfg.API.Login.MaxAttempts, cfg.API.Login.Window, logging.Component(&logger, "auth")),
		Availability: service.NewAvailabilityService(db, cfg.Scheduling.WeekdayBase, loc, logging.Component(&logger, "availability")),
		Booking:      service.NewBookingService(db, notifier, bus, loc, logging.Component(&logger, "booking")),
		Directory:    service.NewDirectoryService(db),
		Exporter:     export.NewAgendaExporter(cfg.Exports.Path, logging.Component(&logger, "export")),
		Health:       db,
	}

	reportDeadLetters(ctx, db, &logger)
	go outbox.Start(ctx)
	go database.NewBackupService(db, cfg.Backup, logging.Component(&logger, "backup")).Start(ctx)
	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.App.BaseURL, loc, svc, logging.Component(&logger, "http"))

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API, db, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(client)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

func sessionStore(cfg *config.Config, client *redis.Client, logger *zerolog.Logger) domain.SessionStore {
	memory := repository.NewMemorySessionStore(cfg.API.SessionTTL)
	if client == nil {
		return memory
	}
	primary := repository.NewRedisSessionStore(client, cfg.API.SessionTTL)
	return repository.NewFailoverSessionStore(primary, memory, logging.Component(logger, "sessions"))
}

// registerHandlers wires one delivery handler per configured channel.
func registerHandlers(ctx context.Context, cfg *config.Config, outbox *worker.OutboxWorker, logger *zerolog.Logger) notify.Options {
	opts := notify.Options{BaseURL: cfg.App.BaseURL}

	if cfg.SMTP.Enabled() {
		outbox.Handle(models.TaskEmail, notify.EmailHandler(notify.NewSMTPMailer(cfg.SMTP)))
	} else {
		logger.Warn().Msg("smtp not configured, emails are only logged")
		outbox.Handle(models.TaskEmail, notify.EmailHandler(notify.NewLogMailer(logging.Component(logger, "mail"))))
	}

	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewTelegramBot(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		} else {
			outbox.Handle(models.TaskTelegram, notify.TelegramHandler(notify.NewTelegramSender(bot)))
			opts.Telegram = true
		}
	}

	if sheets := initGoogleSheets(ctx, cfg, logger); sheets != nil {
		outbox.Handle(models.TaskSheetsAppend, notify.SheetsHandler(sheets))
		opts.Sheets = true
	}
	return opts
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.AgendaSpreadsheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.AgendaSpreadsheetID, cfg.Google.AgendaSheetName)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		event := logger.Warn().Err(err)
		if email, mailErr := google.ServiceAccountEmail(cfg.Google.CredentialsFile); mailErr == nil {
			event = event.Str("share_with", email)
		}
		event.Msg("google sheets not reachable, continuing without sheets")
		return nil
	}
	if err := sheets.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets header check failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheets
}

// reportDeadLetters logs outbox tasks that exhausted their retries.
func reportDeadLetters(ctx context.Context, db *database.DB, logger *zerolog.Logger) {
	failed, err := db.GetFailedOutboxTasks(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("load failed outbox tasks")
		return
	}
	for _, task := range failed {
		lastErr := ""
		if task.LastError != nil {
			lastErr = *task.LastError
		}
		logger.Warn().
			Int64("task_id", task.ID).
			Str("task_type", task.TaskType).
			Int64("appointment_id", task.AppointmentID).
			Str("last_error", lastErr).
			Msg("undelivered notification")
	}
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go grpcServer.RunProbe(ctx)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
