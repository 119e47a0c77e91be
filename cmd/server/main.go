package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/config"
	"github.com/stanstork/invitation-api/internal/events"
	"github.com/stanstork/invitation-api/internal/handlers"
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/keygen"
	"github.com/stanstork/invitation-api/internal/middleware"
	"github.com/stanstork/invitation-api/internal/migration"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/repository"
	"github.com/stanstork/invitation-api/internal/routes"
	"github.com/stanstork/invitation-api/internal/temporal"
	"github.com/stanstork/invitation-api/internal/temporal/activities"
	"github.com/stanstork/invitation-api/internal/temporal/workflows"

	_ "github.com/lib/pq" // PostgreSQL driver
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	temporalClient tc.Client
	logger         zerolog.Logger
	publisher      events.Publisher
	issuer         *invites.BatchIssuer
	service        *invites.Service
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Event hooks: kafka when brokers are configured, log output otherwise.
	var publisher events.Publisher
	if len(cfg.Events.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		logger.Info().Strs("brokers", cfg.Events.KafkaBrokers).Msg("publishing invitation events to kafka")
	} else {
		publisher = events.NewLogPublisher(logger)
	}
	defer publisher.Close()

	// Mailer for invitation emails.
	mailer, err := notification.NewSMTPMailer(cfg.Email)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure invitation mailer")
	}

	// Repositories and the invitation service.
	invitationRepo := repository.NewInvitationRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	userRepo := repository.NewUserRepository(db)

	service := invites.NewService(
		invitationRepo,
		statsRepo,
		requestRepo,
		userRepo,
		keygen.New(),
		mailer,
		publisher,
		cfg.Invitations.TTL(),
		cfg.Invitations.InitialQuota,
		logger,
	)
	issuer := invites.NewBatchIssuer(service, requestRepo, userRepo, logger)

	app := &application{
		config:    cfg,
		db:        db,
		logger:    logger,
		publisher: publisher,
		service:   service,
		issuer:    issuer,
	}

	// Temporal powers the periodic backlog drain; the API runs without it.
	var temporalWorker worker.Worker
	if cfg.Temporal.Enabled {
		temporalClient, err := tc.Dial(tc.Options{
			HostPort: cfg.Temporal.HostPort,
			Logger:   temporal.NewTemporalAdapter(logger),
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Unable to create Temporal client")
		}
		defer temporalClient.Close()
		app.temporalClient = temporalClient

		temporalWorker = app.startTemporalWorker(logger)
		app.scheduleBatchCron(logger)
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, temporalWorker, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	invitationRepo := repository.NewInvitationRepository(app.db)
	requestRepo := repository.NewRequestRepository(app.db)
	userRepo := repository.NewUserRepository(app.db)

	inviteHandler := handlers.NewInviteHandler(app.service, invitationRepo, userRepo, logger)
	requestHandler := handlers.NewRequestHandler(app.service, requestRepo, logger)
	statsHandler := handlers.NewStatsHandler(app.service, userRepo, logger)
	batchHandler := handlers.NewBatchHandler(app.temporalClient, logger)

	return routes.NewRouter(app.config.JWTSecret, inviteHandler, requestHandler, statsHandler, batchHandler)
}

func (app *application) startTemporalWorker(logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		Issuer: app.issuer,
	}

	w := worker.New(app.temporalClient, temporal.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.BatchIssueWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// scheduleBatchCron registers the recurring backlog drain. The fixed
// workflow ID keeps at most one cron instance alive; an already-started
// error on restart is expected and harmless.
func (app *application) scheduleBatchCron(logger zerolog.Logger) {
	if app.config.Temporal.BatchSender == "" {
		logger.Warn().Msg("temporal.batch_sender not configured, skipping batch cron")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	options := tc.StartWorkflowOptions{
		ID:           temporal.CronWorkflowID,
		TaskQueue:    temporal.TaskQueueName,
		CronSchedule: app.config.Temporal.BatchCron,
	}
	_, err := app.temporalClient.ExecuteWorkflow(ctx, options, workflows.BatchIssueWorkflow, temporal.BatchParams{
		FromUsername: app.config.Temporal.BatchSender,
		Count:        app.config.Temporal.BatchSize,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to schedule batch cron workflow")
		return
	}
	logger.Info().Str("cron", app.config.Temporal.BatchCron).Msg("batch cron workflow scheduled")
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, temporalWorker worker.Worker, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	if temporalWorker != nil {
		logger.Info().Msg("Stopping Temporal worker...")
		temporalWorker.Stop()
		logger.Info().Msg("Temporal worker stopped.")
	}
}
