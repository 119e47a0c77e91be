// Command sendinvites creates and sends invitations to the people that
// requested one, oldest requests first, from a designated sender whose
// available quota is raised to cover the batch.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/stanstork/invitation-api/internal/config"
	"github.com/stanstork/invitation-api/internal/events"
	"github.com/stanstork/invitation-api/internal/invites"
	"github.com/stanstork/invitation-api/internal/keygen"
	"github.com/stanstork/invitation-api/internal/notification"
	"github.com/stanstork/invitation-api/internal/repository"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	var (
		count           = flag.Int("count", 0, "How many invitations to send.")
		fromUsername    = flag.String("from-username", "", "A username from whom the invitations are sent.")
		subjectTemplate = flag.String("subject-template", "", "Path to a template to use for the email subject.")
		messageTemplate = flag.String("message-template", "", "Path to a template to use for the email body.")
		dryRun          = flag.Bool("dry-run", false, "Don't send anything, just show who would be invited.")
		verbose         = flag.Bool("v", false, "Verbose output.")
	)
	flag.Parse()

	if *count <= 0 || *fromUsername == "" {
		fmt.Fprintln(os.Stderr, "Usage example: sendinvites -count=100 -from-username=admin")
		os.Exit(2)
	}

	level := zerolog.WarnLevel
	if *verbose {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()
	log.SetFlags(0)
	log.SetOutput(logger)

	cfg := config.Load()

	tpls, err := notification.LoadTemplates(*subjectTemplate, *messageTemplate)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load email templates")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	var mailer notification.Mailer
	if !*dryRun {
		mailer, err = notification.NewSMTPMailer(cfg.Email)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure invitation mailer")
		}
	}

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
		events.NewLogPublisher(logger),
		cfg.Invitations.TTL(),
		cfg.Invitations.InitialQuota,
		logger,
	)
	issuer := invites.NewBatchIssuer(service, requestRepo, userRepo, logger)

	result, err := issuer.Run(context.Background(), *fromUsername, *count, *dryRun, time.Now().UTC(), tpls)
	if err != nil {
		if errors.Is(err, invites.ErrUnknownSender) {
			logger.Fatal().Msgf("User %q does not exist.", *fromUsername)
		}
		logger.Fatal().Err(err).Msg("batch issuance failed")
	}

	if *dryRun {
		for _, email := range result.Recipients {
			fmt.Printf("Will invite %s\n", email)
		}
		return
	}

	for _, skipped := range result.SkippedItems {
		fmt.Fprintf(os.Stderr, "Skipped %s: %s\n", skipped.Email, skipped.Reason)
	}
	fmt.Printf("%d invitations were sent.\n", result.Issued)
}
