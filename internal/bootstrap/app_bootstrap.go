package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"passgate/internal/config"
	"passgate/internal/repository"
	"passgate/internal/utils"

	"github.com/rs/zerolog/log"
)

type BootstrapApp struct {
	config  config.Config
	context struct {
		users      []config.User
		pathPrefix string
	}
	services Services
}

func NewBootstrapApp(config config.Config) *BootstrapApp {
	return &BootstrapApp{
		config: config,
	}
}

func (app *BootstrapApp) Setup() error {
	// Parse users
	users, err := utils.GetUsers(app.config.Users, app.config.UsersFile)

	if err != nil {
		return err
	}

	app.context.users = users

	if app.config.GuardName == "local" && len(users) == 0 {
		return fmt.Errorf("the local guard is selected but no users are configured")
	}

	// Route namespace for the OAuth endpoints
	app.context.pathPrefix = "/" + strings.Trim(app.config.PathPrefix, "/")

	log.Trace().Interface("config", app.config).Msg("Config dump")
	log.Trace().Int("users", len(app.context.users)).Msg("Parsed users")

	// Services
	services, err := app.initServices()

	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	app.services = services

	// Setup router
	router, err := app.setupRouter()

	if err != nil {
		return fmt.Errorf("failed to setup routes: %w", err)
	}

	// Start db cleanup routine
	log.Debug().Msg("Starting database cleanup routine")
	go app.dbCleanup(repository.New(services.databaseService.GetDatabase()))

	// Start server
	address := fmt.Sprintf("%s:%d", app.config.Address, app.config.Port)
	log.Info().Msgf("Starting server on %s", address)
	if err := router.Run(address); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}

	return nil
}

// dbCleanup periodically drops expired sessions, pending authorizations,
// codes and token records.
func (app *BootstrapApp) dbCleanup(queries *repository.Queries) {
	for range time.Tick(time.Duration(10) * time.Minute) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(30)*time.Second)
		now := time.Now().Unix()

		if err := queries.DeleteExpiredSessions(ctx, now); err != nil {
			log.Error().Err(err).Msg("Failed to delete expired sessions")
		}

		if err := queries.DeleteExpiredPendingAuthorizations(ctx, now); err != nil {
			log.Error().Err(err).Msg("Failed to delete expired pending authorizations")
		}

		if err := queries.DeleteExpiredAuthorizationCodes(ctx, now); err != nil {
			log.Error().Err(err).Msg("Failed to delete expired authorization codes")
		}

		if err := queries.DeleteExpiredAccessTokens(ctx, now); err != nil {
			log.Error().Err(err).Msg("Failed to delete expired access token records")
		}

		cancel()
	}
}
