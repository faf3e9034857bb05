// @title        Installation Operations API
// @version      1.0
// @description  Retail installation scheduling, crews, checklists and media.
// @BasePath     /api/v1
package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/installation-api/docs"
	"github.com/fieldops/installation-api/internal/api"
	"github.com/fieldops/installation-api/internal/api/handler"
	"github.com/fieldops/installation-api/internal/api/session"
	"github.com/fieldops/installation-api/internal/core/service"
	mongodb "github.com/fieldops/installation-api/internal/infrastructure/db/mongo"
	redisdb "github.com/fieldops/installation-api/internal/infrastructure/db/redis"
	"github.com/fieldops/installation-api/internal/infrastructure/queue"
	"github.com/fieldops/installation-api/internal/pkg/config"
	"github.com/fieldops/installation-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		// The configured logger may not exist yet.
		log := startupLogger(os.Stderr)
		log.Fatal().Err(err).Msg("installation-api stopped")
	}
}

func startupLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("service", "installation-api").Logger()
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "installation-api",
		Env:     cfg.Env,
	})

	// --- Storage ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(dctx); err != nil {
			log.Warn().Err(err).Msg("mongo disconnect")
		}
	}()
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		return err
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	users := mongodb.NewUserRepository(db)
	roles := mongodb.NewRoleRepository(db)
	installations := mongodb.NewInstallationRepository(db)
	templates := mongodb.NewChecklistTemplateRepository(db)
	responses := mongodb.NewChecklistResponseRepository(db)
	media := mongodb.NewMediaRepository(db)
	stores := mongodb.NewStoreRepository(db)
	addresses := mongodb.NewAddressRepository(db)
	auditLogs := mongodb.NewAuditRepository(db)

	sessions := redisdb.NewSessionStore(rdb, cfg.Session.TTL)
	limiter := redisdb.NewAttemptLimiter(rdb, cfg.Limits.LoginAttempts, cfg.Limits.LoginWindow)

	// --- Audit pipeline ---
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, cfg.Audit.Buffer, auditLogs, log)
	dispatcher.Start(ctx)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("audit queue not fully drained")
		}
	}()
	audit := service.NewAuditService(dispatcher, auditLogs, log)

	// --- Services ---
	docs.SwaggerInfo.BasePath = cfg.APIPrefix

	router := api.NewRouter(api.Deps{
		Config:        cfg,
		Log:           log,
		Sessions:      sessions,
		Limiter:       limiter,
		Codec:         session.NewCodec(cfg.Session.Secret, cfg.Session.TTL, cfg.SecureCookies(), cfg.Session.CookieSameSite),
		Auth:          service.NewAuthService(users, roles, sessions, audit, log),
		Users:         service.NewUserService(users, roles, audit, log),
		Roles:         service.NewRoleService(roles, audit),
		Installations: service.NewInstallationService(installations, stores, users, audit, log),
		Checklists:    service.NewChecklistService(templates, responses, installations, audit, log),
		Media:         service.NewMediaService(media, installations, audit),
		References:    service.NewReferenceService(stores, addresses, audit),
		Audit:         audit,
		Checks: map[string]handler.Check{
			"mongo": handler.MongoCheck(db),
			"redis": handler.RedisCheck(rdb),
		},
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("api", cfg.APIPrefix).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
