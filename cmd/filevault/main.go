// Command filevault runs the HTTP API server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rise-and-shine/filevault/internal/api"
	"github.com/rise-and-shine/filevault/internal/config"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/internal/service"
	"github.com/rise-and-shine/filevault/internal/session"
	"github.com/rise-and-shine/filevault/pkg/httpserver"
	"github.com/rise-and-shine/filevault/pkg/logger"
	"github.com/rise-and-shine/filevault/pkg/pg"
)

func main() {
	cfg := config.MustLoad()

	logger.SetGlobal(cfg.Logger)
	log := logger.Named("filevault.api")
	defer logger.Sync() //nolint:errcheck

	db, err := pg.NewBunDB(cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	repo := metadata.NewPostgresRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate metadata schema: %v", err)
	}

	redisClient, err := session.NewRedisClient(cfg.Redis)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close() //nolint:errcheck

	jobs := queue.NewPostgresQueue(db, cfg.Queue)
	if err := jobs.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate queue schema: %v", err)
	}

	sessions := session.NewRedisStore(redisClient)
	store := content.NewDiskStore(cfg.Storage)

	handler := api.NewHandler(
		service.NewAuthService(repo, sessions, cfg.Redis.TokenTTL, log),
		service.NewFileService(repo, store, jobs, log),
		service.NewStatusService(
			repo,
			func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			func(ctx context.Context) error { return db.PingContext(ctx) },
		),
	)

	srv := httpserver.New(cfg.HTTPServer, []httpserver.Middleware{
		httpserver.NewRecoveryMW(log),
		httpserver.NewTimeoutMW(cfg.HTTPServer.HandleTimeout),
		httpserver.NewMetaInjectMW(cfg.ServiceName, cfg.ServiceVersion),
		httpserver.NewLoggerMW(log),
	})
	api.RegisterRoutes(srv, handler)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()
	log.Infof("http server listening on %s", cfg.HTTPServer.Address())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			log.Errorx(err)
		}
	case sig := <-quit:
		log.Infof("received signal %s, shutting down", sig)
	}

	if err := srv.Stop(); err != nil {
		log.Errorx(err)
	}
}
