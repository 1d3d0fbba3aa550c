// Command filevault-worker runs the thumbnail rendering workers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rise-and-shine/filevault/internal/config"
	"github.com/rise-and-shine/filevault/internal/content"
	"github.com/rise-and-shine/filevault/internal/metadata"
	"github.com/rise-and-shine/filevault/internal/queue"
	"github.com/rise-and-shine/filevault/internal/thumbnail"
	"github.com/rise-and-shine/filevault/internal/worker"
	"github.com/rise-and-shine/filevault/pkg/logger"
	"github.com/rise-and-shine/filevault/pkg/pg"
)

func main() {
	cfg := config.MustLoad()

	logger.SetGlobal(cfg.Logger)
	log := logger.Named("filevault.worker")
	defer logger.Sync() //nolint:errcheck

	db, err := pg.NewBunDB(cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	repo := metadata.NewPostgresRepository(db)
	store := content.NewDiskStore(cfg.Storage)

	jobs := queue.NewPostgresQueue(db, cfg.Queue)
	if err := jobs.Migrate(context.Background()); err != nil {
		log.Fatalf("failed to migrate queue schema: %v", err)
	}

	pool := worker.NewPool(cfg.Worker, jobs, thumbnail.NewTask(repo, store), log, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolDone := make(chan struct{})
	go func() {
		defer close(poolDone)
		_ = pool.Start(ctx)
	}()
	log.Infof("worker pool started with concurrency %d", cfg.Worker.Concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Infof("received signal %s, shutting down", sig)

	if err := pool.Stop(); err != nil {
		log.Errorx(err)
	}
	<-poolDone
}
