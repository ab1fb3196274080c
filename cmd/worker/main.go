package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hawkerboys/tms-api/internal/registry"
	"github.com/hawkerboys/tms-api/internal/repository"
	"github.com/hawkerboys/tms-api/internal/service"
	syncer "github.com/hawkerboys/tms-api/internal/sync"
	"github.com/hawkerboys/tms-api/pkg/cache"
	"github.com/hawkerboys/tms-api/pkg/config"
	"github.com/hawkerboys/tms-api/pkg/database"
	"github.com/hawkerboys/tms-api/pkg/logger"
	"github.com/hawkerboys/tms-api/pkg/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	rdb, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer rdb.Close()

	metricsSvc := service.NewMetricsService()

	s := syncer.NewSyncer(
		repository.NewCourseRepository(db),
		repository.NewClassRunRepository(db),
		repository.NewEnrollmentRepository(db),
		repository.NewAttendanceRepository(db),
		func() syncer.RegistryClient { return registry.New(cfg.Registry, logr) },
		logr,
	)

	handle := func(ctx context.Context, job queue.Job) error {
		start := time.Now()
		err := s.Handle(ctx, job)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metricsSvc.ObserveSyncJob(job.Kind, outcome, time.Since(start))
		return err
	}

	q := queue.New(cfg.Sync.QueueName, rdb, handle, queue.Config{
		Workers:    cfg.Sync.WorkerConcurrency,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay,
		JobTimeout: cfg.Sync.JobTimeout,
		Logger:     logr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q.Start(ctx)
	logr.Sugar().Infow("sync worker started",
		"queue", cfg.Sync.QueueName,
		"workers", cfg.Sync.WorkerConcurrency,
	)

	go refreshQueueGauges(ctx, q, metricsSvc)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", metricsSvc.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Errorw("metrics server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down sync worker")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
	q.Stop()
	logr.Info("sync worker stopped")
}

// refreshQueueGauges samples queue depth and dead-letter count so the
// scrape endpoint reflects backlog without querying Redis on every scrape.
func refreshQueueGauges(ctx context.Context, q *queue.Queue, metrics *service.MetricsService) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.Depth(ctx)
			if err != nil {
				continue
			}
			dead, err := q.DeadLetterCount(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueGauges(depth, dead)
		}
	}
}
