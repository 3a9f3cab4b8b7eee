// Command flowengine is the composition root: it wires internal/config,
// internal/logger, internal/db, internal/cache, internal/queue,
// internal/telemetry, internal/ratelimit, the external/* collaborators,
// flow/board, flow/release, flow/scheduler, flow/catalog, and the
// transport/http (+ transport/chat) servers together, the direct
// generalization of cmd/orchestrator/main.go's bootstrap
// sequence (bootstrap.Setup -> container.NewContainer -> echo wiring)
// down to a single process instead of a container-per-service split.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	execctx "github.com/lyzr/flowengine/flow/context"
	"github.com/lyzr/flowengine/flow/board"
	"github.com/lyzr/flowengine/flow/catalog"
	"github.com/lyzr/flowengine/flow/release"
	"github.com/lyzr/flowengine/flow/scheduler"

	"github.com/lyzr/flowengine/external/httpclient"
	"github.com/lyzr/flowengine/external/model"
	"github.com/lyzr/flowengine/external/store"
	"github.com/lyzr/flowengine/external/users"
	"github.com/lyzr/flowengine/external/vectordb"

	"github.com/lyzr/flowengine/internal/boardstore"
	"github.com/lyzr/flowengine/internal/cache"
	"github.com/lyzr/flowengine/internal/config"
	"github.com/lyzr/flowengine/internal/db"
	"github.com/lyzr/flowengine/internal/logger"
	"github.com/lyzr/flowengine/internal/queue"
	"github.com/lyzr/flowengine/internal/ratelimit"
	"github.com/lyzr/flowengine/internal/telemetry"

	transportchat "github.com/lyzr/flowengine/transport/chat"
	transporthttp "github.com/lyzr/flowengine/transport/http"
	transportmail "github.com/lyzr/flowengine/transport/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "flowengine: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load("flowengine")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)
	log.Info("flowengine starting", "environment", cfg.Service.Environment)

	pool, err := db.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	redisOpts := redisoptions(cfg)
	redisClient := redis.NewClient(&redisOpts)
	defer redisClient.Close()

	blobs := store.NewRedisStore(redisClient)
	boardStore := boardstore.New(blobs, pool)
	boards := board.NewService(boardStore)

	var memCache cache.Cache = cache.NewMemoryCache(log)
	defer memCache.Close()

	var eventQueue queue.Queue
	switch cfg.Queue.Type {
	case "redis":
		eventQueue = queue.NewRedisQueue(redisClient, log, "flowengine", cfg.Service.Name)
	default:
		eventQueue = queue.NewMemoryQueue(log)
	}
	defer eventQueue.Close()

	tel := telemetry.New(cfg.Telemetry.PprofPort, cfg.Telemetry.MetricsPort, log)
	if cfg.Telemetry.EnableMetrics || cfg.Telemetry.EnablePprof {
		go func() {
			if err := tel.Start(ctx); err != nil {
				log.Error("telemetry server stopped", "error", err)
			}
		}()
	}

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.NewRateLimiter(ratelimit.NewRedisRunner(redisClient), log)
	}

	services := execctx.Services{
		Store:    blobs,
		VectorDB: vectordb.NewMemoryVectorDB(),
		Model:    model.NewHTTPProvider(httpclient.New(), modelEndpoint()),
		HTTP:     httpclient.New(),
		Users:    usersDirectory(pool),
	}
	if cfg.Mail.Enabled {
		// Assigned only when enabled: a nil *Sender stored in the Mail
		// interface field would be a non-nil interface with a nil
		// underlying pointer, defeating send_mail's svc.Mail == nil check.
		services.Mail = transportmail.NewSender(transportmail.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUsername,
			Password: cfg.Mail.SMTPPassword,
			From:     cfg.Mail.SMTPFrom,
		})
	}

	releases := release.NewRegistry()
	sched := scheduler.New(catalog.Default(), log, 0)

	// mail_event boards are scoped to one mailbox per process: only started when both a relay and a poll target are
	// configured, matching cmd/orchestrator's pattern of leaving optional
	// workers out of the process unless their config section is set.
	if cfg.Mail.Enabled && cfg.Mail.PollBoardID != "" {
		poller := transportmail.NewPoller(transportmail.IMAPConfig{
			Host:       cfg.Mail.IMAPHost,
			Port:       cfg.Mail.IMAPPort,
			Username:   cfg.Mail.IMAPUsername,
			Password:   cfg.Mail.IMAPPassword,
			Mailbox:    cfg.Mail.IMAPMailbox,
			PollPeriod: cfg.Mail.PollInterval,
		}, cfg.Mail.PollBoardID, boards, sched, services, log)
		go poller.Run(ctx)
	}

	// run_completed fan-out, the direct
	// generalization of workflow_lifecycle.EventPublisher:
	// every run publishes its terminal status onto a named topic so
	// other processes (audit, metrics, notification transports) can
	// subscribe without coupling to the scheduler directly.
	if err := eventQueue.Subscribe(ctx, "run_completed", func(ctx context.Context, key string, value []byte) error {
		log.Info("run completed event observed", "run_id", key)
		return nil
	}); err != nil {
		log.Error("subscribe run_completed failed", "error", err)
	}

	httpServer := transporthttp.New(boards, sched, releases, limiter, services, memCache, eventQueue, log)
	chatHub := transportchat.NewHub(boards, sched, services, eventQueue, log)
	transportchat.RegisterRoutes(httpServer.Echo(), chatHub)
	go chatHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(fmt.Sprintf(":%d", cfg.Service.Port))
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

func redisoptions(cfg *config.Config) redis.Options {
	return redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

func modelEndpoint() string {
	if v := os.Getenv("MODEL_ENDPOINT"); v != "" {
		return v
	}
	return "http://localhost:11434/v1/chat/completions"
}

func usersDirectory(pool *db.DB) users.Directory {
	return users.NewPostgresDirectory(pool.Pool)
}
