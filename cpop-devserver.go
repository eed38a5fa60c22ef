package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chainsona/cpop-sub001/adapters/events"
	authhttp "github.com/chainsona/cpop-sub001/adapters/http"
	"github.com/chainsona/cpop-sub001/core"
	"github.com/chainsona/cpop-sub001/riverjobs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := core.LoadConfig()
	if err != nil {
		fatal(err)
	}
	setupLogging(cfg.LogLevel)

	cmd := "serve"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		cmd = strings.TrimSpace(os.Args[1])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "serve":
		err = runServe(ctx, cfg)
	case "migrate":
		err = runMigrate(ctx, cfg)
	default:
		err = fmt.Errorf("unknown command %q (supported: serve, migrate)", cmd)
	}
	if err != nil {
		fatal(err)
	}
}

func setupLogging(level string) {
	log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

func runServe(ctx context.Context, cfg core.Config) error {
	svc, err := authhttp.NewService(cfg)
	if err != nil {
		return err
	}

	var rdb redis.UniversalClient
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		svc.WithRedis(rdb)
	} else {
		log.Warn("REDIS_URL not set; sessions, challenges and rate limits are in-memory (single node only)")
	}

	pub, err := eventPublisher(rdb)
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
		svc.WithEventPublisher(pub)
	}

	if dbURL := cfg.PostgresURL(); dbURL != "" {
		pg, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		svc.WithPostgres(pg)
		if err := svc.Core().EnsureSignInSchema(ctx); err != nil {
			return fmt.Errorf("ensure sign-in schema: %w", err)
		}

		jobs, err := startJobs(ctx, cfg, pg, svc.Core())
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := jobs.Stop(stopCtx); err != nil {
				log.WithError(err).Warn("stop river client")
			}
		}()
	} else {
		log.Warn("DB_URL not set; sign-in audit log disabled")
	}

	svc.Start(ctx)
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/auth/", svc.APIHandler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": cfg.ListenAddr, "domain": cfg.Domain()}).Info("cpop auth server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

// eventPublisher returns a Redis Streams publisher when Redis is configured. A nil publisher
// leaves the service on its log publisher.
func eventPublisher(rdb redis.UniversalClient) (*events.WatermillPublisher, error) {
	if rdb == nil {
		return nil, nil
	}
	p, err := events.NewRedisStreamPublisher(rdb, events.NewLogrusAdapter(log.WithField("component", "watermill")))
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	return events.NewWatermillPublisher(p, events.DefaultTopic), nil
}

func startJobs(ctx context.Context, cfg core.Config, pg *pgxpool.Pool, svc *core.Service) (*river.Client[pgx.Tx], error) {
	workers := river.NewWorkers()
	riverjobs.RegisterPurgeSignInsWorker(workers, svc)

	client, err := river.NewClient(riverpgxv5.New(pg), &river.Config{
		Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 2}},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	args := riverjobs.PurgeSignInsArgs{RetentionDays: cfg.SignInRetentionDays}
	if err := riverjobs.AddPurgeSignInsPeriodicJob(client, cfg.SignInPurgeCron, args, false); err != nil {
		return nil, err
	}
	if err := client.Start(ctx); err != nil {
		return nil, fmt.Errorf("start river client: %w", err)
	}
	return client, nil
}

func runMigrate(ctx context.Context, cfg core.Config) error {
	dbURL := cfg.PostgresURL()
	if dbURL == "" {
		return errors.New("DB_URL (or DATABASE_URL) is required")
	}
	pg, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pg), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	res, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil)
	if err != nil {
		return fmt.Errorf("apply river migrations: %w", err)
	}
	for _, v := range res.Versions {
		log.WithField("version", v.Version).Info("applied river migration")
	}

	if err := core.NewService(cfg.Options()).WithPostgres(pg).EnsureSignInSchema(ctx); err != nil {
		return fmt.Errorf("ensure sign-in schema: %w", err)
	}
	return nil
}

func fatal(err error) {
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		os.Exit(0)
	}
	log.WithError(err).Error("cpop devserver failed")
	os.Exit(1)
}
