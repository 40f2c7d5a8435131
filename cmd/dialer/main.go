package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dialer_backend/internal/dialer/leaderlock"
	"dialer_backend/internal/dialer/loop"
	"dialer_backend/internal/dialer/repository"
	"dialer_backend/internal/dialer/telephony"
	"dialer_backend/platform/config"
	"dialer_backend/platform/db"
	"dialer_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting dialer", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, cfg.GetMigrationsDir()); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	var lock *leaderlock.Lock
	if cfg.GetRedisURL() != "" {
		opts, err := redis.ParseURL(cfg.GetRedisURL())
		if err != nil {
			log.Error("invalid redis url", "error", err)
			panic("invalid redis url: " + err.Error())
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		lock = leaderlock.New(client, "dialer:scheduler:leader", cfg.GetLeaderLockTTL())
		log.Info("leader election enabled", "ttl", cfg.GetLeaderLockTTL())
	}

	gateway := telephony.NewTwilio(cfg)

	runner := loop.New(
		loop.NewStore(repository.New(pool)),
		gateway,
		cfg.GetNumberPool(),
		clockwork.NewRealClock(),
		log.WithComponent("scheduler"),
		loop.Options{
			Interval:        cfg.GetTickInterval(),
			WindowStartHour: cfg.GetCallWindowStartHour(),
			WindowEndHour:   cfg.GetCallWindowEndHour(),
			Lock:            lock,
		},
	)

	runner.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
