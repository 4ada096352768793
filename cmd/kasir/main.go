// Command kasir replays a recorded ordering session through the pricing
// engine and prints the rendered bill. With -finalize the bill is also stored
// in Redis.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/billing"
	"github.com/noah-isme/backend-kasir/internal/cart"
	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
)

func main() {
	fixturePath := flag.String("fixture", "", "path to a session fixture (JSON); - reads stdin")
	scope := flag.String("scope", string(cart.ScopeCart), "render scope: cart or bill")
	finalize := flag.Bool("finalize", false, "store the bill snapshot in Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.FinalizeBuckets), nil)

	shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		Enabled:       cfg.EnableTracing,
		ServiceName:   "kasir",
		Endpoint:      cfg.OTLPEndpoint,
		SamplingRatio: cfg.SamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	if err := run(cfg, logger, *fixturePath, cart.Scope(*scope), *finalize, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("kasir failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger, path string, scope cart.Scope, finalize bool, out io.Writer) error {
	data, err := readFixture(path)
	if err != nil {
		return err
	}
	s, err := decodeSession(data)
	if err != nil {
		return fmt.Errorf("decode fixture: %w", err)
	}
	c, err := replay(s, &logger, time.Now)
	if err != nil {
		return err
	}

	if finalize {
		rec, err := finalizeBill(cfg, logger, c)
		if err != nil {
			return err
		}
		logger.Info().Int64("bill_id", rec.BillID).Msg("bill stored")
	}

	snap, err := c.Render(scope, true, cfg.RoundingPrecision)
	if err != nil {
		return err
	}
	r, err := buildReport(c, snap)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

func readFixture(path string) ([]byte, error) {
	switch path {
	case "":
		return nil, errors.New("-fixture is required")
	case "-":
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func finalizeBill(cfg *config.Config, logger zerolog.Logger, c *cart.Cart) (billing.Record, error) {
	if !cfg.BillingEnabled() {
		return billing.Record{}, errors.New("REDIS_URL is required to finalize a bill")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return billing.Record{}, fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return billing.Record{}, fmt.Errorf("ping redis: %w", err)
	}

	f := &billing.Finalizer{
		Store:     billing.NewStore(redisClient, cfg.BillKeyPrefix, cfg.BillSnapshotTTL),
		Locker:    lock.Locker{R: redisClient, Prefix: cfg.BillKeyPrefix, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL:   cfg.LockTTL,
		Precision: cfg.RoundingPrecision,
		Logger:    logger,
	}
	return f.Finalize(ctx, c)
}
