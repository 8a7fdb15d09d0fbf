// apnspushd consumes queued push envelopes from RabbitMQ, sends them
// over the binary gateway protocol, and periodically drains the
// feedback stream. An ops HTTP server exposes health and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/pushgate/apns/internal/config"
	"github.com/pushgate/apns/internal/consumer"
	"github.com/pushgate/apns/internal/feedback"
	"github.com/pushgate/apns/internal/observability"
	"github.com/pushgate/apns/internal/push"
	"github.com/pushgate/apns/internal/store"
)

func main() {
	configPath := flag.String("config", "/etc/pushgate/pushgate.toml", "daemon config file (TOML)")
	flag.Parse()

	logger := observability.InitLogger("apnspushd")

	if err := run(*configPath, logger); err != nil {
		fmt.Fprintf(os.Stderr, "apnspushd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, logger zerolog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	observability.RegisterMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := push.NewSender(cfg.Push.Addr(), cfg.ChannelConfig())

	var marks *store.RedisStore
	if cfg.Redis.Addr != "" {
		marks = store.NewRedisStore(cfg.Redis.Addr)
		defer marks.Close()
	}

	opsServer := &http.Server{
		Addr:    cfg.Ops.Addr,
		Handler: observability.NewOpsRouter("apnspushd", logger, time.Now()),
	}
	go func() {
		logger.Info().Str("addr", cfg.Ops.Addr).Msg("ops server listening")
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("ops server failed")
		}
	}()

	if interval := cfg.FeedbackPollInterval(); interval > 0 {
		go feedbackLoop(ctx, cfg, marks, logger, interval)
	}

	if cfg.AMQP.URL == "" {
		logger.Warn().Msg("amqp.url not configured, consumer disabled")
		<-ctx.Done()
	} else {
		consumeLoop(ctx, cfg, sender, marks, logger)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return opsServer.Shutdown(shutdownCtx)
}

// consumeLoop keeps a consumer attached to the broker, redialing with
// backoff after connection loss.
func consumeLoop(ctx context.Context, cfg config.Config, sender *push.Sender, marks *store.RedisStore, logger zerolog.Logger) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	backoffCfg := consumer.DefaultBackoffConfig()
	attempt := 0

	for ctx.Err() == nil {
		attempt++
		conn, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			delay := consumer.NextBackoffDelay(backoffCfg, attempt, rng)
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("amqp dial failed")
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}
		attempt = 0
		logger.Info().Str("queue", cfg.AMQP.Queue).Msg("consumer attached")

		c := consumer.New(conn, consumer.Config{
			Queue:         cfg.AMQP.Queue,
			DLQ:           cfg.AMQP.DLQ,
			Prefetch:      cfg.AMQP.Prefetch,
			Workers:       cfg.AMQP.Workers,
			MaxDeliveries: cfg.AMQP.MaxDeliveries,
		}, sender, marks, logger)

		if err := c.Start(ctx); errors.Is(err, consumer.ErrDeliveryStreamClosed) {
			logger.Warn().Msg("delivery stream closed, reconnecting")
		} else if err != nil {
			logger.Error().Err(err).Msg("consumer stopped")
		}
		_ = conn.Close()
	}
}

func feedbackLoop(ctx context.Context, cfg config.Config, marks *store.RedisStore, logger zerolog.Logger, interval time.Duration) {
	reader := feedback.NewReader(cfg.Feedback.Addr(), cfg.ChannelConfig())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		records, err := reader.ReadAll(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("feedback poll failed")
			continue
		}
		for _, rec := range records {
			logger.Info().
				Str("token", rec.TokenHex()).
				Time("invalidated_at", rec.Timestamp).
				Msg("device token invalidated")
			if marks != nil {
				if err := marks.RecordInvalidation(ctx, rec); err != nil {
					logger.Warn().Err(err).Msg("failed to persist invalidation")
				}
			}
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
