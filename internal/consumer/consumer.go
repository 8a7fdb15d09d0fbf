// Package consumer bridges a RabbitMQ queue of push envelopes onto the
// binary gateway client.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"github.com/pushgate/apns/internal/observability"
	"github.com/pushgate/apns/internal/protocol"
	"github.com/pushgate/apns/internal/push"
	"github.com/pushgate/apns/internal/store"
)

const exchangeName = "pushgate.direct"

// ErrDeliveryStreamClosed reports that the broker closed the delivery
// stream (connection or channel loss). Callers redial on it.
var ErrDeliveryStreamClosed = errors.New("consumer: delivery stream closed")

// processedTTL bounds how long idempotency marks live in redis.
const processedTTL = 24 * time.Hour

type Config struct {
	Queue         string
	DLQ           string
	Prefetch      int
	Workers       int
	MaxDeliveries int
}

func (c Config) withDefaults() Config {
	if c.Prefetch <= 0 {
		c.Prefetch = 50
	}
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	return c
}

// Consumer pulls envelopes off the queue and sends them. Marks is
// optional; when set, envelopes are deduplicated by message_id.
type Consumer struct {
	conn   *amqp.Connection
	cfg    Config
	sender *push.Sender
	marks  *store.RedisStore
	log    zerolog.Logger
}

func New(conn *amqp.Connection, cfg Config, sender *push.Sender, marks *store.RedisStore, log zerolog.Logger) *Consumer {
	return &Consumer{
		conn:   conn,
		cfg:    cfg.withDefaults(),
		sender: sender,
		marks:  marks,
		log:    log,
	}
}

// Start declares the queue topology and runs the worker pool until ctx
// is cancelled or the delivery stream closes.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := c.setupQueue(ch); err != nil {
		return fmt.Errorf("queue setup failed: %w", err)
	}
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("qos configuration failed: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	return c.consume(ctx, deliveries)
}

// consume runs the worker pool until the context is cancelled or the
// broker closes the delivery stream. Stream closure is reported as
// ErrDeliveryStreamClosed so the caller can reconnect.
func (c *Consumer) consume(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-deliveries:
					if !ok {
						return
					}
					c.handleDelivery(ctx, msg)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		<-done
	}
	if ctx.Err() == nil {
		return ErrDeliveryStreamClosed
	}
	return nil
}

func (c *Consumer) setupQueue(ch *amqp.Channel) error {
	args := amqp.Table{}
	if c.cfg.DLQ != "" {
		args["x-dead-letter-exchange"] = ""
		args["x-dead-letter-routing-key"] = c.cfg.DLQ
	}

	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, args); err != nil {
		return err
	}
	if err := ch.QueueBind(c.cfg.Queue, "apns", exchangeName, false, nil); err != nil {
		return err
	}
	if c.cfg.DLQ != "" {
		if _, err := ch.QueueDeclare(c.cfg.DLQ, true, false, false, false, nil); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) handleDelivery(ctx context.Context, msg amqp.Delivery) {
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		c.log.Error().Err(err).Msg("failed to unmarshal envelope")
		observability.RecordDelivery("malformed")
		_ = msg.Reject(false)
		return
	}
	if err := env.Validate(); err != nil {
		c.log.Error().Err(err).Str("message_id", env.MessageID).Msg("invalid envelope")
		observability.RecordDelivery("invalid")
		_ = msg.Reject(false)
		return
	}

	if c.marks != nil {
		done, err := c.marks.IsProcessed(ctx, env.MessageID)
		if err != nil {
			c.log.Warn().Err(err).Str("message_id", env.MessageID).Msg("idempotency check failed, processing anyway")
		} else if done {
			c.log.Debug().Str("message_id", env.MessageID).Msg("duplicate envelope skipped")
			observability.RecordDelivery("duplicate")
			_ = msg.Ack(false)
			return
		}
	}

	if err := c.deliver(ctx, env); err != nil {
		if errors.Is(err, protocol.ErrPayloadTooLarge) || errors.Is(err, protocol.ErrInvalidToken) {
			// Redelivery cannot fix a bad payload or token.
			c.log.Error().Err(err).Str("message_id", env.MessageID).Msg("unsendable envelope rejected")
			observability.RecordDelivery("unsendable")
			_ = msg.Reject(false)
			return
		}
		requeue := deliveryAttempts(&msg) < c.cfg.MaxDeliveries
		if requeue {
			c.log.Warn().Err(err).Str("message_id", env.MessageID).Msg("send failed, message requeued")
			observability.RecordDelivery("requeued")
		} else {
			c.log.Error().Err(err).Str("message_id", env.MessageID).Msg("send failed, message dead-lettered")
			observability.RecordDelivery("dead_lettered")
		}
		_ = msg.Nack(false, requeue)
		return
	}

	if c.marks != nil {
		if err := c.marks.MarkProcessed(ctx, env.MessageID, processedTTL); err != nil {
			c.log.Warn().Err(err).Str("message_id", env.MessageID).Msg("failed to mark envelope processed")
		}
	}
	observability.RecordDelivery("ok")
	_ = msg.Ack(false)
}

func (c *Consumer) deliver(ctx context.Context, env Envelope) error {
	if len(env.Tokens) == 1 {
		n := env.Notification()
		n.Token = env.Tokens[0]
		return c.sender.Send(ctx, n)
	}
	return c.sender.SendBulk(ctx, env.Tokens, env.Notification())
}

func deliveryAttempts(msg *amqp.Delivery) int {
	if msg.Headers == nil {
		if msg.Redelivered {
			return 1
		}
		return 0
	}
	if raw, ok := msg.Headers["x-death"]; ok {
		if deaths, ok := raw.([]interface{}); ok && len(deaths) > 0 {
			if table, ok := deaths[0].(amqp.Table); ok {
				if count, ok := table["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}
	if msg.Redelivered {
		return 1
	}
	return 0
}
