// Package mailworker drains bulk e-mail events published by the rabbitmq
// provider and delivers them through a local bulk sender.
package mailworker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/wagslane/go-rabbitmq"

	"github.com/hopeana/dispatcher/internal/metrics"
	"github.com/hopeana/dispatcher/internal/models"
	"github.com/hopeana/dispatcher/internal/services/dispatch"
	"github.com/hopeana/dispatcher/pkg/messaging"
)

const sendTimeout = time.Minute

// Consumer processes RabbitMQ deliveries and emits logs & metrics.
type Consumer struct {
	sender dispatch.BulkSender
	logger zerolog.Logger
	m      *metrics.Metrics
}

func NewConsumer(sender dispatch.BulkSender, logger zerolog.Logger, m *metrics.Metrics) *Consumer {
	logger = logger.With().Str("component", "MailWorker").Logger()
	return &Consumer{sender: sender, logger: logger, m: m}
}

// ReceiveBulk handles one BulkEmailEvent. Undecodable events are discarded;
// a failed call is requeued once and discarded on redelivery.
func (c *Consumer) ReceiveBulk(d rabbitmq.Delivery) rabbitmq.Action {
	var evt messaging.BulkEmailEvent
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		c.logger.Error().Err(err).Msg("unmarshal error")
		c.m.Technical("worker_unmarshal_error")
		return rabbitmq.NackDiscard
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	start := time.Now()
	res, err := c.sender.SendBulk(ctx, toChunk(evt))
	switch {
	case err != nil:
		c.m.ObserveChunk("error", time.Since(start))
		c.logger.Error().Err(err).
			Int("recipients", len(evt.Recipients)).
			Bool("redelivered", d.Redelivered).
			Msg("failed to send bulk event")
		if d.Redelivered {
			return rabbitmq.NackDiscard
		}
		return rabbitmq.NackRequeue
	case !res.Success:
		c.m.ObserveChunk("rejected", time.Since(start))
		c.logger.Warn().Str("reason", res.Error).Msg("bulk event rejected")
		return rabbitmq.NackDiscard
	}

	c.m.ObserveChunk("ok", time.Since(start))
	c.logger.Info().Int("recipients", len(evt.Recipients)).Msg("bulk event delivered")
	return rabbitmq.Ack
}

func toChunk(evt messaging.BulkEmailEvent) dispatch.Chunk {
	chunk := dispatch.Chunk{
		Envelope: models.Envelope{
			FromEmail:    evt.FromEmail,
			FromName:     evt.FromName,
			ReplyToEmail: evt.ReplyToEmail,
			Subject:      evt.Subject,
			TemplateID:   evt.TemplateID,
		},
		Recipients: make([]models.Recipient, len(evt.Recipients)),
	}
	for i, r := range evt.Recipients {
		chunk.Recipients[i] = models.Recipient{Email: r.Email, Name: r.Name, DynamicData: r.DynamicData}
	}
	return chunk
}

// NewRabbitConsumer declares the durable bulk queue bound to the
// notifications exchange.
func NewRabbitConsumer(conn *rabbitmq.Conn) (*rabbitmq.Consumer, error) {
	return rabbitmq.NewConsumer(
		conn,
		messaging.BulkEmailQueueName,
		rabbitmq.WithConsumerOptionsExchangeName(messaging.ExchangeName),
		rabbitmq.WithConsumerOptionsExchangeKind("direct"),
		rabbitmq.WithConsumerOptionsExchangeDeclare,
		rabbitmq.WithConsumerOptionsExchangeDurable,
		rabbitmq.WithConsumerOptionsRoutingKey(messaging.BulkEmailRoutingKey),
		rabbitmq.WithConsumerOptionsQueueDurable,
	)
}
