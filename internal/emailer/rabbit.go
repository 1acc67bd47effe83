package emailer

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/wagslane/go-rabbitmq"

	"github.com/hopeana/dispatcher/internal/services/dispatch"
	"github.com/hopeana/dispatcher/pkg/messaging"
)

type publisher interface {
	PublishWithContext(
		ctx context.Context,
		data []byte,
		routingKeys []string,
		optionFuncs ...func(*rabbitmq.PublishOptions),
	) error
}

// RabbitSender hands each chunk to a downstream mail worker through the
// notifications exchange. A successful publish counts as a successful send.
type RabbitSender struct {
	pub    publisher
	logger zerolog.Logger
}

func NewRabbitSender(pub publisher, logger zerolog.Logger) *RabbitSender {
	logger = logger.With().Str("component", "RabbitSender").Logger()
	return &RabbitSender{pub: pub, logger: logger}
}

func (p *RabbitSender) SendBulk(ctx context.Context, chunk dispatch.Chunk) (dispatch.ChunkResult, error) {
	body, err := json.Marshal(newBulkEmailEvent(chunk))
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to marshal bulk email event")
		return dispatch.ChunkResult{}, err
	}

	if err := p.pub.PublishWithContext(
		ctx,
		body,
		[]string{messaging.BulkEmailRoutingKey},
		rabbitmq.WithPublishOptionsContentType("application/json"),
		rabbitmq.WithPublishOptionsMandatory,
		rabbitmq.WithPublishOptionsPersistentDelivery,
		rabbitmq.WithPublishOptionsExchange(messaging.ExchangeName),
	); err != nil {
		p.logger.Error().Ctx(ctx).Err(err).Msg("failed to publish bulk email event")
		return dispatch.ChunkResult{}, err
	}

	p.logger.Debug().Ctx(ctx).
		Str("routing_key", messaging.BulkEmailRoutingKey).
		Int("recipients", len(chunk.Recipients)).
		Msg("bulk email event published")
	return dispatch.ChunkResult{Success: true}, nil
}

func newBulkEmailEvent(chunk dispatch.Chunk) messaging.BulkEmailEvent {
	ev := messaging.BulkEmailEvent{
		FromEmail:    chunk.Envelope.FromEmail,
		FromName:     chunk.Envelope.FromName,
		ReplyToEmail: chunk.Envelope.ReplyToEmail,
		Subject:      chunk.Envelope.Subject,
		TemplateID:   chunk.Envelope.TemplateID,
		Recipients:   make([]messaging.Recipient, len(chunk.Recipients)),
	}
	for i, r := range chunk.Recipients {
		ev.Recipients[i] = messaging.Recipient{Email: r.Email, Name: r.Name, DynamicData: r.DynamicData}
	}
	return ev
}

// NewPublisher declares the durable notifications exchange and returns a
// publisher bound to it.
func NewPublisher(conn *rabbitmq.Conn, logger zerolog.Logger) (*rabbitmq.Publisher, error) {
	pub, err := rabbitmq.NewPublisher(
		conn,
		rabbitmq.WithPublisherOptionsExchangeName(messaging.ExchangeName),
		rabbitmq.WithPublisherOptionsExchangeDeclare,
		rabbitmq.WithPublisherOptionsExchangeKind("direct"),
		rabbitmq.WithPublisherOptionsExchangeDurable,
	)
	if err != nil {
		return nil, err
	}

	pub.NotifyReturn(func(r rabbitmq.Return) {
		logger.Warn().
			Str("routing_key", r.RoutingKey).
			Uint16("reply_code", r.ReplyCode).
			Msg("bulk email event returned by broker")
	})
	return pub, nil
}
