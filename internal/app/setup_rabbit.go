package app

import (
	"github.com/wagslane/go-rabbitmq"
)

func (a *App) setupConn() (*rabbitmq.Conn, error) {
	conn, err := rabbitmq.NewConn(
		a.cfg.RabbitMQ.Address(),
		rabbitmq.WithConnectionOptionsLogging,
	)
	if err != nil {
		a.l.Error().Err(err).Msg("Failed to connect to RabbitMQ")
		return nil, err
	}

	a.l.Info().Str("host", a.cfg.RabbitMQ.Host).Msg("Connected to RabbitMQ")
	return conn, nil
}
