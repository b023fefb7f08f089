package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/opencourt/courtwatch/internal/model"
)

// DigestRoutingKey is the topic key digests are published under.
const DigestRoutingKey = "availability.digest"

// AMQPDispatcher publishes digests to a topic exchange for a downstream
// notification service to deliver.
type AMQPDispatcher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

// NewAMQPDispatcher dials the broker and declares the exchange.
func NewAMQPDispatcher(url, exchange string, log zerolog.Logger) (*AMQPDispatcher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPDispatcher{conn: conn, ch: ch, exchange: exchange, log: log}, nil
}

// SendDigest implements Dispatcher.
func (d *AMQPDispatcher) SendDigest(ctx context.Context, dg *model.Digest) error {
	body, err := json.Marshal(dg)
	if err != nil {
		return err
	}
	err = d.ch.PublishWithContext(ctx, d.exchange, DigestRoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("publish digest: %w", err)
	}
	d.log.Info().
		Str("subscription", dg.SubscriptionID).
		Int("windows", len(dg.Windows)).
		Msg("digest published")
	return nil
}

// Close releases the channel and connection.
func (d *AMQPDispatcher) Close() error {
	if d.ch != nil {
		_ = d.ch.Close()
	}
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}
