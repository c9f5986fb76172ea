package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/commission/internal/config"
	ledgerdomain "github.com/smallbiznis/commission/internal/ledger/domain"
	"go.uber.org/zap"
)

var ErrMalformedEvent = errors.New("malformed_ledger_event")

// HandleMessage decodes a ledger event body and runs the incremental path.
// Bodies that can never succeed are reported as ErrMalformedEvent.
func (t *Trigger) HandleMessage(ctx context.Context, body []byte) error {
	var evt ledgerdomain.SaleEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if _, err := t.OnSaleEvent(ctx, evt); err != nil {
		if errors.Is(err, ledgerdomain.ErrInvalidEvent) || errors.Is(err, ledgerdomain.ErrUnknownEventType) {
			return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return err
	}
	return nil
}

// Consumer reads ledger events from a durable queue bound to a direct exchange.
type Consumer struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
	log          *zap.Logger
}

func NewConsumer(cfg config.Config, log *zap.Logger) (*Consumer, error) {
	if cfg.AMQPURL == "" {
		return nil, errors.New("AMQP_URL is required to consume ledger events")
	}

	conn, err := amqp091.Dial(cfg.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	c := &Consumer{
		conn:         conn,
		channel:      channel,
		exchangeName: cfg.AMQPExchange,
		queueName:    cfg.AMQPQueue,
		log:          log.Named("recalc.consumer"),
	}
	if err := c.setup(); err != nil {
		c.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return c, nil
}

func (c *Consumer) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key equals the queue name on the direct exchange
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return c.channel.Qos(1, 0, false)
}

// Run consumes until ctx is done or the channel closes.
func (c *Consumer) Run(ctx context.Context, handle func(context.Context, []byte) error) error {
	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.log.Info("consuming ledger events", zap.String("queue", c.queueName))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("stopping ledger event consumption", zap.Error(ctx.Err()))
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.dispatch(ctx, delivery, handle)
		}
	}
}

// dispatch acks on success, drops malformed bodies and requeues everything else.
func (c *Consumer) dispatch(ctx context.Context, delivery amqp091.Delivery, handle func(context.Context, []byte) error) {
	err := handle(ctx, delivery.Body)
	switch {
	case err == nil:
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.log.Warn("ack ledger event", zap.Error(ackErr))
		}
	case errors.Is(err, ErrMalformedEvent):
		c.log.Error("dropping malformed ledger event", zap.Uint64("delivery_tag", delivery.DeliveryTag), zap.Error(err))
		_ = delivery.Nack(false, false)
	default:
		c.log.Error("ledger event failed, requeueing", zap.Uint64("delivery_tag", delivery.DeliveryTag), zap.Error(err))
		_ = delivery.Nack(false, true)
	}
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
