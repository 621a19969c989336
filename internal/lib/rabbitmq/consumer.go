package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/hdportal/helpdesk-api/internal/lib/sl"
)

// ErrConsumerClosed is reported when the broker stops delivering before ctx
// is done.
var ErrConsumerClosed = errors.New("delivery channel closed")

const maxInFlight = 10

// ConsumerMessage starts consuming queueName in the background. Each delivery
// is passed to handler on its own goroutine, at most 10 at a time; a handler
// error nacks the delivery with requeue, success acks it.
//
// The returned channel yields exactly one value once consumption has stopped
// and running handlers have returned: nil when ctx was cancelled, an error
// wrapping ErrConsumerClosed when the broker closed the channel.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler func([]byte) error) (<-chan error, error) {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	done := make(chan error, 1)
	go func() {
		done <- consume(ctx, delivery, closed, queueName, log, handler)
	}()
	return done, nil
}

func consume(ctx context.Context, delivery <-chan amqp.Delivery, closed <-chan *amqp.Error, queueName string, log *slog.Logger, handler func([]byte) error) error {
	sem := make(chan struct{}, maxInFlight)
	defer func() {
		for range maxInFlight {
			sem <- struct{}{}
		}
	}()

	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				return closeReason(closed)
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				if err := d.Nack(false, true); err != nil {
					log.Error("failed to nack message", sl.Err(err))
				}
				return nil
			}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				if err := handler(d.Body); err != nil {
					log.Warn("handler failed, requeueing", slog.String("queue", queueName), sl.Err(err))
					if nackErr := d.Nack(false, true); nackErr != nil {
						log.Error("failed to nack message", sl.Err(nackErr))
					}
					return
				}
				if ackErr := d.Ack(false); ackErr != nil {
					log.Error("failed to ack message", sl.Err(ackErr))
				}
			}(d)
		case <-ctx.Done():
			return nil
		}
	}
}

func closeReason(closed <-chan *amqp.Error) error {
	select {
	case reason, ok := <-closed:
		if ok && reason != nil {
			return fmt.Errorf("%w: %v", ErrConsumerClosed, reason)
		}
	default:
	}
	return ErrConsumerClosed
}
