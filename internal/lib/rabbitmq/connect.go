// Package rabbitmq wraps the AMQP connection, topology, publishing and
// consuming used to ship helpdesk action events to the notifier.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Exchange is the direct exchange all portal events go through.
const Exchange = "hdportal"

// QueueConfig binds a durable queue to Exchange with a routing key.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// ActionStatusQueue carries models.ActionEvent messages.
var ActionStatusQueue = QueueConfig{QueueName: "hdaction.status", RoutingKey: "hdaction.status"}

// PortalQueues returns every queue the portal declares.
func PortalQueues() []QueueConfig {
	return []QueueConfig{ActionStatusQueue}
}

// Connect dials the broker, retrying up to retries times with delay between
// attempts.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for attempt := 0; attempt < max(retries, 1); attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel opens a channel and declares Exchange plus the given queues.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return nil, fmt.Errorf("%s: set qos: %w", op, err)
	}

	if err = ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("%s: declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("%s: bind queue %s to %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
