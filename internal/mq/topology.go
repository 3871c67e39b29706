package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Durable/internal/provider"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// ExchangeWork — обменник очередей движка.
const ExchangeWork Exchange = "durable.work"

// Queues — имена очередей.
const (
	QueueWorkflows Queue = "durable.workflows"
	QueueEvents    Queue = "durable.events"
)

// Routing keys.
const (
	RoutingKeyWorkflow RoutingKey = "workflow"
	RoutingKeyEvent    RoutingKey = "event"
)

// route — очередь и ключ маршрутизации для типа очереди движка.
type route struct {
	queue      Queue
	routingKey RoutingKey
}

var routes = map[provider.QueueType]route{
	provider.QueueWorkflow: {QueueWorkflows, RoutingKeyWorkflow},
	provider.QueueEvent:    {QueueEvents, RoutingKeyEvent},
}

func routeFor(queue provider.QueueType) (route, error) {
	r, ok := routes[queue]
	if !ok {
		return route{}, fmt.Errorf("unknown queue type %q", queue)
	}
	return r, nil
}

// SetupTopology объявляет обменник, очереди и привязки. Идемпотентна.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.ExchangeDeclare(
			string(ExchangeWork), // name
			"direct",             // type
			true,                 // durable
			false,                // auto-deleted
			false,                // internal
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeWork, err)
		}

		for _, r := range routes {
			_, err := ch.QueueDeclare(
				string(r.queue), // name
				true,            // durable
				false,           // delete when unused
				false,           // exclusive
				false,           // no-wait
				nil,             // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", r.queue, err)
			}

			err = ch.QueueBind(
				string(r.queue),      // queue name
				string(r.routingKey), // routing key
				string(ExchangeWork), // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", r.queue, ExchangeWork, err)
			}
		}
		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Durable RabbitMQ Topology:

    durable.work (direct)
    ├── durable.workflows [routing: workflow]
    │       Consumer: workflow queue consumer
    └── durable.events [routing: event]
            Consumer: event queue consumer
  `
}
