// Package mq — очередь движка поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — обменник, очереди, привязки
//   - publisher.go  — публикация элементов очереди
//   - consumer.go   — потребление сообщений с ручным ack
//   - queue.go      — QueueProvider (provider.QueueProvider)
//
// Типы сообщений:
//   - workflow.ready — экземпляр готов к проходу executor
//   - event.ready    — событие готово к доставке подписчикам
//
// Exchanges:
//   - durable.work — direct, очереди durable.workflows и durable.events
package mq
