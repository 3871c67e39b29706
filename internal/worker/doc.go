// Package worker содержит циклы обработки очередей движка.
//
// # Обзор
//
// Consumer — цикл одной очереди (workflow или event) с ограниченной
// параллельностью. Обработку конкретного элемента выполняет ProcessFunc:
//
//   - WorkflowProcessor.Process — проход executor по экземпляру
//   - EventProcessor.Process    — доставка события в ожидающие экземпляры
//
// Воркеры stateless: всё состояние в хранилище, поэтому несколько узлов
// могут обрабатывать одни и те же очереди.
//
// # Consumer
//
//	c := worker.NewConsumer(worker.ConsumerConfig{
//	    Queue:              queue,
//	    QueueType:          provider.QueueWorkflow,
//	    Process:            workflows.Process,
//	    MaxConcurrentItems: 8,
//	    Logger:             logger,
//	})
//	go c.Run(ctx) // возвращается после отмены ctx и завершения элементов в работе
//
// Свойства цикла:
//   - не больше MaxConcurrentItems элементов в работе
//   - нет свободного слота — ID возвращается в очередь
//   - один ID не обрабатывается параллельно; повторная доставка
//     во время обработки превращается в один перезапуск
//   - ошибки и паники обработки логируются, цикл продолжает работу
//   - при отмене ctx начатые элементы дорабатывают до конца
//
// # WorkflowProcessor
//
// Загружает экземпляр, выполняет проход, сохраняет экземпляр (ревизия
// устарела — ID возвращается в очередь), сохраняет ошибки и подписки.
// Если NextExecution наступает раньше следующего опроса, экземпляр
// ставится в очередь по таймеру.
//
// # EventProcessor
//
// Под блокировкой "evt:<id>" находит подписки на событие и под
// блокировкой каждого экземпляра активирует ожидающие указатели.
// Событие помечается обработанным, только если доставлено во все
// подписки.
package worker
