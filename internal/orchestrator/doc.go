// Package orchestrator управляет жизненным циклом экземпляров workflow.
//
// Controller отвечает за:
//   - Запуск экземпляра (Start) и постановку его в очередь
//   - Публикацию событий (PublishEvent)
//   - Suspend / Resume / Terminate под блокировкой экземпляра
//
// Занятая блокировка — не ошибка: операция возвращает false, вызывающий
// повторяет позже.
//
// Host собирает процесс движка: провайдеры, executor, consumer для
// очередей workflow и event, poller. Start запускает циклы, Stop
// останавливает их, дожидаясь элементов в работе. ctx, переданный в
// Start, ограничивает время жизни циклов.
package orchestrator
