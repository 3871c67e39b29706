// Package executor выполняет проходы по экземплярам workflow.
//
// # Проход
//
// Execute берёт снимок активных указателей экземпляра и для каждого:
//
//  1. находит шаг в определении (нет шага — ошибка и повтор через ErrorRetryInterval)
//  2. вызывает PreInit хук (Defer — пропустить, EndWorkflow — завершить экземпляр)
//  3. отмечает старт и создаёт тело шага (ошибка конструктора — повтор позже)
//  4. связывает входы, вызывает BeforeExecute и Run
//  5. при завершении шага связывает выходы
//  6. применяет ExecutionResult (applyResult) и вызывает AfterExecute
//
// Ошибка шага записывается в Result.Errors и обрабатывается политикой
// ErrorBehavior: RETRY (повтор через RetryInterval), SUSPEND, TERMINATE.
//
// После прохода вызываются AfterIteration хуки и пересчитывается
// NextExecution (determineNextExecution).
//
// Executor не работает с хранилищем: экземпляр, ошибки и подписки
// сохраняет worker.
package executor
