// Package scheduler реализует периодический опрос хранилища.
//
// Poller раз в интервал (или по cron-выражению) ставит в очередь:
//   - экземпляры RUNNABLE с наступившим NextExecution
//   - необработанные события с наступившим Time
//
// Структура:
//   - scheduler.go — Poller (Tick, Run)
//   - cron.go      — расписание опроса
//
// Использование:
//
//	poller, err := scheduler.New(scheduler.Config{
//	    Store:        store,
//	    Queue:        queue,
//	    Locks:        locks,
//	    PollInterval: 10 * time.Second,
//	    Logger:       logger,
//	})
//	go poller.Run(ctx)
//
// Несколько узлов:
//
// Tick выполняется под глобальной блокировкой PollLockKey. Если её держит
// другой узел, опрос пропускается. Повторная постановка ID безопасна:
// consumer не обрабатывает один ID параллельно, а проход по экземпляру,
// который ещё не пора выполнять, ничего не меняет.
package scheduler
