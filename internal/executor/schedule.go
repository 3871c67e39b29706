package executor

import (
	"time"

	"github.com/shaiso/Durable/internal/domain"
)

// determineNextExecution пересчитывает NextExecution экземпляра после прохода.
//
//  1. COMPLETE или TERMINATED — NextExecution сбрасывается.
//  2. Активные листья (без детей): если у любого нет SleepUntil — 0
//     (немедленно), иначе минимальный SleepUntil.
//  3. Затем активные fork-указатели, у которых завершены все потомки,
//     по тому же правилу.
//  4. Если ничего не найдено и все указатели завершены — экземпляр COMPLETE.
//     Иначе NextExecution = nil (ждём событие).
func determineNextExecution(wf *domain.WorkflowInstance, now time.Time) {
	wf.NextExecution = nil
	if wf.Status.IsTerminal() {
		return
	}

	pointers := wf.ExecutionPointers
	var next *int64

	scan := func(match func(*domain.ExecutionPointer) bool) bool {
		for _, p := range pointers {
			if !match(p) {
				continue
			}
			if p.SleepUntil == nil {
				return true
			}
			at := p.SleepUntil.UnixMilli()
			if next == nil || at < *next {
				next = &at
			}
		}
		return false
	}

	leaf := func(p *domain.ExecutionPointer) bool {
		return p.Active && !p.HasChildren()
	}
	fork := func(p *domain.ExecutionPointer) bool {
		return p.Active && p.HasChildren() && scopeEnded(pointers, p.ID)
	}

	if scan(leaf) || scan(fork) {
		wf.ScheduleAt(0)
		return
	}
	if next != nil {
		wf.NextExecution = next
		return
	}
	if pointers.AllEnded() {
		wf.MarkComplete(now)
	}
}

// scopeEnded проверяет, что все указатели внутри scope fork-указателя завершены.
func scopeEnded(pointers domain.PointerCollection, forkID string) bool {
	for _, p := range pointers.FindByScope(forkID) {
		if !p.IsEnded() {
			return false
		}
	}
	return true
}
