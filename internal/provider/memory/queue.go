package memory

import (
	"context"
	"sync"

	"github.com/shaiso/Durable/internal/provider"
)

// Queue — QueueProvider в памяти процесса (FIFO на каждый тип очереди).
//
// Неблокирующий режим повторяет одноузловую очередь: пустая очередь
// возвращает "" сразу, и цикл обработки сам ждёт IdleTime.
type Queue struct {
	mu       sync.Mutex
	items    map[provider.QueueType][]string
	signal   map[provider.QueueType]chan struct{}
	blocking bool
}

// NewQueue создаёт очередь. blocking — DequeueWork ждёт элемент.
func NewQueue(blocking bool) *Queue {
	return &Queue{
		items:    make(map[provider.QueueType][]string),
		signal:   make(map[provider.QueueType]chan struct{}),
		blocking: blocking,
	}
}

var _ provider.QueueProvider = (*Queue)(nil)

// QueueWork добавляет ID в конец очереди.
func (q *Queue) QueueWork(_ context.Context, id string, queue provider.QueueType) error {
	q.mu.Lock()
	q.items[queue] = append(q.items[queue], id)
	signal := q.signalLocked(queue)
	q.mu.Unlock()

	select {
	case signal <- struct{}{}:
	default:
	}
	return nil
}

// DequeueWork забирает ID из головы очереди.
func (q *Queue) DequeueWork(ctx context.Context, queue provider.QueueType) (string, error) {
	for {
		q.mu.Lock()
		if items := q.items[queue]; len(items) > 0 {
			id := items[0]
			q.items[queue] = items[1:]
			q.mu.Unlock()
			return id, nil
		}
		signal := q.signalLocked(queue)
		q.mu.Unlock()

		if !q.blocking {
			return "", nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-signal:
		}
	}
}

// IsDequeueBlocking реализует provider.QueueProvider.
func (q *Queue) IsDequeueBlocking() bool {
	return q.blocking
}

// Start реализует provider.QueueProvider.
func (q *Queue) Start(context.Context) error { return nil }

// Stop реализует provider.QueueProvider.
func (q *Queue) Stop(context.Context) error { return nil }

// Items возвращает копию содержимого очереди.
func (q *Queue) Items(queue provider.QueueType) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.items[queue]...)
}

// Len возвращает длину очереди.
func (q *Queue) Len(queue provider.QueueType) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items[queue])
}

func (q *Queue) signalLocked(queue provider.QueueType) chan struct{} {
	ch, ok := q.signal[queue]
	if !ok {
		ch = make(chan struct{}, 1)
		q.signal[queue] = ch
	}
	return ch
}
