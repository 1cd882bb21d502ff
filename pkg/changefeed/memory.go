package changefeed

import (
	"context"
	"errors"
	"sync"
)

// ErrBrokerDown - брокер в памяти переведён в недоступное состояние.
var ErrBrokerDown = errors.New("брокер недоступен")

// MemoryBroker - транспорт и издатель в одном процессе. Умеет имитировать обрывы.
type MemoryBroker struct {
	mu        sync.Mutex
	down      bool
	nextID    int
	listeners map[string]map[int]*memListener
}

type memListener struct {
	notices chan Notice
	drop    chan struct{}
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{listeners: make(map[string]map[int]*memListener)}
}

func (b *MemoryBroker) Listen(ctx context.Context, entity string, ready func(), notify func(Notice)) error {
	b.mu.Lock()
	if b.down {
		b.mu.Unlock()
		return ErrBrokerDown
	}
	b.nextID++
	id := b.nextID
	l := &memListener{notices: make(chan Notice, 64), drop: make(chan struct{})}
	if b.listeners[entity] == nil {
		b.listeners[entity] = make(map[int]*memListener)
	}
	b.listeners[entity][id] = l
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.listeners[entity], id)
		b.mu.Unlock()
	}()

	ready()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.drop:
			return ErrDropped
		case n := <-l.notices:
			notify(n)
		}
	}
}

func (b *MemoryBroker) Publish(ctx context.Context, n Notice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return ErrBrokerDown
	}
	for _, l := range b.listeners[n.Entity] {
		select {
		case l.notices <- n:
		default:
			// Слушатель всё равно перечитает всё целиком, лишние сигналы не нужны.
		}
	}
	return nil
}

// SetDown переводит брокер в (не)доступное состояние. Уход в down рвёт все текущие подписки.
func (b *MemoryBroker) SetDown(down bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = down
	if !down {
		return
	}
	for _, byID := range b.listeners {
		for id, l := range byID {
			close(l.drop)
			delete(byID, id)
		}
	}
}

// Listeners возвращает число активных слушателей сущности.
func (b *MemoryBroker) Listeners(entity string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[entity])
}
