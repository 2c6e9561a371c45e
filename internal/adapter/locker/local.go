package locker

import (
	"context"
	"sync"

	"github.com/YelzhanWeb/printtrack/internal/interfaces"
)

type localLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch      chan struct{}
	waiters int
}

// NewLocal returns an in-process keyed lock for single-instance runs.
func NewLocal() interfaces.OrderLocker {
	return &localLocker{locks: make(map[string]*entry)}
}

func (l *localLocker) Lock(ctx context.Context, orderNumber string) (func(), error) {
	l.mu.Lock()
	e, ok := l.locks[orderNumber]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[orderNumber] = e
	}
	e.waiters++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(orderNumber, e, false)
		return nil, interfaces.ErrLockNotObtained
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(orderNumber, e, true) })
	}, nil
}

func (l *localLocker) release(orderNumber string, e *entry, held bool) {
	if held {
		<-e.ch
	}
	l.mu.Lock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.locks, orderNumber)
	}
	l.mu.Unlock()
}
