package service

import (
	"sync"

	"github.com/google/uuid"
)

// templateLocks упорядочивает работу с одним шаблоном внутри процесса.
// Записи считают ссылки и удаляются, когда их никто не ждёт.
type templateLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTemplateLocks() *templateLocks {
	return &templateLocks{locks: make(map[uuid.UUID]*lockEntry)}
}

// Lock ждёт освобождения id и возвращает функцию разблокировки.
func (l *templateLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *templateLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
