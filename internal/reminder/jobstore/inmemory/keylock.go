package inmemory

import (
	"sync"

	"github.com/google/uuid"
)

// keyLocks hands out one mutex per task id and drops it once nobody holds or
// waits on it.
type keyLocks struct {
	mtx   sync.Mutex
	locks map[uuid.UUID]*keyLock
}

type keyLock struct {
	mtx  sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[uuid.UUID]*keyLock)}
}

func (k *keyLocks) Lock(id uuid.UUID) (unlock func()) {
	k.mtx.Lock()
	l, ok := k.locks[id]
	if !ok {
		l = &keyLock{}
		k.locks[id] = l
	}
	l.refs++
	k.mtx.Unlock()

	l.mtx.Lock()

	return func() {
		l.mtx.Unlock()

		k.mtx.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, id)
		}
		k.mtx.Unlock()
	}
}

func (k *keyLocks) size() int {
	k.mtx.Lock()
	defer k.mtx.Unlock()
	return len(k.locks)
}
