package orchestrator

import "sync"

// cellLocks serializes operations on the same cell id. Entries are dropped
// once nobody holds or waits for them.
type cellLocks struct {
	mu    sync.Mutex
	locks map[int64]*cellLock
}

type cellLock struct {
	mu   sync.Mutex
	refs int
}

func newCellLocks() *cellLocks {
	return &cellLocks{locks: make(map[int64]*cellLock)}
}

// lock blocks until the cell is free and returns the matching unlock
func (l *cellLocks) lock(cellID int64) func() {
	l.mu.Lock()
	cl, ok := l.locks[cellID]
	if !ok {
		cl = &cellLock{}
		l.locks[cellID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()
	return func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, cellID)
		}
		l.mu.Unlock()
	}
}

func (l *cellLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
