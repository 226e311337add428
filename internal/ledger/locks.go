package ledger

import "sync"

// accountLocks hands out one mutex per account key. Entries are dropped
// once nobody holds or waits on them.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*accountLock)}
}

// lock blocks until key is free and returns the matching unlock.
func (l *accountLocks) lock(key string) func() {
	l.mu.Lock()
	al, ok := l.locks[key]
	if !ok {
		al = &accountLock{}
		l.locks[key] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()
	return func() {
		al.mu.Unlock()
		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
