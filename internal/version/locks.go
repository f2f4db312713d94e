package version

import (
	"context"
	"sync"
)

// prefixLocks is a mutex per graph prefix. The map lock is only held to find
// or release an entry, never while the prefix lock is waited on.
type prefixLocks struct {
	mu sync.Mutex
	m  map[string]*prefixLock
}

// prefixLock is held while its one-slot channel is full.
type prefixLock struct {
	ch   chan struct{}
	refs int
}

func newPrefixLocks() *prefixLocks {
	return &prefixLocks{m: make(map[string]*prefixLock)}
}

// lock waits for the prefix lock until ctx is done.
func (l *prefixLocks) lock(ctx context.Context, prefix string) (unlock func(), err error) {
	l.mu.Lock()
	pl, ok := l.m[prefix]
	if !ok {
		pl = &prefixLock{ch: make(chan struct{}, 1)}
		l.m[prefix] = pl
	}
	pl.refs++
	l.mu.Unlock()

	select {
	case pl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(prefix, pl)
		return nil, ctx.Err()
	}
	return func() {
		<-pl.ch
		l.release(prefix, pl)
	}, nil
}

func (l *prefixLocks) release(prefix string, pl *prefixLock) {
	l.mu.Lock()
	pl.refs--
	if pl.refs == 0 {
		delete(l.m, prefix)
	}
	l.mu.Unlock()
}

func (l *prefixLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
