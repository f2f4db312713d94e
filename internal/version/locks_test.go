package version

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixLocksExclusive(t *testing.T) {
	l := newPrefixLocks()
	ctx := context.Background()
	unlock, err := l.lock(ctx, "urn:a/")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.lock(ctx, "urn:a/")
		if err != nil {
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same prefix acquired while held")
	case <-time.After(20 * time.Millisecond):
	}

	// a different prefix is not blocked
	other, err := l.lock(ctx, "urn:b/")
	require.NoError(t, err)
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock not released")
	}
}

func TestPrefixLocksReleaseEntries(t *testing.T) {
	l := newPrefixLocks()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.lock(context.Background(), "urn:x/")
			if err == nil {
				unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, l.size())
}

func TestPrefixLockWaitHonoursContext(t *testing.T) {
	l := newPrefixLocks()
	unlock, err := l.lock(context.Background(), "urn:a/")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = l.lock(ctx, "urn:a/")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, l.size(), "the abandoned waiter released its reference")

	unlock()
	assert.Equal(t, 0, l.size())
}
