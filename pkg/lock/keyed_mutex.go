package lock

import (
	"context"
	"sync"
	"time"
)

// KeyedMutex is an in-process Locker. Each key owns a one-token channel;
// entries are dropped once no holder or waiter references them.
type KeyedMutex struct {
	mu      sync.Mutex
	slots   map[string]*slot
	timeout time.Duration
}

type slot struct {
	token chan struct{}
	refs  int
}

// NewKeyedMutex builds a KeyedMutex. A non-positive timeout waits until ctx is done.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot), timeout: timeout}
}

// Acquire blocks until key is free, the wait timeout elapses or ctx is done.
func (m *KeyedMutex) Acquire(ctx context.Context, key string) (Release, error) {
	s := m.ref(key)

	waitCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	select {
	case s.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-s.token
				m.unref(key, s)
			})
		}, nil
	case <-waitCtx.Done():
		m.unref(key, s)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrTimeout
	}
}

// Len reports how many keys are currently tracked.
func (m *KeyedMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *KeyedMutex) ref(key string) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{token: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	return s
}

func (m *KeyedMutex) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}
