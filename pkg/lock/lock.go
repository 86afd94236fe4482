// Package lock provides keyed mutual exclusion with bounded waits.
//
// Keys are scoped strings such as "course:<id>". Callers that need several keys
// must acquire them in a fixed hierarchy order to avoid deadlocks.
package lock

import (
	"context"
	"errors"
)

// ErrTimeout is returned when a key could not be acquired within the wait budget.
var ErrTimeout = errors.New("lock: wait timeout exceeded")

// Release frees a held key. It is safe to call more than once.
type Release func()

// Locker acquires exclusive ownership of a key.
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Key builds a scoped lock key.
func Key(scope, id string) string {
	return scope + ":" + id
}

// AcquireAll takes every key in the given order. On failure the keys already
// held are released in reverse order before the error is returned.
func AcquireAll(ctx context.Context, l Locker, keys ...string) (Release, error) {
	held := make([]Release, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
	for _, key := range keys {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, release)
	}
	return releaseAll, nil
}
