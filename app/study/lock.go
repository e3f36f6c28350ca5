package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/rs/zerolog/log"
)

// KeyedMutex is an in-process Locker. Entries are reference counted and
// dropped once no caller holds or waits on them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	sem  chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry)}
}

func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{sem: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			k.release(key, e)
		})
	}, nil
}

func (k *KeyedMutex) release(key string, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
}

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

const lockKeyPrefix = "study:lock:"

// RedsyncLocker serializes turns across processes sharing one Redis.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	expiry time.Duration
}

// NewRedsyncLocker uses expiry as the lock lease; it should exceed the
// longest turn, which is bounded by the generation timeout.
func NewRedsyncLocker(rs *redsync.Redsync, expiry time.Duration) *RedsyncLocker {
	return &RedsyncLocker{rs: rs, expiry: expiry}
}

const lockRetryDelay = 100 * time.Millisecond

// Lock waits up to one lease for the holder to finish, or until ctx ends.
// A lock still held after that yields ErrBusy.
func (l *RedsyncLocker) Lock(ctx context.Context, key string) (func(), error) {
	mutex := l.rs.NewMutex(
		lockKeyPrefix+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(int(l.expiry/lockRetryDelay)+1),
		redsync.WithRetryDelay(lockRetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, ErrBusy
		}
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	return func() {
		if _, err := mutex.UnlockContext(context.Background()); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to release session lock")
		}
	}, nil
}
