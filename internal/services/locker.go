package services

import (
	"context"
	"sync"
)

// KeyLocker serializes work on a string key. The returned func releases the lock
// and is safe to call more than once.
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LocalLocker is an in-process KeyLocker; entries are dropped once no caller holds
// or waits on them.
type LocalLocker struct {
	mu   sync.Mutex
	keys map[string]*keyLock
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{keys: map[string]*keyLock{}}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl := l.keys[key]
	if kl == nil {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.keys[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, kl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.drop(key, kl)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 && l.keys[key] == kl {
		delete(l.keys, key)
	}
}

func (l *LocalLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
