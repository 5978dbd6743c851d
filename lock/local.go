package lock

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed lock. Entries are reference counted and dropped once nobody holds or waits on them.
type Local struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewLocal() *Local {
	return &Local{entries: make(map[string]*entry)}
}

func (l *Local) Lock(ctx context.Context, keys ...string) (func(), error) {
	keys = normalize(keys)
	acquired := make([]string, 0, len(keys))

	for _, k := range keys {
		e := l.ref(k)
		select {
		case e.ch <- struct{}{}:
			acquired = append(acquired, k)
		case <-ctx.Done():
			l.unref(k)
			l.release(acquired)
			return nil, errors.WithMessagef(ctx.Err(), "failed waiting for lock %s", k)
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(acquired) })
	}, nil
}

func (l *Local) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *Local) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *Local) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		<-e.ch
		l.unref(keys[i])
	}
}
