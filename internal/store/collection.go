package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNoChange may be returned from an Update callback to skip the write.
var ErrNoChange = errors.New("store: no change")

// Collection is a typed JSON view over one namespace.
type Collection[T any] struct {
	store     Store
	namespace string
	locks     *keyedMutex
}

// NewCollection binds a Collection to namespace.
func NewCollection[T any](s Store, namespace string) *Collection[T] {
	return &Collection[T]{store: s, namespace: namespace, locks: newKeyedMutex()}
}

// Namespace reports the namespace backing the collection.
func (c *Collection[T]) Namespace() string {
	return c.namespace
}

// Get decodes the document stored under key. A missing document yields ErrNotFound.
func (c *Collection[T]) Get(ctx context.Context, key string) (T, error) {
	var value T
	payload, err := c.store.Load(ctx, c.namespace, key)
	if err != nil {
		return value, err
	}
	if err := json.Unmarshal(payload, &value); err != nil {
		return value, fmt.Errorf("store: decode %s/%s: %w", c.namespace, key, err)
	}
	return value, nil
}

// Put overwrites the document stored under key.
func (c *Collection[T]) Put(ctx context.Context, key string, value T) error {
	unlock := c.locks.lock(key)
	defer unlock()
	return c.put(ctx, key, value)
}

// Delete removes the document stored under key.
func (c *Collection[T]) Delete(ctx context.Context, key string) error {
	unlock := c.locks.lock(key)
	defer unlock()
	return c.store.Delete(ctx, c.namespace, key)
}

// Keys lists every key in the namespace.
func (c *Collection[T]) Keys(ctx context.Context) ([]string, error) {
	return c.store.Keys(ctx, c.namespace)
}

// Update runs load, mutate and save for key while holding the key's lock, so
// writers sharing this Collection never interleave. fn receives the zero value
// and exists=false when nothing is stored yet. If fn fails nothing is written;
// ErrNoChange skips the write without failing.
func (c *Collection[T]) Update(ctx context.Context, key string, fn func(value *T, exists bool) error) (T, error) {
	unlock := c.locks.lock(key)
	defer unlock()

	value, err := c.Get(ctx, key)
	exists := true
	if errors.Is(err, ErrNotFound) {
		exists = false
	} else if err != nil {
		return value, err
	}

	if err := fn(&value, exists); err != nil {
		if errors.Is(err, ErrNoChange) {
			return value, nil
		}
		return value, err
	}
	if err := c.put(ctx, key, value); err != nil {
		return value, err
	}
	return value, nil
}

func (c *Collection[T]) put(ctx context.Context, key string, value T) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", c.namespace, key, err)
	}
	return c.store.Save(ctx, c.namespace, key, payload)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &refMutex{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
