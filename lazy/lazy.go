// Package lazy provides a fetch-once value with an in-flight latch.
package lazy

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetch loads the value.
type Fetch[T any] func(ctx context.Context) (T, error)

// Value memoizes the first successful fetch until Reset. A failed fetch is
// not memoized; the next trigger tries again.
type Value[T any] struct {
	fetch Fetch[T]
	group singleflight.Group

	mu       sync.Mutex
	val      T
	loaded   bool
	inflight bool
	err      error
	gen      uint64
	wg       sync.WaitGroup
}

func New[T any](fetch Fetch[T]) *Value[T] {
	return &Value[T]{fetch: fetch}
}

// Trigger starts a background fetch unless the value is loaded or a fetch is
// already outstanding, in which case it does nothing. It reports whether a
// fetch was started.
func (v *Value[T]) Trigger(ctx context.Context) bool {
	v.mu.Lock()
	if v.loaded || v.inflight {
		v.mu.Unlock()
		return false
	}
	v.inflight = true
	gen := v.gen
	v.wg.Add(1)
	v.mu.Unlock()

	go func() {
		defer v.wg.Done()
		_, _ = v.do(ctx, gen)
	}()
	return true
}

// Get returns the value, fetching it if needed. Concurrent callers share
// one fetch, including one started by Trigger.
func (v *Value[T]) Get(ctx context.Context) (T, error) {
	v.mu.Lock()
	if v.loaded {
		val := v.val
		v.mu.Unlock()
		return val, nil
	}
	gen := v.gen
	v.mu.Unlock()

	return v.do(ctx, gen)
}

// do runs the fetch of generation gen once for all concurrent callers.
func (v *Value[T]) do(ctx context.Context, gen uint64) (T, error) {
	res, err, _ := v.group.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		v.mu.Lock()
		if v.loaded && v.gen == gen {
			val := v.val
			v.mu.Unlock()
			return val, nil
		}
		v.mu.Unlock()

		val, err := v.fetch(ctx)
		v.store(gen, val, err)
		return val, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

func (v *Value[T]) store(gen uint64, val T, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.gen {
		// Reset happened while fetching; the result belongs to a stale session.
		return
	}
	v.inflight = false
	v.err = err
	if err == nil {
		v.val = val
		v.loaded = true
	}
}

// Peek returns the value without fetching.
func (v *Value[T]) Peek() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.val, v.loaded
}

// Loading reports whether a triggered fetch is outstanding.
func (v *Value[T]) Loading() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inflight
}

// Err returns the error of the last completed fetch.
func (v *Value[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Reset forgets the value. Outstanding fetches complete but their results
// are discarded.
func (v *Value[T]) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	var zero T
	v.val = zero
	v.loaded = false
	v.inflight = false
	v.err = nil
	v.gen++
}

// Wait blocks until every triggered fetch has returned.
func (v *Value[T]) Wait() {
	v.wg.Wait()
}
