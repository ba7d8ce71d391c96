package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTriggerIgnoredWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	v := New(func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "axis", nil
	})

	assert.True(t, v.Trigger(context.Background()))
	assert.True(t, v.Loading())
	assert.False(t, v.Trigger(context.Background()))
	assert.False(t, v.Trigger(context.Background()))

	close(release)
	v.Wait()

	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, "axis", got)
	assert.False(t, v.Loading())
	assert.False(t, v.Trigger(context.Background()), "loaded values are not refetched")
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedFetchIsRetried(t *testing.T) {
	var calls atomic.Int32
	v := New(func(context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("no time-series data")
		}
		return 42, nil
	})

	v.Trigger(context.Background())
	v.Wait()
	_, ok := v.Peek()
	assert.False(t, ok)
	assert.EqualError(t, v.Err(), "no time-series data")

	assert.True(t, v.Trigger(context.Background()))
	v.Wait()
	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, 42, got)
	assert.NoError(t, v.Err())
}

func TestResetDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	v := New(func(context.Context) (string, error) {
		<-release
		return "old session", nil
	})

	v.Trigger(context.Background())
	v.Reset()
	close(release)
	v.Wait()

	_, ok := v.Peek()
	assert.False(t, ok)
	assert.False(t, v.Loading())
}

func TestGetSharesOneFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	v := New(func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	})

	var wg sync.WaitGroup
	results := make([]int, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := v.Get(context.Background())
			assert.NoError(t, err)
			results[i] = got
		}()
	}
	require.Eventually(t, func() bool { return calls.Load() > 0 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, []int{7, 7, 7, 7}, results)
	assert.LessOrEqual(t, calls.Load(), int32(4))

	got, err := v.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}

func TestGetJoinsTriggeredFetch(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	v := New(func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "axis", nil
	})

	require.True(t, v.Trigger(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	done := make(chan string)
	go func() {
		got, err := v.Get(context.Background())
		assert.NoError(t, err)
		done <- got
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)

	assert.Equal(t, "axis", <-done)
	v.Wait()
	assert.Equal(t, int32(1), calls.Load(), "Get waits for the triggered fetch")
	assert.False(t, v.Loading())
}

func TestTriggerAfterResetFetchesAgain(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	v := New(func(context.Context) (int, error) {
		n := calls.Add(1)
		if n == 1 {
			<-release
		}
		return int(n), nil
	})

	v.Trigger(context.Background())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	v.Reset()
	require.True(t, v.Trigger(context.Background()), "a new session does not join the stale fetch")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, time.Millisecond)
	close(release)
	v.Wait()

	got, ok := v.Peek()
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}
