package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrComputeCoalesces(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	var invocations atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (*Entry, error) {
		invocations.Add(1)
		close(started)
		<-release
		return svgEntry("<svg/>"), nil
	}

	type outcome struct {
		entry *Entry
		hit   bool
	}
	results := make(chan outcome, 5)

	go func() {
		entry, hit, err := c.GetOrCompute(context.Background(), "k", fn)
		assert.NoError(t, err)
		results <- outcome{entry, hit}
	}()
	<-started

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			entry, hit, err := c.GetOrCompute(context.Background(), "k", fn)
			assert.NoError(t, err)
			results <- outcome{entry, hit}
		}()
	}
	// Give the waiters a moment to attach before releasing the executor.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	var first *Entry
	hits := 0
	for i := 0; i < 5; i++ {
		res := <-results
		if first == nil {
			first = res.entry
		}
		assert.Same(t, first, res.entry, "all callers share one result")
		if res.hit {
			hits++
		}
	}
	assert.Equal(t, int32(1), invocations.Load(), "one computation per key")
	assert.Equal(t, 4, hits, "only the executor counts as a miss")
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)
	ctx := context.Background()

	var invocations atomic.Int32
	boom := errors.New("generator blew up")

	_, _, err = c.GetOrCompute(ctx, "k", func(context.Context) (*Entry, error) {
		invocations.Add(1)
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	entry, hit, err := c.GetOrCompute(ctx, "k", func(context.Context) (*Entry, error) {
		invocations.Add(1)
		return svgEntry("<svg/>"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NotNil(t, entry)
	assert.Equal(t, int32(2), invocations.Load(), "failure must not be memoized")

	_, hit, err = c.GetOrCompute(ctx, "k", func(context.Context) (*Entry, error) {
		invocations.Add(1)
		return nil, errors.New("must not run")
	})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int32(2), invocations.Load())
}

func TestFlightWaiterCancelKeepsComputation(t *testing.T) {
	var g Group

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool

	fn := func(ctx context.Context) (*Entry, error) {
		close(started)
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
			return nil, ctx.Err()
		}
		return svgEntry("<svg/>"), nil
	}

	executorDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(context.Background(), "k", fn)
		executorDone <- err
	}()
	<-started

	waiterCtx, cancelWaiter := context.WithCancel(context.Background())
	waiterDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(waiterCtx, "k", fn)
		waiterDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancelWaiter()
	require.ErrorIs(t, <-waiterDone, context.Canceled)

	close(release)
	require.NoError(t, <-executorDone)
	assert.False(t, sawCancel.Load(), "computation must survive a waiter departing")
}

func TestFlightAllWaitersGoneCancelsComputation(t *testing.T) {
	var g Group

	started := make(chan struct{})
	ctxSeen := make(chan error, 1)

	fn := func(ctx context.Context) (*Entry, error) {
		close(started)
		<-ctx.Done()
		ctxSeen <- ctx.Err()
		return nil, ctx.Err()
	}

	callerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := g.Do(callerCtx, "k", fn)
		done <- err
	}()
	<-started

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	select {
	case err := <-ctxSeen:
		assert.ErrorIs(t, err, context.Canceled, "computation context cancelled once no participants remain")
	case <-time.After(time.Second):
		t.Fatal("computation context was never cancelled")
	}
}

func TestFlightFreshCallAfterAbandonment(t *testing.T) {
	var g Group
	var invocations atomic.Int32

	blocked := make(chan struct{})
	fn := func(ctx context.Context) (*Entry, error) {
		invocations.Add(1)
		close(blocked)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_, _, _ = g.Do(ctx, "k", fn)
		close(done)
	}()
	<-blocked
	cancel()
	<-done

	entry, _, err := g.Do(context.Background(), "k", func(context.Context) (*Entry, error) {
		invocations.Add(1)
		return svgEntry("<svg/>"), nil
	})
	require.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Equal(t, int32(2), invocations.Load(), "abandoned key admits a fresh computation")
}

func TestFlightPanicBecomesError(t *testing.T) {
	var g Group

	_, _, err := g.Do(context.Background(), "k", func(context.Context) (*Entry, error) {
		panic("template exploded")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generation panic")
}
