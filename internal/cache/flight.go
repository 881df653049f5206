package cache

import (
	"context"
	"fmt"
	"sync"
)

// Group coalesces concurrent computations of the same key: at most one
// fn runs per key at any instant. Waiters attach in arrival order and
// results are delivered in that order. A departing waiter abandons only
// itself; the computation is cancelled when no participants remain, so
// one caller's cancellation never fails another caller's request.
//
// golang.org/x/sync/singleflight ties the computation to the first
// caller's context and cannot express the participant-counted
// cancellation this transport needs, hence the local implementation.
type Group struct {
	mu    sync.Mutex
	calls map[string]*flightCall
}

type flightResult struct {
	entry *Entry
	err   error
}

type flightCall struct {
	waiters      []chan flightResult
	participants int
	cancel       context.CancelFunc
	done         bool
}

// Do runs fn once per key across concurrent callers. shared is false for
// the caller whose arrival started the computation and true for callers
// that attached to it. fn receives a context that is detached from any
// single caller and is cancelled only when every caller has gone away.
func (g *Group) Do(ctx context.Context, key string, fn func(ctx context.Context) (*Entry, error)) (entry *Entry, shared bool, err error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*flightCall)
	}

	ch := make(chan flightResult, 1)
	call, running := g.calls[key]
	if running {
		call.waiters = append(call.waiters, ch)
		call.participants++
		g.mu.Unlock()
		return g.wait(ctx, key, call, ch)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	call = &flightCall{
		waiters:      []chan flightResult{ch},
		participants: 1,
		cancel:       cancel,
	}
	g.calls[key] = call
	g.mu.Unlock()

	go g.run(runCtx, key, call, fn)
	entry, err = g.await(ctx, key, call, ch)
	return entry, false, err
}

func (g *Group) wait(ctx context.Context, key string, call *flightCall, ch chan flightResult) (*Entry, bool, error) {
	entry, err := g.await(ctx, key, call, ch)
	return entry, true, err
}

func (g *Group) await(ctx context.Context, key string, call *flightCall, ch chan flightResult) (*Entry, error) {
	select {
	case res := <-ch:
		return res.entry, res.err
	case <-ctx.Done():
		g.mu.Lock()
		if !call.done {
			call.participants--
			if call.participants <= 0 {
				// Last caller gone: abandon the computation and
				// free the key for fresh arrivals.
				call.cancel()
				if g.calls[key] == call {
					delete(g.calls, key)
				}
			}
		}
		g.mu.Unlock()
		return nil, ctx.Err()
	}
}

func (g *Group) run(ctx context.Context, key string, call *flightCall, fn func(ctx context.Context) (*Entry, error)) {
	entry, err := invoke(ctx, fn)

	g.mu.Lock()
	call.done = true
	waiters := call.waiters
	call.waiters = nil
	if g.calls[key] == call {
		delete(g.calls, key)
	}
	g.mu.Unlock()

	call.cancel()
	for _, ch := range waiters {
		ch <- flightResult{entry: entry, err: err}
	}
}

// invoke shields waiters from a panicking computation.
func invoke(ctx context.Context, fn func(ctx context.Context) (*Entry, error)) (entry *Entry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry = nil
			err = fmt.Errorf("generation panic: %v", r)
		}
	}()
	return fn(ctx)
}
