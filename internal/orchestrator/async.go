package orchestrator

import (
	"context"

	"github.com/sixfold-ai/memcore/pkg/memory"
)

// Future is the cooperative surface's handle on a pending result: a thin
// adapter over the blocking call it wraps, per the redesign note that a
// second concurrency model should be exposed as an adapter rather than
// reimplemented. Wait blocks until the call completes or ctx is done.
type Future[T any] <-chan outcome[T]

type outcome[T any] struct {
	value T
	err   error
}

// Wait blocks until f's underlying call completes or ctx is cancelled first.
func (f Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case o := <-f:
		return o.value, o.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func future[T any](fn func() (T, error)) Future[T] {
	ch := make(chan outcome[T], 1)
	go func() {
		v, err := fn()
		ch <- outcome[T]{value: v, err: err}
	}()
	return ch
}

// AddAsync schedules Add on its own goroutine, returning immediately. The
// caller's ctx cancelling the wait does not cancel the underlying Add call —
// only ctx passed to Add itself controls that, matching Add's own
// cancellation contract.
func (o *Orchestrator) AddAsync(ctx context.Context, req AddRequest) Future[[]IngestResult] {
	return future(func() ([]IngestResult, error) { return o.Add(ctx, req) })
}

// SearchAsync schedules Search on its own goroutine.
func (o *Orchestrator) SearchAsync(ctx context.Context, req SearchRequest) Future[SearchResponse] {
	return future(func() (SearchResponse, error) { return o.Search(ctx, req) })
}

// GetAsync schedules Get on its own goroutine.
func (o *Orchestrator) GetAsync(ctx context.Context, scope memory.Scope, id string) Future[memory.Fact] {
	return future(func() (memory.Fact, error) { return o.Get(ctx, scope, id) })
}

// GetAllAsync schedules GetAll on its own goroutine.
func (o *Orchestrator) GetAllAsync(ctx context.Context, scope memory.Scope, filter map[string]any, limit int) Future[[]memory.Result] {
	return future(func() ([]memory.Result, error) { return o.GetAll(ctx, scope, filter, limit) })
}

// HistoryAsync schedules History on its own goroutine.
func (o *Orchestrator) HistoryAsync(ctx context.Context, factID string) Future[[]memory.HistoryEntry] {
	return future(func() ([]memory.HistoryEntry, error) { return o.History(ctx, factID) })
}

// DeleteAsync schedules Delete on its own goroutine.
func (o *Orchestrator) DeleteAsync(ctx context.Context, scope memory.Scope, id string) Future[struct{}] {
	return future(func() (struct{}, error) { return struct{}{}, o.Delete(ctx, scope, id) })
}

// DeleteAllAsync schedules DeleteAll on its own goroutine.
func (o *Orchestrator) DeleteAllAsync(ctx context.Context, scope memory.Scope) Future[struct{}] {
	return future(func() (struct{}, error) { return struct{}{}, o.DeleteAll(ctx, scope) })
}

// ResetAsync schedules Reset on its own goroutine.
func (o *Orchestrator) ResetAsync(ctx context.Context, confirm string) Future[struct{}] {
	return future(func() (struct{}, error) { return struct{}{}, o.Reset(ctx, confirm) })
}
