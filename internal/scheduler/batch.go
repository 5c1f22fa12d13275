package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

const (
	MaxConcurrentItems = 8
)

// BatchResult summarizes one job run. Errors is keyed by entity id.
type BatchResult struct {
	Job       string           `json:"job"`
	Processed int              `json:"processed"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[string]error `json:"-"`
}

func (r *BatchResult) merge(other BatchResult) {
	r.Processed += other.Processed
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	for id, err := range other.Errors {
		r.record(id, err)
	}
}

func (r *BatchResult) record(id string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]error)
	}
	r.Errors[id] = err
}

// process runs fn for every item with at most MaxConcurrentItems in flight.
// A failing or panicking item is recorded and never stops the others.
func process[T any](ctx context.Context, items []T, id func(T) string, fn func(context.Context, T) error) BatchResult {
	var (
		mu     sync.Mutex
		result BatchResult
		g      errgroup.Group
	)
	g.SetLimit(MaxConcurrentItems)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := runSafely(ctx, item, fn)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			if err != nil {
				result.Failed++
				result.record(id(item), err)
				return nil
			}
			result.Succeeded++
			return nil
		})
	}
	_ = g.Wait()
	return result
}

func runSafely[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx, item)
}
