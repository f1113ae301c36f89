package engine

import (
	"context"
	"sort"
	"sync"
)

// SettledStatus mirrors the two outcomes of a parallel slot.
type SettledStatus string

const (
	StatusFulfilled SettledStatus = "fulfilled"
	StatusRejected  SettledStatus = "rejected"
)

// Settled is the per-slot result of a parallel fan-out. Err is set only for
// rejected slots; errors never cross goroutine boundaries any other way.
type Settled[T any] struct {
	Index  int
	Status SettledStatus
	Value  T
	Err    *ExecutorError
}

// RunAll starts every fn concurrently, each wrapped by RunStep with cfg, and
// returns the settled results in submission order. A rejection does not
// affect siblings unless failFast is set, in which case the first rejection
// cancels the shared context and outstanding slots settle as CANCELLED.
func RunAll[T any](ctx context.Context, cfg StepConfig, failFast bool, fns []StepFunc[T]) []Settled[T] {
	shared, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan Settled[T], len(fns))
	var wg sync.WaitGroup

	for i, fn := range fns {
		wg.Add(1)
		go func(idx int, fn StepFunc[T]) {
			defer wg.Done()
			val, err := RunStep(shared, cfg, fn)
			if err != nil {
				if failFast {
					cancel()
				}
				results <- Settled[T]{Index: idx, Status: StatusRejected, Err: err}
				return
			}
			results <- Settled[T]{Index: idx, Status: StatusFulfilled, Value: val}
		}(i, fn)
	}

	wg.Wait()
	close(results)

	settled := make([]Settled[T], 0, len(fns))
	for s := range results {
		settled = append(settled, s)
	}
	sort.Slice(settled, func(i, j int) bool { return settled[i].Index < settled[j].Index })
	return settled
}
