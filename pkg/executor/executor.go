// Package executor fans a function out across a set of segments,
// either sequentially or with bounded concurrency, collecting results
// in input order and propagating the first error encountered.
//
// Grounded on the teacher's pkg/embed.AutoEmbedder.BatchEmbed: a
// results slice indexed by position, a sync.WaitGroup, a sync.Mutex
// guarding the first-error slot, and a semaphore channel bounding
// concurrency — no errgroup-style library appears in any example's
// go.mod, so this stays on stdlib sync (see DESIGN.md).
package executor

import "sync"

// Executor runs a function over a slice of items, either on the
// calling goroutine or fanned out across a bounded worker pool.
type Executor struct {
	workers int
}

// SingleThread returns an Executor that runs every item sequentially
// on the calling goroutine.
func SingleThread() *Executor {
	return &Executor{workers: 1}
}

// MultiThread returns an Executor that fans work out across up to
// workers concurrent goroutines. workers <= 1 behaves like
// SingleThread.
func MultiThread(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	return &Executor{workers: workers}
}

// Map applies fn to each item, returning the results in input order.
// If fn returns an error for any item, Map returns the first such
// error encountered (by index, not by completion order). With more than
// one worker, other items still run to completion; with a single worker,
// Map stops at the first error and later items do not run.
func Map[T, R any](e *Executor, items []T, fn func(T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	if e.workers <= 1 {
		for i, item := range items {
			r, err := fn(item)
			if err != nil {
				return nil, err
			}
			results[i] = r
		}
		return results, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		firstIdx int
	)

	sem := make(chan struct{}, e.workers)

	for i, item := range items {
		wg.Add(1)
		go func(idx int, it T) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			r, err := fn(it)
			if err != nil {
				mu.Lock()
				if firstErr == nil || idx < firstIdx {
					firstErr = err
					firstIdx = idx
				}
				mu.Unlock()
				return
			}
			results[idx] = r
		}(i, item)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// Each applies fn to each item for its side effect, propagating the
// first error the same way Map does.
func Each[T any](e *Executor, items []T, fn func(T) error) error {
	_, err := Map(e, items, func(item T) (struct{}, error) {
		return struct{}{}, fn(item)
	})
	return err
}
