// Package parallel runs independent per-index work across a bounded set
// of goroutines.
//
// Strip, tile, and layer decoding all consist of items that write disjoint
// results, so they share this one helper. Results are collected by index;
// callers receive a fully ordered output regardless of scheduling.
package parallel

import (
	"runtime"
	"sync"
)

// Workers is the default worker count, 0 meaning runtime.GOMAXPROCS(0).
// It can be lowered once at program start (the CLI's --workers flag does);
// it is not safe to change while conversions are running.
var Workers int

// grainSize is the minimum number of items per worker before spinning up
// goroutines is worth the cost.
const grainSize = 1

func effectiveWorkers() int {
	if Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return Workers
}

// Each runs fn(i) for i in [0, n) and returns the first error encountered
// (order not guaranteed). Small n runs sequentially.
func Each(n int, fn func(i int) error) error {
	workers := effectiveWorkers()

	if n <= grainSize*workers || workers == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error
	chunkSize := (n + workers - 1) / workers

	for w := 0; w < workers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			break
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				if err := fn(i); err != nil {
					errOnce.Do(func() {
						firstErr = err
					})
					return
				}
			}
		}(start, end)
	}

	wg.Wait()
	return firstErr
}
