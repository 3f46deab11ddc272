package solver

import (
	"runtime"
	"sync"
)

// Row-sweep worker pool. One step dispatches the interior rows as chunked
// tasks; workers write disjoint rows of the next buffer, so no locking is
// needed. The pool lives as long as the solver and must be shut down when
// the run terminates, or its workers outlive the run.

type task struct {
	first int
	last  int
	dt    float64
}

type executor struct {
	workers  int
	dispatch chan task
	done     chan error
	stop     sync.Once
}

func newExecutor(workers int, f func(first, last int, dt float64) error) *executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	e := &executor{
		workers:  workers,
		dispatch: make(chan task, workers),
		done:     make(chan error, workers),
	}
	for w := 0; w < workers; w++ {
		go func() {
			for t := range e.dispatch {
				e.done <- f(t.first, t.last, t.dt)
			}
		}()
	}
	return e
}

// shutdown releases the workers. Idempotent; sweep must not be called
// afterwards.
func (e *executor) shutdown() {
	e.stop.Do(func() { close(e.dispatch) })
}

// sweep splits rows [first,last) into one chunk per worker, dispatches them
// and waits for all to finish. The first error wins; all chunks are always
// drained so the pool stays usable.
func (e *executor) sweep(first, last int, dt float64) error {
	rows := last - first
	if rows <= 0 {
		return nil
	}
	chunks := e.workers
	if rows < chunks {
		chunks = rows
	}
	size := rows / chunks
	rem := rows % chunks

	start := first
	for c := 0; c < chunks; c++ {
		end := start + size
		if c < rem {
			end++
		}
		e.dispatch <- task{first: start, last: end, dt: dt}
		start = end
	}

	var firstErr error
	for c := 0; c < chunks; c++ {
		if err := <-e.done; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
