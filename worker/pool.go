// Package worker implements the bounded worker pool that runs build recipes concurrently.
// It is deliberately ignorant of what a "recipe" or a "node" is: a Job is just an opaque
// closure plus caller context, exactly as spec.md §4.5 specifies, so that all graph
// bookkeeping stays on the scheduler's goroutine in package exec and nothing here ever
// touches a core.Node.
//
// Grounded on two things at once: Please's core.Pool (src/core/pool.go), a channel of
// closures with a nil poison message as the stop signal, and GX.thread_pool.ThreadPool
// (original_source), whose separate job queue / result queue split with a timed
// pop_result is exactly the shape this scheduler needs. Closing the jobs channel on Stop
// is the idiomatic Go analogue of "push one stop sentinel per worker": a close is a single
// broadcast every blocked receiver observes, rather than one sentinel value per consumer.
package worker

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("worker")

// Job is an opaque unit of work. Run performs the side effect and returns a job value, or
// an error if it failed; Context is caller-supplied data threaded through unchanged to the
// matching Result, so callers can identify which job a result belongs to without the pool
// knowing anything about it.
type Job struct {
	Run     func() (interface{}, error)
	Context interface{}
	// Weight is how much of the pool's concurrency budget this job consumes; 0 defaults to
	// 1. A job heavier than the pool's total capacity blocks until the pool is otherwise
	// idle, rather than erroring, so a single outsized job (a final link step, say) never
	// takes down the build. Most jobs leave this at its zero value.
	Weight int64
}

// Result is what comes out of the pool once a Job has run to completion.
type Result struct {
	Job   Job
	Value interface{}
	Err   error
}

// Pool is a bounded set of worker goroutines draining a job queue and publishing to a
// result queue.
type Pool struct {
	jobs    chan Job
	results chan Result
	count   int
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
}

// New constructs a pool with workerCount goroutines, sharing a weighted semaphore of the
// same total capacity: a Job with the default Weight of 1 behaves exactly like a plain
// bounded pool, but a heavier job (Weight > 1) ties up proportionally more of the pool's
// capacity even though it only occupies one goroutine, so a handful of expensive jobs can't
// quietly run alongside as many cheap ones as there are idle goroutines.
func New(workerCount int) *Pool {
	if workerCount < 1 {
		panic("worker: pool size must be at least 1")
	}
	return &Pool{
		jobs:    make(chan Job, workerCount*64),
		results: make(chan Result, workerCount*64),
		count:   workerCount,
		sem:     semaphore.NewWeighted(int64(workerCount)),
	}
}

// Start launches the worker goroutines. Call exactly once, before any Push.
func (p *Pool) Start() {
	p.wg.Add(p.count)
	for i := 0; i < p.count; i++ {
		go p.run(i)
	}
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		weight := job.Weight
		if weight <= 0 {
			weight = 1
		}
		if weight > int64(p.count) {
			weight = int64(p.count) // a job heavier than total capacity would otherwise never acquire
		}
		_ = p.sem.Acquire(context.Background(), weight) // never errors: context.Background() is never cancelled
		value, err := p.runJob(job)
		p.sem.Release(weight)
		p.results <- Result{Job: job, Value: value, Err: err}
	}
	log.Debugf("worker %d exiting", id)
}

// runJob isolates a single job's execution so a panicking recipe is reported as a failed
// result rather than taking the whole worker goroutine down (spec.md §5 "a recipe that
// raises does not kill a worker").
func (p *Pool) runJob(job Job) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &PanicError{Recovered: r}
			}
		}
	}()
	return job.Run()
}

// Push enqueues a job. Non-blocking in practice thanks to the generous channel buffer set
// up in New; must not be called after Stop.
func (p *Pool) Push(job Job) {
	p.jobs <- job
}

// PopResult waits up to timeout for a result. Returns ok == false on timeout. A timeout of
// zero polls without blocking, which is what the scheduler uses once it already knows at
// least one job is in flight and wants to drain whatever else has arrived since.
func (p *Pool) PopResult(timeout time.Duration) (Result, bool) {
	if timeout <= 0 {
		select {
		case r := <-p.results:
			return r, true
		default:
			return Result{}, false
		}
	}
	select {
	case r := <-p.results:
		return r, true
	case <-time.After(timeout):
		return Result{}, false
	}
}

// Stop closes the job queue and waits for every worker to drain and exit. No job may be
// pushed after Stop is called.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

// PanicError wraps a non-error value recovered from a panicking recipe.
type PanicError struct {
	Recovered interface{}
}

func (e *PanicError) Error() string {
	return "recipe panicked: " + panicString(e.Recovered)
}

func panicString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return (&stringerFallback{v}).String()
}

type stringerFallback struct{ v interface{} }

func (s *stringerFallback) String() string {
	type stringer interface{ String() string }
	if st, ok := s.v.(stringer); ok {
		return st.String()
	}
	return "non-error panic value"
}
