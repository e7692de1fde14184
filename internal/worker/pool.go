package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

// PanicResult stands in for the result of a job that panicked
type PanicResult struct {
	Err error
}

func (r *PanicResult) GetError() error {
	return r.Err
}

// Pool runs jobs with at most a fixed number in flight
type Pool struct {
	workers int
}

// NewPool creates a pool. Non-positive sizes run one job at a time.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{workers: workers}
}

// Run executes every job and returns the results in job order. Each job is
// handed ctx and decides for itself how to report cancellation, so the result
// slice never has holes.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	slots := make(chan struct{}, p.workers)

	var wg sync.WaitGroup
	for i, job := range jobs {
		slots <- struct{}{}
		wg.Add(1)
		go func(i int, job Job) {
			defer func() {
				<-slots
				wg.Done()
			}()
			results[i] = execute(ctx, job)
		}(i, job)
	}
	wg.Wait()

	return results
}

func execute(ctx context.Context, job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = &PanicResult{Err: fmt.Errorf("job panicked: %v", r)}
		}
	}()
	return job.Execute(ctx)
}
