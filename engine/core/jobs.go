package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemClosed     = errors.New("job system is shut down")
)

/**
 * @brief A unit of work for the job system. Run executes on a worker
 * goroutine; OnComplete or OnFailure are called later from Update, on the
 * goroutine driving the frame, so they may touch the graphics device.
 */
type JobTask struct {
	Name       string
	Run        func() (interface{}, error)
	OnComplete func(result interface{})
	OnFailure  func(err error)
}

type jobResult struct {
	task   JobTask
	result interface{}
	err    error
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	// held while sending so Shutdown never closes the queue under a sender
	sendMu sync.RWMutex

	mu       sync.Mutex
	results  []jobResult
	inflight int
	closed   bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	LogDebug("job system started with %d workers", numWorkers)
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				result, err := job.Run()
				if err != nil {
					err = fmt.Errorf("job '%s': %w", job.Name, err)
					LogError(err.Error())
				}
				js.mu.Lock()
				js.results = append(js.results, jobResult{task: job, result: result, err: err})
				js.mu.Unlock()
			}
		}()
	}
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while
 * the queue is full.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.sendMu.RLock()
	defer js.sendMu.RUnlock()

	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return fmt.Errorf("job '%s': %w", jt.Name, ErrJobSystemClosed)
	}
	js.inflight++
	js.mu.Unlock()

	js.jobQueue <- jt
	return nil
}

/**
 * @brief Delivers the results of finished jobs to their callbacks and returns
 * how many were delivered. Should happen once an update cycle.
 */
func (js *JobSystem) Update() int {
	js.mu.Lock()
	results := js.results
	js.results = nil
	js.inflight -= len(results)
	js.mu.Unlock()

	for _, r := range results {
		if r.err != nil {
			if r.task.OnFailure != nil {
				r.task.OnFailure(r.err)
			}
			continue
		}
		if r.task.OnComplete != nil {
			r.task.OnComplete(r.result)
		}
	}
	return len(results)
}

// Pending returns the number of jobs submitted but not yet delivered by Update.
func (js *JobSystem) Pending() int {
	js.mu.Lock()
	defer js.mu.Unlock()
	return js.inflight
}

/**
 * @brief Shuts the job system down. Queued jobs still run; results that were
 * not delivered by Update are dropped.
 */
func (js *JobSystem) Shutdown() error {
	js.sendMu.Lock()
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		js.sendMu.Unlock()
		return nil
	}
	js.closed = true
	js.mu.Unlock()
	close(js.jobQueue)
	js.sendMu.Unlock()

	js.wg.Wait()

	js.mu.Lock()
	if n := len(js.results); n > 0 {
		LogDebug("job system dropped %d undelivered results", n)
	}
	js.results = nil
	js.inflight = 0
	js.mu.Unlock()
	return nil
}
