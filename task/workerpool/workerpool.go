// Package workerpool is the in-process task.Backend: a fixed-size pool
// of goroutine workers pulling from a buffered queue, with cooperative
// cancellation and a records map guarded by a mutex.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"goa.design/refcache/task"
	"goa.design/refcache/telemetry"
)

// Config configures a Backend.
type Config struct {
	// Workers is the fixed number of goroutines pulling from the work
	// queue. Default: 4.
	Workers int
	// QueueSize bounds how many submitted-but-not-yet-started tasks may
	// be buffered before Submit blocks the caller. Default: 64.
	QueueSize int
	// ProgressInterval rate-limits progress-callback delivery per task
	// to at most one update per interval. Default: 100ms.
	ProgressInterval time.Duration
	// Logger and Tracer default to noop implementations.
	Logger telemetry.Logger
	Tracer telemetry.Tracer
}

type job struct {
	taskID string
	fn     task.Func
	retry  task.RetryPolicy
}

// Backend is the in-process worker-pool task.Backend.
type Backend struct {
	queue  chan job
	wg     sync.WaitGroup
	logger telemetry.Logger
	tracer telemetry.Tracer

	progressInterval time.Duration

	mu       sync.Mutex
	records  map[string]*entry
	shutdown chan struct{}
	once     sync.Once
}

type entry struct {
	rec       task.Record
	cancel    context.CancelFunc
	cancelled bool
	result    any
	limiter   *rate.Limiter
}

var _ task.Backend = (*Backend)(nil)

// New starts a Backend with cfg.Workers goroutines reading from a queue
// of capacity cfg.QueueSize.
func New(cfg Config) *Backend {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}

	b := &Backend{
		queue:            make(chan job, cfg.QueueSize),
		logger:           cfg.Logger,
		tracer:           cfg.Tracer,
		progressInterval: cfg.ProgressInterval,
		records:          make(map[string]*entry),
		shutdown:         make(chan struct{}),
	}
	for i := 0; i < cfg.Workers; i++ {
		b.wg.Add(1)
		go b.runWorker()
	}
	return b
}

func (b *Backend) runWorker() {
	defer b.wg.Done()
	for {
		select {
		case <-b.shutdown:
			return
		case j, ok := <-b.queue:
			if !ok {
				return
			}
			b.execute(j)
		}
	}
}

func (b *Backend) execute(j job) {
	b.mu.Lock()
	e, ok := b.records[j.taskID]
	if !ok {
		b.mu.Unlock()
		return
	}
	if e.cancelled {
		now := time.Now()
		e.rec.Status = task.Cancelled
		e.rec.CompletedAt = &now
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.rec.Status = task.Processing
	e.limiter = rate.NewLimiter(rate.Every(b.progressInterval), 1)
	b.mu.Unlock()

	report := func(p task.Progress) {
		b.mu.Lock()
		defer b.mu.Unlock()
		e, ok := b.records[j.taskID]
		if !ok || !e.limiter.Allow() {
			return
		}
		e.rec.Progress = &p
	}

	delay := j.retry.Delay
	backoff := j.retry.BackoffFactor
	if backoff <= 0 {
		backoff = 1
	}

	for attempt := 0; ; attempt++ {
		result, err := j.fn(ctx, report)

		b.mu.Lock()
		e, ok = b.records[j.taskID]
		if !ok {
			b.mu.Unlock()
			return
		}
		if e.cancelled {
			now := time.Now()
			e.rec.Status = task.Cancelled
			e.rec.CompletedAt = &now
			b.mu.Unlock()
			return
		}
		if err == nil {
			now := time.Now()
			e.rec.Status = task.Complete
			e.rec.CompletedAt = &now
			e.result = result
			b.mu.Unlock()
			return
		}
		if attempt >= j.retry.MaxRetries {
			now := time.Now()
			e.rec.Status = task.Failed
			e.rec.LastError = err.Error()
			e.rec.CompletedAt = &now
			b.mu.Unlock()
			return
		}
		e.rec.RetryAttempts = attempt + 1
		e.rec.LastError = err.Error()
		sleep := time.Duration(float64(delay) * pow(backoff, attempt))
		b.mu.Unlock()

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			b.mu.Lock()
			if e, ok = b.records[j.taskID]; ok {
				now := time.Now()
				e.rec.Status = task.Cancelled
				e.rec.CompletedAt = &now
			}
			b.mu.Unlock()
			return
		}
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// Submit enqueues fn for background execution. The queue is bounded;
// Submit blocks if it is full, matching a fixed-size pool's backpressure.
func (b *Backend) Submit(ctx context.Context, taskID, refID string, fn task.Func, retry task.RetryPolicy) (task.Record, error) {
	rec := task.Record{
		TaskID:     taskID,
		RefID:      refID,
		Status:     task.Pending,
		StartedAt:  time.Now(),
		MaxRetries: retry.MaxRetries,
	}
	b.mu.Lock()
	b.records[taskID] = &entry{rec: rec}
	b.mu.Unlock()

	select {
	case b.queue <- job{taskID: taskID, fn: fn, retry: retry}:
		return rec, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.records, taskID)
		b.mu.Unlock()
		return task.Record{}, ctx.Err()
	case <-b.shutdown:
		b.mu.Lock()
		delete(b.records, taskID)
		b.mu.Unlock()
		return task.Record{}, fmt.Errorf("workerpool: shutting down")
	}
}

func (b *Backend) GetStatus(taskID string) (task.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.records[taskID]
	if !ok {
		return task.Record{}, false
	}
	return e.rec, true
}

// Wait blocks until taskID reaches a terminal status or timeout elapses,
// polling at a short fixed interval. A timeout never cancels the task;
// it only ends the wait, so the caller can fall back to a handle it
// polls later.
func (b *Backend) Wait(ctx context.Context, taskID string, timeout time.Duration) (task.Record, bool) {
	rec, ok := b.GetStatus(taskID)
	if !ok || rec.Status.Terminal() {
		return rec, ok
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rec, ok = b.GetStatus(taskID)
			if !ok || rec.Status.Terminal() {
				return rec, ok
			}
		case <-deadline:
			return b.GetStatus(taskID)
		case <-ctx.Done():
			return b.GetStatus(taskID)
		}
	}
}

func (b *Backend) GetResult(ctx context.Context, taskID string) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.records[taskID]
	if !ok {
		return nil, fmt.Errorf("workerpool: unknown task %s", taskID)
	}
	switch e.rec.Status {
	case task.Complete:
		return e.result, nil
	case task.Failed:
		return nil, fmt.Errorf("workerpool: task %s failed: %s", taskID, e.rec.LastError)
	case task.Cancelled:
		return nil, fmt.Errorf("workerpool: task %s cancelled", taskID)
	default:
		return nil, fmt.Errorf("workerpool: task %s not yet terminal (%s)", taskID, e.rec.Status)
	}
}

func (b *Backend) Cancel(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.records[taskID]
	if !ok || e.rec.Status.Terminal() || e.cancelled {
		return false
	}
	e.cancelled = true
	if e.cancel != nil {
		e.cancel()
	}
	if e.rec.Status == task.Pending {
		now := time.Now()
		e.rec.Status = task.Cancelled
		e.rec.CompletedAt = &now
	}
	return true
}

func (b *Backend) IsCancelled(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.records[taskID]
	return ok && e.cancelled
}

func (b *Backend) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, e := range b.records {
		if e.rec.Status.Terminal() && e.rec.CompletedAt != nil && e.rec.CompletedAt.Before(cutoff) {
			delete(b.records, id)
			removed++
		}
	}
	return removed
}

func (b *Backend) Shutdown(ctx context.Context) error {
	b.once.Do(func() { close(b.shutdown) })
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Backend) GetStats() task.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var s task.Stats
	for _, e := range b.records {
		switch e.rec.Status {
		case task.Pending:
			s.Pending++
		case task.Processing:
			s.Processing++
		case task.Complete:
			s.Complete++
		case task.Failed:
			s.Failed++
		case task.Cancelled:
			s.Cancelled++
		}
	}
	return s
}
