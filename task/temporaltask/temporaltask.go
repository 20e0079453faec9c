// Package temporaltask is a task.Backend backed by Temporal. It is an
// opt-in alternative to
// task/workerpool, grounded on the teacher's Temporal engine adapter
// (runtime/agent/engine/temporal): one workflow per submitted task,
// fronting a single activity that invokes the caller's task.Func.
//
// Because a task.Func is an in-process Go closure, it cannot cross a
// process boundary the way a registered Temporal activity normally
// would; this backend keeps the worker in the same process as the
// caller (as the teacher's engine does for its in-memory adapter) and
// uses Temporal purely for durable history, retry, and cancellation
// semantics rather than for distributing work to other machines. The
// registered funcs live only in this process's memory, so a task whose
// process restarts fails with "no registered func".
package temporaltask

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"goa.design/refcache/task"
	"goa.design/refcache/telemetry"
)

const (
	workflowName = "refcache.RunTask"
	activityName = "refcache.InvokeTask"
)

// Options configures a Backend.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, ClientOptions
	// is used to dial one.
	Client client.Client
	// ClientOptions dials a client when Client is nil.
	ClientOptions client.Options
	// TaskQueue is the Temporal task queue this backend's worker polls
	// and every workflow/activity it starts targets. Required.
	TaskQueue string
	// HeartbeatTimeout bounds how long the activity may run between
	// progress heartbeats before Temporal considers it dead. Default: 30s.
	HeartbeatTimeout time.Duration
	// DisableTracing skips installing the OTEL tracing interceptor,
	// matching the teacher engine's InstrumentationOptions.
	DisableTracing bool
	Logger         telemetry.Logger
	Tracer         telemetry.Tracer
}

// Backend is a Temporal-backed task.Backend. One workflow execution
// (workflowName) is started per submitted task; it runs a single
// activity (activityName) that invokes the task.Func registered for
// that task ID in this process.
type Backend struct {
	client     client.Client
	ownsClient bool
	worker     worker.Worker
	taskQueue  string
	heartbeat  time.Duration
	logger     telemetry.Logger
	tracer     telemetry.Tracer

	mu      sync.Mutex
	records map[string]*task.Record
	results map[string]any
	fns     map[string]task.Func
}

var _ task.Backend = (*Backend)(nil)

// New dials (if needed) a Temporal client, starts a worker on
// opts.TaskQueue, and returns a ready Backend.
func New(opts Options) (*Backend, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporaltask: TaskQueue required")
	}
	if opts.HeartbeatTimeout <= 0 {
		opts.HeartbeatTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.NewNoopLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = telemetry.NewNoopTracer()
	}

	c := opts.Client
	ownsClient := false
	if c == nil {
		co := opts.ClientOptions
		if !opts.DisableTracing {
			interceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{})
			if err != nil {
				return nil, fmt.Errorf("temporaltask: tracing interceptor: %w", err)
			}
			co.Interceptors = append(co.Interceptors, interceptor)
		}
		lazy, err := client.NewLazyClient(co)
		if err != nil {
			return nil, fmt.Errorf("temporaltask: create client: %w", err)
		}
		c = lazy
		ownsClient = true
	}

	b := &Backend{
		client:     c,
		ownsClient: ownsClient,
		taskQueue:  opts.TaskQueue,
		heartbeat:  opts.HeartbeatTimeout,
		logger:     opts.Logger,
		tracer:     opts.Tracer,
		records:    make(map[string]*task.Record),
		results:    make(map[string]any),
		fns:        make(map[string]task.Func),
	}

	w := worker.New(c, opts.TaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(b.runTaskWorkflow, workflow.RegisterOptions{Name: workflowName})
	w.RegisterActivityWithOptions(b.invokeTaskActivity, activity.RegisterOptions{Name: activityName})
	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("temporaltask: start worker: %w", err)
	}
	b.worker = w
	return b, nil
}

// runTaskWorkflow is the Temporal workflow definition: it schedules the
// activity that runs the caller's Func, applying retry via Temporal's
// own activity RetryPolicy instead of a hand-rolled loop.
func (b *Backend) runTaskWorkflow(ctx workflow.Context, taskID string, retry task.RetryPolicy) (any, error) {
	backoff := retry.BackoffFactor
	if backoff <= 0 {
		backoff = 1
	}
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 0, // bounded by the caller's async_timeout wait, not here
		HeartbeatTimeout:    b.heartbeat,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    retry.Delay,
			BackoffCoefficient: backoff,
			MaximumAttempts:    int32(retry.MaxRetries + 1),
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result any
	err := workflow.ExecuteActivity(ctx, activityName, taskID).Get(ctx, &result)
	return result, err
}

// invokeTaskActivity runs in this process (never on a remote worker,
// per the package doc) and looks up the task.Func registered for
// taskID, forwarding progress through the caller's reportFunc and
// Temporal heartbeats so cancellation requests reach it.
func (b *Backend) invokeTaskActivity(ctx context.Context, taskID string) (any, error) {
	b.mu.Lock()
	fn, ok := b.fns[taskID]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("temporaltask: no registered func for task %s", taskID)
	}

	report := func(p task.Progress) {
		activity.RecordHeartbeat(ctx, p)
		b.mu.Lock()
		if rec, ok := b.records[taskID]; ok {
			rec.Progress = &p
		}
		b.mu.Unlock()
	}

	b.mu.Lock()
	if rec, ok := b.records[taskID]; ok {
		rec.Status = task.Processing
	}
	b.mu.Unlock()

	return fn(ctx, report)
}

// Submit registers fn locally under taskID and starts a workflow
// execution that will invoke it via invokeTaskActivity.
func (b *Backend) Submit(ctx context.Context, taskID, refID string, fn task.Func, retry task.RetryPolicy) (task.Record, error) {
	rec := task.Record{
		TaskID:     taskID,
		RefID:      refID,
		Status:     task.Pending,
		StartedAt:  time.Now(),
		MaxRetries: retry.MaxRetries,
	}

	b.mu.Lock()
	b.fns[taskID] = fn
	b.records[taskID] = &rec
	b.mu.Unlock()

	run, err := b.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        taskID,
		TaskQueue: b.taskQueue,
	}, workflowName, taskID, retry)
	if err != nil {
		b.mu.Lock()
		delete(b.fns, taskID)
		delete(b.records, taskID)
		b.mu.Unlock()
		return task.Record{}, fmt.Errorf("temporaltask: start workflow: %w", err)
	}

	go b.await(taskID, run)

	return rec, nil
}

func (b *Backend) await(taskID string, run client.WorkflowRun) {
	var result any
	err := run.Get(context.Background(), &result)

	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[taskID]
	if !ok {
		return
	}
	now := time.Now()
	rec.CompletedAt = &now
	delete(b.fns, taskID)
	switch {
	case err != nil && temporal.IsCanceledError(err):
		rec.Status = task.Cancelled
	case err != nil:
		rec.Status = task.Failed
		rec.LastError = err.Error()
	default:
		rec.Status = task.Complete
		b.results[taskID] = result
	}
}

func (b *Backend) GetStatus(taskID string) (task.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[taskID]
	if !ok {
		return task.Record{}, false
	}
	return *rec, true
}

// Wait blocks until taskID reaches a terminal status or timeout elapses.
// It polls the local record rather than re-querying Temporal, since
// await() already updates it the moment the workflow completes.
func (b *Backend) Wait(ctx context.Context, taskID string, timeout time.Duration) (task.Record, bool) {
	rec, ok := b.GetStatus(taskID)
	if !ok || rec.Status.Terminal() {
		return rec, ok
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
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
	rec, ok := b.records[taskID]
	if !ok {
		return nil, fmt.Errorf("temporaltask: unknown task %s", taskID)
	}
	switch rec.Status {
	case task.Complete:
		return b.results[taskID], nil
	case task.Failed:
		return nil, fmt.Errorf("temporaltask: task %s failed: %s", taskID, rec.LastError)
	case task.Cancelled:
		return nil, fmt.Errorf("temporaltask: task %s cancelled", taskID)
	default:
		return nil, fmt.Errorf("temporaltask: task %s not yet terminal (%s)", taskID, rec.Status)
	}
}

func (b *Backend) Cancel(taskID string) bool {
	b.mu.Lock()
	rec, ok := b.records[taskID]
	if !ok || rec.Status.Terminal() {
		b.mu.Unlock()
		return false
	}
	b.mu.Unlock()

	if err := b.client.CancelWorkflow(context.Background(), taskID, ""); err != nil {
		return false
	}
	return true
}

func (b *Backend) IsCancelled(taskID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[taskID]
	return ok && rec.Status == task.Cancelled
}

func (b *Backend) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for id, rec := range b.records {
		if rec.Status.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(b.records, id)
			delete(b.results, id)
			removed++
		}
	}
	return removed
}

func (b *Backend) Shutdown(ctx context.Context) error {
	b.worker.Stop()
	if b.ownsClient {
		b.client.Close()
	}
	return nil
}

func (b *Backend) GetStats() task.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	var s task.Stats
	for _, rec := range b.records {
		switch rec.Status {
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
