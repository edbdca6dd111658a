// Package executor runs SDK background work on a single worker goroutine,
// ordered by priority. Failed tasks are re-queued with a linearly growing
// delay and dropped for good once they exhaust their retry budget.
package executor

import (
	"container/heap"
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/infrastructure/logging"
)

const (
	// PriorityRegistration sorts ahead of everything else: no other call
	// is useful before the user exists on the backend.
	PriorityRegistration = math.MinInt
	PriorityDefault      = math.MaxInt

	// maxRetries bounds re-queues per task; afterwards the task is dropped
	// and the failure reported.
	maxRetries = 10

	retryBaseDelay = 10 * time.Second
	retryStepDelay = 5 * time.Second
)

// Task is a unit of background work. Run is retried until it returns nil
// or the retry budget runs out.
type Task struct {
	Name     string
	Priority int
	Run      func(ctx context.Context) error
}

type queuedTask struct {
	task       Task
	retryCount int
	readyAt    time.Time
	seq        uint64
}

// taskHeap orders by priority, then ready time, then submission order.
type taskHeap []*queuedTask

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	if !h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].readyAt.Before(h[j].readyAt)
	}
	return h[i].seq < h[j].seq
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*queuedTask)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Executor is the single-worker priority scheduler.
type Executor struct {
	mu    sync.Mutex
	queue taskHeap
	seq   uint64

	retryBase time.Duration
	retryStep time.Duration

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *zap.Logger
}

func New() *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		retryBase: retryBaseDelay,
		retryStep: retryStepDelay,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logging.WithComponent("executor"),
	}
	e.wg.Add(1)
	go e.run()
	return e
}

// Submit queues a task. Safe to call from any goroutine; returns
// immediately.
func (e *Executor) Submit(task Task) {
	e.mu.Lock()
	e.seq++
	heap.Push(&e.queue, &queuedTask{task: task, readyAt: time.Now(), seq: e.seq})
	e.mu.Unlock()
	e.signal()
}

// Close stops the worker. Queued tasks are abandoned; the in-flight task
// sees its context cancelled.
func (e *Executor) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Executor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Executor) run() {
	defer e.wg.Done()

	for {
		item, wait := e.next()
		if item == nil {
			if !e.sleep(wait) {
				return
			}
			continue
		}
		e.execute(item)
	}
}

// next pops the head of the queue if it is ready, otherwise reports how
// long to wait for it. The head's delay gates lower-priority tasks too,
// which keeps a retrying registration ahead of dependent work.
func (e *Executor) next() (*queuedTask, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.queue) == 0 {
		return nil, -1
	}
	head := e.queue[0]
	if wait := time.Until(head.readyAt); wait > 0 {
		return nil, wait
	}
	return heap.Pop(&e.queue).(*queuedTask), 0
}

// sleep blocks until the wait elapses, a new task arrives or the executor
// closes. A negative wait means block indefinitely. Returns false on close.
func (e *Executor) sleep(wait time.Duration) bool {
	if wait < 0 {
		select {
		case <-e.wake:
			return true
		case <-e.ctx.Done():
			return false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.wake:
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Executor) execute(item *queuedTask) {
	err := item.task.Run(e.ctx)
	if err == nil {
		return
	}
	if e.ctx.Err() != nil {
		return
	}

	item.retryCount++
	if item.retryCount > maxRetries {
		logging.CaptureError(err, "task dropped after exhausting retries",
			zap.String("task", item.task.Name),
			zap.Int("retries", item.retryCount),
		)
		return
	}

	delay := e.retryBase + time.Duration(item.retryCount)*e.retryStep
	item.readyAt = time.Now().Add(delay)

	e.logger.Warn("task failed, re-queued",
		zap.String("task", item.task.Name),
		zap.Int("retry", item.retryCount),
		zap.Duration("delay", delay),
		zap.Error(err),
	)

	e.mu.Lock()
	heap.Push(&e.queue, item)
	e.mu.Unlock()
	e.signal()
}
