// Package scheduler runs background work: the queue worker that executes delivery and inbound-message tasks
package scheduler

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/amirphl/sms-gateway-bridge/app/queue"
	"github.com/amirphl/sms-gateway-bridge/utils"
)

// TaskHandler executes one reserved task. Returned errors are logged only;
// retry decisions belong to the handler.
type TaskHandler func(ctx context.Context, task *queue.Task) error

// WorkerConfig tunes the poll loop
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// TaskWorker periodically reserves due tasks and runs them on a bounded pool
type TaskWorker struct {
	q        queue.Queue
	handlers map[queue.Kind]TaskHandler
	cfg      WorkerConfig
	logger   *log.Logger
	now      utils.Clock

	mu sync.RWMutex
}

func NewTaskWorker(q queue.Queue, cfg WorkerConfig, logger *log.Logger, now utils.Clock) *TaskWorker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if logger == nil {
		logger = log.New(log.Writer(), "worker ", utils.LogFlags)
	}
	if now == nil {
		now = utils.UTCNow
	}
	return &TaskWorker{
		q:        q,
		handlers: make(map[queue.Kind]TaskHandler),
		cfg:      cfg,
		logger:   logger,
		now:      now,
	}
}

// Register binds a handler to a task kind, replacing any previous one
func (w *TaskWorker) Register(kind queue.Kind, h TaskHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

// Start launches the poll loop in a background goroutine and returns a stop
// function that waits for the current batch to finish.
func (w *TaskWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		w.RunOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()

	w.logger.Printf("worker: started interval=%s batch=%d concurrency=%d",
		w.cfg.PollInterval, w.cfg.BatchSize, w.cfg.Concurrency)

	return func() {
		cancel()
		<-done
		w.logger.Printf("worker: stopped")
	}
}

// RunOnce reserves one batch of due tasks and blocks until all of them ran.
// It returns the number of tasks reserved.
func (w *TaskWorker) RunOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	tasks, err := w.q.Reserve(ctx, w.now(), w.cfg.BatchSize)
	if err != nil {
		w.logger.Printf("worker: reserve failed: %v", err)
		return 0
	}
	if len(tasks) == 0 {
		return 0
	}

	// Reserved tasks run to completion and are acknowledged even when shutdown
	// starts mid-batch; one whose worker dies first is redelivered by the queue.
	runCtx := context.WithoutCancel(ctx)
	sem := make(chan struct{}, w.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, task := range tasks {
		sem <- struct{}{}
		wg.Add(1)
		go func(t *queue.Task) {
			defer func() {
				<-sem
				wg.Done()
			}()
			w.execute(runCtx, t)
		}(task)
	}
	wg.Wait()

	return len(tasks)
}

func (w *TaskWorker) execute(ctx context.Context, task *queue.Task) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			outcome = "panic"
			w.logger.Printf("CRITICAL worker: task id=%s kind=%s panicked: %v\n%s", task.ID, task.Kind, r, debug.Stack())
		}
		taskRunsTotal.WithLabelValues(string(task.Kind), outcome).Inc()
		taskRunDuration.WithLabelValues(string(task.Kind)).Observe(time.Since(start).Seconds())

		// retries are re-enqueued by handlers, so every outcome releases the reservation
		if err := w.q.Ack(ctx, task); err != nil {
			w.logger.Printf("WARNING worker: ack failed task id=%s kind=%s: %v", task.ID, task.Kind, err)
		}
	}()

	if err := task.Validate(); err != nil {
		outcome = "invalid"
		w.logger.Printf("WARNING worker: dropping invalid task id=%s: %v", task.ID, err)
		return
	}

	w.mu.RLock()
	h, ok := w.handlers[task.Kind]
	w.mu.RUnlock()
	if !ok {
		outcome = "unhandled"
		w.logger.Printf("WARNING worker: no handler for kind=%s, dropping task id=%s", task.Kind, task.ID)
		return
	}

	if err := h(ctx, task); err != nil {
		outcome = "error"
		w.logger.Printf("worker: task id=%s kind=%s attempt=%d failed: %v", task.ID, task.Kind, task.Attempt, err)
	}
}
