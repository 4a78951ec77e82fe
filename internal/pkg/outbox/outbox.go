// Package outbox 提供后台投递任务（如欢迎邮件）的内存队列与固定 worker 池。
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned when the outbox no longer accepts tasks.
var ErrClosed = errors.New("outbox closed")

// Task 表示一次后台投递。Kind 仅用于日志。
type Task struct {
	Kind string
	Run  func(ctx context.Context) error
}

// Outbox 以固定数量的 worker 执行 Task。
type Outbox struct {
	logger  *slog.Logger
	workers int
	timeout time.Duration
	tasks   chan Task

	mu     sync.RWMutex // 保护 closed 与 close(tasks) 的顺序
	closed bool
	wg     sync.WaitGroup

	stats counters
}

type counters struct {
	enqueued  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// Stats 是计数器快照。
type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Dropped   int64
	Panics    int64
}

// New 创建 Outbox。workers、capacity 至少为 1；timeout 限制单个任务的执行时间，<=0 表示不限制。
func New(logger *slog.Logger, workers, capacity int, timeout time.Duration) *Outbox {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Outbox{
		logger:  logger,
		workers: workers,
		timeout: timeout,
		tasks:   make(chan Task, capacity),
	}
}

// Start 启动 worker，直到 ctx 取消或调用 Shutdown。
func (o *Outbox) Start(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}
}

func (o *Outbox) worker(ctx context.Context, id int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-o.tasks:
			if !ok {
				return
			}
			o.run(ctx, task, id)
		}
	}
}

func (o *Outbox) run(ctx context.Context, task Task, workerID int) {
	defer func() {
		if r := recover(); r != nil {
			o.stats.panics.Add(1)
			o.logger.Error("outbox task panic recovered",
				slog.String("kind", task.Kind),
				slog.Int("worker_id", workerID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	if err := task.Run(ctx); err != nil {
		o.stats.failed.Add(1)
		o.logger.Warn("outbox task failed",
			slog.String("kind", task.Kind),
			slog.Int("worker_id", workerID),
			slog.String("error", err.Error()))
		return
	}
	o.stats.succeeded.Add(1)
}

// Enqueue 非阻塞入队；已关闭或队列已满时返回 false。
func (o *Outbox) Enqueue(task Task) bool {
	if task.Run == nil {
		return false
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return false
	}
	select {
	case o.tasks <- task:
		o.stats.enqueued.Add(1)
		return true
	default:
		o.stats.dropped.Add(1)
		o.logger.Warn("outbox full, drop task",
			slog.String("kind", task.Kind),
			slog.Int("capacity", cap(o.tasks)))
		return false
	}
}

// Shutdown 停止接收新任务并等待已入队任务执行完毕，最多等待 timeout。
func (o *Outbox) Shutdown(timeout time.Duration) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.closed = true
	close(o.tasks)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("outbox shutdown timeout after %s", timeout)
	}
}

// Stats 返回计数器快照。
func (o *Outbox) Stats() Stats {
	return Stats{
		Enqueued:  o.stats.enqueued.Load(),
		Succeeded: o.stats.succeeded.Load(),
		Failed:    o.stats.failed.Load(),
		Dropped:   o.stats.dropped.Load(),
		Panics:    o.stats.panics.Load(),
	}
}
