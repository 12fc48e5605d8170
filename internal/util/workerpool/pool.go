// Package workerpool provides a bounded goroutine pool for long-latency
// repository reads, keeping them off the state application path.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Task is one unit of work
type Task struct {
	ID  string
	Ctx context.Context
	Fn  func(context.Context) error
}

// Pool manages a bounded set of worker goroutines
type Pool struct {
	name       string
	maxWorkers int
	taskQueue  chan Task
	logger     *zap.Logger
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopChan   chan struct{}

	completed uint64
	failed    uint64
	rejected  uint64
}

// Config holds worker pool configuration
type Config struct {
	Name       string
	MaxWorkers int
	QueueSize  int
	Logger     *zap.Logger
}

// New creates and starts a worker pool
func New(cfg *Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	p := &Pool{
		name:       cfg.Name,
		maxWorkers: cfg.MaxWorkers,
		taskQueue:  make(chan Task, cfg.QueueSize),
		logger:     cfg.Logger,
		stopChan:   make(chan struct{}),
	}
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.taskQueue:
			p.run(id, task)
		case <-p.stopChan:
			return
		}
	}
}

func (p *Pool) run(workerID int, task Task) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := task.Fn(ctx); err != nil {
		atomic.AddUint64(&p.failed, 1)
		p.logger.Debug("Task failed",
			zap.String("pool", p.name),
			zap.String("task", task.ID),
			zap.Int("worker", workerID),
			zap.Error(err))
		return
	}
	atomic.AddUint64(&p.completed, 1)
}

// Submit queues a task, failing when the queue is full or the pool stopped
func (p *Pool) Submit(task Task) error {
	select {
	case <-p.stopChan:
		return fmt.Errorf("worker pool %s is stopped", p.name)
	default:
	}
	select {
	case p.taskQueue <- task:
		return nil
	default:
		atomic.AddUint64(&p.rejected, 1)
		return fmt.Errorf("worker pool %s queue is full", p.name)
	}
}

// Stop shuts the pool down and waits for in-flight tasks
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// Stats returns completed, failed and rejected task counts
func (p *Pool) Stats() (completed, failed, rejected uint64) {
	return atomic.LoadUint64(&p.completed), atomic.LoadUint64(&p.failed), atomic.LoadUint64(&p.rejected)
}
