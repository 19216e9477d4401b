package worker

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

type StartOptions[J any] struct {
	Ctx    context.Context
	Sem    chan struct{}
	Jobs   <-chan J
	Handle func(context.Context, J)
	WG     *sync.WaitGroup
}

// Start drains Jobs on its own goroutine, one job at a time, holding a Sem
// slot for the duration of each Handle call.
func Start[J any](opts StartOptions[J]) {
	if opts.WG != nil {
		opts.WG.Add(1)
	}
	go func() {
		if opts.WG != nil {
			defer opts.WG.Done()
		}
		for {
			select {
			case <-opts.Ctx.Done():
				return
			case job, ok := <-opts.Jobs:
				if !ok {
					return
				}
				select {
				case opts.Sem <- struct{}{}:
				case <-opts.Ctx.Done():
					return
				}
				func() {
					defer func() { <-opts.Sem }()
					opts.Handle(opts.Ctx, job)
				}()
			}
		}
	}()
}

func Enqueue[J any](ctx, workersCtx context.Context, jobs chan<- J, job J) error {
	if ctx == nil {
		ctx = workersCtx
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-workersCtx.Done():
		return workersCtx.Err()
	case jobs <- job:
		return nil
	}
}

type PoolOptions[J any] struct {
	// MaxConcurrency bounds jobs running across all keys. Values below 1 mean 1.
	MaxConcurrency int
	// QueueSize is the per-key backlog. Values below 1 mean 16.
	QueueSize int
	Handle    func(context.Context, J)
}

// Pool runs jobs sequentially per key and concurrently across keys.
type Pool[K comparable, J any] struct {
	ctx       context.Context
	sem       chan struct{}
	queueSize int
	handle    func(context.Context, J)

	mu     sync.Mutex
	queues map[K]chan J
	wg     sync.WaitGroup
}

func NewPool[K comparable, J any](ctx context.Context, opts PoolOptions[J]) *Pool[K, J] {
	maxConc := opts.MaxConcurrency
	if maxConc < 1 {
		maxConc = 1
	}
	queueSize := opts.QueueSize
	if queueSize < 1 {
		queueSize = 16
	}
	return &Pool[K, J]{
		ctx:       ctx,
		sem:       make(chan struct{}, maxConc),
		queueSize: queueSize,
		handle:    opts.Handle,
		queues:    make(map[K]chan J),
	}
}

// Enqueue hands job to the worker for key, starting one if needed. It blocks
// while that key's backlog is full.
func (p *Pool[K, J]) Enqueue(ctx context.Context, key K, job J) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	p.mu.Lock()
	q, ok := p.queues[key]
	if !ok {
		q = make(chan J, p.queueSize)
		p.queues[key] = q
		Start(StartOptions[J]{Ctx: p.ctx, Sem: p.sem, Jobs: q, Handle: p.handle, WG: &p.wg})
	}
	p.mu.Unlock()
	return Enqueue(ctx, p.ctx, q, job)
}

// Wait blocks until every worker has returned. Workers return once the pool
// context is done.
func (p *Pool[K, J]) Wait() {
	p.wg.Wait()
}
