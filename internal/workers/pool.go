package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPoolClosed is returned when submitting to a pool that has been shut down
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work run by the pool
type Job func(ctx context.Context) (interface{}, error)

// Result is the outcome of a job
type Result struct {
	Value   interface{}
	Err     error
	Latency time.Duration
}

// Request represents a queued job
type Request struct {
	ID       string
	Job      Job
	Callback func(*Result) // Called when completed
	Context  context.Context
}

// Pool manages a pool of workers for concurrent jobs
type Pool struct {
	workers   int
	queue     chan *Request
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	semaphore chan struct{} // Limits concurrent jobs
	metrics   *Metrics

	closeMu sync.RWMutex
	closed  bool
}

// Metrics tracks pool performance
type Metrics struct {
	Total          int64         `json:"total"`
	CompletedOK    int64         `json:"completed_ok"`
	CompletedError int64         `json:"completed_error"`
	AverageLatency time.Duration `json:"average_latency"`
	TotalLatency   time.Duration `json:"total_latency"`
	Inflight       int           `json:"inflight"`
	QueueLength    int           `json:"queue_length"`
	mu             sync.RWMutex
}

// Config holds pool configuration
type Config struct {
	Workers       int // Number of worker goroutines
	QueueSize     int // Size of request queue
	MaxConcurrent int // Maximum concurrent jobs
}

// DefaultConfig returns default pool configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:       runtime.NumCPU() * 2,
		QueueSize:     1000,
		MaxConcurrent: runtime.NumCPU(),
	}
}

// NewPool creates a new worker pool and starts its workers
func NewPool(config *Config) *Pool {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = config.Workers
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		workers:   config.Workers,
		queue:     make(chan *Request, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		metrics:   &Metrics{},
	}

	for i := 0; i < pool.workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}

	return pool
}

// worker processes requests from the queue
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case req, ok := <-p.queue:
			if !ok {
				return
			}
			p.process(req)
		}
	}
}

// process runs a single job
func (p *Pool) process(req *Request) {
	select {
	case p.semaphore <- struct{}{}:
		defer func() { <-p.semaphore }()
	case <-req.Context.Done():
		// cancelled while waiting for a slot
		p.updateMetrics(0, false)
		if req.Callback != nil {
			req.Callback(&Result{Err: req.Context.Err()})
		}
		return
	}

	p.metrics.mu.Lock()
	p.metrics.Inflight++
	p.metrics.mu.Unlock()

	defer func() {
		p.metrics.mu.Lock()
		p.metrics.Inflight--
		p.metrics.mu.Unlock()
	}()

	startTime := time.Now()
	value, err := runJob(req.Context, req.Job)
	latency := time.Since(startTime)

	p.updateMetrics(latency, err == nil)

	if req.Callback != nil {
		req.Callback(&Result{Value: value, Err: err, Latency: latency})
	}
}

// runJob converts a panicking job into an error
func runJob(ctx context.Context, job Job) (value interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job(ctx)
}

// updateMetrics updates pool metrics
func (p *Pool) updateMetrics(latency time.Duration, success bool) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.Total++
	if success {
		p.metrics.CompletedOK++
	} else {
		p.metrics.CompletedError++
	}

	p.metrics.TotalLatency += latency
	p.metrics.AverageLatency = p.metrics.TotalLatency / time.Duration(p.metrics.Total)
}

// Submit queues a request without blocking
func (p *Pool) Submit(req *Request) error {
	if req.Context == nil {
		req.Context = p.ctx
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- req:
		return nil
	case <-req.Context.Done():
		return req.Context.Err()
	default:
		return fmt.Errorf("queue full")
	}
}

// SubmitSync submits a job and waits for its result
func (p *Pool) SubmitSync(ctx context.Context, job Job) (*Result, error) {
	resultChan := make(chan *Result, 1)

	req := &Request{
		Job:     job,
		Context: ctx,
		Callback: func(result *Result) {
			resultChan <- result
		},
	}

	if err := p.Submit(req); err != nil {
		return nil, err
	}

	select {
	case result := <-resultChan:
		return result, result.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Metrics returns a snapshot of pool metrics
func (p *Pool) Metrics() Metrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	return Metrics{
		Total:          p.metrics.Total,
		CompletedOK:    p.metrics.CompletedOK,
		CompletedError: p.metrics.CompletedError,
		AverageLatency: p.metrics.AverageLatency,
		TotalLatency:   p.metrics.TotalLatency,
		Inflight:       p.metrics.Inflight,
		QueueLength:    len(p.queue),
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
