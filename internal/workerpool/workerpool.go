// Package workerpool runs chart generation for many audio buffers
// concurrently behind a bounded worker count, with pause/resume and a
// throttle knob for when a foreground caller needs CPU back: a job
// channel plus WaitGroup, atomic counters, and pause/resume channels
// feeding chartgen.Generate.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	chartgen "github.com/basswave/chartgen"
	"github.com/basswave/chartgen/internal/model"
)

// Status is a snapshot of pool progress at a point in time.
type Status struct {
	State       string
	TotalJobs   int
	Completed   int
	InProgress  int
	Failed      int
	Message     string
	StartedUnix int64
}

// Job is one unit of work: an audio buffer plus the options to generate it with.
type Job struct {
	ID      string
	Audio   chartgen.AudioBuffer
	Options chartgen.GenerateOptions
}

// Result is the outcome of one Job.
type Result struct {
	ID    string
	Chart model.Chart
	Err   error
}

// Config configures a Pool.
type Config struct {
	MaxWorkers   int
	ThrottleMs   int64
	IsBusyFunc   func() bool
	OnResult     func(Result)
	GenerateFunc func(context.Context, chartgen.AudioBuffer, chartgen.GenerateOptions) (model.Chart, error)
}

// Pool runs Jobs across a bounded goroutine set.
type Pool struct {
	mu sync.Mutex

	maxWorkers int
	throttleMs int64
	isBusyFunc func() bool
	onResult   func(Result)
	generate   func(context.Context, chartgen.AudioBuffer, chartgen.GenerateOptions) (model.Chart, error)

	status     Status
	ctx        context.Context
	cancel     context.CancelFunc
	running    bool
	paused     bool
	pauseChan  chan struct{}
	resumeChan chan struct{}

	completed  int64
	failed     int64
	inProgress int64
}

// New builds a Pool from cfg, defaulting MaxWorkers to NumCPU-1.
func New(cfg Config) (*Pool, error) {
	if cfg.GenerateFunc == nil {
		return nil, fmt.Errorf("workerpool: GenerateFunc is required")
	}
	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() - 1
		if maxWorkers < 1 {
			maxWorkers = 1
		}
	}
	return &Pool{
		maxWorkers: maxWorkers,
		throttleMs: cfg.ThrottleMs,
		isBusyFunc: cfg.IsBusyFunc,
		onResult:   cfg.OnResult,
		generate:   cfg.GenerateFunc,
		status:     Status{State: "idle"},
		pauseChan:  make(chan struct{}),
		resumeChan: make(chan struct{}),
	}, nil
}

// Start launches the pool against jobs; it returns immediately and runs
// until jobs are drained or ctx is canceled.
func (p *Pool) Start(ctx context.Context, jobs []Job) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("workerpool: already running")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true
	p.paused = false
	atomic.StoreInt64(&p.completed, 0)
	atomic.StoreInt64(&p.failed, 0)
	atomic.StoreInt64(&p.inProgress, 0)
	p.status = Status{State: "running", TotalJobs: len(jobs), StartedUnix: nowUnix()}
	p.mu.Unlock()

	go p.run(jobs)
	return nil
}

// Stop cancels the pool immediately.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.running = false
	p.status.State = "idle"
	p.status.Message = "stopped"
}

// Pause idles all workers between jobs until Resume is called.
func (p *Pool) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || p.paused {
		return
	}
	p.paused = true
	p.status.State = "paused"
	close(p.pauseChan)
	p.pauseChan = make(chan struct{})
}

// Resume undoes Pause.
func (p *Pool) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running || !p.paused {
		return
	}
	p.paused = false
	p.status.State = "running"
	close(p.resumeChan)
	p.resumeChan = make(chan struct{})
}

// GetStatus returns a snapshot of current progress.
func (p *Pool) GetStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.Completed = int(atomic.LoadInt64(&p.completed))
	s.Failed = int(atomic.LoadInt64(&p.failed))
	s.InProgress = int(atomic.LoadInt64(&p.inProgress))
	return s
}

func (p *Pool) run(jobs []Job) {
	defer func() {
		p.mu.Lock()
		p.running = false
		if p.status.State == "running" {
			p.status.State = "complete"
			p.status.Message = fmt.Sprintf("%d completed, %d failed",
				atomic.LoadInt64(&p.completed), atomic.LoadInt64(&p.failed))
		}
		p.mu.Unlock()
	}()

	queue := make(chan Job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	active := p.maxWorkers
	if p.isBusyFunc != nil && p.isBusyFunc() {
		active = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < active; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(queue)
		}()
	}
	wg.Wait()
}

func (p *Pool) throttle() time.Duration {
	if p.throttleMs <= 0 {
		return 0
	}
	return time.Duration(p.throttleMs) * time.Millisecond
}

func (p *Pool) worker(queue <-chan Job) {
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		p.mu.Lock()
		paused := p.paused
		resumeChan := p.resumeChan
		p.mu.Unlock()
		if paused {
			select {
			case <-p.ctx.Done():
				return
			case <-resumeChan:
			}
		}

		job, ok := <-queue
		if !ok {
			return
		}

		atomic.AddInt64(&p.inProgress, 1)
		chart, err := p.generate(p.ctx, job.Audio, job.Options)
		atomic.AddInt64(&p.inProgress, -1)

		if err != nil {
			atomic.AddInt64(&p.failed, 1)
		} else {
			atomic.AddInt64(&p.completed, 1)
		}
		if p.onResult != nil {
			p.onResult(Result{ID: job.ID, Chart: chart, Err: err})
		}

		if d := p.throttle(); d > 0 {
			time.Sleep(d)
		}
	}
}

func nowUnix() int64 { return time.Now().Unix() }
