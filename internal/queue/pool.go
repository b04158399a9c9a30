package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/readaloud/internal/cache"
	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Worker limits. The pool exists to cap concurrent provider usage, not to
// maximize throughput.
const (
	DefaultWorkers = 2
	MaxWorkers     = 4
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool is closed")

// Config configures a WorkerPool.
type Config struct {
	Workers  int
	Provider ttypes.Provider
	Cache    *cache.SynthesisCache
	Token    *ttypes.CancellationToken

	Speaker string
	Speed   float64

	// Pin selects texts stored in the pinned cache store. Optional.
	Pin cache.PinPolicy
}

// WorkerPool executes synthesis jobs on a fixed number of goroutines.
type WorkerPool struct {
	config Config
	jobs   *JobQueue

	// in-flight deduplication keyed by cache key
	inflight singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	workerWg  sync.WaitGroup
	closeOnce sync.Once

	metrics poolMetrics
}

type poolMetrics struct {
	submitted     atomic.Int64
	completed     atomic.Int64
	failed        atomic.Int64
	cancelled     atomic.Int64
	cacheHits     atomic.Int64
	deduplicated  atomic.Int64
	synthesisTime atomic.Int64 // nanoseconds
}

// PoolStats is a snapshot of pool metrics.
type PoolStats struct {
	Submitted     int64
	Completed     int64
	Failed        int64
	Cancelled     int64
	CacheHits     int64
	Deduplicated  int64
	SynthesisTime time.Duration
}

// NewWorkerPool validates config and starts the workers.
func NewWorkerPool(config Config) (*WorkerPool, error) {
	if config.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if config.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if config.Token == nil {
		return nil, fmt.Errorf("cancellation token is required")
	}
	if config.Workers < 1 || config.Workers > MaxWorkers {
		return nil, fmt.Errorf("workers must be between 1 and %d, got %d", MaxWorkers, config.Workers)
	}

	ctx, cancel := config.Token.Context(context.Background())

	p := &WorkerPool{
		config: config,
		jobs:   NewJobQueue(),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < config.Workers; i++ {
		p.workerWg.Add(1)
		go p.run(i)
	}

	log.Debug("Pool: started", "workers", config.Workers, "provider", config.Provider.Name())
	return p, nil
}

// Submit schedules synthesis of a segment and returns its future.
func (p *WorkerPool) Submit(seg ttypes.Segment) (*Future, error) {
	f := newFuture(seg.Index)
	if err := p.jobs.Enqueue(Job{Segment: seg, Future: f}); err != nil {
		if errors.Is(err, ErrQueueClosed) {
			return nil, ErrPoolClosed
		}
		return nil, err
	}
	p.metrics.submitted.Add(1)
	return f, nil
}

// SubmitAll submits segments in order.
func (p *WorkerPool) SubmitAll(segments []ttypes.Segment) ([]*Future, error) {
	futures := make([]*Future, 0, len(segments))
	for _, seg := range segments {
		f, err := p.Submit(seg)
		if err != nil {
			return futures, err
		}
		futures = append(futures, f)
	}
	return futures, nil
}

// Close stops accepting jobs and blocks until every worker has exited.
// Jobs still queued are drained; with the token set they resolve as
// cancelled without calling the provider.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		p.jobs.Close()
		p.workerWg.Wait()
		p.cancel()
		log.Debug("Pool: closed", "completed", p.metrics.completed.Load(), "cancelled", p.metrics.cancelled.Load())
	})
}

// Pending returns the number of jobs not yet picked up by a worker.
func (p *WorkerPool) Pending() int {
	return p.jobs.Len()
}

// Stats returns a snapshot of pool metrics.
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Submitted:     p.metrics.submitted.Load(),
		Completed:     p.metrics.completed.Load(),
		Failed:        p.metrics.failed.Load(),
		Cancelled:     p.metrics.cancelled.Load(),
		CacheHits:     p.metrics.cacheHits.Load(),
		Deduplicated:  p.metrics.deduplicated.Load(),
		SynthesisTime: time.Duration(p.metrics.synthesisTime.Load()),
	}
}

// run is the main loop for a worker.
func (p *WorkerPool) run(id int) {
	defer p.workerWg.Done()

	for {
		job, err := p.jobs.Dequeue()
		if err != nil {
			return
		}
		p.process(id, job)
	}
}

func (p *WorkerPool) process(id int, job Job) {
	seg := job.Segment

	if p.config.Token.IsCancelled() {
		p.metrics.cancelled.Add(1)
		job.Future.resolve(nil, nil)
		return
	}

	artifact, err := p.synthesize(seg.Text)

	// A late cancellation still turns the result into "no audio".
	if p.config.Token.IsCancelled() {
		p.metrics.cancelled.Add(1)
		job.Future.resolve(nil, nil)
		return
	}

	if err != nil {
		p.metrics.failed.Add(1)
		log.Warn("Pool: synthesis failed", "worker", id, "index", seg.Index, "code", ttypes.CodeOf(err), "error", err)
		job.Future.resolve(nil, err)
		return
	}

	p.metrics.completed.Add(1)
	log.Debug("Pool: job finished", "worker", id, "index", seg.Index, "duration", artifact.Duration())
	job.Future.resolve(artifact, nil)
}

// synthesize consults the cache and falls back to the provider on a miss.
// Concurrent misses for the same key share one provider call.
func (p *WorkerPool) synthesize(text string) (*ttypes.Artifact, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ttypes.NewTTSError(ttypes.ErrorCodeInvalidInput, "empty segment", nil)
	}

	key := cache.NewKey(text, p.config.Speed)
	if a, ok := p.config.Cache.Get(key); ok {
		p.metrics.cacheHits.Add(1)
		return a, nil
	}

	v, err, shared := p.inflight.Do(key.String(), func() (interface{}, error) {
		if a, ok := p.config.Cache.Peek(key); ok {
			return a, nil
		}

		start := time.Now()
		a, err := p.config.Provider.Synthesize(p.ctx, text, p.config.Speaker, p.config.Speed)
		p.metrics.synthesisTime.Add(int64(time.Since(start)))
		if err != nil {
			return nil, classify(err)
		}
		if a == nil {
			return nil, ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "provider returned no audio", nil)
		}

		// A cancelled session leaves the cache untouched.
		if p.config.Token.IsCancelled() {
			return a, nil
		}
		pinned := p.config.Pin != nil && p.config.Pin(text)
		p.config.Cache.Put(key, a, pinned)
		return a, nil
	})
	if shared {
		p.metrics.deduplicated.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return v.(*ttypes.Artifact), nil
}

// classify makes sure provider errors carry a synthesis error code.
func classify(err error) error {
	if ttypes.CodeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ttypes.NewTTSError(ttypes.ErrorCodeTimeout, "provider deadline exceeded", err)
	}
	return ttypes.NewTTSError(ttypes.ErrorCodeUnavailable, "provider failed", err)
}
