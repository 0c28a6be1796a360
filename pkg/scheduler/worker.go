package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// Pool is the C9 fixed worker pool consuming a Queue, with per-user
// in-flight coalescing and per-job hard/soft timeouts (§4.9).
type Pool struct {
	queue    *Queue
	pipeline *Pipeline
	cfg      *config.SchedulerConfig
	log      *slog.Logger

	mu       sync.Mutex
	inFlight map[uuid.UUID]bool
}

// NewPool constructs a worker pool bound to queue and pipeline.
func NewPool(queue *Queue, pipeline *Pipeline, cfg *config.SchedulerConfig) *Pool {
	return &Pool{
		queue:    queue,
		pipeline: pipeline,
		cfg:      cfg,
		log:      slog.With("component", "scheduler-pool"),
		inFlight: make(map[uuid.UUID]bool),
	}
}

// Start launches WorkerCount goroutines that drain the queue until ctx
// is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.WorkerCount; i++ {
		go p.runWorker(ctx, i)
	}
}

func (p *Pool) runWorker(ctx context.Context, id int) {
	log := p.log.With("worker_id", id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue.Channel():
			if !ok {
				return
			}
			p.process(ctx, job, log)
		case <-time.After(p.cfg.PollInterval + jitter(p.cfg.PollIntervalJitter)):
			// idle tick: nothing to do, loop back and re-select
		}
	}
}

func jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func (p *Pool) process(ctx context.Context, job Job, log *slog.Logger) {
	if !p.claim(job.UserID) {
		log.Info("coalescing: user already has an in-flight run, skipping", "user_id", job.UserID)
		return
	}
	defer p.release(job.UserID)

	hardCtx, cancel := context.WithTimeout(ctx, p.cfg.JobHardTimeout)
	defer cancel()

	softCtx, softCancel := context.WithTimeout(hardCtx, p.cfg.JobSoftTimeout)
	defer softCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := p.pipeline.RunForUser(softCtx, job.UserID, job.Trigger); err != nil {
			log.Error("search run failed", "user_id", job.UserID, "error", err)
		}
	}()

	select {
	case <-done:
	case <-softCtx.Done():
		// soft timeout: pipeline.RunForUser persists whatever candidates
		// it has already processed via per-candidate transactions, so
		// cancellation here still commits partial results (§4.9).
		log.Warn("job exceeded soft timeout, cancelling gracefully", "user_id", job.UserID)
		<-done
	}
}

func (p *Pool) claim(userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inFlight[userID] {
		return false
	}
	p.inFlight[userID] = true
	return true
}

func (p *Pool) release(userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, userID)
}
