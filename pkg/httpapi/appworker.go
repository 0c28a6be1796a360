package httpapi

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/rag"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// applicationJob is one §4.8 application-generation task, handed off
// from the POST /api/applications/generate handler to appWorkerPool.
type applicationJob struct {
	AppID   uuid.UUID
	UserID  uuid.UUID
	GrantID uuid.UUID
}

// appWorkerPool runs application-generation jobs in the background,
// the same fixed-worker-pool-over-a-channel shape pkg/scheduler uses
// for search runs (§4.9), sized for the independent §5 "10 min
// generation jobs" timeout class rather than shared with the search
// worker pool.
type appWorkerPool struct {
	jobs      chan applicationJob
	workers   int
	apps      *store.ApplicationStore
	profiles  *store.ProfileStore
	grants    *store.GrantStore
	retriever *rag.Retriever
	generator *rag.Generator
	defaults  *config.Defaults
	log       *slog.Logger
}

func newAppWorkerPool(workers int, apps *store.ApplicationStore, profiles *store.ProfileStore, grants *store.GrantStore, retriever *rag.Retriever, generator *rag.Generator, defaults *config.Defaults) *appWorkerPool {
	return &appWorkerPool{
		jobs:      make(chan applicationJob, 64),
		workers:   workers,
		apps:      apps,
		profiles:  profiles,
		grants:    grants,
		retriever: retriever,
		generator: generator,
		defaults:  defaults,
		log:       slog.With("component", "appworker"),
	}
}

// Start spawns the worker goroutines; they exit when ctx is cancelled.
func (p *appWorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.run(ctx)
	}
}

// Enqueue hands off a generation job; the handler has already created
// the DRAFT row via ApplicationStore.CreateDraft so the caller can poll
// immediately.
func (p *appWorkerPool) Enqueue(job applicationJob) {
	p.jobs <- job
}

func (p *appWorkerPool) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.jobs:
			p.process(ctx, job)
		}
	}
}

func (p *appWorkerPool) process(ctx context.Context, job applicationJob) {
	jobCtx, cancel := context.WithTimeout(ctx, generationTimeout)
	defer cancel()

	log := p.log.With("application_id", job.AppID, "user_id", job.UserID, "grant_id", job.GrantID)

	profile, err := p.profiles.Get(jobCtx, job.UserID)
	if err != nil {
		log.Error("loading profile for generation failed", "error", err)
		_ = p.apps.UpdateStatus(ctx, job.AppID, store.AppDraft)
		return
	}

	grant, err := p.grants.Get(jobCtx, job.UserID, job.GrantID)
	if err != nil {
		log.Error("loading grant for generation failed", "error", err)
		_ = p.apps.UpdateStatus(ctx, job.AppID, store.AppDraft)
		return
	}

	retrieved, err := p.retriever.RetrieveForGrant(jobCtx, profile.Namespace(), grant.Title, grant.Description, grant.EligibilitySummary, p.defaults.RAGTopK)
	if err != nil {
		log.Warn("retrieval degraded, generating without retrieved context", "error", err)
	}

	start := time.Now()
	app, err := p.generator.Generate(jobCtx, *profile, grant, retrieved)
	if err != nil {
		log.Error("application generation failed", "error", err)
		_ = p.apps.UpdateStatus(ctx, job.AppID, store.AppDraft)
		return
	}

	app.ID = job.AppID
	app.UserID = job.UserID
	app.GrantID = job.GrantID
	if app.GenerationMS == 0 {
		app.GenerationMS = time.Since(start).Milliseconds()
	}

	if err := p.apps.Complete(ctx, app); err != nil {
		log.Error("persisting generated application failed", "error", err)
	}
}
