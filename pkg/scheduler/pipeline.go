package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/compliance"
	"github.com/codeready-toolchain/grantfinder/pkg/dedup"
	"github.com/codeready-toolchain/grantfinder/pkg/notify"
	"github.com/codeready-toolchain/grantfinder/pkg/research"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Pipeline wires C5 (research) -> C6 (compliance) -> C7 (dedup) -> C12
// (notify) for a single user's search run, the end-to-end flow §4.5-§4.7
// and §4.12 describe.
type Pipeline struct {
	Research   *research.Agent
	Compliance *compliance.Agent
	Dedup      *dedup.Service
	Users      *store.UserStore
	Profiles   *store.ProfileStore
	Runs       *store.SearchRunStore
	Notify     *notify.Dispatcher
}

// RunForUser executes one full search-run for a user: increments quota,
// runs research, evaluates compliance, dedups+persists, records the
// SearchRun, and dispatches the result email (§4.9, §4.12).
func (p *Pipeline) RunForUser(ctx context.Context, userID uuid.UUID, trigger store.TriggerType) (*store.SearchRun, error) {
	if err := p.Users.IncrementSearchUsage(ctx, userID); err != nil {
		return nil, err
	}

	profile, err := p.Profiles.Get(ctx, userID)
	if err != nil {
		_ = p.Users.RollbackSearchUsage(ctx, userID)
		return nil, err
	}

	run, err := p.Runs.Create(ctx, &userID, trigger, map[string]any{"focus_areas": profile.FocusAreas})
	if err != nil {
		_ = p.Users.RollbackSearchUsage(ctx, userID)
		return nil, err
	}

	researchResult, err := p.Research.Run(ctx, *profile)
	if err != nil {
		run.Status = store.RunFailed
		run.ErrorKind = "INTERNAL"
		run.ErrorMessage = err.Error()
		_ = p.Runs.Complete(ctx, run)
		return run, err
	}
	run.ErrorDetails = append(run.ErrorDetails, researchResult.Failures...)
	run.SourcesSearched = researchResult.ChunksOK + researchResult.ChunksFail
	run.APICallsMade = researchResult.ChunksOK + researchResult.ChunksFail

	now := time.Now()
	persisted := 0
	for _, cand := range researchResult.Candidates {
		outcome, err := p.Compliance.Evaluate(ctx, cand, userID.String(), *profile)
		if err != nil {
			run.ErrorDetails = append(run.ErrorDetails, store.ErrorDetail{Reason: err.Error(), Degraded: true})
			continue
		}
		if outcome.Dropped {
			run.ErrorDetails = append(run.ErrorDetails, store.ErrorDetail{Reason: outcome.DropReason})
			continue
		}

		if _, err := p.Dedup.UpsertCandidate(ctx, userID, outcome.Grant, now); err != nil {
			run.ErrorDetails = append(run.ErrorDetails, store.ErrorDetail{Reason: err.Error(), Degraded: true})
			continue
		}
		persisted++
	}
	run.GrantsFound = persisted

	switch {
	case researchResult.ChunksOK == 0 && researchResult.ChunksFail > 0:
		run.Status = store.RunFailed
	case researchResult.ChunksFail > 0:
		run.Status = store.RunPartial
	default:
		run.Status = store.RunSuccess
	}

	if err := p.Runs.Complete(ctx, run); err != nil {
		return run, err
	}

	if p.Notify != nil {
		p.Notify.DispatchRunResult(ctx, userID, run)
	}
	return run, nil
}
