package research

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Candidate is one enriched grant lead emitted to the Compliance Agent
// (§4.5 step 6: "Emit candidates to C6 via an in-memory queue").
type Candidate struct {
	RawCandidate
	Layer1    Layer1
	Stale     bool
	ChunkID   string
	FocusArea string
}

// RunResult is the Research Agent's output for one invocation: the
// enriched candidates plus the per-chunk failure ledger the caller folds
// into the persisted SearchRun (§4.5 "Failure semantics").
type RunResult struct {
	Candidates []Candidate
	Failures   []store.ErrorDetail
	ChunksOK   int
	ChunksFail int
}

// Agent is the C5 Research Agent: builds a search plan, executes it at
// bounded concurrency through an LLM breaker, and scores the results.
type Agent struct {
	llm         adapters.LLM
	cb          *breaker.Breaker
	cfg         *config.Config
	maxChunks   int
	concurrency int64
	chunkTokens int
	refine      bool
}

// New constructs a Research Agent. cb wraps llm in a circuit breaker per
// §4.2 ("every external call ... through a Breaker").
func New(llm adapters.LLM, cb *breaker.Breaker, cfg *config.Config) *Agent {
	return &Agent{
		llm:         llm,
		cb:          cb,
		cfg:         cfg,
		maxChunks:   cfg.Defaults.MaxChunksPerRun,
		concurrency: int64(cfg.Defaults.ChunkConcurrency),
		chunkTokens: cfg.Defaults.ChunkMaxTokens,
		refine:      false,
	}
}

// WithRefine toggles the §4.5 step 4 refinement pass.
func (a *Agent) WithRefine(on bool) *Agent {
	a.refine = on
	return a
}

// Run executes the full chunked search for one business profile.
func (a *Agent) Run(ctx context.Context, profile store.BusinessProfile) (RunResult, error) {
	plan := BuildPlan(profile.FocusAreas, a.maxChunks)

	var (
		mu     sync.Mutex
		result RunResult
		sem    = semaphore.NewWeighted(a.concurrency)
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range plan {
		chunk := chunk
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil // context cancelled; caller sees partial results
			}
			defer sem.Release(1)

			cands, err := a.runChunk(gctx, chunk, profile)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.ChunksFail++
				result.Failures = append(result.Failures, store.ErrorDetail{
					ChunkID:  chunk.ID,
					Reason:   err.Error(),
					Degraded: true,
				})
				return nil // a single chunk failure never aborts the group (§4.5 PARTIAL)
			}
			result.ChunksOK++
			result.Candidates = append(result.Candidates, cands...)
			return nil
		})
	}
	// errgroup.Wait only returns non-nil here for ctx cancellation paths,
	// since every chunk goroutine swallows its own error into Failures.
	_ = g.Wait()

	sortCandidates(result.Candidates)
	return result, nil
}

func (a *Agent) runChunk(ctx context.Context, chunk Chunk, profile store.BusinessProfile) ([]Candidate, error) {
	raw, err := a.queryLLM(ctx, chunk, a.chunkTokens, 0.2)
	if err != nil {
		return nil, err
	}

	if a.refine {
		if refined, rerr := a.queryRefine(ctx, raw); rerr == nil {
			raw = refined
		}
		// a refinement failure keeps the unrefined candidates rather than
		// failing the whole chunk (§4.5 step 4 is "optional").
	}

	parsed, _, err := ParseCandidates(raw)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for _, rc := range parsed {
		if rc.Title == "" || (rc.SourceURL == "" && rc.Deadline == "") {
			continue // §4.5 step 3: reject candidates lacking title and (url or deadline)
		}
		c := Candidate{
			RawCandidate: rc,
			ChunkID:      chunk.ID,
			FocusArea:    chunk.FocusArea,
		}
		if sector, ok := a.cfg.GetSector(chunk.FocusArea); ok {
			c.Layer1.Sector = SectorRelevance(rc.Title, rc.Description, profile.Sectors, sector)
		}
		c.Layer1.Geo = GeographicRelevance(rc.Title+" "+rc.Description, a.regionsForTier(chunk.GeographicTier))
		c.Layer1.Operational = OperationalAlignment(rc.Funding, rc.Description, toConfigConstraints(profile.ResourceConstraints))
		out = append(out, c)
	}
	return out, nil
}

func toConfigConstraints(rc store.ResourceConstraints) config.ResourceConstraints {
	return config.ResourceConstraints{
		MaxBudget:          rc.MaxBudget,
		MaxProjectDuration: rc.MaxProjectDuration,
		ReportingTolerance: rc.ReportingTolerance,
	}
}

func (a *Agent) regionsForTier(tier config.GeoTier) []config.RegionConfig {
	var out []config.RegionConfig
	for _, r := range a.cfg.Geo.Regions {
		if r.Tier == tier {
			out = append(out, r)
		}
	}
	return out
}

func sortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		ci, cj := compositeEstimate(cands[i]), compositeEstimate(cands[j])
		if ci != cj {
			return ci > cj
		}
		di, dj := cands[i].Deadline, cands[j].Deadline
		if di != dj {
			if di == "" {
				return false
			}
			if dj == "" {
				return true
			}
			return di < dj
		}
		return strings.ToLower(cands[i].Title) < strings.ToLower(cands[j].Title)
	})
}

// compositeEstimate is a Layer-1-only proxy for ordering within the
// Research Agent's own output, ahead of C6's full composite.
func compositeEstimate(c Candidate) float64 {
	return 0.20*c.Layer1.Sector + 0.10*c.Layer1.Geo + 0.20*c.Layer1.Operational
}

func (a *Agent) queryLLM(ctx context.Context, chunk Chunk, maxTokens int, temperature float64) (string, error) {
	res, err := a.cb.Call(ctx, func(ctx context.Context) (any, error) {
		return a.llm.Call(ctx, adapters.ChatRequest{
			SystemPrompt: SystemPrompt(chunk),
			UserPrompt:   "List current grant opportunities.",
			MaxTokens:    maxTokens,
			Temperature:  temperature,
		})
	})
	if err != nil {
		return "", err
	}
	resp, _ := res.Value.(adapters.ChatResponse)
	return resp.Text, nil
}

func (a *Agent) queryRefine(ctx context.Context, raw string) (string, error) {
	res, err := a.cb.Call(ctx, func(ctx context.Context) (any, error) {
		return a.llm.Call(ctx, adapters.ChatRequest{
			SystemPrompt: "You normalize grant candidate JSON.",
			UserPrompt:   RefinePrompt(raw),
			MaxTokens:    a.cfg.Defaults.RefineMaxTokens,
			Temperature:  0.5,
		})
	})
	if err != nil {
		return "", err
	}
	resp, _ := res.Value.(adapters.ChatResponse)
	return resp.Text, nil
}
