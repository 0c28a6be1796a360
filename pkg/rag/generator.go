package rag

import (
	"context"
	"strings"
	"time"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
	"github.com/codeready-toolchain/grantfinder/pkg/vectorindex"
)

// section describes one of the six §4.8 generation steps, in the fixed
// order they must run.
type section struct {
	name      string
	maxTokens int
	prompt    func(ctx genContext) string
	assign    func(*store.ApplicationSections, string)
}

// genContext is the material every section prompt draws from.
type genContext struct {
	Grant      *store.Grant
	Profile    store.BusinessProfile
	RetrievedChunks []vectorindex.Match
}

func sections() []section {
	return []section{
		{"executive_summary", 300, execSummaryPrompt, func(s *store.ApplicationSections, t string) { s.ExecutiveSummary = &t }},
		{"needs_statement", 400, needsStatementPrompt, func(s *store.ApplicationSections, t string) { s.NeedsStatement = &t }},
		{"project_description", 600, projectDescriptionPrompt, func(s *store.ApplicationSections, t string) { s.ProjectDescription = &t }},
		{"budget_narrative", 400, budgetNarrativePrompt, func(s *store.ApplicationSections, t string) { s.BudgetNarrative = &t }},
		{"organizational_capacity", 400, orgCapacityPrompt, func(s *store.ApplicationSections, t string) { s.OrganizationalCapacity = &t }},
		{"impact_statement", 300, impactStatementPrompt, func(s *store.ApplicationSections, t string) { s.ImpactStatement = &t }},
	}
}

func retrievedContext(chunks []vectorindex.Match) string {
	var b strings.Builder
	for _, c := range chunks {
		if text, ok := c.Metadata["text"].(string); ok {
			b.WriteString(text)
			b.WriteString("\n---\n")
		}
	}
	return b.String()
}

func execSummaryPrompt(ctx genContext) string {
	return "Write a concise executive summary (200-300 words) for a grant application to \"" + ctx.Grant.Title +
		"\". Organizational background:\n" + retrievedContext(ctx.RetrievedChunks)
}

func needsStatementPrompt(ctx genContext) string {
	return "Write a needs statement (300-400 words) explaining why this organization needs the funding from \"" +
		ctx.Grant.Title + "\". Use this organizational context:\n" + retrievedContext(ctx.RetrievedChunks)
}

func projectDescriptionPrompt(ctx genContext) string {
	return "Write a project description (400-600 words) for a proposal responding to \"" + ctx.Grant.Title +
		"\" (" + ctx.Grant.EligibilitySummary + "). Organizational context:\n" + retrievedContext(ctx.RetrievedChunks)
}

func budgetNarrativePrompt(ctx genContext) string {
	return "Write a budget narrative (300-400 words) justifying use of funds for \"" + ctx.Grant.Title +
		"\" within the funding range " + ctx.Grant.FundingDisplay + "."
}

func orgCapacityPrompt(ctx genContext) string {
	return "Write an organizational capacity statement (300-400 words) demonstrating ability to execute this project. Context:\n" +
		retrievedContext(ctx.RetrievedChunks)
}

func impactStatementPrompt(ctx genContext) string {
	return "Write an impact statement (200-300 words) describing expected outcomes of the project funded by \"" + ctx.Grant.Title + "\"."
}

// Generator runs the six-section sequential generation (§4.8
// "Generation"). Each section failure is tolerated and the overall result
// is marked Partial. Generator itself sends no notification to the user.
type Generator struct {
	llm   adapters.LLM
	cb    *breaker.Breaker
	model string
}

// NewGenerator constructs a Generator.
func NewGenerator(llm adapters.LLM, cb *breaker.Breaker, model string) *Generator {
	return &Generator{llm: llm, cb: cb, model: model}
}

// Generate produces a GeneratedApplication for (user, grant) from the
// already-retrieved matches, writing each section in the fixed order.
func (g *Generator) Generate(ctx context.Context, profile store.BusinessProfile, grant *store.Grant, retrieved []vectorindex.Match) (*store.GeneratedApplication, error) {
	app := &store.GeneratedApplication{
		UserID:  profile.UserID,
		GrantID: grant.ID,
		Status:  store.AppGenerated,
	}

	start := time.Now()
	gctx := genContext{Grant: grant, Profile: profile, RetrievedChunks: retrieved}
	var full strings.Builder
	totalTokens := 0

	for _, sec := range sections() {
		text, tokens, err := g.runSection(ctx, sec, gctx)
		if err != nil {
			app.Partial = true
			continue // §4.8: "If any single section fails, the overall task is marked PARTIAL, other sections are still persisted"
		}
		sec.assign(&app.Sections, text)
		full.WriteString("## " + sec.name + "\n\n" + text + "\n\n")
		totalTokens += tokens
	}

	app.FullText = full.String()
	app.TokensUsed = totalTokens
	app.GenerationMS = time.Since(start).Milliseconds()
	app.ModelID = g.model
	if app.Partial && app.FullText == "" {
		app.Status = store.AppDraft
	}
	return app, nil
}

func (g *Generator) runSection(ctx context.Context, sec section, gctx genContext) (string, int, error) {
	res, err := g.cb.Call(ctx, func(ctx context.Context) (any, error) {
		return g.llm.Call(ctx, adapters.ChatRequest{
			SystemPrompt: "You are a professional grant-writing assistant.",
			UserPrompt:   sec.prompt(gctx),
			MaxTokens:    sec.maxTokens,
			Temperature:  0.4,
		})
	})
	if err != nil {
		return "", 0, err
	}
	resp, _ := res.Value.(adapters.ChatResponse)
	return resp.Text, resp.OutputTokens, nil
}
