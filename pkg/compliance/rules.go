// Package compliance implements the Compliance Agent (spec.md §4.6):
// rule-driven validation producing Layer-2 scores and the final
// composite, grounded on the rego policy-evaluation shape exercised by
// kubernaut's aianalysis rego.Evaluator tests.
package compliance

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"

	"github.com/codeready-toolchain/grantfinder/pkg/apperrors"
	"github.com/codeready-toolchain/grantfinder/pkg/config"
)

// RuleEvaluator resolves each rule's optional applies_if rego expression
// against a candidate's flattened fields (§3 ComplianceRule: "AppliesIf is
// an optional rego boolean expression").
type RuleEvaluator struct {
	queries map[string]rego.PreparedEvalQuery
}

// NewRuleEvaluator prepares one rego query per rule carrying a non-empty
// AppliesIf expression, so evaluation at candidate-scoring time never
// pays compile cost.
func NewRuleEvaluator(ctx context.Context, rules []config.ComplianceRule) (*RuleEvaluator, error) {
	ev := &RuleEvaluator{queries: make(map[string]rego.PreparedEvalQuery)}
	for _, r := range rules {
		if r.AppliesIf == "" {
			continue
		}
		module := fmt.Sprintf("package rule_%s\n\ndefault applies = false\napplies { %s }", sanitizeID(r.ID), r.AppliesIf)
		pq, err := rego.New(
			rego.Query(fmt.Sprintf("data.rule_%s.applies", sanitizeID(r.ID))),
			rego.Module(r.ID+".rego", module),
		).PrepareForEval(ctx)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindInternal, "compiling applies_if rule "+r.ID, err)
		}
		ev.queries[r.ID] = pq
	}
	return ev, nil
}

// Applies evaluates rule.AppliesIf against input; a rule with no
// AppliesIf always applies.
func (e *RuleEvaluator) Applies(ctx context.Context, rule config.ComplianceRule, input map[string]any) (bool, error) {
	if rule.AppliesIf == "" {
		return true, nil
	}
	pq, ok := e.queries[rule.ID]
	if !ok {
		return true, nil
	}
	results, err := pq.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, apperrors.Wrap(apperrors.KindInternal, "evaluating applies_if rule "+rule.ID, err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}
	applies, _ := results[0].Expressions[0].Value.(bool)
	return applies, nil
}

func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
