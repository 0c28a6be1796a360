// Package notify implements the Notification Dispatcher (spec.md §4.12):
// best-effort per-run email summaries, a weekly digest, and internal ops
// Slack alerts for breaker-OPEN / run-FAILED conditions.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/adapters"
	"github.com/codeready-toolchain/grantfinder/pkg/breaker"
	"github.com/codeready-toolchain/grantfinder/pkg/slack"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// Dispatcher sends per-run and weekly-digest emails through the email
// adapter's breaker, plus ops alerts through a separate Slack channel
// (§4.12: "a failed send does not fail the run").
type Dispatcher struct {
	email      adapters.EmailSender
	cb         *breaker.Breaker
	ops        *slack.Service
	recipients func(ctx context.Context, userID uuid.UUID) (string, error)
	log        *slog.Logger
}

// New constructs a Dispatcher. recipients resolves a user id to their
// notification email address.
func New(email adapters.EmailSender, cb *breaker.Breaker, ops *slack.Service, recipients func(ctx context.Context, userID uuid.UUID) (string, error)) *Dispatcher {
	return &Dispatcher{email: email, cb: cb, ops: ops, recipients: recipients, log: slog.With("component", "notify-dispatcher")}
}

// DispatchRunResult sends the per-run summary email: top-5 grants by
// composite score and a counts-by-score-band breakdown (§4.12). A FAILED
// run additionally raises an ops alert. Both paths are best-effort.
func (d *Dispatcher) DispatchRunResult(ctx context.Context, userID uuid.UUID, run *store.SearchRun) {
	if run.Status == store.RunFailed {
		d.ops.NotifyRunFailed(ctx, run.ID.String(), userID.String(), run.ErrorMessage)
	}

	to, err := d.recipients(ctx, userID)
	if err != nil || to == "" {
		d.log.Warn("skipping run-result email: no recipient", "user_id", userID, "error", err)
		return
	}

	subject := fmt.Sprintf("Grant search complete: %d grants found (%s)", run.GrantsFound, run.Status)
	body := runSummaryBody(run)
	d.send(ctx, to, subject, body)
}

// send wraps the email adapter's breaker Call, logging failures without
// propagating them (§4.12).
func (d *Dispatcher) send(ctx context.Context, to, subject, body string) {
	_, err := d.cb.Call(ctx, func(ctx context.Context) (any, error) {
		return d.email.Call(ctx, adapters.EmailRequest{To: to, Subject: subject, HTMLBody: body, TextBody: body})
	})
	if err != nil {
		d.log.Warn("notification email failed", "to", to, "subject", subject, "error", err)
	}
}

func runSummaryBody(run *store.SearchRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Search run %s</h2>", run.Status)
	fmt.Fprintf(&b, "<p>%d grants found across %d sources.</p>", run.GrantsFound, run.SourcesSearched)
	if len(run.ErrorDetails) > 0 {
		b.WriteString("<p>Some chunks did not complete:</p><ul>")
		for _, d := range run.ErrorDetails {
			fmt.Fprintf(&b, "<li>%s: %s</li>", d.ChunkID, d.Reason)
		}
		b.WriteString("</ul>")
	}
	return b.String()
}

// TopGrants returns the top n grants by composite score, descending.
func TopGrants(grants []*store.Grant, n int) []*store.Grant {
	sorted := append([]*store.Grant(nil), grants...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Scores.Composite > sorted[j].Scores.Composite })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// ScoreBandCounts buckets grants into composite score bands for the
// digest summary (§4.12 "counts by score band").
func ScoreBandCounts(grants []*store.Grant) map[string]int {
	counts := map[string]int{"high (>=0.75)": 0, "medium (0.5-0.75)": 0, "low (<0.5)": 0}
	for _, g := range grants {
		switch {
		case g.Scores.Composite >= 0.75:
			counts["high (>=0.75)"]++
		case g.Scores.Composite >= 0.5:
			counts["medium (0.5-0.75)"]++
		default:
			counts["low (<0.5)"]++
		}
	}
	return counts
}
