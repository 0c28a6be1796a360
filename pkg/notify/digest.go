package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// WeeklyDigest aggregates every grant a user's runs surfaced over the
// trailing 7 days into a single email (§4.12 "weekly digest"),
// separate from the per-run summary sent by DispatchRunResult.
func (d *Dispatcher) WeeklyDigest(ctx context.Context, userID uuid.UUID, grants []*store.Grant, since time.Time) {
	to, err := d.recipients(ctx, userID)
	if err != nil || to == "" {
		d.log.Warn("skipping weekly digest: no recipient", "user_id", userID, "error", err)
		return
	}
	if len(grants) == 0 {
		return
	}

	top := TopGrants(grants, 5)
	bands := ScoreBandCounts(grants)

	subject := fmt.Sprintf("Weekly grant digest: %d new opportunities", len(grants))
	body := digestBody(top, bands, since)
	d.send(ctx, to, subject, body)
}

func digestBody(top []*store.Grant, bands map[string]int, since time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Grants since %s</h2>", since.Format("2006-01-02"))
	b.WriteString("<h3>Top matches</h3><ol>")
	for _, g := range top {
		fmt.Fprintf(&b, "<li><strong>%s</strong> (%s) — score %.2f</li>", g.Title, g.Funder, g.Scores.Composite)
	}
	b.WriteString("</ol><h3>By score band</h3><ul>")
	for _, band := range []string{"high (>=0.75)", "medium (0.5-0.75)", "low (<0.5)"} {
		fmt.Fprintf(&b, "<li>%s: %d</li>", band, bands[band])
	}
	b.WriteString("</ul>")
	return b.String()
}

// RunAdapterDegraded raises an ops alert when the email adapter itself
// is serving degraded (fallback) responses, so a silent swallow of
// Call's Degraded flag never masks a persistent outage.
func (d *Dispatcher) RunAdapterDegraded(ctx context.Context, breakerName string, consecutiveFailures uint32) {
	d.ops.NotifyBreakerOpen(ctx, breakerName, consecutiveFailures)
}
