package slack

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildBreakerOpenMessage creates Block Kit blocks for a circuit breaker
// OPEN alert (spec.md §4.2/§4.11: internal ops alerting on adapter
// degradation), distinct from the external per-user grant email path.
func BuildBreakerOpenMessage(breakerName string, consecutiveFailures uint32, dashboardURL string) []goslack.Block {
	text := fmt.Sprintf(":red_circle: *Circuit breaker OPEN*: `%s`\n%d consecutive failures. Serving fallback responses until recovery.",
		breakerName, consecutiveFailures)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Health Dashboard", false, false))
		btn.URL = dashboardURL + "/health/circuit-breakers"
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

// BuildRunFailedMessage creates Block Kit blocks for a search run that
// transitioned to FAILED (§3 SearchRun, §4.9).
func BuildRunFailedMessage(runID, userID, errorMessage, dashboardURL string) []goslack.Block {
	text := fmt.Sprintf(":x: *Search run failed*\nrun `%s` for user `%s`\n\n*Error:*\n%s",
		runID, userID, truncateForSlack(errorMessage))
	blocks := []goslack.Block{
		goslack.NewSectionBlock(goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false), nil, nil),
	}
	if dashboardURL != "" {
		btn := goslack.NewButtonBlockElement("", "", goslack.NewTextBlockObject(goslack.PlainTextType, "View Run", false, false))
		btn.URL = fmt.Sprintf("%s/runs/%s", dashboardURL, runID)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

func truncateForSlack(text string) string {
	runes := []rune(text)
	if len(runes) <= maxBlockTextLength {
		return text
	}
	return string(runes[:maxBlockTextLength]) + "\n\n_... (truncated)_"
}
